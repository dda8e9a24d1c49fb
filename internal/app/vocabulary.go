package app

import (
	"context"
	"sync/atomic"

	"github.com/MrWong99/livescribe/internal/config"
	"github.com/MrWong99/livescribe/internal/transcript"
	"github.com/MrWong99/livescribe/internal/transcript/phonetic"
)

// vocabulary is the hot-reloadable correction stage shared by all sessions.
// A reload swaps the whole corrector, so a running session picks up new
// words and thresholds with its next insert.
type vocabulary struct {
	current atomic.Pointer[transcript.Corrector]
}

var _ transcript.Pipeline = (*vocabulary)(nil)

func newVocabulary(cfg config.VocabularyConfig) *vocabulary {
	v := &vocabulary{}
	v.set(cfg)
	return v
}

// set replaces the corrector. An empty word list disables correction.
func (v *vocabulary) set(cfg config.VocabularyConfig) {
	if len(cfg.Words) == 0 {
		v.current.Store(nil)
		return
	}
	m := phonetic.New(
		phonetic.WithPhoneticThreshold(cfg.PhoneticThreshold),
		phonetic.WithFuzzyThreshold(cfg.FuzzyThreshold),
	)
	v.current.Store(transcript.NewCorrector(m, cfg.Words))
}

// Words returns the active vocabulary.
func (v *vocabulary) Words() []string {
	c := v.current.Load()
	if c == nil {
		return nil
	}
	return c.Vocabulary()
}

// Correct implements [transcript.Pipeline].
func (v *vocabulary) Correct(ctx context.Context, text string) (*transcript.CorrectedText, error) {
	c := v.current.Load()
	if c == nil {
		return &transcript.CorrectedText{
			Original:    text,
			Corrected:   text,
			Corrections: []transcript.Correction{},
		}, nil
	}
	return c.Correct(ctx, text)
}
