// Package transcript fixes speech-to-text errors in user vocabulary before
// dictated text is inserted.
//
// Transcription models routinely mishear product names, acronyms and jargon
// ("grafanna", "post gress"). A [Pipeline] rewrites such spans to the
// configured spelling while leaving everything else, including whitespace
// and punctuation, exactly as transcribed. Each [Correction] records what was
// replaced and why, so callers can log or audit substitutions.
//
// Implementations must be safe for concurrent use.
package transcript

import "context"

// Correction captures a single substitution made by the pipeline.
type Correction struct {
	// Original is the span as transcribed, words joined by single spaces.
	Original string

	// Corrected is the vocabulary term that replaced it.
	Corrected string

	// Confidence is the similarity score of the substitution (0.0–1.0).
	Confidence float64

	// Method names the stage that produced the substitution, e.g. "phonetic".
	Method string
}

// CorrectedText is the output of a [Pipeline.Correct] call.
type CorrectedText struct {
	// Original is the text as transcribed.
	Original string

	// Corrected is the text with all substitutions applied.
	Corrected string

	// Corrections lists the substitutions in text order. An empty (non-nil)
	// slice means nothing was changed.
	Corrections []Correction
}

// Pipeline rewrites transcribed text against a vocabulary.
type Pipeline interface {
	// Correct returns a non-nil *CorrectedText on success. When no
	// correction applies, Corrected equals text.
	Correct(ctx context.Context, text string) (*CorrectedText, error)
}

// PhoneticMatcher resolves a phrase to the most similar vocabulary term.
//
// When matched is false, corrected must equal phrase and confidence must be
// 0. Implementations must be safe for concurrent use.
type PhoneticMatcher interface {
	Match(phrase string, terms []string) (corrected string, confidence float64, matched bool)
}
