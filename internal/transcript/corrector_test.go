package transcript_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/livescribe/internal/transcript"
)

// mapMatcher matches phrases by exact lookup, ignoring the vocabulary.
type mapMatcher struct {
	mu    sync.Mutex
	terms map[string]string
	calls []string
}

func (m *mapMatcher) Match(phrase string, _ []string) (string, float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, phrase)
	if term, ok := m.terms[strings.ToLower(phrase)]; ok {
		return term, 0.9, true
	}
	return phrase, 0, false
}

func TestCorrector_PreservesLayout(t *testing.T) {
	t.Parallel()

	m := &mapMatcher{terms: map[string]string{
		"grafanna":   "Grafana",
		"post gress": "Postgres",
	}}
	c := transcript.NewCorrector(m, []string{"Grafana", "Postgres"})

	in := "  ask (grafanna), then post gress!\n"
	got, err := c.Correct(context.Background(), in)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if want := "  ask (Grafana), then Postgres!\n"; got.Corrected != want {
		t.Errorf("Corrected = %q, want %q", got.Corrected, want)
	}
	if got.Original != in {
		t.Errorf("Original = %q, want %q", got.Original, in)
	}
	if len(got.Corrections) != 2 {
		t.Fatalf("Corrections = %+v, want 2", got.Corrections)
	}
	if c0 := got.Corrections[0]; c0.Original != "grafanna" || c0.Corrected != "Grafana" || c0.Method != "phonetic" {
		t.Errorf("Corrections[0] = %+v", c0)
	}
	if c1 := got.Corrections[1]; c1.Original != "post gress" || c1.Corrected != "Postgres" {
		t.Errorf("Corrections[1] = %+v", c1)
	}
}

func TestCorrector_WindowsDoNotCrossPunctuation(t *testing.T) {
	t.Parallel()

	m := &mapMatcher{terms: map[string]string{"post gress": "Postgres"}}
	c := transcript.NewCorrector(m, []string{"Postgres"})

	got, err := c.Correct(context.Background(), "post, gress")
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if got.Corrected != "post, gress" {
		t.Errorf("Corrected = %q, want unchanged", got.Corrected)
	}
	for _, call := range m.calls {
		if call == "post gress" {
			t.Errorf("matcher asked about %q across a comma", call)
		}
	}
}

func TestCorrector_NoVocabulary(t *testing.T) {
	t.Parallel()

	m := &mapMatcher{terms: map[string]string{"grafanna": "Grafana"}}
	c := transcript.NewCorrector(m, nil)

	got, err := c.Correct(context.Background(), "grafanna")
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if got.Corrected != "grafanna" || len(got.Corrections) != 0 || got.Corrections == nil {
		t.Errorf("Correct = %+v, want unchanged with empty non-nil corrections", got)
	}
	if len(m.calls) != 0 {
		t.Errorf("matcher called %d times without vocabulary", len(m.calls))
	}
}

func TestCorrector_SetVocabulary(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(nil, nil)
	c.SetVocabulary([]string{"Grafana"})
	if got := c.Vocabulary(); len(got) != 1 || got[0] != "Grafana" {
		t.Fatalf("Vocabulary() = %v", got)
	}

	got, err := c.Correct(context.Background(), "open grafanna now")
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if got.Corrected != "open Grafana now" {
		t.Errorf("Corrected = %q, want %q", got.Corrected, "open Grafana now")
	}
}

func TestCorrector_PhoneticEndToEnd(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(nil, []string{"Grafana", "Kubernetes", "Postgres", "Tower of Whispers"})
	got, err := c.Correct(context.Background(), "we run grafanna on kuberentes.")
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if want := "we run Grafana on Kubernetes."; got.Corrected != want {
		t.Errorf("Corrected = %q, want %q", got.Corrected, want)
	}
	if len(got.Corrections) != 2 {
		t.Errorf("Corrections = %+v, want 2", got.Corrections)
	}
}

func TestCorrector_ExactTermUnchanged(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(nil, []string{"Grafana"})
	got, err := c.Correct(context.Background(), "Grafana is up")
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if got.Corrected != "Grafana is up" || len(got.Corrections) != 0 {
		t.Errorf("Correct = %+v, want no corrections", got)
	}
}

func TestCorrector_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := transcript.NewCorrector(nil, []string{"Grafana"})
	if _, err := c.Correct(ctx, "grafanna"); err == nil {
		t.Error("Correct with cancelled context returned nil error")
	}
}
