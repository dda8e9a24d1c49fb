package phonetic_test

import (
	"testing"

	"github.com/MrWong99/livescribe/internal/transcript/phonetic"
)

var vocabulary = []string{"Grafana", "Kubernetes", "Postgres", "Tower of Whispers"}

func TestMatcher_Matches(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	tests := []struct {
		phrase string
		want   string
	}{
		{"grafanna", "Grafana"},
		{"kuberentes", "Kubernetes"},
		{"post gress", "Postgres"},
		{"tower of wispers", "Tower of Whispers"},
		{"GRAFANA", "Grafana"},
	}
	for _, tc := range tests {
		corrected, conf, matched := m.Match(tc.phrase, vocabulary)
		if !matched {
			t.Errorf("Match(%q): matched=false, want true", tc.phrase)
			continue
		}
		if corrected != tc.want {
			t.Errorf("Match(%q): corrected=%q, want %q", tc.phrase, corrected, tc.want)
		}
		if conf < 0.85 {
			t.Errorf("Match(%q): confidence=%f, want >= 0.85", tc.phrase, conf)
		}
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	corrected, conf, matched := m.Match("hello", vocabulary)
	if matched {
		t.Fatalf("Match(%q): matched=true (%q), want false", "hello", corrected)
	}
	if corrected != "hello" || conf != 0 {
		t.Errorf("Match(%q) = (%q, %f), want original word and 0", "hello", corrected, conf)
	}
}

func TestMatcher_PartialPhraseDoesNotExpand(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	if corrected, _, matched := m.Match("tower", vocabulary); matched {
		t.Errorf("Match(%q) = %q, want no match against a longer term", "tower", corrected)
	}
}

func TestMatcher_ThresholdFiltering(t *testing.T) {
	t.Parallel()

	m := phonetic.New(
		phonetic.WithPhoneticThreshold(0.99),
		phonetic.WithFuzzyThreshold(0.99),
	)
	if _, _, matched := m.Match("grafanna", vocabulary); matched {
		t.Error("Match with threshold=0.99 should reject near-matches")
	}
}

func TestMatcher_EmptyInputs(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	if corrected, conf, matched := m.Match("grafana", nil); matched || corrected != "grafana" || conf != 0 {
		t.Errorf("Match with nil vocabulary = (%q, %f, %v)", corrected, conf, matched)
	}
	if corrected, conf, matched := m.Match("", vocabulary); matched || corrected != "" || conf != 0 {
		t.Errorf("Match with empty phrase = (%q, %f, %v)", corrected, conf, matched)
	}
	if _, _, matched := m.MatchPrepared("grafana", nil); matched {
		t.Error("MatchPrepared with nil set matched")
	}
}

func TestPrepareEntities(t *testing.T) {
	t.Parallel()

	es := phonetic.PrepareEntities([]string{"Grafana", "grafana", "  ", "Tower of Whispers"})
	if es.Len() != 2 {
		t.Errorf("Len() = %d, want 2", es.Len())
	}
	if es.MaxWords() != 3 {
		t.Errorf("MaxWords() = %d, want 3", es.MaxWords())
	}
	if got := phonetic.PrepareEntities(nil).MaxWords(); got != 0 {
		t.Errorf("MaxWords() of empty set = %d, want 0", got)
	}
}
