package stabilizer_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/livescribe/internal/transcript/stabilizer"
)

type step struct {
	hypothesis string
	final      bool
}

func feed(t *testing.T, s *stabilizer.Stabilizer, steps ...step) []string {
	t.Helper()
	deltas := make([]string, 0, len(steps))
	for _, st := range steps {
		d, _ := s.Commit(st.hypothesis, st.final)
		deltas = append(deltas, d)
	}
	return deltas
}

func TestCommit_AgreementThenFinal(t *testing.T) {
	t.Parallel()

	s := stabilizer.New()
	deltas := feed(t, s,
		step{"hello wor", false},
		step{"hello world", false},
		step{"hello world", true},
	)

	want := []string{"", "hello ", "world"}
	for i := range want {
		if deltas[i] != want[i] {
			t.Errorf("delta[%d] = %q, want %q", i, deltas[i], want[i])
		}
	}
	if got := s.CommittedText(); got != "hello world" {
		t.Errorf("CommittedText() = %q, want %q", got, "hello world")
	}
	if got := s.CommittedPrefix(); got != "" {
		t.Errorf("CommittedPrefix() after final = %q, want empty", got)
	}
}

func TestCommit_UnstableTail(t *testing.T) {
	t.Parallel()

	s := stabilizer.New()
	if _, tail := s.Commit("good morn", false); tail != "good morn" {
		t.Errorf("first tail = %q, want %q", tail, "good morn")
	}
	d, tail := s.Commit("good morning every", false)
	if d != "good " {
		t.Errorf("delta = %q, want %q", d, "good ")
	}
	if tail != "morning every" {
		t.Errorf("tail = %q, want %q", tail, "morning every")
	}
	if _, tail := s.Commit("good morning everyone", true); tail != "" {
		t.Errorf("final tail = %q, want empty", tail)
	}
}

func TestCommit_FinalMismatchAppendsNothingUnsafe(t *testing.T) {
	t.Parallel()

	s := stabilizer.New()
	feed(t, s,
		step{"hello world foo", false},
		step{"hello world bar", false},
	)
	if got := s.CommittedPrefix(); got != "hello world " {
		t.Fatalf("CommittedPrefix() = %q, want %q", got, "hello world ")
	}
	before := s.CommittedText()

	d, tail := s.Commit("hello there now", true)
	if d != "" || tail != "" {
		t.Errorf("Commit(mismatch) = (%q, %q), want empty", d, tail)
	}
	if got := s.CommittedText(); got != before {
		t.Errorf("CommittedText() = %q, want unchanged %q", got, before)
	}
	if got := s.CommittedPrefix(); got != "" {
		t.Errorf("CommittedPrefix() after mismatched final = %q, want empty", got)
	}
}

func TestCommit_FinalMismatchExtendsLatest(t *testing.T) {
	t.Parallel()

	s := stabilizer.New()
	feed(t, s,
		step{"hello world x", false},
		step{"hello world y", false},
		step{"hello wurld", false},
	)
	// The final contradicts the committed "hello world " but continues the
	// latest hypothesis, so only the continuation is appended.
	d, _ := s.Commit("hello wurld again", true)
	if d != "again" {
		t.Errorf("delta = %q, want %q", d, "again")
	}
	if got := s.CommittedText(); got != "hello world again" {
		t.Errorf("CommittedText() = %q, want %q", got, "hello world again")
	}
}

func TestCommit_FinalExtendsCommittedPrefix(t *testing.T) {
	t.Parallel()

	s := stabilizer.New()
	feed(t, s,
		step{"hello world", false},
		step{"hello world", false},
		step{"hello word", false},
	)
	d, _ := s.Commit("hello word again", true)
	if d != "word again" {
		t.Errorf("delta = %q, want %q", d, "word again")
	}
}

func TestCommit_CommittedTextOnlyGrows(t *testing.T) {
	t.Parallel()

	s := stabilizer.New()
	hyps := []step{
		{"the quick", false},
		{"the quick brown", false},
		{"the quack brown fox", false},
		{"the quick brown fox jumps", false},
		{"the quick brown fox jumped", false},
		{"the quick brown fox jumped over", true},
		{"and then", false},
		{"and then some", false},
		{"and then some.", true},
	}
	prev := ""
	for _, h := range hyps {
		d, _ := s.Commit(h.hypothesis, h.final)
		got := s.CommittedText()
		if !strings.HasPrefix(got, prev) {
			t.Fatalf("committed text shrank: %q -> %q", prev, got)
		}
		if got != prev+d {
			t.Fatalf("committed %q != previous %q + delta %q", got, prev, d)
		}
		prev = got
	}
	if want := "the quick brown fox jumped over and then some."; prev != want {
		t.Errorf("CommittedText() = %q, want %q", prev, want)
	}
}

func TestCommit_SegmentDeltasAreAdjacent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		steps      []step
		wantDeltas []string
		wantText   string
	}{
		{
			name: "cut after hyphen",
			steps: []step{
				{"well-kn", false},
				{"well-known fact", false},
				{"well-known fact", true},
			},
			wantDeltas: []string{"", "well-", "known fact"},
			wantText:   "well-known fact",
		},
		{
			name: "repeated word kept",
			steps: []step{
				{"I think that t", false},
				{"I think that th", false},
				{"I think that that is right", true},
			},
			wantDeltas: []string{"", "I think that ", "that is right"},
			wantText:   "I think that that is right",
		},
		{
			name: "overlap still stripped at segment start",
			steps: []step{
				{"see you", true},
				{"you later", false},
				{"you later", true},
			},
			wantDeltas: []string{"see you", "", " later"},
			wantText:   "see you later",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := stabilizer.New()
			deltas := feed(t, s, tt.steps...)
			for i, want := range tt.wantDeltas {
				if deltas[i] != want {
					t.Errorf("delta[%d] = %q, want %q", i, deltas[i], want)
				}
			}
			if got := s.CommittedText(); got != tt.wantText {
				t.Errorf("CommittedText() = %q, want %q", got, tt.wantText)
			}
		})
	}
}

func TestCommit_EmptyHypothesisIgnored(t *testing.T) {
	t.Parallel()

	s := stabilizer.New()
	feed(t, s, step{"hello there", false}, step{"hello there", false})
	before := s.CommittedPrefix()

	if d, tail := s.Commit("", true); d != "" || tail != "" {
		t.Errorf("Commit(\"\") = (%q, %q), want empty", d, tail)
	}
	if got := s.CommittedPrefix(); got != before {
		t.Errorf("CommittedPrefix() = %q, want %q", got, before)
	}
}

func TestCommit_SinceLastFinal(t *testing.T) {
	t.Parallel()

	s := stabilizer.New()
	feed(t, s, step{"one two", false}, step{"one two three", false})
	if got := s.CommittedSinceLastFinal(); got != "one " {
		t.Errorf("CommittedSinceLastFinal() = %q, want %q", got, "one ")
	}
	s.Commit("one two three", true)
	if got := s.CommittedSinceLastFinal(); got != "" {
		t.Errorf("CommittedSinceLastFinal() after final = %q, want empty", got)
	}
}

func TestPromotePending(t *testing.T) {
	t.Parallel()

	s := stabilizer.New()
	feed(t, s, step{"hello world", false}, step{"hello world", false})

	all, pending := s.PromotePending()
	if all != "hello " || pending != "hello " {
		t.Errorf("PromotePending() = (%q, %q), want (%q, %q)", all, pending, "hello ", "hello ")
	}
	if _, pending := s.PromotePending(); pending != "" {
		t.Errorf("second PromotePending() pending = %q, want empty", pending)
	}

	s.Commit("hello world", true)
	all, pending = s.PromotePending()
	if all != "hello world" || pending != "world" {
		t.Errorf("PromotePending() = (%q, %q), want (%q, %q)", all, pending, "hello world", "world")
	}
}

func TestResetSegment_KeepsCommittedText(t *testing.T) {
	t.Parallel()

	s := stabilizer.New()
	feed(t, s, step{"hello world now", false}, step{"hello world again", false})
	s.ResetSegment()

	if got := s.CommittedText(); got != "hello world " {
		t.Errorf("CommittedText() = %q, want %q", got, "hello world ")
	}
	if got := s.CommittedPrefix(); got != "" {
		t.Errorf("CommittedPrefix() = %q, want empty", got)
	}

	// A fresh segment starts without agreement history.
	if d, _ := s.Commit("next bit", false); d != "" {
		t.Errorf("first delta after ResetSegment = %q, want empty", d)
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	s := stabilizer.New()
	feed(t, s, step{"hello", true})
	s.Reset()

	if s.CommittedText() != "" || s.CommittedPrefix() != "" || s.CommittedSinceLastFinal() != "" {
		t.Errorf("state not cleared after Reset")
	}
	if _, pending := s.PromotePending(); pending != "" {
		t.Errorf("PromotePending() after Reset = %q, want empty", pending)
	}
}
