// Package stabilizer turns a stream of revisable transcription hypotheses
// into append-only committed text.
//
// Streaming speech models revise their hypothesis as audio arrives, so any
// text shown or inserted downstream must only grow. A [Stabilizer] commits
// the part of each hypothesis that two consecutive revisions agree on,
// snapped back to a word boundary, and keeps the rest as an unstable tail.
// Final hypotheses end a segment and commit everything that safely extends
// what was already committed.
//
// A Stabilizer is not safe for concurrent use; it is owned by a single
// consumer goroutine.
package stabilizer

import (
	"strings"

	"github.com/MrWong99/livescribe/internal/transcript/textmerge"
)

// Stabilizer accumulates committed text across segments. The zero value is
// ready to use.
type Stabilizer struct {
	// committedPrefix is the committed part of the current segment's
	// hypothesis. It only grows within a segment.
	committedPrefix string

	// previous and latest are the last hypothesis seen in this segment.
	// previous feeds the agreement check; latest feeds final-mismatch
	// resolution.
	previous string
	latest   string

	// eventText is every committed delta of the stabilizer lifetime. Deltas
	// that open a segment are joined with tail-overlap-aware separators;
	// later deltas of the same segment are appended as is.
	eventText string

	// sinceLastFinal is the text appended to eventText since the last final.
	sinceLastFinal string

	// surfaced is the byte length of eventText already handed out by
	// PromotePending.
	surfaced int
}

// New returns an empty Stabilizer.
func New() *Stabilizer {
	return &Stabilizer{}
}

// Commit feeds one hypothesis for the current segment into the stabilizer.
//
// For a non-final hypothesis, the rune prefix it shares with the previous
// hypothesis is snapped back to a word boundary and committed if it extends
// the committed prefix. For a final hypothesis that extends the committed
// prefix, the whole hypothesis is committed. A final that contradicts the
// committed prefix is resolved against the latest hypothesis and only text
// that safely follows it is committed.
//
// It returns the text appended to the committed event text by this call and
// the unstable tail of the hypothesis (empty after a final). Empty
// hypotheses are ignored.
func (s *Stabilizer) Commit(hypothesis string, final bool) (delta, unstable string) {
	if hypothesis == "" {
		return "", ""
	}

	if final && s.committedPrefix != "" && !strings.HasPrefix(hypothesis, s.committedPrefix) {
		if remainder := resolveFinalMismatch(s.latest, hypothesis); remainder != "" {
			delta = s.joinToEvent(remainder)
		}
		s.ResetSegment()
		return delta, ""
	}

	target := s.committedPrefix
	switch {
	case final:
		target = hypothesis
	case s.previous != "":
		agreed := textmerge.LongestCommonPrefix(s.previous, hypothesis)
		cut := textmerge.StableWordBoundary(hypothesis, agreed)
		if cut > runeLen(s.committedPrefix) {
			target = runePrefix(hypothesis, cut)
		}
	}

	if len(target) > len(s.committedPrefix) && strings.HasPrefix(target, s.committedPrefix) {
		next := target[len(s.committedPrefix):]
		if s.committedPrefix == "" {
			delta = s.joinToEvent(next)
		} else {
			// Same hypothesis, adjacent slice: no separator, no overlap guard.
			delta = next
			s.appendToEvent(next)
		}
		s.committedPrefix = target
	}

	s.previous = hypothesis
	s.latest = hypothesis

	if strings.HasPrefix(hypothesis, s.committedPrefix) {
		unstable = hypothesis[len(s.committedPrefix):]
	} else {
		unstable = hypothesis
	}

	if final {
		s.ResetSegment()
	}
	return delta, unstable
}

// resolveFinalMismatch decides what part of a final hypothesis may still be
// appended when it no longer extends the committed prefix. It never returns
// text the latest hypothesis did not lead into.
func resolveFinalMismatch(latest, final string) string {
	switch {
	case strings.HasPrefix(final, latest):
		return final[len(latest):]
	case strings.Contains(latest, final):
		return ""
	}
	if i := strings.Index(final, latest); i >= 0 {
		return final[i+len(latest):]
	}
	k := textmerge.LongestSuffixPrefixOverlap(latest, final)
	if k == 0 {
		return ""
	}
	return string([]rune(final)[k:])
}

// joinToEvent appends text that starts a segment, dropping words the
// previous segment already ended with and adding a separator if needed.
func (s *Stabilizer) joinToEvent(text string) string {
	_, appended := textmerge.AppendWithTailOverlap(s.eventText, text)
	s.appendToEvent(appended)
	return appended
}

func (s *Stabilizer) appendToEvent(text string) {
	s.eventText += text
	s.sinceLastFinal += text
}

// PromotePending returns the full committed event text together with the
// part of it not yet returned by an earlier PromotePending call, and marks
// everything as surfaced.
func (s *Stabilizer) PromotePending() (committed, pending string) {
	pending = s.eventText[s.surfaced:]
	s.surfaced = len(s.eventText)
	return s.eventText, pending
}

// ResetSegment forgets the current segment's state while keeping the
// committed event text. Call it when a segment ends without a final, for
// example after a reconnect.
func (s *Stabilizer) ResetSegment() {
	s.committedPrefix = ""
	s.previous = ""
	s.latest = ""
	s.sinceLastFinal = ""
}

// Reset clears all state, including the committed event text.
func (s *Stabilizer) Reset() {
	*s = Stabilizer{}
}

// CommittedText returns all text committed so far.
func (s *Stabilizer) CommittedText() string { return s.eventText }

// CommittedPrefix returns the committed prefix of the current segment.
func (s *Stabilizer) CommittedPrefix() string { return s.committedPrefix }

// CommittedSinceLastFinal returns the text committed since the last final.
func (s *Stabilizer) CommittedSinceLastFinal() string { return s.sinceLastFinal }

func runeLen(s string) int {
	return len([]rune(s))
}

func runePrefix(s string, n int) string {
	return string([]rune(s)[:n])
}
