// Package textmerge provides the pure text helpers used to merge streaming
// transcription hypotheses: overlap detection, incremental delta merging,
// punctuation normalisation and word-boundary snapping.
//
// All lengths and offsets in this package are counted in runes, never bytes,
// so that multi-byte characters are never split.
//
// Every function is pure and safe for concurrent use.
package textmerge

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// LongestSuffixPrefixOverlap returns the largest k such that the last k runes
// of lhs equal the first k runes of rhs. It returns 0 when either input is
// empty or nothing overlaps.
func LongestSuffixPrefixOverlap(lhs, rhs string) int {
	l, r := []rune(lhs), []rune(rhs)
	for k := min(len(l), len(r)); k > 0; k-- {
		if slices.Equal(l[len(l)-k:], r[:k]) {
			return k
		}
	}
	return 0
}

// MergeIncremental folds an incoming partial fragment into the accumulated
// hypothesis. The returned delta is exactly the text appended to existing;
// merged always equals existing+delta.
//
// Fragments that repeat text already present produce an empty delta.
// Fragments that restate the whole hypothesis plus more yield only the new
// suffix. Otherwise the longest suffix/prefix overlap is stripped before
// appending.
func MergeIncremental(existing, incoming string) (merged, delta string) {
	switch {
	case incoming == "":
		return existing, ""
	case existing == "":
		return incoming, incoming
	case strings.Contains(existing, incoming):
		return existing, ""
	case strings.HasPrefix(incoming, existing):
		delta = incoming[len(existing):]
		return incoming, delta
	}
	k := LongestSuffixPrefixOverlap(existing, incoming)
	delta = string([]rune(incoming)[k:])
	return existing + delta, delta
}

// AppendWithTailOverlap appends incoming to existing, skipping any whole
// words that duplicate the tail of existing and inserting a single space separator when
// the two pieces would otherwise run together. The returned delta is the
// exact text appended, separator included.
func AppendWithTailOverlap(existing, incoming string) (merged, delta string) {
	if incoming == "" {
		return existing, ""
	}
	if existing == "" {
		return incoming, incoming
	}
	in := []rune(incoming)
	rest := in[wordAlignedOverlap([]rune(existing), in):]
	if len(rest) == 0 {
		return existing, ""
	}
	last, _ := utf8.DecodeLastRuneInString(existing)
	if needsSeparator(last, rest[0]) {
		delta = " " + string(rest)
	} else {
		delta = string(rest)
	}
	return existing + delta, delta
}

// wordAlignedOverlap is LongestSuffixPrefixOverlap restricted to overlaps
// that start and end on word boundaries, so "world" + "do it" keeps its "d".
func wordAlignedOverlap(existing, incoming []rune) int {
	for k := min(len(existing), len(incoming)); k > 0; k-- {
		if !slices.Equal(existing[len(existing)-k:], incoming[:k]) {
			continue
		}
		start := len(existing) - k
		startOK := start == 0 || IsWordBoundary(existing[start-1]) || IsWordBoundary(existing[start])
		endOK := k == len(incoming) || IsWordBoundary(incoming[k-1]) || IsWordBoundary(incoming[k])
		if startOK && endOK {
			return k
		}
	}
	return 0
}

func needsSeparator(last, next rune) bool {
	switch {
	case unicode.IsSpace(last), unicode.IsSpace(next):
		return false
	case last == '-', isOpening(last):
		return false
	case AvoidsLeadingSpace(next):
		return false
	}
	return true
}

// LongestCommonPrefix returns the number of leading runes shared by lhs and rhs.
func LongestCommonPrefix(lhs, rhs string) int {
	n := 0
	for lhs != "" && rhs != "" {
		a, sa := utf8.DecodeRuneInString(lhs)
		b, sb := utf8.DecodeRuneInString(rhs)
		if a != b {
			break
		}
		n++
		lhs, rhs = lhs[sa:], rhs[sb:]
	}
	return n
}

// IsWordBoundary reports whether r ends a word: whitespace or one of the
// punctuation marks . , ! ? ; : ) ] } -.
func IsWordBoundary(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(".,!?;:)]}-", r)
}

// StableWordBoundary snaps upTo (a rune offset into text) back to the nearest
// word boundary at or before it, so that a cut never lands inside a word.
// Offsets outside [0, len] are clamped. The result is 0 when no boundary
// exists before upTo.
func StableWordBoundary(text string, upTo int) int {
	runes := []rune(text)
	cut := max(0, min(upTo, len(runes)))
	for cut > 0 && !IsWordBoundary(runes[cut-1]) {
		cut--
	}
	return cut
}

// AvoidsLeadingSpace reports whether r should attach directly to the
// preceding text without a separator: closing punctuation and the hyphen.
func AvoidsLeadingSpace(r rune) bool {
	return strings.ContainsRune(".,!?;:)]}-…%", r)
}

func isOpening(r rune) bool {
	return strings.ContainsRune("([{", r)
}

// ── Normalisation ───────────────────────────────────────────────────────────

var (
	horizontalSpace  = regexp.MustCompile(`[^\S\n\r]+`)
	spaceBeforeClose = regexp.MustCompile(`[^\S\n\r]+([,.!?)\]}])`)
	spaceAfterOpen   = regexp.MustCompile(`([(\[{])[^\S\n\r]+`)
	splitElision     = regexp.MustCompile(`(^|[^\p{L}\p{N}'’])((?i:qu)|\p{L})(['’])[^\S\n\r]+([\p{L}\p{N}])`)
	spacedHyphen     = regexp.MustCompile(`([\p{L}\p{N}]) - ([\p{L}\p{N}])`)
)

// Normalize cleans up tokenizer artefacts in a transcript: runs of spaces and
// tabs collapse to one space (newlines are kept), spaces before closing
// punctuation and after opening brackets are dropped, split elisions are
// joined ("l'  homme" becomes "l'homme", "qu' il" becomes "qu'il"; only a
// single letter or "qu" before the apostrophe counts, so "the students'
// books" is kept) and a spaced hyphen between two
// word characters is tightened ("well - known" becomes "well-known").
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	// Rules can expose new matches for each other (chained hyphens, for
	// example), so iterate to a fixed point. Every pass after the first only
	// removes characters, which bounds the loop.
	for {
		next := normalizeOnce(text)
		if next == text {
			return text
		}
		text = next
	}
}

func normalizeOnce(text string) string {
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = spaceBeforeClose.ReplaceAllString(text, "$1")
	text = spaceAfterOpen.ReplaceAllString(text, "$1")
	text = splitElision.ReplaceAllString(text, "$1$2$3$4")
	text = spacedHyphen.ReplaceAllString(text, "$1-$2")
	return text
}
