// Package phonetic matches misheard phrases against a user vocabulary using
// Double Metaphone encoding combined with Jaro-Winkler similarity.
//
// A phrase is a phonetic candidate for a term when any Double Metaphone code
// of its words overlaps any code of the term's words. Phonetic candidates are
// accepted above the phonetic threshold (default 0.70); phrases without any
// phonetic candidate fall back to pure Jaro-Winkler similarity with the
// stricter fuzzy threshold (default 0.85).
//
// A phrase never matches a term with more words than the phrase, and the two
// must be of comparable length, so "tower" alone does not become
// "Tower of Whispers". A phrase with more words than the term is compared
// with its spaces removed and always needs the fuzzy threshold.
package phonetic

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85

	// minLengthRatio is the smallest accepted ratio between the shorter and
	// longer of phrase and term, spaces removed.
	minLengthRatio = 0.6
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched term to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// ── Prepared vocabulary ─────────────────────────────────────────────────────

type entity struct {
	term   string
	lower  string
	tokens []string
	joined string
	codes  map[string]struct{}
}

// EntitySet is a vocabulary with its phonetic codes computed once. It is
// immutable and safe for concurrent use.
type EntitySet struct {
	entities []entity
	maxWords int
}

// PrepareEntities precomputes codes for terms. Blank and duplicate terms
// (case-insensitive) are skipped.
func PrepareEntities(terms []string) *EntitySet {
	es := &EntitySet{}
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		lower := strings.ToLower(term)
		if lower == "" {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		tokens := strings.Fields(lower)
		es.entities = append(es.entities, entity{
			term:   term,
			lower:  lower,
			tokens: tokens,
			joined: strings.Join(tokens, ""),
			codes:  codesForTokens(tokens),
		})
		es.maxWords = max(es.maxWords, len(tokens))
	}
	return es
}

// MaxWords returns the word count of the longest term, or 0 when empty.
func (es *EntitySet) MaxWords() int { return es.maxWords }

// Len returns the number of distinct terms.
func (es *EntitySet) Len() int { return len(es.entities) }

// ── Matching ────────────────────────────────────────────────────────────────

// Match finds the term most similar to phrase. When matched is false,
// corrected equals phrase and confidence is 0.
func (m *Matcher) Match(phrase string, terms []string) (corrected string, confidence float64, matched bool) {
	return m.MatchPrepared(phrase, PrepareEntities(terms))
}

// MatchPrepared is Match against a prepared vocabulary.
func (m *Matcher) MatchPrepared(phrase string, es *EntitySet) (corrected string, confidence float64, matched bool) {
	lower := strings.ToLower(strings.TrimSpace(phrase))
	if lower == "" || es == nil || len(es.entities) == 0 {
		return phrase, 0, false
	}
	tokens := strings.Fields(lower)
	joined := strings.Join(tokens, "")
	codes := codesForTokens(tokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, e := range es.entities {
		if len(e.tokens) > len(tokens) || !comparableLength(joined, e.joined) {
			continue
		}
		phon := codesOverlap(codes, e.codes)
		score, threshold := 0.0, m.fuzzyThreshold
		if len(tokens) == len(e.tokens) {
			score = similarity(tokens, lower, joined, e)
			if phon {
				threshold = m.phoneticThreshold
			}
		} else if sameEnds(joined, e.joined) {
			score = matchr.JaroWinkler(joined, e.joined, false)
		}
		if score < threshold || score == 0 {
			continue
		}
		switch {
		case phon && (!bestPhonetic || score > bestScore):
			best, bestScore, bestPhonetic = e.term, score, true
		case !phon && !bestPhonetic && score > bestScore:
			best, bestScore = e.term, score
		}
	}
	if best == "" {
		return phrase, 0, false
	}
	return best, bestScore, true
}

// sameEnds reports whether a and b start with the same rune and end with the
// same rune. Phrases heard as more words than the term ("post gress" for
// "postgres") must pass it, which keeps a neighbouring word from being
// swallowed into the term.
func sameEnds(a, b string) bool {
	af, _ := utf8.DecodeRuneInString(a)
	bf, _ := utf8.DecodeRuneInString(b)
	al, _ := utf8.DecodeLastRuneInString(a)
	bl, _ := utf8.DecodeLastRuneInString(b)
	return af == bf && al == bl
}

// similarity is the best Jaro-Winkler score over the full strings, the
// strings with spaces removed, and (for equal word counts) the mean of the
// word-by-word scores.
func similarity(tokens []string, lower, joined string, e entity) float64 {
	score := matchr.JaroWinkler(lower, e.lower, false)
	if s := matchr.JaroWinkler(joined, e.joined, false); s > score {
		score = s
	}
	if len(tokens) > 1 && len(tokens) == len(e.tokens) {
		var sum float64
		for i := range tokens {
			sum += matchr.JaroWinkler(tokens[i], e.tokens[i], false)
		}
		if s := sum / float64(len(tokens)); s > score {
			score = s
		}
	}
	return score
}

func comparableLength(a, b string) bool {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return false
	}
	return float64(min(la, lb))/float64(max(la, lb)) >= minLengthRatio
}

// codesForTokens returns the union of the Double Metaphone codes of tokens.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
