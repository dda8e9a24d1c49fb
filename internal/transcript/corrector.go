package transcript

import (
	"context"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/livescribe/internal/transcript/phonetic"
)

// minPhraseRunes is the shortest phrase considered for correction. Shorter
// words match too many terms by accident.
const minPhraseRunes = 3

// Corrector is the vocabulary [Pipeline]. The vocabulary can be swapped at
// runtime with SetVocabulary; Correct always sees a consistent snapshot.
type Corrector struct {
	matcher PhoneticMatcher

	mu       sync.RWMutex
	terms    []string
	prepared *phonetic.EntitySet
}

var _ Pipeline = (*Corrector)(nil)

// NewCorrector returns a Corrector using m for matching. A nil m selects
// [phonetic.New] with default thresholds.
func NewCorrector(m PhoneticMatcher, terms []string) *Corrector {
	if m == nil {
		m = phonetic.New()
	}
	c := &Corrector{matcher: m}
	c.SetVocabulary(terms)
	return c
}

// SetVocabulary replaces the vocabulary.
func (c *Corrector) SetVocabulary(terms []string) {
	terms = append([]string(nil), terms...)
	prepared := phonetic.PrepareEntities(terms)
	c.mu.Lock()
	c.terms = terms
	c.prepared = prepared
	c.mu.Unlock()
}

// Vocabulary returns a copy of the current vocabulary.
func (c *Corrector) Vocabulary() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.terms...)
}

// Correct implements [Pipeline].
//
// At each word the longest matching window is replaced, so multi-word terms
// win over single-word ones. Windows may be one word longer than the longest
// term, since a term is often heard as two words. A window
// never spans punctuation between its words; the leading whitespace and
// punctuation of the first word and the trailing punctuation of the last
// word are kept around the replacement.
func (c *Corrector) Correct(ctx context.Context, text string) (*CorrectedText, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	terms, prepared := c.terms, c.prepared
	c.mu.RUnlock()

	result := &CorrectedText{Original: text, Corrected: text, Corrections: []Correction{}}
	if prepared.Len() == 0 || strings.TrimSpace(text) == "" {
		return result, nil
	}

	match := func(phrase string) (string, float64, bool) {
		return c.matcher.Match(phrase, terms)
	}
	if pm, ok := c.matcher.(*phonetic.Matcher); ok {
		match = func(phrase string) (string, float64, bool) {
			return pm.MatchPrepared(phrase, prepared)
		}
	}

	words, tail := splitWords(text)
	var b strings.Builder
	for i := 0; i < len(words); {
		n, term, conf := c.longestMatch(words[i:], prepared.MaxWords()+1, match)
		if n == 0 {
			b.WriteString(words[i].String())
			i++
			continue
		}
		first, last := words[i], words[i+n-1]
		b.WriteString(first.space + first.lead + term + last.trail)
		result.Corrections = append(result.Corrections, Correction{
			Original:   joinCores(words[i : i+n]),
			Corrected:  term,
			Confidence: conf,
			Method:     "phonetic",
		})
		i += n
	}
	b.WriteString(tail)
	result.Corrected = b.String()
	return result, nil
}

// longestMatch returns the size of the longest matching window at the start
// of words, or 0. A window whose text already equals the term is consumed
// without counting as a correction.
func (c *Corrector) longestMatch(words []word, maxWords int, match func(string) (string, float64, bool)) (int, string, float64) {
	for n := min(maxWords, len(words)); n >= 1; n-- {
		if !windowable(words[:n]) {
			continue
		}
		phrase := joinCores(words[:n])
		if utf8.RuneCountInString(phrase) < minPhraseRunes {
			continue
		}
		term, conf, ok := match(phrase)
		if !ok {
			continue
		}
		if term == phrase {
			return 0, "", 0
		}
		return n, term, conf
	}
	return 0, "", 0
}

// ── Tokenisation ────────────────────────────────────────────────────────────

// word is one whitespace-delimited token split into its parts.
type word struct {
	space string // whitespace before the token
	lead  string // leading punctuation, e.g. "(" or a quote
	core  string // letters, digits and inner punctuation
	trail string // trailing punctuation
}

func (w word) String() string {
	return w.space + w.lead + w.core + w.trail
}

// splitWords tokenises text so that concatenating every word's String and
// the returned tail reproduces text exactly.
func splitWords(text string) ([]word, string) {
	var words []word
	for {
		token := strings.TrimLeftFunc(text, unicode.IsSpace)
		space := text[:len(text)-len(token)]
		if token == "" {
			return words, space
		}
		end := strings.IndexFunc(token, unicode.IsSpace)
		if end < 0 {
			end = len(token)
		}
		words = append(words, splitPunct(space, token[:end]))
		text = token[end:]
	}
}

func splitPunct(space, token string) word {
	core := strings.TrimLeftFunc(token, isPunct)
	lead := token[:len(token)-len(core)]
	trimmed := strings.TrimRightFunc(core, isPunct)
	return word{space: space, lead: lead, core: trimmed, trail: core[len(trimmed):]}
}

func isPunct(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// windowable reports whether words can be replaced as one phrase: every word
// has a core and no punctuation separates them.
func windowable(words []word) bool {
	for i, w := range words {
		if w.core == "" {
			return false
		}
		if i > 0 && w.lead != "" {
			return false
		}
		if i < len(words)-1 && w.trail != "" {
			return false
		}
	}
	return true
}

func joinCores(words []word) string {
	cores := make([]string, len(words))
	for i, w := range words {
		cores[i] = w.core
	}
	return strings.Join(cores, " ")
}
