package risk

import "strings"

// Lexicon matches crisis keywords by case-insensitive substring.
type Lexicon struct {
	terms []string
}

// NewLexicon normalizes and deduplicates terms, keeping their order.
func NewLexicon(terms []string) *Lexicon {
	seen := make(map[string]bool, len(terms))
	l := &Lexicon{}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		l.terms = append(l.terms, t)
	}
	return l
}

// Match returns every term found in text, in lexicon order.
func (l *Lexicon) Match(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var found []string
	for _, t := range l.terms {
		if strings.Contains(lower, t) {
			found = append(found, t)
		}
	}
	return found
}

// Terms returns a copy of the normalized terms.
func (l *Lexicon) Terms() []string { return append([]string(nil), l.terms...) }
