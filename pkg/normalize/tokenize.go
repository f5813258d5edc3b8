package normalize

import (
	"sort"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"github.com/orsinium-labs/stopwords"
)

// StopwordFilter is consulted during Tokenize; a nil filter disables
// stopword removal. Use stopwords.English (or another locale's set from
// github.com/orsinium-labs/stopwords) to enable it.
type StopwordFilter = *stopwords.Stopwords[string]

// Tokenize splits text into a UAX #29 word-boundary token set: it strips
// mentions and lowercases exactly as Normalize does, segments what remains
// into words, discards non-word segments (punctuation, isolated
// whitespace) and, if filter is non-nil, any stopword, then returns the
// sorted, deduplicated tokens joined by single spaces. The resulting
// string is what similarity.Jaccard compares.
func Tokenize(text string, filter StopwordFilter) string {
	cleaned := mentionPattern.ReplaceAllString(strings.ToLower(text), "")

	set := make(map[string]struct{})
	seg := words.FromString(cleaned)
	for seg.Next() {
		tok := strings.TrimSpace(seg.Value())
		if tok == "" || !isWordToken(tok) {
			continue
		}
		if filter != nil && filter.Has(tok) {
			continue
		}
		set[tok] = struct{}{}
	}

	tokens := make([]string, 0, len(set))
	for t := range set {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)

	return strings.Join(tokens, " ")
}

// isWordToken reports whether a UAX #29 segment carries at least one
// letter or digit rather than being pure punctuation or whitespace.
func isWordToken(tok string) bool {
	for _, r := range tok {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
