// Package normalize implements the text transformations applied to every
// non-repost message before similarity comparison: mention stripping,
// case folding, whitespace collapsing, and tokenization into a sorted,
// deduplicated token set.
package normalize

import (
	"regexp"
	"strings"
)

// mentionPattern matches an @mention: an @ sign followed by everything up
// to (but not including) the next whitespace run or the end of the string.
var mentionPattern = regexp.MustCompile(`@\S*`)

// Normalize makes text invariant to the non-semantic transformations social
// media posts commonly differ by: it strips @mentions, lowercases, and
// collapses internal whitespace to single spaces.
func Normalize(text string) string {
	stripped := mentionPattern.ReplaceAllString(strings.ToLower(text), "")
	return strings.Join(strings.Fields(stripped), " ")
}
