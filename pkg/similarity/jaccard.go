// Package similarity implements the token-set comparison predicates pushed
// down into the coordination engine's self-join as host scalar functions.
package similarity

import "strings"

// Jaccard returns the Jaccard index of two space-joined token sets, as
// produced by pkg/normalize.Tokenize: the size of their intersection over
// the size of their union. Two empty token sets are considered to have
// zero similarity rather than dividing by zero.
func Jaccard(tokens1, tokens2 string) float64 {
	set1 := toSet(tokens1)
	set2 := toSet(tokens2)

	if len(set1) == 0 || len(set2) == 0 {
		return 0
	}

	intersection := 0
	for t := range set1 {
		if _, ok := set2[t]; ok {
			intersection++
		}
	}
	union := len(set1) + len(set2) - intersection

	return float64(intersection) / float64(union)
}

// MinSize returns a similarity predicate that discards documents with
// fewer than minTokens tokens, treating them as having zero similarity to
// anything. This avoids flagging very short messages (a single mention and
// hashtag) as coordinated merely for lacking distinguishing content.
func MinSize(minTokens int) func(tokens1, tokens2 string) float64 {
	return func(tokens1, tokens2 string) float64 {
		set1 := toSet(tokens1)
		if len(set1) < minTokens {
			return 0
		}
		set2 := toSet(tokens2)
		if len(set2) < minTokens {
			return 0
		}

		intersection := 0
		for t := range set1 {
			if _, ok := set2[t]; ok {
				intersection++
			}
		}
		union := len(set1) + len(set2) - intersection

		return float64(intersection) / float64(union)
	}
}

func toSet(tokens string) map[string]struct{} {
	fields := strings.Fields(tokens)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
