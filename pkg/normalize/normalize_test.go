package normalize

import (
	"testing"

	"github.com/orsinium-labs/stopwords"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStripsMentionsAndCase(t *testing.T) {
	got := Normalize("@alice Hello   @bob   WORLD")
	require.Equal(t, "hello world", got)
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	got := Normalize("one\n\ttwo   three")
	require.Equal(t, "one two three", got)
}

func TestTokenizeSortsAndDeduplicates(t *testing.T) {
	got := Tokenize("the Quick quick BROWN fox @someone", nil)
	require.Equal(t, "brown fox quick the", got)
}

func TestTokenizeDropsPunctuationOnlySegments(t *testing.T) {
	got := Tokenize("hello, world!!!", nil)
	require.Equal(t, "hello world", got)
}

func TestTokenizeAppliesStopwordFilter(t *testing.T) {
	got := Tokenize("the quick brown fox", stopwords.English)
	require.Equal(t, "brown fox quick", got)
}
