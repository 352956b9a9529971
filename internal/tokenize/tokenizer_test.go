package tokenize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize_EmptyAndWhitespace(t *testing.T) {
	opts := DefaultOptions()

	assert.Empty(t, Tokenize("", opts))
	assert.Empty(t, Tokenize("   ", opts))
	assert.Empty(t, Tokenize("\t\n ", opts))
}

func TestTokenize_Lowercases(t *testing.T) {
	opts := DefaultOptions()
	terms := Tokenize("Running FAST", opts)
	require.NotEmpty(t, terms)
	for _, term := range terms {
		assert.Equal(t, strings.ToLower(term), term)
	}
	assert.Contains(t, terms, PorterStem("running"))
}

func TestTokenize_SplitsOnPunctuationAndHyphens(t *testing.T) {
	opts := DefaultOptions()
	opts.Stopwords = nil
	opts.Stemmer = nil
	terms := Tokenize("well-known API's, testing...", opts)
	assert.Equal(t, []string{"well", "known", "api", "testing"}, terms)
}

func TestTokenize_DropsStopwords(t *testing.T) {
	opts := DefaultOptions()
	terms := Tokenize("the quick brown fox", opts)
	assert.NotContains(t, terms, "the")
}

func TestTokenize_MinMaxLength(t *testing.T) {
	opts := DefaultOptions()
	opts.Stopwords = nil
	opts.Stemmer = nil
	opts.MinLength = 3
	opts.MaxLength = 5
	terms := Tokenize("a ab abc abcd abcde abcdef", opts)
	assert.Equal(t, []string{"abc", "abcd", "abcde"}, terms)
}

func TestTokenize_StopwordCheckedPreStem(t *testing.T) {
	// "doings" is not a stopword but stems to "do", which is one; since the
	// stopword check runs before stemming, the stem survives.
	opts := DefaultOptions()
	assert.Equal(t, []string{"do"}, Tokenize("doings", opts))

	// Identical input always yields identical output.
	first := Tokenize("The runners are running quickly", opts)
	second := Tokenize("The runners are running quickly", opts)
	assert.Equal(t, first, second)
}

func TestTokenize_IsAFixedPointAfterStemming(t *testing.T) {
	opts := DefaultOptions()
	terms := Tokenize("connection connections connective", opts)
	rejoined := ""
	for i, term := range terms {
		if i > 0 {
			rejoined += " "
		}
		rejoined += term
	}
	again := Tokenize(rejoined, opts)
	assert.Equal(t, terms, again)
}
