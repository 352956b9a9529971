package tokenize

// Stemmer reduces a word to its stem. Implementations must be stable:
// the same input always yields the same output, independent of prior calls.
type Stemmer func(word string) string

// Options is the immutable configuration for Tokenize. Construct via
// DefaultOptions and override individual fields; the zero value is not
// directly usable (Stemmer would be nil).
type Options struct {
	// Lowercase, when true, lowercases input before segmentation.
	Lowercase bool

	// Stopwords is the set of terms dropped before stemming. Keys must
	// already be lowercased since the stopword check happens after
	// lowercasing (when enabled) and before stemming.
	Stopwords map[string]struct{}

	// Stemmer is applied to each surviving word after the stopword check.
	Stemmer Stemmer

	// MinLength drops words shorter than it before the stopword check;
	// after stemming, a stem shorter than MinLength or longer than
	// MaxLength is dropped.
	MinLength int
	MaxLength int
}

// DefaultOptions returns the conventional defaults: lowercase on, the
// ~174 word English stopword list, the Porter stemmer, minLen 2, maxLen
// 40.
func DefaultOptions() Options {
	return Options{
		Lowercase: true,
		Stopwords: StopwordSet(DefaultEnglishStopwords),
		Stemmer:   PorterStem,
		MinLength: 2,
		MaxLength: 40,
	}
}
