// Package tokenize turns free text into a normalized, ordered sequence of
// stems: Unicode word segmentation, lowercasing, stopword filtering and
// Porter stemming, per spec section 4.1.
package tokenize

import (
	"strings"
	"unicode"

	"github.com/blevesearch/segment"
)

// Tokenize splits text into an ordered sequence of terms per opts.
//
// Contract: nil/empty/whitespace-only input yields an empty (non-nil)
// slice. Lowercasing, when enabled, happens before segmentation. Runs of
// non-letter, non-digit characters (hyphens, punctuation, apostrophes,
// all Unicode spaces) are separators. Per surviving word: drop if
// len < MinLength, drop if it is a stopword (checked pre-stem), stem it,
// then drop if the stem's length falls outside [MinLength, MaxLength].
// Identical input always yields identical output.
func Tokenize(text string, opts Options) []string {
	terms := make([]string, 0, len(text)/6+1)
	if strings.TrimSpace(text) == "" {
		return terms
	}

	if opts.Lowercase {
		text = strings.ToLower(text)
	}

	seg := segment.NewWordSegmenterDirect([]byte(text))
	var words []string
	for seg.Segment() {
		typ := seg.Type()
		if typ != segment.Letter && typ != segment.Number && typ != segment.Ideo && typ != segment.Kana {
			continue
		}
		// UAX#29 keeps apostrophes and some mid-word punctuation inside one
		// segment ("api's"); split those out as separators too.
		words = append(words, strings.FieldsFunc(string(seg.Bytes()), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsMark(r)
		})...)
	}
	for _, word := range words {
		if len(word) < opts.MinLength {
			continue
		}
		if _, stop := opts.Stopwords[word]; stop {
			continue
		}
		stem := word
		if opts.Stemmer != nil {
			stem = opts.Stemmer(word)
		}
		if len(stem) < opts.MinLength || len(stem) > opts.MaxLength {
			continue
		}
		terms = append(terms, stem)
	}

	return terms
}
