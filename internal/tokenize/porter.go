package tokenize

import "github.com/blevesearch/go-porterstemmer"

// PorterStem reduces word to its stem using the classical Porter
// stemming algorithm (Porter, 1980), the same implementation bleve's
// own analyzers use for English stemming.
func PorterStem(word string) string {
	return porterstemmer.StemString(word)
}
