// Package ftsindex implements the local BM25 full-text index: the
// InvertedIndex, BM25Scorer and the multi-field FullTextIndex façade that
// sits on top of them.
package ftsindex

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// DuplicateDocError is returned by AddDocument when id is already present;
// callers must RemoveDocument first.
type DuplicateDocError struct {
	DocID string
}

func (e *DuplicateDocError) Error() string {
	return fmt.Sprintf("document %q already indexed, remove before re-adding", e.DocID)
}

// docOrder assigns a stable integer per external string doc id so the
// postings' id sets can live in roaring bitmaps.
type docOrder struct {
	idToNum map[string]uint32
	numToID []string
}

func newDocOrder() *docOrder {
	return &docOrder{idToNum: make(map[string]uint32)}
}

func (o *docOrder) numberFor(id string) uint32 {
	if n, ok := o.idToNum[id]; ok {
		return n
	}
	n := uint32(len(o.numToID))
	o.idToNum[id] = n
	o.numToID = append(o.numToID, id)
	return n
}

func (o *docOrder) idFor(n uint32) string {
	return o.numToID[n]
}

// lookup returns id's assigned number without allocating a new one, for
// callers that only want to know whether id has ever been seen.
func (o *docOrder) lookup(id string) (uint32, bool) {
	n, ok := o.idToNum[id]
	return n, ok
}

// InvertedIndex owns postings (term -> docID -> tf), per-document lengths
// and running totals for a single field or the combined corpus.
//
// Invariants:
//   - a term's posting map never contains zero entries
//   - removing the last doc for a term removes the term entirely
//   - sum(docLengths) == totalLength
//   - len(docLengths) == totalDocs
type InvertedIndex struct {
	postings map[string]map[string]int
	present  map[string]*roaring.Bitmap // term -> doc-number set, for fast df

	docLengths map[string]int
	// docOrderList preserves insertion order for docLengths iteration,
	// required by Load rebuilding indexedDocs in the same
	// order it was serialized.
	docOrderList []string

	order *docOrder

	totalDocs   int
	totalLength int
}

// NewInvertedIndex returns an empty index.
func NewInvertedIndex() *InvertedIndex {
	return &InvertedIndex{
		postings:   make(map[string]map[string]int),
		present:    make(map[string]*roaring.Bitmap),
		docLengths: make(map[string]int),
		order:      newDocOrder(),
	}
}

// AddDocument indexes tokens under id. Fails with *DuplicateDocError if id
// is already indexed.
func (idx *InvertedIndex) AddDocument(id string, tokens []string) error {
	if _, exists := idx.docLengths[id]; exists {
		return &DuplicateDocError{DocID: id}
	}

	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}

	num := idx.order.numberFor(id)
	for term, count := range tf {
		bucket, ok := idx.postings[term]
		if !ok {
			bucket = make(map[string]int)
			idx.postings[term] = bucket
			idx.present[term] = roaring.New()
		}
		bucket[id] = count
		idx.present[term].Add(num)
	}

	idx.docLengths[id] = len(tokens)
	idx.docOrderList = append(idx.docOrderList, id)
	idx.totalDocs++
	idx.totalLength += len(tokens)
	return nil
}

// RemoveDocument removes id; it is a no-op when id is absent.
func (idx *InvertedIndex) RemoveDocument(id string) {
	length, exists := idx.docLengths[id]
	if !exists {
		return
	}

	num := idx.order.idToNum[id]
	for term, bucket := range idx.postings {
		if _, ok := bucket[id]; !ok {
			continue
		}
		delete(bucket, id)
		if bm := idx.present[term]; bm != nil {
			bm.Remove(num)
		}
		if len(bucket) == 0 {
			delete(idx.postings, term)
			delete(idx.present, term)
		}
	}

	delete(idx.docLengths, id)
	idx.totalDocs--
	idx.totalLength -= length

	for i, existing := range idx.docOrderList {
		if existing == id {
			idx.docOrderList = append(idx.docOrderList[:i], idx.docOrderList[i+1:]...)
			break
		}
	}
}

// GetPostings returns the term's doc id -> tf map, empty if the term is
// unknown. The returned map must not be mutated by callers.
func (idx *InvertedIndex) GetPostings(term string) map[string]int {
	if p, ok := idx.postings[term]; ok {
		return p
	}
	return map[string]int{}
}

// DocumentFrequency returns the number of documents containing term,
// read from the term's roaring doc-number set rather than the postings
// map, so df lookups scale with the scoring hot path's actual
// representation instead of re-deriving a map length every call.
func (idx *InvertedIndex) DocumentFrequency(term string) int {
	bm, ok := idx.present[term]
	if !ok {
		return 0
	}
	return int(bm.GetCardinality())
}

// DocumentCount returns the number of currently indexed documents.
func (idx *InvertedIndex) DocumentCount() int {
	return idx.totalDocs
}

// AverageDocLength returns totalLength/totalDocs, or 0 when empty.
func (idx *InvertedIndex) AverageDocLength() float64 {
	if idx.totalDocs == 0 {
		return 0
	}
	return float64(idx.totalLength) / float64(idx.totalDocs)
}

// DocLength returns the token count for id, or 0 if absent.
func (idx *InvertedIndex) DocLength(id string) int {
	return idx.docLengths[id]
}

// TotalDocs is an alias for DocumentCount kept for readability at call
// sites that read totals rather than counting.
func (idx *InvertedIndex) TotalDocs() int {
	return idx.totalDocs
}

// DocLengthsInOrder returns (id, length) pairs in insertion order, used
// by serialize/load to preserve the insertion-order invariant.
func (idx *InvertedIndex) DocLengthsInOrder() []DocLen {
	out := make([]DocLen, 0, len(idx.docOrderList))
	for _, id := range idx.docOrderList {
		out = append(out, DocLen{ID: id, Length: idx.docLengths[id]})
	}
	return out
}

// DocLen pairs a document id with its token count.
type DocLen struct {
	ID     string
	Length int
}

// Clear resets the index to empty.
func (idx *InvertedIndex) Clear() {
	idx.postings = make(map[string]map[string]int)
	idx.present = make(map[string]*roaring.Bitmap)
	idx.docLengths = make(map[string]int)
	idx.docOrderList = nil
	idx.order = newDocOrder()
	idx.totalDocs = 0
	idx.totalLength = 0
}
