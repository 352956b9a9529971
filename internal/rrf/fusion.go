// Package rrf implements Reciprocal Rank Fusion: merging K independently
// ranked result lists into one ranked list using rank position alone, so
// the merge tolerates divergent score scales across the lists (distinct
// cluster nodes' BM25 scores depend on that node's local document count
// and are never comparable directly).
package rrf

import "sort"

// DefaultK is the conventional RRF smoothing constant, used across
// hybrid-search implementations (Azure AI Search, OpenSearch, and
// others default to the same value).
const DefaultK = 60

// RankedItem is one entry of an input list: a document/key identifier,
// its score in that list's own scale (carried through for display, not
// used in the fusion computation itself) and the list's source label.
type RankedItem struct {
	Key    string
	Score  float64
	Source string
}

// Fused is one row of a Fuse result: the RRF score (not any input
// list's native score) plus the originating items that contributed to
// it, in the order their source lists were passed to Fuse.
type Fused struct {
	Key      string
	RRFScore float64
	Items    []RankedItem
}

// Fuser merges ranked lists with a fixed smoothing constant k.
type Fuser struct {
	K int
}

// New builds a Fuser with the given k. A non-positive k falls back to
// DefaultK.
func New(k int) *Fuser {
	if k <= 0 {
		k = DefaultK
	}
	return &Fuser{K: k}
}

// Fuse combines lists (each already sorted descending by that list's own
// score) into one list ranked by Σ 1/(k + rank) over the lists where the
// key appears; a list where a key is absent contributes nothing (there
// is no missing-rank penalty term). Ties are broken by key. The returned
// slice is empty, never nil, when every input list is empty.
func (f *Fuser) Fuse(lists ...[]RankedItem) []Fused {
	acc := make(map[string]*Fused)
	order := make([]string, 0)

	for _, list := range lists {
		for rank, item := range list {
			row, ok := acc[item.Key]
			if !ok {
				row = &Fused{Key: item.Key}
				acc[item.Key] = row
				order = append(order, item.Key)
			}
			row.RRFScore += 1.0 / float64(f.K+rank+1)
			row.Items = append(row.Items, item)
		}
	}

	out := make([]Fused, 0, len(order))
	for _, key := range order {
		out = append(out, *acc[key])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// FirstItem returns the item from the source list that first reported
// key, used when the caller needs the original {key, value, matchedTerms}
// payload rather than just the fused score — the RRF score itself carries
// no document content, only rank-derived weight.
func (fused Fused) FirstItem() (RankedItem, bool) {
	if len(fused.Items) == 0 {
		return RankedItem{}, false
	}
	return fused.Items[0], true
}
