package ftsindex

import (
	"math"
	"sort"
)

// BM25Params holds the two BM25 tuning constants, held immutably per
// scorer. k1 saturates term frequency; b blends length normalization.
type BM25Params struct {
	K1 float64
	B  float64
}

// DefaultBM25Params returns the conventional Okapi BM25 defaults.
func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.2, B: 0.75}
}

// ScoredDoc is a single scored document returned by a scoring pass.
type ScoredDoc struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// BM25Scorer scores documents against a query using an InvertedIndex's
// current statistics.
type BM25Scorer struct {
	params BM25Params
}

// NewBM25Scorer returns a scorer configured with params.
func NewBM25Scorer(params BM25Params) *BM25Scorer {
	return &BM25Scorer{params: params}
}

// idf computes ln(((N - df + 0.5) / (df + 0.5)) + 1). Terms with df==0
// contribute zero.
func idf(n, df int) float64 {
	if df == 0 {
		return 0
	}
	N := float64(n)
	d := float64(df)
	return math.Log(((N - d + 0.5) / (d + 0.5)) + 1)
}

// Score ranks every candidate document (the union of postings for terms
// in query with df>0) against query using idx's current statistics.
// Results are sorted descending by score, ties broken lexicographically
// by doc id. Duplicate query terms contribute their score multiple
// times; MatchedTerms is deduplicated.
func (s *BM25Scorer) Score(query []string, idx *InvertedIndex) []ScoredDoc {
	n := idx.DocumentCount()
	if len(query) == 0 || n == 0 {
		return []ScoredDoc{}
	}

	avgdl := idx.AverageDocLength()

	type acc struct {
		score   float64
		matched map[string]struct{}
	}
	candidates := make(map[string]*acc)

	for _, term := range query {
		df := idx.DocumentFrequency(term)
		if df == 0 {
			continue
		}
		termIDF := idf(n, df)
		for docID, tf := range idx.GetPostings(term) {
			a, ok := candidates[docID]
			if !ok {
				a = &acc{matched: make(map[string]struct{})}
				candidates[docID] = a
			}
			dl := float64(idx.DocLength(docID))
			lengthNorm := 1 - s.params.B + s.params.B*(dl/nonZero(avgdl))
			a.score += termIDF * (float64(tf) * (s.params.K1 + 1)) / (float64(tf) + s.params.K1*lengthNorm)
			a.matched[term] = struct{}{}
		}
	}

	results := make([]ScoredDoc, 0, len(candidates))
	for docID, a := range candidates {
		results = append(results, ScoredDoc{
			DocID:        docID,
			Score:        a.score,
			MatchedTerms: setToSlice(a.matched),
		})
	}
	sortScoredDocs(results)
	return results
}

// ScoreSingleDocument computes the same BM25 formula as Score, but for
// one document whose tokens are supplied directly, using idx's current
// idf/avgdl statistics. This is O(|query|*|docTokens|) and never scans
// other documents' postings - the fast path live-subscription deltas
// depend on.
func (s *BM25Scorer) ScoreSingleDocument(query []string, docTokens []string, idx *InvertedIndex) ScoredDoc {
	n := idx.DocumentCount()
	if len(query) == 0 || n == 0 || len(docTokens) == 0 {
		return ScoredDoc{}
	}

	tf := make(map[string]int, len(docTokens))
	for _, t := range docTokens {
		tf[t]++
	}
	dl := float64(len(docTokens))
	avgdl := idx.AverageDocLength()

	matched := make(map[string]struct{})
	var score float64
	for _, term := range query {
		count, present := tf[term]
		if !present {
			continue
		}
		df := idx.DocumentFrequency(term)
		if df == 0 {
			continue
		}
		termIDF := idf(n, df)
		lengthNorm := 1 - s.params.B + s.params.B*(dl/nonZero(avgdl))
		score += termIDF * (float64(count) * (s.params.K1 + 1)) / (float64(count) + s.params.K1*lengthNorm)
		matched[term] = struct{}{}
	}

	return ScoredDoc{Score: score, MatchedTerms: setToSlice(matched)}
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func setToSlice(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	return out
}

func sortScoredDocs(docs []ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].DocID < docs[j].DocID
	})
}
