package ftsindex

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kvmesh/livefts/internal/tokenize"
)

// FullTextIndexConfig configures a FullTextIndex at creation time.
type FullTextIndexConfig struct {
	Fields           []string
	TokenizerOptions tokenize.Options
	BM25Params       BM25Params
}

// DefaultFullTextIndexConfig returns spec defaults for tokenizer and BM25.
func DefaultFullTextIndexConfig(fields []string) FullTextIndexConfig {
	return FullTextIndexConfig{
		Fields:           fields,
		TokenizerOptions: tokenize.DefaultOptions(),
		BM25Params:       DefaultBM25Params(),
	}
}

// FullTextIndex is the multi-field façade composed of one combined
// InvertedIndex (all fields concatenated) and one per-configured-field
// InvertedIndex for boosting, plus the per-document token cache used for
// the O(1)-in-index-size single-document scoring path.
type FullTextIndex struct {
	config FullTextIndexConfig
	scorer *BM25Scorer

	combined *InvertedIndex
	perField map[string]*InvertedIndex

	// indexedDocs is a roaring bitmap of doc-numbers (assigned by
	// combined's docOrder) for every currently-indexed document, so
	// membership and enumeration share the same compact representation
	// the combined index's postings use rather than a second,
	// string-keyed set.
	indexedDocs         *roaring.Bitmap
	documentTokensCache map[string][]string

	queryCache *queryTokenCache
}

// New creates an empty FullTextIndex for config.
func New(config FullTextIndexConfig) *FullTextIndex {
	perField := make(map[string]*InvertedIndex, len(config.Fields))
	for _, f := range config.Fields {
		perField[f] = NewInvertedIndex()
	}
	return &FullTextIndex{
		config:              config,
		scorer:              NewBM25Scorer(config.BM25Params),
		combined:            NewInvertedIndex(),
		perField:            perField,
		indexedDocs:         roaring.New(),
		documentTokensCache: make(map[string][]string),
		queryCache:          newQueryTokenCache(),
	}
}

// Fields returns the configured field list.
func (f *FullTextIndex) Fields() []string { return f.config.Fields }

// Combined exposes the combined InvertedIndex, primarily for inspection
// and serialization.
func (f *FullTextIndex) Combined() *InvertedIndex { return f.combined }

// IndexedDocs returns the set of currently-indexed document ids.
func (f *FullTextIndex) IndexedDocs() map[string]struct{} {
	out := make(map[string]struct{}, f.indexedDocs.GetCardinality())
	it := f.indexedDocs.Iterator()
	for it.HasNext() {
		out[f.combined.order.idFor(it.Next())] = struct{}{}
	}
	return out
}

// isIndexed reports whether docID is currently indexed.
func (f *FullTextIndex) isIndexed(docID string) bool {
	num, ok := f.combined.order.lookup(docID)
	return ok && f.indexedDocs.Contains(num)
}

// TokenizeQuery tokenizes query with the same tokenizer used to build the
// index, so subscription setup and onDataChange always agree on term
// boundaries. Results are memoized.
func (f *FullTextIndex) TokenizeQuery(query string) []string {
	if cached, ok := f.queryCache.get(query); ok {
		// Defensive copy: callers must never be able to mutate the
		// cache's backing array through a returned slice.
		out := make([]string, len(cached))
		copy(out, cached)
		return out
	}
	terms := tokenize.Tokenize(query, f.config.TokenizerOptions)
	cached := make([]string, len(terms))
	copy(cached, terms)
	f.queryCache.put(query, cached)
	return terms
}

// OnSet (re)indexes doc under docID. If docID was already indexed it is
// removed first. Fields not in config.Fields are ignored by full-text
// search (they may still carry non-string values, which are never
// tokenized).
func (f *FullTextIndex) OnSet(docID string, doc Document) {
	if f.isIndexed(docID) {
		f.removeInternal(docID)
	}

	stringFields := doc.StringFields(f.config.Fields)

	var combinedTokens []string
	for _, field := range f.config.Fields {
		text, ok := stringFields[field]
		if !ok {
			continue
		}
		tokens := tokenize.Tokenize(text, f.config.TokenizerOptions)
		if len(tokens) == 0 {
			continue
		}
		fieldIdx := f.perField[field]
		// AddDocument fails on duplicates; removeInternal above already
		// cleared this doc from every per-field index.
		_ = fieldIdx.AddDocument(docID, tokens)
		combinedTokens = append(combinedTokens, tokens...)
	}

	if len(combinedTokens) == 0 {
		delete(f.documentTokensCache, docID)
		return
	}

	_ = f.combined.AddDocument(docID, combinedTokens)
	f.indexedDocs.Add(f.combined.order.numberFor(docID))
	f.documentTokensCache[docID] = combinedTokens
}

// OnRemove removes docID from every index; a no-op if docID isn't
// indexed.
func (f *FullTextIndex) OnRemove(docID string) {
	if !f.isIndexed(docID) {
		return
	}
	f.removeInternal(docID)
}

func (f *FullTextIndex) removeInternal(docID string) {
	f.combined.RemoveDocument(docID)
	for _, idx := range f.perField {
		idx.RemoveDocument(docID)
	}
	if num, ok := f.combined.order.lookup(docID); ok {
		f.indexedDocs.Remove(num)
	}
	delete(f.documentTokensCache, docID)
}

// Search tokenizes query, scores it (combined index, or per-field with
// boosting when options.Boost is non-empty), applies MinScore then
// Limit, and returns results sorted by score descending.
func (f *FullTextIndex) Search(query string, options SearchOptions) []ScoredDoc {
	terms := f.TokenizeQuery(query)
	if len(terms) == 0 {
		return []ScoredDoc{}
	}

	var results []ScoredDoc
	if len(options.Boost) > 0 {
		results = f.searchBoosted(terms, options.Boost)
	} else {
		results = f.scorer.Score(terms, f.combined)
	}

	results = filterMinScore(results, options.MinScore)
	results = applyLimit(results, options.Limit)
	return results
}

func (f *FullTextIndex) searchBoosted(terms []string, boost map[string]float64) []ScoredDoc {
	type acc struct {
		score   float64
		matched map[string]struct{}
	}
	perDoc := make(map[string]*acc)

	for _, field := range f.config.Fields {
		idx, ok := f.perField[field]
		if !ok {
			continue
		}
		weight, boosted := boost[field]
		if !boosted {
			weight = 1.0
		}
		for _, r := range f.scorer.Score(terms, idx) {
			a, ok := perDoc[r.DocID]
			if !ok {
				a = &acc{matched: make(map[string]struct{})}
				perDoc[r.DocID] = a
			}
			a.score += r.Score * weight
			for _, m := range r.MatchedTerms {
				a.matched[m] = struct{}{}
			}
		}
	}

	out := make([]ScoredDoc, 0, len(perDoc))
	for docID, a := range perDoc {
		out = append(out, ScoredDoc{DocID: docID, Score: a.score, MatchedTerms: setToSlice(a.matched)})
	}
	sortScoredDocs(out)
	return out
}

// ScoreSingleDocument scores one document against queryTerms using the
// current combined-index statistics, without scanning any other
// document's postings. If doc is supplied and docID isn't already
// cached, doc is tokenized on the fly (its string fields concatenated in
// config.Fields order). Returns nil if none of the query terms appear in
// the document, or if the resulting score is <= 0.
func (f *FullTextIndex) ScoreSingleDocument(docID string, queryTerms []string, doc Document) *ScoredDoc {
	tokens, cached := f.documentTokensCache[docID]
	if !cached {
		if doc == nil {
			return nil
		}
		stringFields := doc.StringFields(f.config.Fields)
		for _, field := range f.config.Fields {
			if text, ok := stringFields[field]; ok {
				tokens = append(tokens, tokenize.Tokenize(text, f.config.TokenizerOptions)...)
			}
		}
	}
	if len(tokens) == 0 {
		return nil
	}

	present := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		present[t] = struct{}{}
	}
	var filtered []string
	for _, t := range queryTerms {
		if _, ok := present[t]; ok {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return nil
	}

	result := f.scorer.ScoreSingleDocument(filtered, tokens, f.combined)
	if result.Score <= 0 {
		return nil
	}
	result.DocID = docID
	return &result
}

func filterMinScore(docs []ScoredDoc, minScore float64) []ScoredDoc {
	if minScore == 0 {
		return docs
	}
	out := docs[:0:0]
	for _, d := range docs {
		if d.Score >= minScore {
			out = append(out, d)
		}
	}
	return out
}

func applyLimit(docs []ScoredDoc, limit int) []ScoredDoc {
	if limit <= 0 || limit >= len(docs) {
		return docs
	}
	return docs[:limit]
}
