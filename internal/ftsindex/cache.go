package ftsindex

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultQueryCacheSize bounds the query-tokenization cache so repeatedly
// re-subscribing the same standing query across many clients doesn't
// re-tokenize it every time.
const defaultQueryCacheSize = 512

// queryTokenCache memoizes Tokenize(query) keyed on the raw query string.
// Safe for concurrent use; the underlying LRU has its own locking.
type queryTokenCache struct {
	cache *lru.Cache[string, []string]
}

func newQueryTokenCache() *queryTokenCache {
	c, err := lru.New[string, []string](defaultQueryCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which is a
		// constant here.
		panic(err)
	}
	return &queryTokenCache{cache: c}
}

func (c *queryTokenCache) get(query string) ([]string, bool) {
	return c.cache.Get(query)
}

func (c *queryTokenCache) put(query string, terms []string) {
	c.cache.Add(query, terms)
}
