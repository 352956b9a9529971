// Package searchlocal owns the per-node, non-distributed half of full-text
// search: a FullTextIndex per searchable map, the standing SEARCH
// subscriptions registered against it, and the ENTER/UPDATE/LEAVE delta
// computation that runs when the backing map changes. A distributed
// subscription is layered on top of this by the cluster package, which
// registers here on a coordinator's behalf via the LocalRegisterSearch
// callback rather than this package depending on cluster.
package searchlocal

import (
	"sync"
	"time"

	"github.com/kvmesh/livefts/internal/deltasink"
	"github.com/kvmesh/livefts/internal/ftserr"
	"github.com/kvmesh/livefts/internal/ftsindex"
	"github.com/kvmesh/livefts/internal/predicate"
)

// DefaultBatchWindow is the notification coalescing window: rapid
// successive writes to the same map within this window are delivered to
// subscribers as one flush instead of one notification per write.
const DefaultBatchWindow = 16 * time.Millisecond

// ResultRow is one row of a search subscription's initial result set or
// a one-shot search response.
type ResultRow struct {
	Key          string
	Value        predicate.Value
	Score        float64
	MatchedTerms []string
}

type subscription struct {
	mu         sync.Mutex
	id         string
	mapName    string
	query      string
	opts       ftsindex.SearchOptions
	queryTerms []string
	sink       deltasink.SearchSink
	coordNode  string // non-empty for a distributed subscription
	previous   map[string]float64
}

// Coordinator owns one FullTextIndex per enabled map and every SEARCH
// subscription registered against it.
type Coordinator struct {
	mu      sync.Mutex
	indices map[string]*ftsindex.FullTextIndex
	sources map[string]predicate.RecordSource
	subs    map[string]*subscription
	byMap   map[string]map[string]*subscription

	batchWindow time.Duration
	batchMu     sync.Mutex
	pendingKeys map[string]map[string]bool // mapName -> changed keys
	timer       *time.Timer
}

// New builds an empty Coordinator. A zero batchWindow uses DefaultBatchWindow.
func New(batchWindow time.Duration) *Coordinator {
	if batchWindow <= 0 {
		batchWindow = DefaultBatchWindow
	}
	return &Coordinator{
		indices:     make(map[string]*ftsindex.FullTextIndex),
		sources:     make(map[string]predicate.RecordSource),
		subs:        make(map[string]*subscription),
		byMap:       make(map[string]map[string]*subscription),
		batchWindow: batchWindow,
		pendingKeys: make(map[string]map[string]bool),
	}
}

// EnableSearch builds a FullTextIndex over fields for mapName and
// indexes every record currently in source. Calling it again for the
// same map replaces the index from scratch.
func (c *Coordinator) EnableSearch(mapName string, fields []string, source predicate.RecordSource) {
	c.EnableSearchWithConfig(mapName, ftsindex.DefaultFullTextIndexConfig(fields), source)
}

// EnableSearchWithConfig is EnableSearch with caller-supplied tokenizer
// and BM25 parameters, for a node loading its index config from
// internal/config instead of taking spec defaults.
func (c *Coordinator) EnableSearchWithConfig(mapName string, cfg ftsindex.FullTextIndexConfig, source predicate.RecordSource) {
	c.EnableSearchWithProgress(mapName, cfg, source, nil)
}

// EnableSearchWithProgress is EnableSearchWithConfig with an optional
// report callback invoked after every indexed record (report(done,
// total)), for a command that wants to show progress while backfilling
// a large record file.
func (c *Coordinator) EnableSearchWithProgress(mapName string, cfg ftsindex.FullTextIndexConfig, source predicate.RecordSource, report func(done, total int)) {
	index := ftsindex.New(cfg)
	keys := source.Keys()
	for i, key := range keys {
		rec, ok := source.GetRecord(key)
		if ok {
			index.OnSet(key, recordToDocument(rec))
		}
		if report != nil {
			report(i+1, len(keys))
		}
	}

	c.mu.Lock()
	c.indices[mapName] = index
	c.sources[mapName] = source
	c.mu.Unlock()
}

// IsEnabled reports whether mapName has full-text search enabled.
func (c *Coordinator) IsEnabled(mapName string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.indices[mapName]
	return ok
}

// EnabledMaps returns the names of every map with full-text search enabled.
func (c *Coordinator) EnabledMaps() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.indices))
	for name := range c.indices {
		names = append(names, name)
	}
	return names
}

// SubscriptionCount returns the number of standing SEARCH subscriptions.
func (c *Coordinator) SubscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Search runs a one-shot, non-subscribing search against mapName.
func (c *Coordinator) Search(mapName, query string, opts ftsindex.SearchOptions) ([]ResultRow, int, error) {
	c.mu.Lock()
	index, ok := c.indices[mapName]
	source := c.sources[mapName]
	c.mu.Unlock()
	if !ok {
		return nil, 0, ftserr.New(ftserr.NotEnabled, "full-text search is not enabled for map "+mapName, nil)
	}

	all := index.Search(query, ftsindex.SearchOptions{MinScore: opts.MinScore, Boost: opts.Boost})
	total := len(all)
	limited := all
	if opts.Limit > 0 && opts.Limit < len(limited) {
		limited = limited[:opts.Limit]
	}

	rows := make([]ResultRow, 0, len(limited))
	for _, d := range limited {
		rows = append(rows, toResultRow(d, source))
	}
	return rows, total, nil
}

// Subscribe registers a standing SEARCH subscription against mapName and
// returns its initial result set. coordNode is non-empty when the
// subscription is registered on a coordinator's behalf.
func (c *Coordinator) Subscribe(subID, mapName, query string, opts ftsindex.SearchOptions, sink deltasink.SearchSink, coordNode string) ([]ResultRow, int, error) {
	c.mu.Lock()
	index, ok := c.indices[mapName]
	source := c.sources[mapName]
	c.mu.Unlock()
	if !ok {
		return nil, 0, ftserr.New(ftserr.NotEnabled, "full-text search is not enabled for map "+mapName, nil)
	}

	all := index.Search(query, ftsindex.SearchOptions{MinScore: opts.MinScore, Boost: opts.Boost})
	total := len(all)
	limited := all
	if opts.Limit > 0 && opts.Limit < len(limited) {
		limited = limited[:opts.Limit]
	}

	sub := &subscription{
		id:         subID,
		mapName:    mapName,
		query:      query,
		opts:       opts,
		queryTerms: index.TokenizeQuery(query),
		sink:       sink,
		coordNode:  coordNode,
		previous:   make(map[string]float64, len(limited)),
	}
	rows := make([]ResultRow, 0, len(limited))
	for _, d := range limited {
		sub.previous[d.DocID] = d.Score
		rows = append(rows, toResultRow(d, source))
	}

	c.mu.Lock()
	c.subs[subID] = sub
	if c.byMap[mapName] == nil {
		c.byMap[mapName] = make(map[string]*subscription)
	}
	c.byMap[mapName][subID] = sub
	c.mu.Unlock()

	return rows, total, nil
}

// Unsubscribe removes a subscription by id. Idempotent.
func (c *Coordinator) Unsubscribe(subID string) {
	c.mu.Lock()
	sub, ok := c.subs[subID]
	if ok {
		delete(c.subs, subID)
		if bucket, ok := c.byMap[sub.mapName]; ok {
			delete(bucket, subID)
			if len(bucket) == 0 {
				delete(c.byMap, sub.mapName)
			}
		}
	}
	c.mu.Unlock()
}

// UnsubscribeByCoordinator sweeps every subscription whose owning
// coordinator is nodeID, used when that coordinator departs the cluster.
func (c *Coordinator) UnsubscribeByCoordinator(nodeID string) {
	c.mu.Lock()
	var doomed []string
	for id, sub := range c.subs {
		if sub.coordNode == nodeID {
			doomed = append(doomed, id)
		}
	}
	c.mu.Unlock()
	for _, id := range doomed {
		c.Unsubscribe(id)
	}
}

// SetDocument (re)indexes doc under key in mapName's index and schedules
// a batched recomputation of every subscription registered on that map.
func (c *Coordinator) SetDocument(mapName, key string, rec predicate.Record) {
	c.mu.Lock()
	index, ok := c.indices[mapName]
	c.mu.Unlock()
	if !ok {
		return
	}
	index.OnSet(key, recordToDocument(rec))
	c.scheduleFlush(mapName, key)
}

// RemoveDocument removes key from mapName's index and schedules a
// batched recomputation so any subscriber currently matching key on
// that map sees a LEAVE.
func (c *Coordinator) RemoveDocument(mapName, key string) {
	c.mu.Lock()
	index, ok := c.indices[mapName]
	c.mu.Unlock()
	if !ok {
		return
	}
	index.OnRemove(key)
	c.scheduleFlush(mapName, key)
}

func (c *Coordinator) scheduleFlush(mapName, key string) {
	c.batchMu.Lock()
	defer c.batchMu.Unlock()
	if c.pendingKeys[mapName] == nil {
		c.pendingKeys[mapName] = make(map[string]bool)
	}
	c.pendingKeys[mapName][key] = true
	if c.timer == nil {
		c.timer = time.AfterFunc(c.batchWindow, c.flush)
	}
}

// flush runs the diff computation for every map with pending changes and
// emits ENTER/UPDATE/LEAVE deltas to each of that map's subscribers.
// Subscription limits are not reapplied on live updates: once a row is
// in a subscriber's result set it is tracked until it stops matching,
// rather than being evicted to make room for a higher-scoring newcomer.
func (c *Coordinator) flush() {
	c.batchMu.Lock()
	pending := c.pendingKeys
	c.pendingKeys = make(map[string]map[string]bool)
	c.timer = nil
	c.batchMu.Unlock()

	for mapName, keys := range pending {
		c.mu.Lock()
		index := c.indices[mapName]
		source := c.sources[mapName]
		subs := make([]*subscription, 0, len(c.byMap[mapName]))
		for _, sub := range c.byMap[mapName] {
			subs = append(subs, sub)
		}
		c.mu.Unlock()
		if index == nil {
			continue
		}
		for key := range keys {
			for _, sub := range subs {
				c.diffOne(sub, index, source, key)
			}
		}
	}
}

func (c *Coordinator) diffOne(sub *subscription, index *ftsindex.FullTextIndex, source predicate.RecordSource, key string) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	scored := index.ScoreSingleDocument(key, sub.queryTerms, nil)
	var newScore *float64
	if scored != nil && scored.Score >= sub.opts.MinScore {
		s := scored.Score
		newScore = &s
	}
	oldScore, hadOld := sub.previous[key]

	switch {
	case !hadOld && newScore != nil:
		sub.previous[key] = *newScore
		emitSearchDelta(sub, source, key, *newScore, deltasink.Enter)
	case hadOld && newScore != nil:
		if *newScore != oldScore {
			sub.previous[key] = *newScore
			emitSearchDelta(sub, source, key, *newScore, deltasink.Update)
		}
	case hadOld && newScore == nil:
		delete(sub.previous, key)
		emitSearchDelta(sub, source, key, 0, deltasink.Leave)
	}
}

func emitSearchDelta(sub *subscription, source predicate.RecordSource, key string, score float64, change deltasink.ChangeType) {
	var value predicate.Value
	if rec, ok := source.GetRecord(key); ok {
		value = predicate.Map(rec.Attributes)
	}
	sub.sink.EmitSearch(deltasink.SearchDelta{
		SubscriptionID: sub.id,
		Key:            key,
		Value:          value,
		Score:          score,
		Change:         change,
	})
}

func toResultRow(d ftsindex.ScoredDoc, source predicate.RecordSource) ResultRow {
	row := ResultRow{Key: d.DocID, Score: d.Score, MatchedTerms: d.MatchedTerms}
	if source != nil {
		if rec, ok := source.GetRecord(d.DocID); ok {
			row.Value = predicate.Map(rec.Attributes)
		}
	}
	return row
}

func recordToDocument(rec predicate.Record) ftsindex.Document {
	doc := make(ftsindex.Document, len(rec.Attributes))
	for k, v := range rec.Attributes {
		doc[k] = valueToAny(v)
	}
	return doc
}

func valueToAny(v predicate.Value) any {
	switch v.Kind() {
	case predicate.KindBool:
		b, _ := v.AsBool()
		return b
	case predicate.KindInt:
		i, _ := v.AsInt()
		return i
	case predicate.KindFloat:
		f, _ := v.AsFloat()
		return f
	case predicate.KindString:
		s, _ := v.AsString()
		return s
	case predicate.KindBytes:
		b, _ := v.AsBytes()
		return b
	default:
		return nil
	}
}
