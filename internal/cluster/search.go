package cluster

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kvmesh/livefts/internal/ftserr"
	"github.com/kvmesh/livefts/internal/metrics"
	"github.com/kvmesh/livefts/internal/rrf"
)

// LocalSearch executes a one-shot (non-subscribing) search against this
// node's own index, returning its raw ranked rows in descending score
// order plus the total number of matches on this node.
type LocalSearch func(mapName, query string, opts SearchOptions) ([]SearchResultRow, int, error)

// SearchPage is one page of a distributed search: the merged rows and an
// opaque cursor for the next page, empty when there is nothing more.
type SearchPage struct {
	Results     []SearchResultRow
	NextCursor  string
	TotalHits   int
	FailedNodes []string // nodes that did not respond before the ACK timeout
}

// ClusterSearchCoordinator runs one-shot distributed full-text search: a
// scatter-gather over every cluster member merged by Reciprocal Rank
// Fusion, with cursor-based pagination so a client can page through
// results without re-running the search from scratch. Unlike
// BaseCoordinator this holds no standing subscription state — every call
// to Search is independent.
type ClusterSearchCoordinator struct {
	selfID      string
	membership  Membership
	messaging   Messaging
	localSearch LocalSearch
	timeout     time.Duration
	rrfK        int
	metrics     metrics.Sink

	mu      sync.Mutex
	pending map[string]*pendingSearch
}

// NewClusterSearchCoordinator builds a coordinator bound to selfID.
func NewClusterSearchCoordinator(selfID string, membership Membership, messaging Messaging, localSearch LocalSearch, timeout time.Duration, rrfK int, metricsSink metrics.Sink) *ClusterSearchCoordinator {
	if metricsSink == nil {
		metricsSink = metrics.Noop{}
	}
	return &ClusterSearchCoordinator{
		selfID:      selfID,
		membership:  membership,
		messaging:   messaging,
		localSearch: localSearch,
		timeout:     timeout,
		rrfK:        rrfK,
		metrics:     metricsSink,
		pending:     make(map[string]*pendingSearch),
	}
}

// pendingSearch collects CLUSTER_SEARCH_RESP payloads from every expected
// node for one in-flight request, resolving early once all have answered
// or at the timeout with whatever arrived, mirroring PendingAcks.
type pendingSearch struct {
	mu        sync.Mutex
	expected  map[string]bool
	responses map[string]SearchRespPayload
	failed    []string
	done      bool
	resultCh  chan struct{}
	timer     *time.Timer
}

func newPendingSearch(expectedNodeIDs []string, timeout time.Duration) *pendingSearch {
	p := &pendingSearch{
		expected:  make(map[string]bool, len(expectedNodeIDs)),
		responses: make(map[string]SearchRespPayload, len(expectedNodeIDs)),
		resultCh:  make(chan struct{}, 1),
	}
	for _, id := range expectedNodeIDs {
		p.expected[id] = true
	}
	p.timer = time.AfterFunc(timeout, p.resolve)
	return p
}

func (p *pendingSearch) onResponse(payload SearchRespPayload) {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	delete(p.expected, payload.NodeID)
	p.responses[payload.NodeID] = payload
	ready := len(p.expected) == 0
	p.mu.Unlock()
	if ready {
		p.resolve()
	}
}

func (p *pendingSearch) memberLeft(nodeID string) {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	delete(p.expected, nodeID)
	ready := len(p.expected) == 0
	p.mu.Unlock()
	if ready {
		p.resolve()
	}
}

func (p *pendingSearch) resolve() {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	p.done = true
	p.timer.Stop()
	for node := range p.expected {
		p.failed = append(p.failed, node)
	}
	p.mu.Unlock()
	p.resultCh <- struct{}{}
}

func (p *pendingSearch) wait() (map[string]SearchRespPayload, []string) {
	<-p.resultCh
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.responses, p.failed
}

// Search runs one page of a distributed search. An empty cursor starts
// from the beginning; a non-empty cursor resumes a prior search, and is
// rejected if it was minted for a different query. A single-member
// cluster never touches the network.
func (c *ClusterSearchCoordinator) Search(mapName, query string, opts SearchOptions, cursor string) (SearchPage, error) {
	queryHash := QueryFingerprint(mapName, query, opts.MinScore, opts.Boost)

	var state cursorState
	if cursor != "" {
		decoded, err := DecodeCursor(cursor, queryHash)
		if err != nil {
			return SearchPage{}, err
		}
		state = decoded
	}

	members := c.membership.Members()
	if len(members) <= 1 {
		return c.searchLocalOnly(mapName, query, opts, state)
	}

	perNodeLimit := opts.Limit
	if cursor == "" {
		perNodeLimit = opts.Limit * 2
		if perNodeLimit > 1000 || perNodeLimit <= 0 {
			perNodeLimit = 1000
		}
	}

	requestID := uuid.NewString()
	var others []string
	for _, m := range members {
		if m != c.selfID {
			others = append(others, m)
		}
	}

	responses := make(map[string]SearchRespPayload, len(members))
	selfOpts := perNodeOptions(opts, perNodeLimit, state, c.selfID)
	selfRows, selfTotal, err := c.localSearch(mapName, query, selfOpts)
	if err != nil {
		return SearchPage{}, ftserr.InternalErr("local search failed", err)
	}
	responses[c.selfID] = SearchRespPayload{RequestID: requestID, NodeID: c.selfID, Results: selfRows, TotalHits: selfTotal}

	var failed []string
	if len(others) > 0 {
		ps := newPendingSearch(others, c.timeout)
		c.mu.Lock()
		c.pending[requestID] = ps
		c.mu.Unlock()

		for _, node := range others {
			req := SearchReqPayload{
				RequestID:       requestID,
				RequesterNodeID: c.selfID,
				MapName:         mapName,
				Query:           query,
				Options:         perNodeOptions(opts, perNodeLimit, state, node),
				TimeoutMs:       int(c.timeout / time.Millisecond),
			}
			if err := c.messaging.SendTo(node, Message{Type: SearchReq, Payload: req}); err != nil {
				c.metrics.IncCounter("cluster_search_send_errors", map[string]string{"node": node})
			}
		}

		remote, timedOut := ps.wait()
		for node, resp := range remote {
			responses[node] = resp
		}
		failed = timedOut

		c.mu.Lock()
		delete(c.pending, requestID)
		c.mu.Unlock()

		if len(failed) > 0 {
			c.metrics.IncCounter("cluster_search_timeouts", map[string]string{"map": mapName})
		}
	}

	page, err := mergeSearchPage(responses, opts, perNodeLimit, queryHash, c.rrfK)
	page.FailedNodes = failed
	return page, err
}

func perNodeOptions(opts SearchOptions, perNodeLimit int, state cursorState, nodeID string) SearchOptions {
	out := opts
	out.Limit = perNodeLimit
	if score, ok := state.NodeScores[nodeID]; ok {
		s := score
		out.AfterScore = &s
		out.AfterKey = state.NodeKeys[nodeID]
	}
	return out
}

func (c *ClusterSearchCoordinator) searchLocalOnly(mapName, query string, opts SearchOptions, state cursorState) (SearchPage, error) {
	localOpts := perNodeOptions(opts, opts.Limit, state, c.selfID)
	rows, total, err := c.localSearch(mapName, query, localOpts)
	if err != nil {
		return SearchPage{}, ftserr.InternalErr("local search failed", err)
	}
	page := SearchPage{Results: rows, TotalHits: total}
	if len(rows) == opts.Limit && opts.Limit > 0 {
		last := rows[len(rows)-1]
		score := last.Score
		next, err := EncodeCursor(cursorState{
			NodeScores: map[string]float64{c.selfID: score},
			NodeKeys:   map[string]string{c.selfID: last.Key},
			QueryHash:  QueryFingerprint(mapName, query, opts.MinScore, opts.Boost),
			IssuedAt:   time.Now().Unix(),
		})
		if err == nil {
			page.NextCursor = next
		}
	}
	return page, nil
}

// mergeSearchPage fuses every node's raw response by RRF, truncates to
// opts.Limit, and mints a new cursor from each node's last-seen watermark
// when any node's response suggests more results remain.
func mergeSearchPage(responses map[string]SearchRespPayload, opts SearchOptions, perNodeLimit int, queryHash string, rrfK int) (SearchPage, error) {
	lists := make([][]rrf.RankedItem, 0, len(responses))
	byKey := make(map[string]SearchResultRow)
	totalHits := 0
	hasMore := false

	for node, resp := range responses {
		totalHits += resp.TotalHits
		if perNodeLimit > 0 && len(resp.Results) >= perNodeLimit {
			hasMore = true
		}
		list := make([]rrf.RankedItem, 0, len(resp.Results))
		for _, row := range resp.Results {
			list = append(list, rrf.RankedItem{Key: row.Key, Score: row.Score, Source: node})
			if _, ok := byKey[row.Key]; !ok {
				byKey[row.Key] = row
			}
		}
		lists = append(lists, list)
	}

	fused := rrf.New(rrfK).Fuse(lists...)
	limit := opts.Limit
	if limit <= 0 || limit > len(fused) {
		limit = len(fused)
	}
	if len(fused) > limit {
		hasMore = true
	}

	out := make([]SearchResultRow, 0, limit)
	for i := 0; i < limit; i++ {
		row := byKey[fused[i].Key]
		row.Score = fused[i].RRFScore
		out = append(out, row)
	}

	page := SearchPage{Results: out, TotalHits: totalHits}
	if hasMore {
		nodeScores := make(map[string]float64, len(responses))
		nodeKeys := make(map[string]string, len(responses))
		for node, resp := range responses {
			if len(resp.Results) == 0 {
				continue
			}
			last := resp.Results[len(resp.Results)-1]
			nodeScores[node] = last.Score
			nodeKeys[node] = last.Key
		}
		next, err := EncodeCursor(cursorState{
			NodeScores: nodeScores,
			NodeKeys:   nodeKeys,
			QueryHash:  queryHash,
			IssuedAt:   time.Now().Unix(),
		})
		if err == nil {
			page.NextCursor = next
		}
	}
	return page, nil
}

// HandleSearchReq processes a CLUSTER_SEARCH_REQ on a data node: run the
// local search and reply with a CLUSTER_SEARCH_RESP.
func (c *ClusterSearchCoordinator) HandleSearchReq(payload SearchReqPayload) {
	if err := payload.Validate(); err != nil {
		return
	}
	start := time.Now()
	rows, total, err := c.localSearch(payload.MapName, payload.Query, payload.Options)
	resp := SearchRespPayload{
		RequestID:   payload.RequestID,
		NodeID:      c.selfID,
		Results:     rows,
		TotalHits:   total,
		ExecutionMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	_ = c.messaging.SendTo(payload.RequesterNodeID, Message{Type: SearchResp, Payload: resp})
}

// HandleSearchResp processes a CLUSTER_SEARCH_RESP on the coordinator
// node, routing it to the matching in-flight request.
func (c *ClusterSearchCoordinator) HandleSearchResp(payload SearchRespPayload) {
	if err := payload.Validate(); err != nil {
		return
	}
	c.mu.Lock()
	ps, ok := c.pending[payload.RequestID]
	c.mu.Unlock()
	if !ok {
		return
	}
	ps.onResponse(payload)
}

// OnMemberLeft synthetically completes any in-flight request waiting on
// the departed node.
func (c *ClusterSearchCoordinator) OnMemberLeft(nodeID string) {
	c.mu.Lock()
	waiting := make([]*pendingSearch, 0, len(c.pending))
	for _, ps := range c.pending {
		waiting = append(waiting, ps)
	}
	c.mu.Unlock()
	for _, ps := range waiting {
		ps.memberLeft(nodeID)
	}
}
