package cluster

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kvmesh/livefts/internal/clientsocket"
	"github.com/kvmesh/livefts/internal/ftserr"
	"github.com/kvmesh/livefts/internal/metrics"
	"github.com/kvmesh/livefts/internal/predicate"
	"github.com/kvmesh/livefts/internal/rrf"
)

// SubState is a distributed subscription's lifecycle stage.
type SubState int

const (
	StateCreated SubState = iota
	StatePendingAcks
	StateActive
	StateTerminated
)

// currentResultRow is one row of a coordinator-owned subscription's
// merged result set.
type currentResultRow struct {
	Value      predicate.Value
	Score      *float64
	SourceNode string
}

// distributedSubscription is the coordinator-side record of one
// distributed subscription, matching the data model's coordinator-side
// shape: id, type, coordinator, client socket, map name, query,
// registered nodes, pending results, createdAt and current results.
type distributedSubscription struct {
	mu sync.Mutex

	id           string
	subType      SubscriptionType
	mapName      string
	clientSocket clientsocket.Socket
	limit        int

	state           SubState
	registeredNodes map[string]bool
	currentResults  map[string]currentResultRow
	createdAt       time.Time

	pending       *PendingAcks
	resultsByNode map[string][]InitialResult
	nodeOrder     []string // nodes in the order their results were recorded
}

// LocalRegisterSearch is called on a data node to create a local
// full-text search subscription on the coordinator's behalf, returning
// that node's initial results.
type LocalRegisterSearch func(subID, mapName, query string, opts SearchOptions, coordNode string) ([]InitialResult, int, error)

// LocalRegisterQuery is called on a data node to create a local
// predicate-query subscription on the coordinator's behalf.
type LocalRegisterQuery func(subID, mapName string, query predicate.Query, coordNode string) ([]InitialResult, error)

// LocalUnregister tears down a local subscription by ID, from both the
// search and predicate registries. Idempotent.
type LocalUnregister func(subID string)

// LocalUnregisterByCoordinator sweeps local subscriptions whose
// coordinator is nodeID, from both registries.
type LocalUnregisterByCoordinator func(coordNodeID string)

// BaseCoordinator implements the distributed subscription state machine
// shared by the SEARCH and QUERY variants: subscribe, ACK handling,
// timeout/partial resolution, and coordinator-disconnect cleanup.
type BaseCoordinator struct {
	selfID     string
	membership Membership
	messaging  Messaging
	metrics    metrics.Sink
	ackTimeout time.Duration
	rrfK       int

	registerSearch          LocalRegisterSearch
	registerQuery           LocalRegisterQuery
	unregisterLocal         LocalUnregister
	unregisterByCoordinator LocalUnregisterByCoordinator

	mu   sync.Mutex
	subs map[string]*distributedSubscription
}

// NewBaseCoordinator builds a coordinator bound to selfID. The register
// callbacks let the coordinator stay independent of the concrete
// SearchCoordinator/StandingQueryRegistry types it drives locally.
func NewBaseCoordinator(
	selfID string,
	membership Membership,
	messaging Messaging,
	metricsSink metrics.Sink,
	ackTimeout time.Duration,
	rrfK int,
	registerSearch LocalRegisterSearch,
	registerQuery LocalRegisterQuery,
	unregisterLocal LocalUnregister,
	unregisterByCoordinator LocalUnregisterByCoordinator,
) *BaseCoordinator {
	if metricsSink == nil {
		metricsSink = metrics.Noop{}
	}
	return &BaseCoordinator{
		selfID:                  selfID,
		membership:              membership,
		messaging:               messaging,
		metrics:                 metricsSink,
		ackTimeout:              ackTimeout,
		rrfK:                    rrfK,
		registerSearch:          registerSearch,
		registerQuery:           registerQuery,
		unregisterLocal:         unregisterLocal,
		unregisterByCoordinator: unregisterByCoordinator,
		subs:                    make(map[string]*distributedSubscription),
	}
}

// SubscribeSearch registers a distributed full-text search subscription
// and blocks until every cluster member has acknowledged or the ACK
// timer fires, then returns the merged initial result set.
func (c *BaseCoordinator) SubscribeSearch(mapName, query string, opts SearchOptions, socket clientsocket.Socket) (string, []InitialResult, []string, error) {
	return c.subscribe(SubSearch, mapName, query, opts, predicate.Query{}, socket)
}

// SubscribeQuery registers a distributed predicate-query subscription.
func (c *BaseCoordinator) SubscribeQuery(mapName string, query predicate.Query, socket clientsocket.Socket) (string, []InitialResult, []string, error) {
	return c.subscribe(SubQuery, mapName, "", SearchOptions{}, query, socket)
}

func (c *BaseCoordinator) subscribe(subType SubscriptionType, mapName, searchQuery string, opts SearchOptions, queryPred predicate.Query, socket clientsocket.Socket) (string, []InitialResult, []string, error) {
	subID := uuid.NewString()
	sub := &distributedSubscription{
		id:              subID,
		subType:         subType,
		mapName:         mapName,
		clientSocket:    socket,
		limit:           opts.Limit,
		state:           StateCreated,
		registeredNodes: make(map[string]bool),
		currentResults:  make(map[string]currentResultRow),
		createdAt:       time.Now(),
		resultsByNode:   make(map[string][]InitialResult),
	}

	// Register locally and synthesize a self-ACK immediately.
	var selfResults []InitialResult
	var selfErr error
	switch subType {
	case SubSearch:
		selfResults, _, selfErr = c.registerSearch(subID, mapName, searchQuery, opts, c.selfID)
	case SubQuery:
		selfResults, selfErr = c.registerQuery(subID, mapName, queryPred, c.selfID)
	}
	if selfErr != nil {
		return "", nil, nil, ftserr.InternalErr("local registration failed", selfErr)
	}
	sub.registeredNodes[c.selfID] = true
	sub.resultsByNode[c.selfID] = selfResults
	sub.nodeOrder = append(sub.nodeOrder, c.selfID)

	members := c.membership.Members()
	var others []string
	for _, m := range members {
		if m != c.selfID {
			others = append(others, m)
		}
	}

	c.mu.Lock()
	c.subs[subID] = sub
	c.mu.Unlock()

	if len(others) == 0 {
		sub.mu.Lock()
		sub.state = StateActive
		sub.mu.Unlock()
		return c.finishSubscribe(sub, nil)
	}

	sub.mu.Lock()
	sub.state = StatePendingAcks
	sub.pending = NewPendingAcks(others, c.ackTimeout)
	sub.mu.Unlock()

	reg := RegisterPayload{
		SubscriptionID:    subID,
		CoordinatorNodeID: c.selfID,
		MapName:           mapName,
		Type:              subType,
	}
	if subType == SubSearch {
		reg.SearchQuery = searchQuery
		reg.SearchOptions = &opts
	} else {
		reg.QueryPredicate = &queryPred
	}
	if err := c.messaging.Broadcast(Message{Type: SubRegister, Payload: reg}); err != nil {
		c.metrics.IncCounter("cluster_broadcast_errors", map[string]string{"op": "sub_register"})
	}

	result := sub.pending.Wait()
	if result.Err != nil {
		return "", nil, nil, ftserr.FatalErr("coordinator destroyed while subscription was pending", result.Err)
	}

	sub.mu.Lock()
	for node := range result.Acked {
		sub.registeredNodes[node] = true
	}
	sub.state = StateActive
	sub.mu.Unlock()

	if len(result.Failed) > 0 {
		c.metrics.IncCounter("cluster_sub_ack_timeouts", map[string]string{"map": mapName})
	}

	return c.finishSubscribe(sub, result.Failed)
}

// finishSubscribe merges every node's initial results per the
// subscription type and stores the merged set as currentResults.
func (c *BaseCoordinator) finishSubscribe(sub *distributedSubscription, failedNodes []string) (string, []InitialResult, []string, error) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	var merged []InitialResult
	switch sub.subType {
	case SubSearch:
		merged = mergeSearchResults(sub, c.rrfK)
	case SubQuery:
		merged = mergeQueryResults(sub)
	}
	for _, row := range merged {
		source := c.selfID
		for node, results := range sub.resultsByNode {
			for _, r := range results {
				if r.Key == row.Key {
					source = node
					break
				}
			}
		}
		sub.currentResults[row.Key] = currentResultRow{Value: row.Value, Score: row.Score, SourceNode: source}
	}
	return sub.id, merged, failedNodes, nil
}

// mergeSearchResults builds per-node ranked lists, runs RRF, then
// rebuilds the final sequence using the first-seen {value,matchedTerms}
// for each key, capped at the subscription's limit.
func mergeSearchResults(sub *distributedSubscription, k int) []InitialResult {
	lists := make([][]rrf.RankedItem, 0, len(sub.resultsByNode))
	first := make(map[string]InitialResult)
	for _, node := range sub.nodeOrder {
		results := sub.resultsByNode[node]
		list := make([]rrf.RankedItem, 0, len(results))
		for _, r := range results {
			score := 0.0
			if r.Score != nil {
				score = *r.Score
			}
			list = append(list, rrf.RankedItem{Key: r.Key, Score: score, Source: node})
			if _, ok := first[r.Key]; !ok {
				first[r.Key] = r
			}
		}
		lists = append(lists, list)
	}

	fuser := rrf.New(k)
	fused := fuser.Fuse(lists...)

	limit := sub.limit
	if limit <= 0 || limit > len(fused) {
		limit = len(fused)
	}
	out := make([]InitialResult, 0, limit)
	for i := 0; i < limit; i++ {
		row := first[fused[i].Key]
		score := fused[i].RRFScore
		row.Score = &score
		out = append(out, row)
	}
	return out
}

// mergeQueryResults deduplicates by key, first writer wins, in the
// order node results were recorded (self first, then ACK arrival order).
func mergeQueryResults(sub *distributedSubscription) []InitialResult {
	seen := make(map[string]bool)
	var out []InitialResult
	for _, node := range sub.nodeOrder {
		for _, r := range sub.resultsByNode[node] {
			if seen[r.Key] {
				continue
			}
			seen[r.Key] = true
			out = append(out, r)
		}
	}
	return out
}

// HandleAck processes a CLUSTER_SUB_ACK received from a data node.
func (c *BaseCoordinator) HandleAck(payload AckPayload) {
	if err := payload.Validate(); err != nil {
		return
	}
	c.mu.Lock()
	sub, ok := c.subs[payload.SubscriptionID]
	c.mu.Unlock()
	if !ok {
		return // unknown sub: drop
	}

	sub.mu.Lock()
	if payload.Success {
		if _, seen := sub.resultsByNode[payload.NodeID]; !seen {
			sub.nodeOrder = append(sub.nodeOrder, payload.NodeID)
		}
		sub.resultsByNode[payload.NodeID] = payload.InitialResults
	}
	pending := sub.pending
	sub.mu.Unlock()

	if pending != nil {
		pending.Ack(payload.NodeID, payload.Success)
	}
}

// HandleRegister processes a CLUSTER_SUB_REGISTER on a data node: it
// creates a local subscription on the coordinator's behalf and replies
// with a CLUSTER_SUB_ACK.
func (c *BaseCoordinator) HandleRegister(payload RegisterPayload) {
	if err := payload.Validate(); err != nil {
		return
	}

	var (
		results   []InitialResult
		totalHits int
		err       error
	)
	switch payload.Type {
	case SubSearch:
		opts := SearchOptions{}
		if payload.SearchOptions != nil {
			opts = *payload.SearchOptions
		}
		results, totalHits, err = c.registerSearch(payload.SubscriptionID, payload.MapName, payload.SearchQuery, opts, payload.CoordinatorNodeID)
	case SubQuery:
		q := predicate.Query{}
		if payload.QueryPredicate != nil {
			q = *payload.QueryPredicate
		}
		results, err = c.registerQuery(payload.SubscriptionID, payload.MapName, q, payload.CoordinatorNodeID)
	}

	ack := AckPayload{
		SubscriptionID: payload.SubscriptionID,
		NodeID:         c.selfID,
		Success:        err == nil,
		InitialResults: results,
		TotalHits:      totalHits,
	}
	if err != nil {
		ack.Error = err.Error()
	}
	_ = c.messaging.SendTo(payload.CoordinatorNodeID, Message{Type: SubAck, Payload: ack})
}

// HandleUpdate processes a CLUSTER_SUB_UPDATE on the coordinator node:
// it updates the merged result set and forwards a client-facing frame.
func (c *BaseCoordinator) HandleUpdate(payload UpdatePayload) {
	if err := payload.Validate(); err != nil {
		return
	}
	c.mu.Lock()
	sub, ok := c.subs[payload.SubscriptionID]
	c.mu.Unlock()
	if !ok {
		return
	}

	sub.mu.Lock()
	switch payload.ChangeType {
	case ChangeLeave:
		delete(sub.currentResults, payload.Key)
	default:
		sub.currentResults[payload.Key] = currentResultRow{
			Value:      payload.Value,
			Score:      payload.Score,
			SourceNode: payload.SourceNodeID,
		}
	}
	subType := sub.subType
	socket := sub.clientSocket
	subID := sub.id
	sub.mu.Unlock()

	if clientsocket.IsOpen(socket) {
		var frame any
		switch subType {
		case SubSearch:
			score := 0.0
			if payload.Score != nil {
				score = *payload.Score
			}
			frame = NewSearchUpdateFrame(SearchUpdatePayload{
				SubscriptionID: subID,
				Key:            payload.Key,
				Value:          payload.Value,
				Score:          score,
				MatchedTerms:   payload.MatchedTerms,
				ChangeType:     payload.ChangeType,
			})
		case SubQuery:
			frame = NewQueryUpdateFrame(QueryUpdatePayload{
				QueryID: subID,
				Key:     payload.Key,
				Value:   payload.Value,
				Type:    payload.ChangeType,
			})
		}
		if err := socket.Send(frame); err != nil {
			c.metrics.IncCounter("cluster_client_send_errors", map[string]string{"sub": subID})
		}
	}

	latency := time.Since(time.UnixMilli(payload.Timestamp))
	c.metrics.Observe("cluster_sub_update_latency_ms", float64(latency.Milliseconds()), map[string]string{"map": sub.mapName})
}

// HandleUnregister processes a CLUSTER_SUB_UNREGISTER on a data node.
// Idempotent: unregistering an already-unknown subscription is a no-op.
func (c *BaseCoordinator) HandleUnregister(payload UnregisterPayload) {
	if err := payload.Validate(); err != nil {
		return
	}
	c.unregisterLocal(payload.SubscriptionID)
}

// Unsubscribe tears down a coordinator-owned subscription: local
// teardown plus a fire-and-forget CLUSTER_SUB_UNREGISTER to every
// registered node. No ACK is awaited.
func (c *BaseCoordinator) Unsubscribe(subID string) {
	c.mu.Lock()
	sub, ok := c.subs[subID]
	if ok {
		delete(c.subs, subID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	sub.mu.Lock()
	sub.state = StateTerminated
	nodes := make([]string, 0, len(sub.registeredNodes))
	for node := range sub.registeredNodes {
		if node != c.selfID {
			nodes = append(nodes, node)
		}
	}
	sub.mu.Unlock()

	c.unregisterLocal(subID)
	for _, node := range nodes {
		_ = c.messaging.SendTo(node, Message{Type: SubUnregister, Payload: UnregisterPayload{SubscriptionID: subID}})
	}
}

// OnMemberLeft implements the coordinator-disconnect cleanup contract:
// drop the departed node from every coordinator-owned subscription,
// synthetically complete any pending ACK wait on it, and sweep local
// subscriptions owned by it as a coordinator.
func (c *BaseCoordinator) OnMemberLeft(nodeID string) {
	c.mu.Lock()
	subs := make([]*distributedSubscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub.mu.Lock()
		delete(sub.registeredNodes, nodeID)
		for key, row := range sub.currentResults {
			if row.SourceNode == nodeID {
				delete(sub.currentResults, key)
			}
		}
		pending := sub.pending
		sub.mu.Unlock()

		if pending != nil {
			pending.MemberLeft(nodeID)
		}
	}

	c.unregisterByCoordinator(nodeID)
	c.metrics.IncCounter("cluster_node_disconnects", map[string]string{"node": nodeID})
}

// Destroy cancels every pending ACK wait with a terminal error and
// clears subscription state. Callers of Subscribe still blocked on
// pending.Wait() observe an Err result and return an error to their
// caller instead of partial results.
func (c *BaseCoordinator) Destroy() {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]*distributedSubscription)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.mu.Lock()
		sub.state = StateTerminated
		pending := sub.pending
		sub.mu.Unlock()
		if pending != nil {
			pending.Reject(ftserr.FatalErr("coordinator destroyed", nil))
		}
	}
}
