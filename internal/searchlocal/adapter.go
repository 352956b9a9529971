package searchlocal

import (
	"time"

	"github.com/kvmesh/livefts/internal/cluster"
	"github.com/kvmesh/livefts/internal/deltasink"
	"github.com/kvmesh/livefts/internal/ftsindex"
	"github.com/kvmesh/livefts/internal/predicate"
)

// Node bundles a SEARCH coordinator and a predicate-query registry
// behind the four callback types cluster.BaseCoordinator expects,
// keeping cluster free of any dependency on either concrete type. Every
// delta a registered subscription produces is forwarded to its owning
// coordinator node as a CLUSTER_SUB_UPDATE, including when that
// coordinator is this node itself.
type Node struct {
	Search *Coordinator
	Query  *predicate.Registry

	selfID    string
	messaging cluster.Messaging
	sources   map[string]predicate.RecordSource
}

// NewNode builds a Node over an already-constructed search coordinator
// and query registry, forwarding updates via messaging.
func NewNode(selfID string, messaging cluster.Messaging, search *Coordinator, query *predicate.Registry) *Node {
	return &Node{selfID: selfID, messaging: messaging, Search: search, Query: query, sources: make(map[string]predicate.RecordSource)}
}

// BindSource records the RecordSource backing mapName, used to satisfy
// QUERY subscriptions (Search already tracks its own sources internally
// via EnableSearch).
func (n *Node) BindSource(mapName string, source predicate.RecordSource) {
	n.sources[mapName] = source
}

// RegisterSearch adapts Coordinator.Subscribe to cluster.LocalRegisterSearch.
func (n *Node) RegisterSearch(subID, mapName, query string, opts cluster.SearchOptions, coordNode string) ([]cluster.InitialResult, int, error) {
	sink := deltasink.SearchSinkFunc(func(d deltasink.SearchDelta) {
		n.forwardSearchDelta(coordNode, d)
	})
	rows, total, err := n.Search.Subscribe(subID, mapName, query, toFTSOptions(opts), sink, coordNode)
	if err != nil {
		return nil, 0, err
	}
	out := make([]cluster.InitialResult, 0, len(rows))
	for _, r := range rows {
		score := r.Score
		out = append(out, cluster.InitialResult{Key: r.Key, Value: r.Value, Score: &score, MatchedTerms: r.MatchedTerms})
	}
	return out, total, nil
}

// RegisterQuery adapts Registry.RegisterDistributed to cluster.LocalRegisterQuery.
func (n *Node) RegisterQuery(subID, mapName string, query predicate.Query, coordNode string) ([]cluster.InitialResult, error) {
	source, ok := n.sources[mapName]
	if !ok {
		return nil, &unknownMapError{mapName: mapName}
	}
	sink := forwardingQuerySink{node: n, coordNode: coordNode}
	keys := n.Query.RegisterDistributed(subID, mapName, query, source, sink, coordNode)
	out := make([]cluster.InitialResult, 0, len(keys))
	for _, key := range keys {
		if rec, ok := source.GetRecord(key); ok {
			out = append(out, cluster.InitialResult{Key: key, Value: predicate.Map(rec.Attributes)})
		}
	}
	return out, nil
}

// UnregisterLocal adapts to cluster.LocalUnregister: it removes subID
// from both the search and query registries, since only one of the two
// will actually know about it.
func (n *Node) UnregisterLocal(subID string) {
	n.Search.Unsubscribe(subID)
	n.Query.Unregister(subID)
}

// UnregisterByCoordinator adapts to cluster.LocalUnregisterByCoordinator.
func (n *Node) UnregisterByCoordinator(coordNodeID string) {
	n.Search.UnsubscribeByCoordinator(coordNodeID)
	n.Query.UnregisterByCoordinator(coordNodeID)
}

// LocalSearch adapts Coordinator.Search to cluster.LocalSearch, for
// one-shot (non-subscribing) distributed search.
func (n *Node) LocalSearch(mapName, query string, opts cluster.SearchOptions) ([]cluster.SearchResultRow, int, error) {
	rows, total, err := n.Search.Search(mapName, query, toFTSOptions(opts))
	if err != nil {
		return nil, 0, err
	}
	out := make([]cluster.SearchResultRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, cluster.SearchResultRow{Key: r.Key, Value: r.Value, Score: r.Score, MatchedTerms: r.MatchedTerms})
	}
	return out, total, nil
}

func (n *Node) forwardSearchDelta(coordNode string, d deltasink.SearchDelta) {
	score := d.Score
	payload := cluster.UpdatePayload{
		SubscriptionID: d.SubscriptionID,
		SourceNodeID:   n.selfID,
		Key:            d.Key,
		Value:          d.Value,
		Score:          &score,
		MatchedTerms:   d.MatchedTerms,
		ChangeType:     cluster.ChangeType(d.Change),
		Timestamp:      time.Now().UnixMilli(),
	}
	_ = n.messaging.SendTo(coordNode, cluster.Message{Type: cluster.SubUpdate, Payload: payload})
}

// forwardingQuerySink adapts a predicate.Sink to forward every emitted
// delta to coordNode as a CLUSTER_SUB_UPDATE, mirroring forwardSearchDelta
// for the QUERY subscription path.
type forwardingQuerySink struct {
	node      *Node
	coordNode string
}

func (s forwardingQuerySink) Emit(d predicate.Delta) {
	payload := cluster.UpdatePayload{
		SubscriptionID: d.SubscriptionID,
		SourceNodeID:   s.node.selfID,
		Key:            d.Key,
		Value:          predicate.Map(d.Value.Attributes),
		ChangeType:     cluster.ChangeType(d.Type.String()),
		Timestamp:      d.Timestamp.UnixMilli(),
	}
	_ = s.node.messaging.SendTo(s.coordNode, cluster.Message{Type: cluster.SubUpdate, Payload: payload})
}

func toFTSOptions(opts cluster.SearchOptions) ftsindex.SearchOptions {
	return ftsindex.SearchOptions{Limit: opts.Limit, MinScore: opts.MinScore, Boost: opts.Boost}
}

type unknownMapError struct{ mapName string }

func (e *unknownMapError) Error() string {
	return "unknown map: " + e.mapName
}
