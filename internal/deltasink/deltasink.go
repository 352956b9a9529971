// Package deltasink breaks the cyclic reference between a local
// coordinator (which owns index/registry state and computes deltas) and
// the distributed coordinator (which forwards some of those deltas over
// the cluster boundary instead of straight to a client socket). A local
// coordinator emits into an injected sink; it never calls back into
// whatever owns the sink.
package deltasink

import "github.com/kvmesh/livefts/internal/predicate"

// ChangeType is the three-state client-facing vocabulary a distributed
// subscription uses (mirrors cluster.ChangeType without importing the
// cluster package, which would reintroduce the cycle this package
// exists to avoid).
type ChangeType string

const (
	Enter  ChangeType = "ENTER"
	Update ChangeType = "UPDATE"
	Leave  ChangeType = "LEAVE"
)

// SearchDelta is one row of a full-text search subscription's change
// notification.
type SearchDelta struct {
	SubscriptionID string
	Key            string
	Value          predicate.Value
	Score          float64
	MatchedTerms   []string
	Change         ChangeType
}

// SearchSink receives search-subscription deltas. The local
// SearchCoordinator emits into one of these; a distributed subscription
// forwards it as a CLUSTER_SUB_UPDATE, a local-only subscription writes
// a SEARCH_UPDATE frame straight to the client socket.
type SearchSink interface {
	EmitSearch(d SearchDelta)
}

// SearchSinkFunc adapts a function to a SearchSink.
type SearchSinkFunc func(d SearchDelta)

func (f SearchSinkFunc) EmitSearch(d SearchDelta) { f(d) }

// QuerySink is the predicate-query equivalent; predicate.Sink already
// has the right shape (Emit(predicate.Delta)), so it is reused directly
// rather than wrapped.
type QuerySink = predicate.Sink
