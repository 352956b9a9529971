package predicate

import (
	"strconv"
	"sync"
	"time"
)

// ChangeType names a diff entry kind emitted to a subscriber.
type ChangeType int

const (
	ChangeEnter ChangeType = iota
	ChangeUpdate
	ChangeLeave
	ChangeRemove
)

// String renders the wire name for a change type. Distributed (QUERY
// coordinator) subscriptions use the three-state ENTER/UPDATE/LEAVE
// vocabulary; local, non-distributed subscriptions use the two-state
// UPDATE/REMOVE vocabulary described for the single-map variant — a
// newly-visible key there is reported as UPDATE, never ENTER.
func (c ChangeType) String() string {
	switch c {
	case ChangeEnter:
		return "ENTER"
	case ChangeUpdate:
		return "UPDATE"
	case ChangeLeave:
		return "LEAVE"
	case ChangeRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// Delta is one emitted change for a standing query: a key entering,
// updating within, or leaving the result set.
type Delta struct {
	SubscriptionID string
	MapName        string
	Key            string
	Value          Record
	Type           ChangeType
	Timestamp      time.Time

	// CoordinatorNodeID is set only for distributed subscriptions. The
	// registry copies it onto the delta and hands every delta to the
	// subscription's own Sink either way.
	CoordinatorNodeID string
}

// Sink receives emitted deltas. A local subscriber implementation writes
// to a client socket; the distributed variant forwards over the cluster
// messaging service. Either way the registry never holds a socket or
// messaging reference directly.
type Sink interface {
	Emit(Delta)
}

// slipEntry is one addition made at registration time; removal iterates
// a subscription's slip to undo exactly those additions, in place of a
// stored closure.
type slipEntry struct {
	bucket string // "equality", "interest" or "wildcard"
	field  string
	value  Value
	hasVal bool
}

type subscription struct {
	id        string
	mapName   string
	query     Query
	sink      Sink
	coordNode string // non-empty for distributed subs

	mu                 sync.Mutex
	previousResultKeys map[string]struct{}
	slip               []slipEntry
}

// Registry is the standing query registry: reverse-indexed by field so a
// single changed record only re-evaluates the subscriptions that could
// plausibly care, instead of every standing query.
type Registry struct {
	mu sync.Mutex

	subs map[string]*subscription

	// equality: field -> value (by equality-literal encoding) -> sub ids.
	equality map[string]map[string]map[string]struct{}
	// interest: field -> sub ids, for any non-equality operator or a sort key.
	interest map[string]map[string]struct{}
	// wildcard: subs with no field-scoped interest at all.
	wildcard map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		subs:     make(map[string]*subscription),
		equality: make(map[string]map[string]map[string]struct{}),
		interest: make(map[string]map[string]struct{}),
		wildcard: make(map[string]struct{}),
	}
}

// Register installs a new standing query against src, computes its
// initial result set and returns it. sink receives subsequent deltas via
// ProcessChange.
func (r *Registry) Register(subID, mapName string, q Query, src RecordSource, sink Sink) []string {
	return r.register(subID, mapName, q, src, sink, "")
}

// RegisterDistributed behaves like Register but tags the subscription
// with the owning coordinator node so UnregisterByCoordinator can sweep
// it later, and so emitted deltas carry CoordinatorNodeID.
func (r *Registry) RegisterDistributed(subID, mapName string, q Query, src RecordSource, sink Sink, coordinatorNodeID string) []string {
	return r.register(subID, mapName, q, src, sink, coordinatorNodeID)
}

func (r *Registry) register(subID, mapName string, q Query, src RecordSource, sink Sink, coordNode string) []string {
	fields := analyzeQueryFields(q)

	sub := &subscription{
		id:        subID,
		mapName:   mapName,
		query:     q,
		sink:      sink,
		coordNode: coordNode,
	}

	r.mu.Lock()
	r.subs[subID] = sub
	if len(fields.equality) == 0 && len(fields.interest) == 0 {
		r.wildcard[subID] = struct{}{}
		sub.slip = append(sub.slip, slipEntry{bucket: "wildcard"})
	}
	for field, values := range fields.equality {
		for _, v := range values {
			r.addEquality(sub, field, v)
		}
	}
	for field := range fields.interest {
		r.addInterest(sub, field)
	}
	r.mu.Unlock()

	initial := Execute(q, src)
	sub.mu.Lock()
	sub.previousResultKeys = toKeySet(initial)
	sub.mu.Unlock()
	return initial
}

// analyzedFields separates equality-literal fields (which can be bucketed
// by value) from interest-only fields (any other operator, or a sort
// key, which must be notified on every change to that field).
type analyzedFields struct {
	equality map[string][]Value
	interest map[string]struct{}
}

// analyzeQueryFields walks where and sort to collect interested fields:
// top-level `and`-ed `eq` leaves register as equality interest on their
// constant; every other leaf (including eq leaves nested under `or`/`not`,
// since a local "not equal to this value" still means "any value change
// matters") and every sort key registers as plain field interest.
func analyzeQueryFields(q Query) analyzedFields {
	out := analyzedFields{equality: make(map[string][]Value), interest: make(map[string]struct{})}
	walkTopLevelEquality(q.Where, true, &out)
	for _, sk := range q.Sort {
		out.interest[sk.Field] = struct{}{}
	}
	return out
}

func walkTopLevelEquality(p Predicate, topLevel bool, out *analyzedFields) {
	switch p.Op {
	case OpAnd:
		for _, c := range p.Children {
			walkTopLevelEquality(c, topLevel, out)
		}
	case OpEq:
		if topLevel {
			out.equality[p.Field] = append(out.equality[p.Field], p.Value)
			return
		}
		out.interest[p.Field] = struct{}{}
	default:
		for field := range Fields(p) {
			out.interest[field] = struct{}{}
		}
	}
}

func (r *Registry) addEquality(sub *subscription, field string, v Value) {
	byField, ok := r.equality[field]
	if !ok {
		byField = make(map[string]map[string]struct{})
		r.equality[field] = byField
	}
	encoded := encodeEqualityValue(v)
	bucket, ok := byField[encoded]
	if !ok {
		bucket = make(map[string]struct{})
		byField[encoded] = bucket
	}
	bucket[sub.id] = struct{}{}
	sub.slip = append(sub.slip, slipEntry{bucket: "equality", field: field, value: v, hasVal: true})
}

func (r *Registry) addInterest(sub *subscription, field string) {
	bucket, ok := r.interest[field]
	if !ok {
		bucket = make(map[string]struct{})
		r.interest[field] = bucket
	}
	bucket[sub.id] = struct{}{}
	sub.slip = append(sub.slip, slipEntry{bucket: "interest", field: field})
}

// Count returns the number of standing QUERY subscriptions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Unregister removes subID's registration-slip entries and drops the
// subscription. Idempotent: unregistering twice, or an unknown id, is a
// no-op.
func (r *Registry) Unregister(subID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[subID]
	if !ok {
		return
	}
	r.removeSlip(sub)
	delete(r.subs, subID)
}

func (r *Registry) removeSlip(sub *subscription) {
	for _, entry := range sub.slip {
		switch entry.bucket {
		case "wildcard":
			delete(r.wildcard, sub.id)
		case "interest":
			if bucket, ok := r.interest[entry.field]; ok {
				delete(bucket, sub.id)
				if len(bucket) == 0 {
					delete(r.interest, entry.field)
				}
			}
		case "equality":
			byField, ok := r.equality[entry.field]
			if !ok {
				continue
			}
			encoded := encodeEqualityValue(entry.value)
			bucket, ok := byField[encoded]
			if !ok {
				continue
			}
			delete(bucket, sub.id)
			if len(bucket) == 0 {
				delete(byField, encoded)
			}
			if len(byField) == 0 {
				delete(r.equality, entry.field)
			}
		}
	}
	sub.slip = nil
}

// UnregisterByCoordinator sweeps every distributed subscription whose
// owning coordinator is nodeID, used when that coordinator departs the
// cluster.
func (r *Registry) UnregisterByCoordinator(nodeID string) {
	r.mu.Lock()
	var doomed []string
	for id, sub := range r.subs {
		if sub.coordNode == nodeID {
			doomed = append(doomed, id)
		}
	}
	for _, id := range doomed {
		sub := r.subs[id]
		r.removeSlip(sub)
		delete(r.subs, id)
	}
	r.mu.Unlock()
}

func toKeySet(keys []string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

// encodeEqualityValue builds a comparable map key for bucketing equality
// literals. Lists and maps are not used as equality literals in practice
// (they have no natural string encoding) and fall back to a constant
// bucket shared by all non-scalar values for that field; this only
// widens the equality candidate set, it never narrows correctness.
func encodeEqualityValue(v Value) string {
	switch v.kind {
	case KindNull:
		return "n:"
	case KindBool:
		if b, _ := v.AsBool(); b {
			return "b:1"
		}
		return "b:0"
	case KindInt:
		i, _ := v.AsInt()
		return "i:" + strconv.FormatInt(i, 10)
	case KindFloat:
		f, _ := v.AsFloat()
		return "f:" + strconv.FormatFloat(f, 'g', -1, 64)
	case KindString:
		s, _ := v.AsString()
		return "s:" + s
	case KindBytes:
		b, _ := v.AsBytes()
		return "y:" + string(b)
	default:
		return "x:"
	}
}
