// Package cluster implements the distributed side of live subscriptions
// and one-shot distributed search: cluster message types, the
// subscription state machine, the SEARCH/QUERY coordinators, the
// data-node-side handlers, and cursor-paginated scatter-gather search.
package cluster

import (
	"github.com/kvmesh/livefts/internal/ftserr"
	"github.com/kvmesh/livefts/internal/predicate"
)

// MessageType names a cluster wire message.
type MessageType string

const (
	SubRegister   MessageType = "CLUSTER_SUB_REGISTER"
	SubAck        MessageType = "CLUSTER_SUB_ACK"
	SubUpdate     MessageType = "CLUSTER_SUB_UPDATE"
	SubUnregister MessageType = "CLUSTER_SUB_UNREGISTER"
	SearchReq     MessageType = "CLUSTER_SEARCH_REQ"
	SearchResp    MessageType = "CLUSTER_SEARCH_RESP"
)

// SubscriptionType distinguishes a full-text search subscription from a
// predicate query subscription; each is merged and forwarded differently.
type SubscriptionType string

const (
	SubSearch SubscriptionType = "SEARCH"
	SubQuery  SubscriptionType = "QUERY"
)

// ChangeType mirrors the client-facing change vocabulary carried on a
// CLUSTER_SUB_UPDATE message.
type ChangeType string

const (
	ChangeEnter  ChangeType = "ENTER"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeLeave  ChangeType = "LEAVE"
)

// Message is the envelope every cluster message is exchanged in. Payload
// is one of the Register/Ack/Update/Unregister/SearchReq/SearchResp
// structs below, selected by Type.
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

// RegisterPayload is CLUSTER_SUB_REGISTER: coordinator to data node,
// asking the receiver to create a local subscription on the
// coordinator's behalf.
type RegisterPayload struct {
	SubscriptionID    string           `json:"subscriptionId"`
	CoordinatorNodeID string           `json:"coordinatorNodeId"`
	MapName           string           `json:"mapName"`
	Type              SubscriptionType `json:"type"`
	SearchQuery       string           `json:"searchQuery,omitempty"`
	SearchOptions     *SearchOptions   `json:"searchOptions,omitempty"`
	QueryPredicate    *predicate.Query `json:"queryPredicate,omitempty"`
}

// Validate rejects a malformed register payload before it can mutate
// any state.
func (p *RegisterPayload) Validate() error {
	if p.SubscriptionID == "" {
		return errInvalid("subscriptionId is required")
	}
	if p.CoordinatorNodeID == "" {
		return errInvalid("coordinatorNodeId is required")
	}
	if p.MapName == "" {
		return errInvalid("mapName is required")
	}
	switch p.Type {
	case SubSearch:
		if p.SearchQuery == "" {
			return errInvalid("searchQuery is required for a SEARCH subscription")
		}
	case SubQuery:
		if p.QueryPredicate == nil {
			return errInvalid("queryPredicate is required for a QUERY subscription")
		}
	default:
		return errInvalid("type must be SEARCH or QUERY")
	}
	return nil
}

// InitialResult is one row of a data node's initial result set, carried
// on a CLUSTER_SUB_ACK.
type InitialResult struct {
	Key          string          `json:"key"`
	Value        predicate.Value `json:"value"`
	Score        *float64        `json:"score,omitempty"`
	MatchedTerms []string        `json:"matchedTerms,omitempty"`
}

// AckPayload is CLUSTER_SUB_ACK: data node to coordinator, acknowledging
// local registration and carrying that node's initial results.
type AckPayload struct {
	SubscriptionID string          `json:"subscriptionId"`
	NodeID         string          `json:"nodeId"`
	Success        bool            `json:"success"`
	InitialResults []InitialResult `json:"initialResults,omitempty"`
	TotalHits      int             `json:"totalHits,omitempty"`
	Error          string          `json:"error,omitempty"`
}

func (p *AckPayload) Validate() error {
	if p.SubscriptionID == "" {
		return errInvalid("subscriptionId is required")
	}
	if p.NodeID == "" {
		return errInvalid("nodeId is required")
	}
	return nil
}

// UpdatePayload is CLUSTER_SUB_UPDATE: data node to coordinator,
// reporting that a single key entered, changed, or left the
// subscription's result set on that node.
type UpdatePayload struct {
	SubscriptionID string          `json:"subscriptionId"`
	SourceNodeID   string          `json:"sourceNodeId"`
	Key            string          `json:"key"`
	Value          predicate.Value `json:"value"`
	Score          *float64        `json:"score,omitempty"`
	MatchedTerms   []string        `json:"matchedTerms,omitempty"`
	ChangeType     ChangeType      `json:"changeType"`
	Timestamp      int64           `json:"timestamp"`
}

func (p *UpdatePayload) Validate() error {
	if p.SubscriptionID == "" {
		return errInvalid("subscriptionId is required")
	}
	if p.SourceNodeID == "" {
		return errInvalid("sourceNodeId is required")
	}
	if p.Key == "" {
		return errInvalid("key is required")
	}
	switch p.ChangeType {
	case ChangeEnter, ChangeUpdate, ChangeLeave:
	default:
		return errInvalid("changeType must be ENTER, UPDATE or LEAVE")
	}
	return nil
}

// UnregisterPayload is CLUSTER_SUB_UNREGISTER: coordinator to data node,
// fire-and-forget.
type UnregisterPayload struct {
	SubscriptionID string `json:"subscriptionId"`
}

func (p *UnregisterPayload) Validate() error {
	if p.SubscriptionID == "" {
		return errInvalid("subscriptionId is required")
	}
	return nil
}

// SearchOptions mirrors the configuration options recognized by the
// search subsystem, as exchanged on the wire.
type SearchOptions struct {
	Limit               int                `json:"limit"`
	MinScore            float64            `json:"minScore,omitempty"`
	Boost               map[string]float64 `json:"boost,omitempty"`
	AfterScore          *float64           `json:"afterScore,omitempty"`
	AfterKey            string             `json:"afterKey,omitempty"`
	IncludeMatchedTerms bool               `json:"includeMatchedTerms,omitempty"`
}

// SearchReqPayload is CLUSTER_SEARCH_REQ: coordinator to data node, a
// one-shot (non-subscribing) search request.
type SearchReqPayload struct {
	RequestID       string        `json:"requestId"`
	RequesterNodeID string        `json:"requesterNodeId"`
	MapName         string        `json:"mapName"`
	Query           string        `json:"query"`
	Options         SearchOptions `json:"options"`
	TimeoutMs       int           `json:"timeoutMs"`
}

func (p *SearchReqPayload) Validate() error {
	if p.RequestID == "" {
		return errInvalid("requestId is required")
	}
	if p.RequesterNodeID == "" {
		return errInvalid("requesterNodeId is required")
	}
	if p.MapName == "" {
		return errInvalid("mapName is required")
	}
	if p.Query == "" {
		return errInvalid("query is required")
	}
	return nil
}

// SearchResultRow is one row of a data node's search response.
type SearchResultRow struct {
	Key          string          `json:"key"`
	Value        predicate.Value `json:"value"`
	Score        float64         `json:"score"`
	MatchedTerms []string        `json:"matchedTerms,omitempty"`
}

// SearchRespPayload is CLUSTER_SEARCH_RESP: data node to coordinator.
type SearchRespPayload struct {
	RequestID   string            `json:"requestId"`
	NodeID      string            `json:"nodeId"`
	Results     []SearchResultRow `json:"results"`
	TotalHits   int               `json:"totalHits"`
	ExecutionMs int64             `json:"executionTimeMs"`
	Error       string            `json:"error,omitempty"`
}

func (p *SearchRespPayload) Validate() error {
	if p.RequestID == "" {
		return errInvalid("requestId is required")
	}
	if p.NodeID == "" {
		return errInvalid("nodeId is required")
	}
	return nil
}

// SearchUpdateFrame is the client-facing SEARCH_UPDATE frame.
type SearchUpdateFrame struct {
	Type    string              `json:"type"`
	Payload SearchUpdatePayload `json:"payload"`
}

type SearchUpdatePayload struct {
	SubscriptionID string          `json:"subscriptionId"`
	Key            string          `json:"key"`
	Value          predicate.Value `json:"value"`
	Score          float64         `json:"score"`
	MatchedTerms   []string        `json:"matchedTerms,omitempty"`
	ChangeType     ChangeType      `json:"changeType"`
}

// NewSearchUpdateFrame builds a SEARCH_UPDATE frame.
func NewSearchUpdateFrame(p SearchUpdatePayload) SearchUpdateFrame {
	return SearchUpdateFrame{Type: "SEARCH_UPDATE", Payload: p}
}

// QueryUpdateFrame is the client-facing QUERY_UPDATE frame.
type QueryUpdateFrame struct {
	Type    string             `json:"type"`
	Payload QueryUpdatePayload `json:"payload"`
}

type QueryUpdatePayload struct {
	QueryID string          `json:"queryId"`
	Key     string          `json:"key"`
	Value   predicate.Value `json:"value"`
	Type    ChangeType      `json:"type"`
}

// NewQueryUpdateFrame builds a QUERY_UPDATE frame.
func NewQueryUpdateFrame(p QueryUpdatePayload) QueryUpdateFrame {
	return QueryUpdateFrame{Type: "QUERY_UPDATE", Payload: p}
}

func errInvalid(msg string) error {
	return ftserr.Invalid(msg, nil)
}
