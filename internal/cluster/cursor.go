package cluster

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kvmesh/livefts/internal/ftserr"
)

// cursorState is the decoded contents of an opaque pagination cursor: a
// per-node watermark (score and key of the last row this client has
// seen from that node) plus a fingerprint of the request that produced
// it, so a cursor cannot be replayed against a different query.
type cursorState struct {
	NodeScores map[string]float64 `json:"nodeScores"`
	NodeKeys   map[string]string  `json:"nodeKeys"`
	QueryHash  string             `json:"queryHash"`
	IssuedAt   int64              `json:"issuedAt"`
}

// QueryFingerprint hashes the parts of a search request that must stay
// stable across pages: the map, the query text and the options that
// shape ranking (not pagination fields like limit/cursor themselves).
func QueryFingerprint(mapName, query string, minScore float64, boost map[string]float64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%g\x00", mapName, query, minScore)
	for _, k := range sortedKeys(boost) {
		fmt.Fprintf(h, "%s=%g\x00", k, boost[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EncodeCursor serializes cursor state to an opaque base64 string.
func EncodeCursor(state cursorState) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", ftserr.InternalErr("failed to encode cursor", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// DecodeCursor parses a cursor string and validates it against the
// current request's fingerprint. A cursor minted for a different query
// is rejected rather than silently resumed against the wrong request.
func DecodeCursor(cursor, expectedQueryHash string) (cursorState, error) {
	data, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return cursorState{}, ftserr.Invalid("malformed cursor", err)
	}
	var state cursorState
	if err := json.Unmarshal(data, &state); err != nil {
		return cursorState{}, ftserr.Invalid("malformed cursor payload", err)
	}
	if state.QueryHash != expectedQueryHash {
		return cursorState{}, ftserr.Invalid("cursor does not match this query", nil)
	}
	return state, nil
}
