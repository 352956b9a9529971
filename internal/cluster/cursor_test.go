package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_EncodeDecodeRoundTrip(t *testing.T) {
	hash := QueryFingerprint("articles", "learning", 0, nil)
	state := cursorState{
		NodeScores: map[string]float64{"n1": 0.9, "n2": 0.8},
		NodeKeys:   map[string]string{"n1": "doc-a", "n2": "doc-b"},
		QueryHash:  hash,
		IssuedAt:   1700000000,
	}

	encoded, err := EncodeCursor(state)
	require.NoError(t, err)

	decoded, err := DecodeCursor(encoded, hash)
	require.NoError(t, err)
	assert.Equal(t, state, decoded)
}

func TestCursor_RejectsMismatchedQueryHash(t *testing.T) {
	hash := QueryFingerprint("articles", "learning", 0, nil)
	encoded, err := EncodeCursor(cursorState{QueryHash: hash})
	require.NoError(t, err)

	_, err = DecodeCursor(encoded, "different-hash")
	assert.Error(t, err)
}

func TestCursor_RejectsMalformedBase64(t *testing.T) {
	_, err := DecodeCursor("not valid base64!!", "any")
	assert.Error(t, err)
}

func TestQueryFingerprint_StableAcrossBoostKeyOrder(t *testing.T) {
	a := QueryFingerprint("m", "q", 0.1, map[string]float64{"title": 2, "body": 1})
	b := QueryFingerprint("m", "q", 0.1, map[string]float64{"body": 1, "title": 2})
	assert.Equal(t, a, b)
}

func TestQueryFingerprint_DiffersOnQueryChange(t *testing.T) {
	a := QueryFingerprint("m", "q1", 0, nil)
	b := QueryFingerprint("m", "q2", 0, nil)
	assert.NotEqual(t, a, b)
}
