package clientsocket

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsOpen_OnlyTrueWhenOpen(t *testing.T) {
	r := NewRecorder()
	assert.True(t, IsOpen(r))

	r.State = Closed
	assert.False(t, IsOpen(r))

	assert.False(t, IsOpen(nil))
}

func TestRecorder_SendCapturesFrame(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Send(map[string]string{"type": "SEARCH_UPDATE"}))
	require.Len(t, r.Frames, 1)

	frame, ok := r.Frames[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SEARCH_UPDATE", frame["type"])
}

func TestRecorder_SendPropagatesInjectedError(t *testing.T) {
	r := NewRecorder()
	r.Err = errors.New("socket closed")
	err := r.Send("frame")
	assert.Error(t, err)
	assert.Empty(t, r.Frames)
}
