package cluster

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	resilience "github.com/kvmesh/livefts/internal/errors"
)

type countingMessaging struct {
	sendErr    error
	sendCalls  atomic.Int32
	broadcasts atomic.Int32
}

func (m *countingMessaging) SendTo(nodeID string, msg Message) error {
	m.sendCalls.Add(1)
	return m.sendErr
}

func (m *countingMessaging) Broadcast(msg Message) error {
	m.broadcasts.Add(1)
	return nil
}

func TestResilientMessaging_SendTo_PassesThroughOnSuccess(t *testing.T) {
	inner := &countingMessaging{}
	m := NewResilientMessaging(inner)

	err := m.SendTo("n1", Message{Type: SubUpdate})

	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.sendCalls.Load())
}

func TestResilientMessaging_SendTo_RetriesOnFailure(t *testing.T) {
	inner := &countingMessaging{sendErr: errors.New("connection refused")}
	m := NewResilientMessaging(inner)

	err := m.SendTo("n1", Message{Type: SubUpdate})

	require.Error(t, err)
	// deltaRetryConfig allows 2 retries: 1 initial attempt + 2 retries
	assert.Equal(t, int32(3), inner.sendCalls.Load())
}

func TestResilientMessaging_SendTo_TripsBreakerAfterRepeatedFailures(t *testing.T) {
	inner := &countingMessaging{sendErr: errors.New("connection refused")}
	m := NewResilientMessaging(inner)

	// Each SendTo burns 3 inner calls (1 + 2 retries) and counts as one
	// circuit-breaker failure; 3 such failures trips the breaker.
	for i := 0; i < 3; i++ {
		_ = m.SendTo("n1", Message{Type: SubUpdate})
	}
	callsBeforeTrip := inner.sendCalls.Load()

	err := m.SendTo("n1", Message{Type: SubUpdate})

	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	// the breaker fails fast: no further inner calls once it is open
	assert.Equal(t, callsBeforeTrip, inner.sendCalls.Load())
}

func TestResilientMessaging_SendTo_IndependentBreakersPerNode(t *testing.T) {
	inner := &countingMessaging{sendErr: errors.New("connection refused")}
	m := NewResilientMessaging(inner)

	for i := 0; i < 3; i++ {
		_ = m.SendTo("n1", Message{Type: SubUpdate})
	}
	require.Equal(t, resilience.ErrCircuitOpen.Error(), m.SendTo("n1", Message{Type: SubUpdate}).Error())

	// n2 has never failed, so it still attempts delivery.
	callsBefore := inner.sendCalls.Load()
	_ = m.SendTo("n2", Message{Type: SubUpdate})
	assert.Greater(t, inner.sendCalls.Load(), callsBefore)
}

func TestResilientMessaging_Broadcast_PassesThrough(t *testing.T) {
	inner := &countingMessaging{}
	m := NewResilientMessaging(inner)

	require.NoError(t, m.Broadcast(Message{Type: SubUpdate}))
	assert.Equal(t, int32(1), inner.broadcasts.Load())
}
