package cluster

import (
	"context"
	"sync"
	"time"

	resilience "github.com/kvmesh/livefts/internal/errors"
)

// ResilientMessaging wraps a Messaging implementation with a per-peer
// circuit breaker and bounded retry, so a single slow or unreachable
// node degrades delta delivery to that node instead of every SendTo
// call against it paying the same full retry cost, and instead of a
// wedged peer's failures bleeding into sends aimed at healthy ones.
type ResilientMessaging struct {
	inner Messaging
	retry resilience.RetryConfig

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

// deltaRetryConfig favors a few fast retries over the package default
// (1s-16s backoff): a stalled SendTo here blocks whatever goroutine is
// forwarding a subscription delta, so the wait has to stay well under a
// client's expected update latency.
func deltaRetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxRetries:   2,
		InitialDelay: 25 * time.Millisecond,
		MaxDelay:     200 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// NewResilientMessaging wraps inner with per-node circuit breakers.
func NewResilientMessaging(inner Messaging) *ResilientMessaging {
	return &ResilientMessaging{
		inner:    inner,
		retry:    deltaRetryConfig(),
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
}

func (m *ResilientMessaging) breakerFor(nodeID string) *resilience.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	cb, ok := m.breakers[nodeID]
	if !ok {
		cb = resilience.NewCircuitBreaker(nodeID, resilience.WithMaxFailures(3), resilience.WithResetTimeout(5*time.Second))
		m.breakers[nodeID] = cb
	}
	return cb
}

// SendTo retries transient failures against nodeID and trips that
// node's breaker once it fails persistently, so a down peer fails fast
// on every subsequent call until its reset timeout elapses.
func (m *ResilientMessaging) SendTo(nodeID string, msg Message) error {
	cb := m.breakerFor(nodeID)
	return cb.Execute(func() error {
		return resilience.Retry(context.Background(), m.retry, func() error {
			return m.inner.SendTo(nodeID, msg)
		})
	})
}

// Broadcast passes straight through: a broadcast has no single peer to
// break the circuit on, and the teacher's breaker is keyed per name.
func (m *ResilientMessaging) Broadcast(msg Message) error {
	return m.inner.Broadcast(msg)
}
