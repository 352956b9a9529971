package cluster

import (
	"sync"
	"time"
)

// AckResult is what a PendingAcks wait resolves to: the set of nodes
// that acknowledged (and whether that node reported success) plus the
// set still unacknowledged when the wait resolved early (timer or
// Cancel). A node that left the cluster mid-wait is in neither set.
type AckResult struct {
	Acked  map[string]bool // nodeID -> success
	Failed []string        // expected nodeIDs still unacknowledged at resolution

	// Err is set only when the wait was terminated by Reject (the
	// coordinator was destroyed with this subscription still pending).
	// A timeout is not an Err: it is a normal partial resolution.
	Err error
}

// PendingAcks tracks the outstanding acknowledgements for one
// subscription's registration against a fixed set of expected nodes.
// The contract: resolve runs at most once; every outcome resolves
// exactly once; the timer's Stop() happens-before resolve runs, so a
// late ACK arriving after resolution can never reopen a closed wait.
type PendingAcks struct {
	mu       sync.Mutex
	expected map[string]bool // nodeID -> not yet acknowledged
	acked    map[string]bool // nodeID -> success
	done     bool
	resultCh chan AckResult
	timer    *time.Timer
}

// NewPendingAcks starts a wait against the given set of expected node
// IDs, arming a timeout that resolves with whatever acknowledged so far.
func NewPendingAcks(expectedNodeIDs []string, timeout time.Duration) *PendingAcks {
	p := &PendingAcks{
		expected: make(map[string]bool, len(expectedNodeIDs)),
		acked:    make(map[string]bool, len(expectedNodeIDs)),
		resultCh: make(chan AckResult, 1),
	}
	for _, id := range expectedNodeIDs {
		p.expected[id] = true
	}
	p.timer = time.AfterFunc(timeout, p.resolve)
	return p
}

// Ack records one node's acknowledgement. When every expected node has
// acknowledged, the timer is cancelled and the wait resolves
// immediately instead of waiting out the timeout.
func (p *PendingAcks) Ack(nodeID string, success bool) {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	delete(p.expected, nodeID)
	p.acked[nodeID] = success
	ready := len(p.expected) == 0
	p.mu.Unlock()

	if ready {
		p.resolve()
	}
}

// MemberLeft synthetically completes the wait for nodeID, so a departed
// member can never cause an indefinite hang.
func (p *PendingAcks) MemberLeft(nodeID string) {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	delete(p.expected, nodeID)
	ready := len(p.expected) == 0
	p.mu.Unlock()

	if ready {
		p.resolve()
	}
}

// resolve cancels the timer (happens-before publishing the result) and
// publishes the final result exactly once.
func (p *PendingAcks) resolve() {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	p.done = true
	p.timer.Stop()

	acked := make(map[string]bool, len(p.acked))
	for node, ok := range p.acked {
		acked[node] = ok
	}
	failed := make([]string, 0, len(p.expected))
	for node := range p.expected {
		failed = append(failed, node)
	}
	result := AckResult{Acked: acked, Failed: failed}
	p.mu.Unlock()

	p.resultCh <- result
}

// Wait blocks until the acknowledgement set resolves, either because
// every expected node acknowledged or the timeout fired.
func (p *PendingAcks) Wait() AckResult {
	return <-p.resultCh
}

// Cancel stops the timer and resolves immediately with whatever state
// is recorded, as a partial resolution (no Err). Coordinator teardown
// uses Reject instead.
func (p *PendingAcks) Cancel() {
	p.resolve()
}

// Reject terminates the wait with a fatal error instead of a partial
// resolution, used when the coordinator itself is destroyed.
func (p *PendingAcks) Reject(err error) {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	p.done = true
	p.timer.Stop()
	p.mu.Unlock()

	p.resultCh <- AckResult{Err: err}
}
