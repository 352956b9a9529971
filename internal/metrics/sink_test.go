package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoop_IgnoresEverything(t *testing.T) {
	var s Sink = Noop{}
	s.IncCounter("x", nil)
	s.Observe("x", 1.0, map[string]string{"a": "b"})
	s.SetGauge("x", 2.0, nil)
}

func TestInMemory_CounterAccumulates(t *testing.T) {
	s := NewInMemory()
	s.IncCounter("requests", map[string]string{"node": "n1"})
	s.IncCounter("requests", map[string]string{"node": "n1"})
	s.IncCounter("requests", map[string]string{"node": "n2"})

	assert.Equal(t, 2.0, s.Counter("requests", map[string]string{"node": "n1"}))
	assert.Equal(t, 1.0, s.Counter("requests", map[string]string{"node": "n2"}))
	assert.Equal(t, 0.0, s.Counter("unknown", nil))
}

func TestInMemory_GaugeKeepsLastValue(t *testing.T) {
	s := NewInMemory()
	s.SetGauge("queue_depth", 5, nil)
	s.SetGauge("queue_depth", 9, nil)
	assert.Equal(t, 9.0, s.Gauge("queue_depth", nil))
}

func TestInMemory_ObserveTracksCountAndMean(t *testing.T) {
	s := NewInMemory()
	s.Observe("latency_ms", 10, map[string]string{"op": "search"})
	s.Observe("latency_ms", 20, map[string]string{"op": "search"})

	assert.Equal(t, int64(2), s.ObservationCount("latency_ms", map[string]string{"op": "search"}))
	assert.Equal(t, 15.0, s.ObservationMean("latency_ms", map[string]string{"op": "search"}))
}

func TestInMemory_LabelOrderDoesNotAffectKey(t *testing.T) {
	s := NewInMemory()
	s.IncCounter("x", map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, 1.0, s.Counter("x", map[string]string{"b": "2", "a": "1"}))
}
