// Package progress tracks and renders the progress of loading a record
// file and building a full-text index over it, for the CLI commands
// that do both synchronously before serving or searching.
package progress

import (
	"sync"
	"time"
)

// Stage represents a step of the load-then-index pipeline.
type Stage int

const (
	// StageLoading is decoding and applying the record file.
	StageLoading Stage = iota
	// StageIndexing is building the full-text index over loaded records.
	StageIndexing
	// StageReady indicates the pipeline is complete.
	StageReady
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageLoading:
		return "Loading"
	case StageIndexing:
		return "Indexing"
	case StageReady:
		return "Ready"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag used in plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageLoading:
		return "LOAD"
	case StageIndexing:
		return "INDEX"
	case StageReady:
		return "DONE"
	default:
		return "???"
	}
}

// CompletionStats summarizes a finished load-then-index run.
type CompletionStats struct {
	Records  int
	Duration time.Duration
	Errors   int
}

// Tracker accumulates progress state across the two stages and derives
// throughput/ETA from it. Safe for concurrent use; a reporter goroutine
// typically polls Stats() while a loader goroutine calls Update().
type Tracker struct {
	mu         sync.RWMutex
	stage      Stage
	current    int
	total      int
	startTime  time.Time
	stageStart time.Time
	lastETA    time.Duration

	lastCurrent   int
	lastSpeedCalc time.Time
	currentSpeed  float64
	avgSpeed      float64
	peakSpeed     float64
	speedSamples  int
	sparkline     *Sparkline
}

// NewTracker creates a Tracker starting in StageLoading.
func NewTracker() *Tracker {
	now := time.Now()
	return &Tracker{
		stage:         StageLoading,
		startTime:     now,
		stageStart:    now,
		lastSpeedCalc: now,
		sparkline:     NewSparkline(60),
	}
}

// SetStage transitions to a new stage and resets its counters.
func (t *Tracker) SetStage(stage Stage, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stage = stage
	t.total = total
	t.current = 0
	t.stageStart = time.Now()
	t.lastETA = 0

	t.lastCurrent = 0
	t.lastSpeedCalc = time.Now()
	t.currentSpeed = 0
	t.avgSpeed = 0
	t.peakSpeed = 0
	t.speedSamples = 0
	t.sparkline.Clear()
}

// Update records progress within the current stage.
func (t *Tracker) Update(current int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = current

	now := time.Now()
	elapsed := now.Sub(t.lastSpeedCalc)
	if elapsed >= 250*time.Millisecond {
		delta := current - t.lastCurrent
		if delta > 0 && elapsed > 0 {
			speed := float64(delta) / elapsed.Seconds()
			t.currentSpeed = speed

			t.speedSamples++
			if t.speedSamples == 1 {
				t.avgSpeed = speed
			} else {
				t.avgSpeed = 0.2*speed + 0.8*t.avgSpeed
			}
			if speed > t.peakSpeed {
				t.peakSpeed = speed
			}
			t.sparkline.Add(speed)
		}
		t.lastCurrent = current
		t.lastSpeedCalc = now
	}
}

// CurrentStage returns the current stage.
func (t *Tracker) CurrentStage() Stage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stage
}

// Progress returns progress within the current stage, 0.0-1.0.
func (t *Tracker) Progress() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.total == 0 {
		return 0
	}
	p := float64(t.current) / float64(t.total)
	if p > 1.0 {
		return 1.0
	}
	return p
}

// ETA estimates remaining time in the current stage with exponential
// smoothing, so a burst of fast or slow records doesn't make the
// estimate swing wildly between updates.
func (t *Tracker) ETA() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calculateETA()
}

const etaSmoothingFactor = 0.3

func (t *Tracker) calculateETA() time.Duration {
	if t.current == 0 || t.total == 0 {
		return 0
	}
	elapsed := time.Since(t.stageStart)
	p := float64(t.current) / float64(t.total)
	if p <= 0 || p >= 1.0 {
		return 0
	}
	totalEstimate := time.Duration(float64(elapsed) / p)
	remaining := totalEstimate - elapsed
	if remaining < 0 {
		return 0
	}
	if t.lastETA == 0 {
		t.lastETA = remaining
		return remaining
	}
	smoothed := time.Duration(etaSmoothingFactor*float64(remaining) + (1-etaSmoothingFactor)*float64(t.lastETA))
	t.lastETA = smoothed
	return smoothed
}

// Elapsed returns time since the tracker was created.
func (t *Tracker) Elapsed() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return time.Since(t.startTime)
}

// Sparkline renders the recent throughput sparkline at the given width
// (0 uses the tracker's sample width).
func (t *Tracker) Sparkline(width int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if width <= 0 {
		return t.sparkline.Render()
	}
	return t.sparkline.RenderWithWidth(width)
}

// Speed returns current, average, and peak items/sec for the current stage.
func (t *Tracker) Speed() (current, avg, peak float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentSpeed, t.avgSpeed, t.peakSpeed
}
