package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Progress_ReportsFractionOfTotal(t *testing.T) {
	tr := NewTracker()
	tr.SetStage(StageIndexing, 200)
	tr.Update(50)

	assert.InDelta(t, 0.25, tr.Progress(), 0.0001)
}

func TestTracker_Progress_ZeroTotalIsZero(t *testing.T) {
	tr := NewTracker()
	tr.SetStage(StageLoading, 0)

	assert.Equal(t, 0.0, tr.Progress())
}

func TestTracker_Progress_ClampsAtOne(t *testing.T) {
	tr := NewTracker()
	tr.SetStage(StageLoading, 10)
	tr.Update(999)

	assert.Equal(t, 1.0, tr.Progress())
}

func TestTracker_SetStage_ResetsCounters(t *testing.T) {
	tr := NewTracker()
	tr.SetStage(StageLoading, 10)
	tr.Update(10)

	tr.SetStage(StageIndexing, 50)

	assert.Equal(t, 0.0, tr.Progress())
	assert.Equal(t, StageIndexing, tr.CurrentStage())
}

func TestTracker_ETA_ZeroBeforeAnyProgress(t *testing.T) {
	tr := NewTracker()
	tr.SetStage(StageLoading, 100)

	assert.Equal(t, int64(0), int64(tr.ETA()))
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "Loading", StageLoading.String())
	assert.Equal(t, "Indexing", StageIndexing.String())
	assert.Equal(t, "Ready", StageReady.String())
}
