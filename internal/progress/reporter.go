package progress

import (
	"fmt"
	"sync"

	"github.com/kvmesh/livefts/internal/output"
)

// Reporter renders Tracker updates as they happen. A command wires one
// Update call per N records and one Complete call at the end; Reporter
// owns deciding how often that turns into an actual printed line.
type Reporter struct {
	mu       sync.Mutex
	out      *output.Writer
	stage    Stage
	lastLine int
}

// NewReporter builds a Reporter writing through out.
func NewReporter(out *output.Writer) *Reporter {
	return &Reporter{out: out}
}

// every controls how often a line is printed; printing one per record
// on a large file would dominate the output.
const every = 1000

// Update renders an in-place progress bar for the current stage,
// throttled to once per `every` records plus always on the final one.
func (r *Reporter) Update(stage Stage, current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = stage
	if current != total && current-r.lastLine < every {
		return
	}
	r.lastLine = current
	r.out.Progress(current, total, stage.String())
}

// Complete prints a final summary line.
func (r *Reporter) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := fmt.Sprintf("Indexed %d records in %s", stats.Records, stats.Duration.Round(10_000_000))
	if stats.Errors > 0 {
		msg += fmt.Sprintf(" (%d errors)", stats.Errors)
	}
	r.out.Success(msg)
}
