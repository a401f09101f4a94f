package run

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tamlil/tamlil/internal/format"
	"github.com/tamlil/tamlil/internal/schedule"
	"github.com/tamlil/tamlil/internal/store"
)

// progressInterval is how often the tracker logs a progress line while
// the run is active.
const progressInterval = 30 * time.Second

var _ schedule.Sink = (*tracker)(nil)

// tracker counts scheduling events and logs periodic progress. All
// counters are atomics; the scheduler calls it from every worker.
type tracker struct {
	log     *slog.Logger
	total   int
	startAt time.Time

	started   atomic.Int64
	completed atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

func newTracker(log *slog.Logger, total int) *tracker {
	return &tracker{log: log, total: total, startAt: time.Now()}
}

func (t *tracker) ChunkStarted(index, attempt int) {
	t.started.Add(1)
	if attempt > 1 {
		t.log.Info("retrying chunk", "chunk", index, "attempt", attempt)
	} else {
		t.log.Debug("chunk started", "chunk", index)
	}
}

func (t *tracker) ChunkResolved(res *store.ChunkResult) {
	switch res.Status {
	case store.StatusCompleted:
		t.completed.Add(1)
	case store.StatusSkipped:
		t.skipped.Add(1)
		t.log.Warn("chunk skipped", "chunk", res.Index, "kind", res.ErrorKind)
	default:
		t.failed.Add(1)
	}
}

// counts snapshots the resolution counters.
func (t *tracker) counts() Counts {
	completed := int(t.completed.Load())
	skipped := int(t.skipped.Load())
	failed := int(t.failed.Load())
	return Counts{
		Total:     t.total,
		Completed: completed,
		Skipped:   skipped,
		Failed:    failed,
		Pending:   t.total - completed - skipped - failed,
	}
}

// logPeriodically emits a progress line every progressInterval until ctx
// is canceled or stop is closed.
func (t *tracker) logPeriodically(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			c := t.counts()
			t.log.Info("progress",
				"completed", c.Completed,
				"skipped", c.Skipped,
				"pending", c.Pending,
				"total", c.Total,
				"elapsed", format.DurationHuman(time.Since(t.startAt)))
		}
	}
}
