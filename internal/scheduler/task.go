package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"tradesentry/internal/clock"
	"tradesentry/internal/metrics"
)

// BodyFunc is a job body. Errors are logged at the task boundary and
// never propagate to the coordinator loop.
type BodyFunc func(ctx context.Context) error

// Task wraps a job body so it executes at most once per window marker,
// regardless of how many callers poll its due-check concurrently. The
// marker is written before the body runs: a slow or crashing body cannot
// cause a second firing inside the same window, and there is no retry
// within a window (crash-resistant idempotency over retry storms). After
// the body returns, a short cooldown absorbs duplicate due-checks from
// rapid re-polling.
type Task struct {
	name     string
	window   WindowFunc
	body     BodyFunc
	cooldown time.Duration
	clk      clock.Clock
	logger   zerolog.Logger

	mu           sync.Mutex
	lastMarker   string
	lastFinished time.Time
	attempts     atomic.Uint64
}

// NewTask builds a guarded periodic task.
func NewTask(name string, window WindowFunc, body BodyFunc, cooldown time.Duration, clk clock.Clock, logger zerolog.Logger) *Task {
	return &Task{
		name:     name,
		window:   window,
		body:     body,
		cooldown: cooldown,
		clk:      clk,
		logger:   logger.With().Str("component", "scheduler").Str("job", name).Logger(),
	}
}

// Name returns the job identity used in logs and metrics.
func (t *Task) Name() string { return t.name }

// Attempts reports how many times the body has been entered.
func (t *Task) Attempts() uint64 { return t.attempts.Load() }

// RunIfDue executes the body when the current window is due and not yet
// consumed. It returns true only when the body actually ran. A caller
// arriving while another holds the task mutex skips immediately; the
// winner has already claimed the marker.
func (t *Task) RunIfDue(ctx context.Context) bool {
	now := t.clk.Now()
	marker, due := t.window(now)
	if !due {
		return false
	}

	if !t.mu.TryLock() {
		return false
	}
	defer t.mu.Unlock()

	if t.lastMarker == marker {
		return false
	}
	if !t.lastFinished.IsZero() && now.Sub(t.lastFinished) < t.cooldown {
		return false
	}

	// Claim the window before any blocking work.
	t.lastMarker = marker
	t.attempts.Add(1)
	metrics.IncJobRun(t.name)

	t.invoke(ctx, marker)
	t.lastFinished = t.clk.Now()
	return true
}

func (t *Task) invoke(ctx context.Context, marker string) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncJobError(t.name)
			t.logger.Error().Str("marker", marker).Err(fmt.Errorf("panic: %v", r)).Msg("job body panicked")
		}
	}()

	t.logger.Debug().Str("marker", marker).Msg("executing job")
	if err := t.body(ctx); err != nil {
		metrics.IncJobError(t.name)
		t.logger.Error().Str("marker", marker).Err(err).Msg("job execution failed")
		return
	}
	t.logger.Debug().Str("marker", marker).Msg("job completed")
}
