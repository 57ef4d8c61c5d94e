package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"tradesentry/internal/clock"
)

// Options tune the coordinator loop.
type Options struct {
	// PollInterval is the pause between due-check passes.
	PollInterval time.Duration
	// ErrorBackoff is the extra pause after a pass that panicked.
	ErrorBackoff time.Duration
}

// Coordinator drives N independent idempotent tasks from one cooperative
// loop. Each task owns its own mutex and window marker, so re-entering
// the loop, restarting it, or poking a task from another call site can
// never double-fire a job inside its window, and tasks never block each
// other.
type Coordinator struct {
	opts    Options
	tasks   []*Task
	clk     clock.Clock
	logger  zerolog.Logger
	stopped atomic.Bool
}

// NewCoordinator constructs a coordinator over the given tasks.
func NewCoordinator(opts Options, tasks []*Task, clk clock.Clock, logger zerolog.Logger) *Coordinator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = 5 * time.Second
	}
	return &Coordinator{
		opts:   opts,
		tasks:  tasks,
		clk:    clk,
		logger: logger.With().Str("component", "coordinator").Logger(),
	}
}

// Pass runs one due-check over every task. Exposed so diagnostics and
// tests can drive the coordinator without the timing loop.
func (c *Coordinator) Pass(ctx context.Context) {
	for _, task := range c.tasks {
		if ctx.Err() != nil {
			return
		}
		task.RunIfDue(ctx)
	}
}

// Run loops until ctx is cancelled or Stop is called. A failing pass
// sleeps briefly and continues; one bad iteration never halts the other
// jobs.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info().Int("tasks", len(c.tasks)).Msg("coordinator started")
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		if c.stopped.Load() {
			c.logger.Info().Msg("coordinator stopped")
			return nil
		}

		c.safePass(ctx)

		select {
		case <-ctx.Done():
			c.logger.Info().Msg("coordinator context cancelled")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stop requests a graceful stop; the current pass finishes first.
func (c *Coordinator) Stop() {
	c.stopped.Store(true)
}

func (c *Coordinator) safePass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("coordinator pass panicked")
			select {
			case <-ctx.Done():
			case <-time.After(c.opts.ErrorBackoff):
			}
		}
	}()
	c.Pass(ctx)
}

// StartupGuard prevents more than one coordinator loop from being started
// by concurrent callers. The check-and-flip is one atomic unit under a
// single mutex; once started, only observing the previous loop's
// termination (or a process restart) re-arms the guard.
type StartupGuard struct {
	mu      sync.Mutex
	started bool
	done    <-chan struct{}
}

// TryStart invokes launch and records the returned completion handle if
// no loop is currently running. It returns false without side effects
// when a previously launched loop is still alive.
func (g *StartupGuard) TryStart(launch func() <-chan struct{}) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		select {
		case <-g.done:
			// Previous loop terminated; allow a supervised restart.
			g.started = false
		default:
			return false
		}
	}

	g.started = true
	g.done = launch()
	return true
}

// Running reports whether a launched loop is still alive.
func (g *StartupGuard) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started {
		return false
	}
	select {
	case <-g.done:
		return false
	default:
		return true
	}
}
