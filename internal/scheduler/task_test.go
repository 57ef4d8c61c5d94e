package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tradesentry/internal/clock"
)

func TestTaskRunsOncePerWindow(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 3, 1, 8, 0, 10, 0, time.UTC))
	var runs atomic.Int32
	task := NewTask("report", DailyAt(8, 0, time.Minute), func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, 0, clk, zerolog.Nop())

	ctx := context.Background()
	if !task.RunIfDue(ctx) {
		t.Fatal("first due-check inside the window must run the body")
	}
	if task.RunIfDue(ctx) {
		t.Fatal("second due-check inside the same window must not run")
	}
	if runs.Load() != 1 {
		t.Fatalf("body should have run once, got %d", runs.Load())
	}

	// Next day, same window: a fresh marker fires again.
	clk.Advance(24 * time.Hour)
	if !task.RunIfDue(ctx) {
		t.Fatal("the next day's window must fire again")
	}
	if runs.Load() != 2 {
		t.Fatalf("body should have run twice, got %d", runs.Load())
	}
}

func TestTaskOutsideWindowNeverRuns(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	task := NewTask("report", DailyAt(8, 0, time.Minute), func(ctx context.Context) error {
		t.Fatal("body must not run outside the window")
		return nil
	}, 0, clk, zerolog.Nop())

	if task.RunIfDue(context.Background()) {
		t.Fatal("outside the window RunIfDue must report false")
	}
}

func TestTaskConcurrentDueChecksRunBodyOnce(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 3, 1, 8, 0, 10, 0, time.UTC))
	var runs atomic.Int32
	release := make(chan struct{})
	task := NewTask("report", DailyAt(8, 0, time.Minute), func(ctx context.Context) error {
		runs.Add(1)
		<-release
		return nil
	}, 0, clk, zerolog.Nop())

	const callers = 10
	var wg sync.WaitGroup
	var ran atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if task.RunIfDue(context.Background()) {
				ran.Add(1)
			}
		}()
	}

	// Let the losers drain while the winner is parked inside the body,
	// then release it.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if ran.Load() != 1 {
		t.Fatalf("exactly one caller may run the body, got %d", ran.Load())
	}
	if runs.Load() != 1 {
		t.Fatalf("body entered %d times, want 1", runs.Load())
	}
	if task.Attempts() != 1 {
		t.Fatalf("attempt counter should be 1, got %d", task.Attempts())
	}
}

func TestTaskCooldownAbsorbsRapidRepolls(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	var runs atomic.Int32
	task := NewTask("sweep", Every(time.Minute), func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, 90*time.Second, clk, zerolog.Nop())

	ctx := context.Background()
	if !task.RunIfDue(ctx) {
		t.Fatal("first run must fire")
	}

	// A fresh bucket arrives, but the cooldown has not elapsed yet.
	clk.Advance(time.Minute)
	if task.RunIfDue(ctx) {
		t.Fatal("cooldown must absorb the re-poll")
	}

	clk.Advance(time.Minute)
	if !task.RunIfDue(ctx) {
		t.Fatal("after the cooldown the next bucket fires")
	}
	if runs.Load() != 2 {
		t.Fatalf("expected 2 runs, got %d", runs.Load())
	}
}

func TestTaskClaimsMarkerBeforeBody(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 3, 1, 8, 0, 10, 0, time.UTC))
	var runs atomic.Int32
	task := NewTask("report", DailyAt(8, 0, time.Minute), func(ctx context.Context) error {
		runs.Add(1)
		panic("body crashed")
	}, 0, clk, zerolog.Nop())

	ctx := context.Background()
	if !task.RunIfDue(ctx) {
		t.Fatal("crashing body still counts as a run")
	}
	// The marker was written before the crash: no retry inside the window.
	if task.RunIfDue(ctx) {
		t.Fatal("a crashed body must not fire again in the same window")
	}
	if runs.Load() != 1 {
		t.Fatalf("body entered %d times, want 1", runs.Load())
	}
}

func TestTaskBodyErrorDoesNotRetryWithinWindow(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 3, 1, 8, 0, 10, 0, time.UTC))
	var runs atomic.Int32
	task := NewTask("report", DailyAt(8, 0, time.Minute), func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("downstream unavailable")
	}, 0, clk, zerolog.Nop())

	ctx := context.Background()
	task.RunIfDue(ctx)
	task.RunIfDue(ctx)
	if runs.Load() != 1 {
		t.Fatalf("failing body must not retry inside the window, got %d runs", runs.Load())
	}
}
