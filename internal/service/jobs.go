package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradesentry/internal/config"
	"tradesentry/internal/scheduler"
	"tradesentry/internal/storage"
)

// Job names, used as identity in logs and metrics.
const (
	JobSweep           = "watchlist_sweep"
	JobDailyReport     = "daily_report"
	JobNightlyCheck    = "nightly_consistency_check"
	JobHourlyReconcile = "hourly_reconciliation"
	JobSnapshotRefresh = "snapshot_refresh"
	JobCommandPoll     = "command_poll"
)

// Tasks builds the full periodic job set from configuration. Each job is
// one idempotent task with its own window and mutex; the coordinator
// drives them all from a single loop.
func (s *Service) Tasks() []*scheduler.Task {
	jobs := s.cfg.Jobs

	dailyHour, dailyMinute, _ := config.ParseClockTime(jobs.DailyReportAt)
	nightHour, nightMinute, _ := config.ParseClockTime(jobs.NightlyCheckAt)

	return []*scheduler.Task{
		scheduler.NewTask(JobSweep, scheduler.Every(jobs.SweepInterval), s.SweepWatchlist, 0, s.clk, s.logger),
		scheduler.NewTask(JobCommandPoll, scheduler.Every(jobs.CommandPollInterval), s.PollCommands, 0, s.clk, s.logger),
		scheduler.NewTask(JobSnapshotRefresh, scheduler.Every(jobs.SnapshotRefreshInterval), s.RefreshSnapshotCache, 0, s.clk, s.logger),
		scheduler.NewTask(JobHourlyReconcile, scheduler.HourlyAt(jobs.ReconcileMinute, jobs.Tolerance), s.HourlyReconcile, jobs.Cooldown, s.clk, s.logger),
		scheduler.NewTask(JobDailyReport, scheduler.DailyAt(dailyHour, dailyMinute, jobs.Tolerance), s.DailyReport, jobs.Cooldown, s.clk, s.logger),
		scheduler.NewTask(JobNightlyCheck, scheduler.DailyAt(nightHour, nightMinute, jobs.Tolerance), s.NightlyCheck, jobs.Cooldown, s.clk, s.logger),
	}
}

// DailyReport summarises the last 24h of pipeline outcomes and delivers
// the summary through the gated notifier.
func (s *Service) DailyReport(ctx context.Context) error {
	if s.events == nil {
		return nil
	}

	counts, err := s.events.CountEventsByOutcome(ctx, s.timeSince(24*time.Hour))
	if err != nil {
		return fmt.Errorf("daily report: %w", err)
	}

	builder := strings.Builder{}
	builder.WriteString("Daily signal report\n")
	fmt.Fprintf(&builder, "Delivered: %d\n", counts[storage.OutcomeDelivered])
	fmt.Fprintf(&builder, "Throttled: %d\n", counts[storage.OutcomeDenied])
	fmt.Fprintf(&builder, "Blocked: %d\n", counts[storage.OutcomeBlocked])
	fmt.Fprintf(&builder, "Failed: %d", counts[storage.OutcomeFailed])

	return s.send(ctx, builder.String())
}

// NightlyCheck scans stored snapshots for impossible states: reference
// timestamps in the future, or a committed price of zero without an armed
// force flag. Findings are logged, not repaired; the operator decides.
func (s *Service) NightlyCheck(ctx context.Context) error {
	snaps, err := s.snapshots.List(ctx)
	if err != nil {
		return fmt.Errorf("nightly check: %w", err)
	}

	now := s.clk.Now()
	var findings int
	for _, snap := range snaps {
		switch {
		case snap.LastAt.After(now):
			findings++
			s.logger.Warn().Str("key", snap.Key.String()).Time("last_at", snap.LastAt).Msg("snapshot timestamp is in the future")
		case !snap.LastAt.IsZero() && snap.LastPrice.IsZero() && !snap.ForceNext:
			findings++
			s.logger.Warn().Str("key", snap.Key.String()).Msg("snapshot has timestamp but no reference price")
		}
	}

	s.logger.Info().Int("snapshots", len(snaps)).Int("findings", findings).Msg("nightly consistency check finished")
	return nil
}

// HourlyReconcile prunes audit events past the retention window and
// refreshes the in-memory diagnostics view.
func (s *Service) HourlyReconcile(ctx context.Context) error {
	if s.events != nil && s.cfg.Jobs.EventRetention > 0 {
		removed, err := s.events.DeleteEventsBefore(ctx, s.timeSince(s.cfg.Jobs.EventRetention))
		if err != nil {
			return fmt.Errorf("hourly reconcile: %w", err)
		}
		if removed > 0 {
			s.logger.Info().Int64("removed", removed).Msg("pruned expired signal events")
		}
	}
	return s.RefreshSnapshotCache(ctx)
}
