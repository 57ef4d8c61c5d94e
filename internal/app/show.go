package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"tradesentry/internal/storage"
	"tradesentry/internal/throttle"
)

type eventLister interface {
	ListRecentEvents(ctx context.Context, limit int) ([]storage.SignalEvent, error)
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Events bool
}

// Show prints throttle snapshots, or the recent audit events with
// --events. Suppressed and blocked signals appear here even though no
// message left the process.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	snapshots, events, closeStores, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	if closeStores != nil {
		defer closeStores()
	}

	if opts.Events {
		return a.showEvents(ctx, events, opts.Limit)
	}
	return a.showSnapshots(ctx, snapshots)
}

func (a *App) showSnapshots(ctx context.Context, store throttle.SnapshotStore) error {
	snaps, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintln(os.Stdout, "no snapshots found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Key\tLast Price\tLast At (UTC)\tFingerprint\tForce\tUpdated")

	for _, snap := range snaps {
		lastAt := "-"
		if !snap.LastAt.IsZero() {
			lastAt = snap.LastAt.UTC().Format(time.RFC3339)
		}
		lastPrice := "-"
		if !snap.LastPrice.IsZero() {
			lastPrice = snap.LastPrice.String()
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%t\t%s\n",
			snap.Key,
			lastPrice,
			lastAt,
			snap.Fingerprint,
			snap.ForceNext,
			snap.UpdatedAt.UTC().Format(time.RFC3339),
		)
	}

	return writer.Flush()
}

func (a *App) showEvents(ctx context.Context, store eventLister, limit int) error {
	events, err := store.ListRecentEvents(ctx, limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(os.Stdout, "no events found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tKey\tPrice\tOutcome\tOrigin\tReason")

	for _, event := range events {
		key := throttle.Key{Symbol: event.Symbol, Strategy: event.Strategy, Side: event.Side}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			event.CreatedAt.UTC().Format(time.RFC3339),
			key,
			event.Price.String(),
			event.Outcome,
			event.Origin,
			sanitizeInline(event.Reason),
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
