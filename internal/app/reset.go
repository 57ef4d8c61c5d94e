package app

import (
	"context"

	"tradesentry/internal/throttle"
)

// ResetSnapshot clears the throttle reference for one key and arms its
// force flag atomically, so the next evaluation emits unconditionally.
// Used when an operator changes alert configuration out of band.
func (a *App) ResetSnapshot(ctx context.Context, key throttle.Key, reason string) error {
	snapshots, _, closeStores, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	if closeStores != nil {
		defer closeStores()
	}

	if err := snapshots.Reset(ctx, key); err != nil {
		return err
	}

	a.Logger.Info().Str("key", key.String()).Str("reason", reason).Msg("throttle snapshot reset")
	return nil
}
