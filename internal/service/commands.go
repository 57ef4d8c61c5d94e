package service

import (
	"context"
	"fmt"
	"strings"

	"tradesentry/internal/alerting"
	"tradesentry/internal/throttle"
)

// PollCommands drains pending operator commands from the chat channel and
// applies them. Unknown commands are answered, not ignored, so operators
// get feedback for typos.
func (s *Service) PollCommands(ctx context.Context) error {
	if s.commands == nil {
		return nil
	}

	commands, err := s.commands.Poll(ctx)
	if err != nil {
		return fmt.Errorf("poll commands: %w", err)
	}

	for _, command := range commands {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.handleCommand(ctx, command)
	}
	return nil
}

func (s *Service) handleCommand(ctx context.Context, command alerting.Command) {
	switch strings.ToLower(command.Name) {
	case "/reset":
		s.handleReset(ctx, command.Args)
	case "/status":
		s.handleStatus(ctx)
	default:
		_ = s.send(ctx, fmt.Sprintf("Unknown command %s (try /reset or /status)", command.Name))
	}
}

// handleReset clears the throttle reference for a key and arms its force
// flag, so the very next evaluation emits unconditionally.
func (s *Service) handleReset(ctx context.Context, args []string) {
	if len(args) < 3 {
		_ = s.send(ctx, "Usage: /reset SYMBOL STRATEGY BUY|SELL|INDEX")
		return
	}

	key := throttle.Key{
		Symbol:   strings.ToUpper(args[0]),
		Strategy: strings.ToLower(args[1]),
		Side:     throttle.Side(strings.ToUpper(args[2])),
	}
	if key.Side != throttle.SideBuy && key.Side != throttle.SideSell && key.Side != throttle.SideIndex {
		_ = s.send(ctx, fmt.Sprintf("Unknown side %q (BUY, SELL, or INDEX)", args[2]))
		return
	}

	if err := s.snapshots.Reset(ctx, key); err != nil {
		s.logger.Error().Err(err).Str("key", key.String()).Msg("operator reset failed")
		_ = s.send(ctx, fmt.Sprintf("Reset failed for %s: %v", key, err))
		return
	}

	s.logger.Info().Str("key", key.String()).Msg("throttle reset by operator command")
	_ = s.send(ctx, fmt.Sprintf("Throttle reset for %s; next signal will emit unconditionally", key))
}

func (s *Service) handleStatus(ctx context.Context) {
	snaps, err := s.snapshots.List(ctx)
	if err != nil {
		_ = s.send(ctx, fmt.Sprintf("Status unavailable: %v", err))
		return
	}

	builder := strings.Builder{}
	fmt.Fprintf(&builder, "Tracking %d symbols, %d throttle snapshots\n", len(s.cfg.Watchlist.Symbols), len(snaps))
	fmt.Fprintf(&builder, "Origin: %s", s.keeper.Origin())
	_ = s.send(ctx, builder.String())
}
