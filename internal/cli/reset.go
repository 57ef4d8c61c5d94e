package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"tradesentry/internal/app"
	"tradesentry/internal/throttle"
)

var resetReason string

var resetCmd = &cobra.Command{
	Use:   "reset SYMBOL STRATEGY SIDE",
	Short: "Clear a throttle snapshot and force the next emission",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		side, err := app.ParseSide(strings.ToUpper(args[2]))
		if err != nil {
			return err
		}
		if resetReason == "" {
			return errors.New("--reason is required")
		}

		key := throttle.Key{
			Symbol:   strings.ToUpper(args[0]),
			Strategy: strings.ToLower(args[1]),
			Side:     side,
		}
		return getApp().ResetSnapshot(cmd.Context(), key, resetReason)
	},
}

func init() {
	resetCmd.Flags().StringVar(&resetReason, "reason", "", "Why the throttle is being reset (recorded in logs)")
}
