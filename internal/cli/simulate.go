package cli

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"tradesentry/internal/app"
)

var (
	simulateSymbol string
	simulateSide   string
	simulatePrice  float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-signal",
	Short: "Push one observation through the throttle pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateSymbol == "" {
			return errors.New("--symbol is required")
		}
		if simulatePrice <= 0 {
			return errors.New("--price must be greater than 0")
		}
		side, err := app.ParseSide(strings.ToUpper(simulateSide))
		if err != nil {
			return err
		}

		price := decimal.NewFromFloat(simulatePrice)
		return getApp().SimulateSignal(cmd.Context(), strings.ToUpper(simulateSymbol), side, price)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSymbol, "symbol", "", "Symbol to simulate, e.g. BTCUSDT")
	simulateCmd.Flags().StringVar(&simulateSide, "side", "BUY", "Signal side (BUY, SELL, or INDEX)")
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 0, "Observed price")
}
