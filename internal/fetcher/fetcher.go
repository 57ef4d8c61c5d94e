package fetcher

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceFetcher retrieves the current spot price for a symbol.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}
