// Package valuation computes the portfolio's total and per-category value
// for the Snapshot Engine, converting every holding into a single display
// currency through the Provider Router's FX history.
package valuation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcore/internal/domain"
)

// HoldingsSource lists every non-cash holding plus cash balances that make
// up the portfolio. Satisfied by repository.HoldingsRepository.
type HoldingsSource interface {
	EvaluationUniverse(ctx context.Context) ([]domain.Holding, error)
}

// PriceSource resolves a ticker's last close and an FX rate between two
// currencies. Satisfied by *router.Router.
type PriceSource interface {
	Signals(ctx context.Context, ticker string) SignalOutcome
	FXRate(ctx context.Context, base, quote string) (float64, bool)
}

// SignalOutcome is the subset of providers.Outcome[domain.Signal] the
// valuator needs; kept narrow so this package doesn't import providers
// just to read one field.
type SignalOutcome struct {
	OK    bool
	Value domain.Signal
}

// Calculator is the Valuator the Snapshot Engine consumes.
type Calculator struct {
	holdings        HoldingsSource
	prices          PriceSource
	displayCurrency string
	log             zerolog.Logger
}

// New constructs a Calculator that reports totals in displayCurrency.
func New(holdings HoldingsSource, prices PriceSource, displayCurrency string, log zerolog.Logger) *Calculator {
	return &Calculator{
		holdings:        holdings,
		prices:          prices,
		displayCurrency: displayCurrency,
		log:             log.With().Str("component", "valuation").Logger(),
	}
}

// Valuate sums every holding's quantity times last close, converted to the
// display currency, and buckets the result by category. A holding whose
// price or FX rate is unavailable is skipped and logged rather than
// failing the whole valuation.
func (c *Calculator) Valuate(ctx context.Context) (float64, map[domain.Category]float64, string, error) {
	holdings, err := c.holdings.EvaluationUniverse(ctx)
	if err != nil {
		return 0, nil, c.displayCurrency, fmt.Errorf("load evaluation universe: %w", err)
	}

	var total float64
	byCategory := map[domain.Category]float64{}

	for _, h := range holdings {
		value, ok := c.holdingValue(ctx, h)
		if !ok {
			c.log.Warn().Str("ticker", h.Ticker).Msg("skipping holding with no resolvable price or fx rate")
			continue
		}
		total += value
		byCategory[h.Category] += value
	}

	return total, byCategory, c.displayCurrency, nil
}

func (c *Calculator) holdingValue(ctx context.Context, h domain.Holding) (float64, bool) {
	if h.IsCash {
		rate := 1.0
		if h.Currency != "" && h.Currency != c.displayCurrency {
			r, ok := c.prices.FXRate(ctx, h.Currency, c.displayCurrency)
			if !ok {
				return 0, false
			}
			rate = r
		}
		return h.Quantity * rate, true
	}

	signal := c.prices.Signals(ctx, h.Ticker)
	if !signal.OK || signal.Value.LastClose == nil {
		return 0, false
	}

	value := h.Quantity * *signal.Value.LastClose
	if h.Currency != "" && h.Currency != c.displayCurrency {
		rate, ok := c.prices.FXRate(ctx, h.Currency, c.displayCurrency)
		if !ok {
			return 0, false
		}
		value *= rate
	}
	return value, true
}
