package main

import (
	"context"
	"time"

	"github.com/aristath/marketcore/internal/providers"
	"github.com/aristath/marketcore/internal/router"
	"github.com/aristath/marketcore/internal/valuation"
)

// routerPriceSource adapts *router.Router to valuation.PriceSource, narrowing
// providers.Outcome[domain.Signal] to the plain OK/Value shape the valuator
// needs and resolving an FX rate from the router's short FX history.
type routerPriceSource struct {
	router *router.Router
}

func (a *routerPriceSource) Signals(ctx context.Context, ticker string) valuation.SignalOutcome {
	out := a.router.Signals(ctx, ticker)
	return valuation.SignalOutcome{OK: out.Status == providers.StatusOK, Value: out.Value}
}

func (a *routerPriceSource) FXRate(ctx context.Context, base, quote string) (float64, bool) {
	to := time.Now()
	from := to.AddDate(0, 0, -7)
	out := a.router.FXHistoryShort(ctx, base, quote, from, to)
	if out.Status != providers.StatusOK || len(out.Value) == 0 {
		return 0, false
	}
	return out.Value[len(out.Value)-1].Close, true
}
