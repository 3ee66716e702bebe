package providers

import (
	"context"
	"time"

	"github.com/aristath/marketcore/internal/domain"
)

// Unconfigured is a degraded-by-default implementation of EquitiesProvider,
// FinancialStatementsProvider, and FilingsProvider. It answers every call
// with StatusDegraded so the cache fabric's sentinel negative-caching and
// the breaker's failure accounting behave exactly as they would against a
// real upstream that is down, rather than panicking on a nil provider.
//
// The Provider Router is wired against this until a concrete HTTP client
// for a given upstream (an equities vendor, a JP/TW financial-statements
// source, an EDGAR-style filings feed) is configured in its place.
type Unconfigured struct {
	name string
}

// NewUnconfigured names the upstream this placeholder stands in for, so
// breaker and log output identify which slot is unwired.
func NewUnconfigured(name string) *Unconfigured {
	return &Unconfigured{name: name}
}

func (u *Unconfigured) Name() string { return u.name }

func (u *Unconfigured) degraded() string { return u.name + " has no client configured" }

func (u *Unconfigured) Signals(ctx context.Context, ticker string) Outcome[domain.Signal] {
	return Degraded[domain.Signal](u.degraded())
}

func (u *Unconfigured) History(ctx context.Context, ticker string, from, to time.Time) Outcome[[]domain.PricePoint] {
	return Degraded[[]domain.PricePoint](u.degraded())
}

func (u *Unconfigured) BulkHistory(ctx context.Context, tickers []string, from, to time.Time) Outcome[map[string][]domain.PricePoint] {
	return Degraded[map[string][]domain.PricePoint](u.degraded())
}

func (u *Unconfigured) Moat(ctx context.Context, ticker string) Outcome[domain.Moat] {
	return Degraded[domain.Moat](u.degraded())
}

func (u *Unconfigured) Earnings(ctx context.Context, ticker string) Outcome[EarningsRecord] {
	return Degraded[EarningsRecord](u.degraded())
}

func (u *Unconfigured) Dividend(ctx context.Context, ticker string) Outcome[DividendRecord] {
	return Degraded[DividendRecord](u.degraded())
}

func (u *Unconfigured) Beta(ctx context.Context, ticker string) Outcome[float64] {
	return Degraded[float64](u.degraded())
}

func (u *Unconfigured) Sector(ctx context.Context, ticker string) Outcome[string] {
	return Degraded[string](u.degraded())
}

func (u *Unconfigured) ExchangeRateHistory(ctx context.Context, base, quote string, from, to time.Time) Outcome[[]domain.PricePoint] {
	return Degraded[[]domain.PricePoint](u.degraded())
}

func (u *Unconfigured) ETFSectorWeights(ctx context.Context, ticker string) Outcome[map[string]float64] {
	return Degraded[map[string]float64](u.degraded())
}

func (u *Unconfigured) ETFHoldings(ctx context.Context, ticker string) Outcome[map[string]float64] {
	return Degraded[map[string]float64](u.degraded())
}

func (u *Unconfigured) GrossProfitAndRevenue(ctx context.Context, ticker string) Outcome[GrossProfitRevenue] {
	return Degraded[GrossProfitRevenue](u.degraded())
}

func (u *Unconfigured) ListFilings(ctx context.Context, investorID string, since time.Time) Outcome[[]domain.Filing] {
	return Degraded[[]domain.Filing](u.degraded())
}

func (u *Unconfigured) FilingHoldings(ctx context.Context, filingID int64) Outcome[[]domain.FilingHolding] {
	return Degraded[[]domain.FilingHolding](u.degraded())
}
