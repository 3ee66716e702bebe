// Package router implements the Provider Router: given a semantic request
// for one ticker's data, it consults the Cache Fabric, deduplicates
// concurrent misses, observes the per-provider rate limit and circuit
// breaker, calls the right upstream provider (with market-specific
// fallbacks), and writes the resolved result — or its negative sentinel —
// back into both cache tiers.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcore/internal/breaker"
	"github.com/aristath/marketcore/internal/cache"
	"github.com/aristath/marketcore/internal/dedup"
	"github.com/aristath/marketcore/internal/domain"
	"github.com/aristath/marketcore/internal/providers"
	"github.com/aristath/marketcore/internal/ratelimit"
)

const (
	providerPrimary = "primary_equities"
	providerJPFin   = "jp_financials"
	providerTWFin   = "tw_financials"
	providerFilings = "filings"
)

// Router is the Provider Router.
type Router struct {
	fabric   *cache.Fabric
	dedup    *dedup.Coordinator
	limiter  *ratelimit.Limiter
	breakers *breaker.Registry
	log      zerolog.Logger

	primary  providers.EquitiesProvider
	jpFinSta providers.FinancialStatementsProvider // optional
	twFinSta providers.FinancialStatementsProvider // optional
	filings  providers.FilingsProvider             // optional
}

// New constructs a Router. jpFinancials, twFinancials, and filings may be
// nil when the corresponding provider credential is not configured.
func New(
	fabric *cache.Fabric,
	dedupCoord *dedup.Coordinator,
	limiter *ratelimit.Limiter,
	breakers *breaker.Registry,
	primary providers.EquitiesProvider,
	jpFinancials, twFinancials providers.FinancialStatementsProvider,
	filings providers.FilingsProvider,
	log zerolog.Logger,
) *Router {
	return &Router{
		fabric:   fabric,
		dedup:    dedupCoord,
		limiter:  limiter,
		breakers: breakers,
		primary:  primary,
		jpFinSta: jpFinancials,
		twFinSta: twFinancials,
		filings:  filings,
		log:      log.With().Str("component", "provider_router").Logger(),
	}
}

// fetchThrough is the shared cache-then-dedup-then-fetch path for every
// capability. A cache Present hit decodes and returns OK. A Sentinel hit
// returns NotFound without touching the provider. An Absent result runs
// fetch under the dedup coordinator, rate limiter, and breaker, and writes
// the outcome back to both cache tiers (OK as a value, NotFound as a
// sentinel; Degraded is never cached).
func fetchThrough[T any](ctx context.Context, r *Router, key, providerName string, fetch func(ctx context.Context) providers.Outcome[T]) providers.Outcome[T] {
	switch res := r.fabric.Get(key); res.State {
	case cache.Present:
		var v T
		if err := cache.Decode(res.Value, &v); err != nil {
			r.log.Warn().Err(err).Str("key", key).Msg("cache value decode failed, treating as miss")
			break
		}
		return providers.OK(v)
	case cache.Sentinel:
		return providers.NotFound[T]()
	}

	raw, err := r.dedup.Do(key, func() ([]byte, error) {
		if !r.breakers.Allow(providerName) {
			return nil, fmt.Errorf("circuit open for provider %s", providerName)
		}
		if err := r.limiter.Wait(ctx, providerName); err != nil {
			return nil, err
		}

		outcome := fetch(ctx)

		switch outcome.Status {
		case providers.StatusOK:
			r.breakers.RecordSuccess(providerName)
			encoded, encErr := cache.Encode(outcome.Value)
			if encErr != nil {
				return nil, encErr
			}
			r.fabric.Put(key, encoded)
			return encoded, nil
		case providers.StatusNotFound:
			r.breakers.RecordSuccess(providerName)
			r.fabric.PutSentinel(key, providerName+"_not_found")
			return nil, errNotFound
		default: // StatusDegraded
			r.breakers.RecordFailure(providerName)
			return nil, fmt.Errorf("%s degraded: %s", providerName, outcome.Reason)
		}
	})

	if err == errNotFound {
		return providers.NotFound[T]()
	}
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Str("provider", providerName).Msg("upstream fetch failed")
		return providers.Degraded[T](err.Error())
	}

	var v T
	if decErr := cache.Decode(raw, &v); decErr != nil {
		return providers.Degraded[T](decErr.Error())
	}
	return providers.OK(v)
}

var errNotFound = errors.New("not found")

func signalsKey(ticker string) string { return cache.NamespaceSignals + ":" + ticker }
func moatKey(ticker string) string    { return cache.NamespaceMoat + ":" + ticker }
func sectorKey(ticker string) string  { return cache.NamespaceSector + ":" + ticker }
func betaKey(ticker string) string    { return cache.NamespaceBeta + ":" + ticker }
func earningsKey(ticker string) string { return cache.NamespaceEarnings + ":" + ticker }
func dividendKey(ticker string) string { return cache.NamespaceDividend + ":" + ticker }
func etfHoldingsKey(ticker string) string { return cache.NamespaceETFHoldings + ":" + ticker }
func etfSectorKey(ticker string) string   { return cache.NamespaceETFSector + ":" + ticker }
func fxKey(namespace, base, quote string) string { return namespace + ":" + base + ":" + quote }

// Signals returns the cached-or-fetched technical signal record for ticker.
func (r *Router) Signals(ctx context.Context, ticker string) providers.Outcome[domain.Signal] {
	return fetchThrough(ctx, r, signalsKey(ticker), providerPrimary, func(ctx context.Context) providers.Outcome[domain.Signal] {
		return r.primary.Signals(ctx, ticker)
	})
}

// Moat returns the margin-trend record for ticker, falling back to a
// market-specific financial-statements provider when the primary reports
// NOT_AVAILABLE and the fallback is configured and healthy.
func (r *Router) Moat(ctx context.Context, ticker string) providers.Outcome[domain.Moat] {
	out := fetchThrough(ctx, r, moatKey(ticker), providerPrimary, func(ctx context.Context) providers.Outcome[domain.Moat] {
		return r.primary.Moat(ctx, ticker)
	})

	if out.Status != providers.StatusOK || out.Value.Status != domain.MoatNotAvailable {
		return out
	}

	market := InferMarket(ticker)
	var fallback providers.FinancialStatementsProvider
	var fallbackName string
	switch market {
	case domain.MarketJP:
		fallback, fallbackName = r.jpFinSta, providerJPFin
	case domain.MarketTW:
		fallback, fallbackName = r.twFinSta, providerTWFin
	}
	if fallback == nil || !r.breakers.Allow(fallbackName) {
		return out
	}

	if err := r.limiter.Wait(ctx, fallbackName); err != nil {
		return out
	}
	gpr := fallback.GrossProfitAndRevenue(ctx, ticker)
	if gpr.Status != providers.StatusOK {
		r.breakers.RecordFailure(fallbackName)
		return out
	}
	r.breakers.RecordSuccess(fallbackName)

	if gpr.Value.Revenue == 0 {
		return out
	}
	margin := gpr.Value.GrossProfit / gpr.Value.Revenue * 100
	moat := domain.Moat{
		Ticker:           ticker,
		CurrentMarginPct: &margin,
		SourceProvider:   fallbackName,
	}
	moat.Status = domain.MoatStable // recomputed single-point margin has no prior-year comparison here
	return providers.OK(moat)
}

// Sector returns the GICS-normalized sector label for ticker.
func (r *Router) Sector(ctx context.Context, ticker string) providers.Outcome[string] {
	out := fetchThrough(ctx, r, sectorKey(ticker), providerPrimary, func(ctx context.Context) providers.Outcome[string] {
		return r.primary.Sector(ctx, ticker)
	})
	if out.Status == providers.StatusOK {
		out.Value = domain.NormalizeSector(out.Value)
	}
	return out
}

// Beta returns the cached-or-fetched beta coefficient for ticker.
func (r *Router) Beta(ctx context.Context, ticker string) providers.Outcome[float64] {
	return fetchThrough(ctx, r, betaKey(ticker), providerPrimary, func(ctx context.Context) providers.Outcome[float64] {
		return r.primary.Beta(ctx, ticker)
	})
}

// Earnings returns the cached-or-fetched earnings summary for ticker.
func (r *Router) Earnings(ctx context.Context, ticker string) providers.Outcome[providers.EarningsRecord] {
	return fetchThrough(ctx, r, earningsKey(ticker), providerPrimary, func(ctx context.Context) providers.Outcome[providers.EarningsRecord] {
		return r.primary.Earnings(ctx, ticker)
	})
}

// Dividend returns the cached-or-fetched dividend summary for ticker.
func (r *Router) Dividend(ctx context.Context, ticker string) providers.Outcome[providers.DividendRecord] {
	return fetchThrough(ctx, r, dividendKey(ticker), providerPrimary, func(ctx context.Context) providers.Outcome[providers.DividendRecord] {
		return r.primary.Dividend(ctx, ticker)
	})
}

// ETFHoldings returns the cached-or-fetched constituent weights for an ETF.
func (r *Router) ETFHoldings(ctx context.Context, ticker string) providers.Outcome[map[string]float64] {
	return fetchThrough(ctx, r, etfHoldingsKey(ticker), providerPrimary, func(ctx context.Context) providers.Outcome[map[string]float64] {
		return r.primary.ETFHoldings(ctx, ticker)
	})
}

// ETFSectorWeights returns the cached-or-fetched sector-weight breakdown
// for an ETF, normalizing the provider's mapping to canonical GICS labels.
func (r *Router) ETFSectorWeights(ctx context.Context, ticker string) providers.Outcome[map[string]float64] {
	out := fetchThrough(ctx, r, etfSectorKey(ticker), providerPrimary, func(ctx context.Context) providers.Outcome[map[string]float64] {
		return r.primary.ETFSectorWeights(ctx, ticker)
	})
	if out.Status != providers.StatusOK {
		return out
	}
	normalized := make(map[string]float64, len(out.Value))
	for k, v := range out.Value {
		normalized[domain.NormalizeSector(k)] += v
	}
	out.Value = normalized
	return out
}

// FXHistoryShort returns ~short-window FX closes for (base, quote).
func (r *Router) FXHistoryShort(ctx context.Context, base, quote string, from, to time.Time) providers.Outcome[[]domain.PricePoint] {
	key := fxKey(cache.NamespaceFXShort, base, quote)
	return fetchThrough(ctx, r, key, providerPrimary, func(ctx context.Context) providers.Outcome[[]domain.PricePoint] {
		return r.primary.ExchangeRateHistory(ctx, base, quote, from, to)
	})
}

// FXHistoryLong returns ~3-month FX closes for (base, quote).
func (r *Router) FXHistoryLong(ctx context.Context, base, quote string, from, to time.Time) providers.Outcome[[]domain.PricePoint] {
	key := fxKey(cache.NamespaceFXLong, base, quote)
	return fetchThrough(ctx, r, key, providerPrimary, func(ctx context.Context) providers.Outcome[[]domain.PricePoint] {
		return r.primary.ExchangeRateHistory(ctx, base, quote, from, to)
	})
}

// History returns daily price history for ticker over [from, to], bypassing
// the cache fabric: history ranges are caller-specific and not a good fit
// for a fixed-TTL single key.
func (r *Router) History(ctx context.Context, ticker string, from, to time.Time) providers.Outcome[[]domain.PricePoint] {
	if !r.breakers.Allow(providerPrimary) {
		return providers.Degraded[[]domain.PricePoint]("circuit open")
	}
	if err := r.limiter.Wait(ctx, providerPrimary); err != nil {
		return providers.Degraded[[]domain.PricePoint](err.Error())
	}
	out := r.primary.History(ctx, ticker, from, to)
	if out.Status == providers.StatusDegraded {
		r.breakers.RecordFailure(providerPrimary)
	} else {
		r.breakers.RecordSuccess(providerPrimary)
	}
	return out
}

// BulkHistory is the Batch Prewarmer's Phase 1 optimization: one upstream
// round-trip for every ticker in tickers instead of one per ticker.
func (r *Router) BulkHistory(ctx context.Context, tickers []string, from, to time.Time) providers.Outcome[map[string][]domain.PricePoint] {
	if !r.breakers.Allow(providerPrimary) {
		return providers.Degraded[map[string][]domain.PricePoint]("circuit open")
	}
	if err := r.limiter.Wait(ctx, providerPrimary); err != nil {
		return providers.Degraded[map[string][]domain.PricePoint](err.Error())
	}
	out := r.primary.BulkHistory(ctx, tickers, from, to)
	if out.Status == providers.StatusDegraded {
		r.breakers.RecordFailure(providerPrimary)
	} else {
		r.breakers.RecordSuccess(providerPrimary)
	}
	return out
}

// Filings lists an investor's disclosures since a cutoff date, observing
// the filings provider's own stricter rate limit.
func (r *Router) Filings(ctx context.Context, investorID string, since time.Time) providers.Outcome[[]domain.Filing] {
	if r.filings == nil {
		return providers.Degraded[[]domain.Filing]("filings provider not configured")
	}
	if !r.breakers.Allow(providerFilings) {
		return providers.Degraded[[]domain.Filing]("circuit open")
	}
	if err := r.limiter.Wait(ctx, providerFilings); err != nil {
		return providers.Degraded[[]domain.Filing](err.Error())
	}
	out := r.filings.ListFilings(ctx, investorID, since)
	if out.Status == providers.StatusDegraded {
		r.breakers.RecordFailure(providerFilings)
	} else {
		r.breakers.RecordSuccess(providerFilings)
	}
	return out
}

// FilingHoldings lists the positions disclosed in one filing.
func (r *Router) FilingHoldings(ctx context.Context, filingID int64) providers.Outcome[[]domain.FilingHolding] {
	if r.filings == nil {
		return providers.Degraded[[]domain.FilingHolding]("filings provider not configured")
	}
	if !r.breakers.Allow(providerFilings) {
		return providers.Degraded[[]domain.FilingHolding]("circuit open")
	}
	if err := r.limiter.Wait(ctx, providerFilings); err != nil {
		return providers.Degraded[[]domain.FilingHolding](err.Error())
	}
	out := r.filings.FilingHoldings(ctx, filingID)
	if out.Status == providers.StatusDegraded {
		r.breakers.RecordFailure(providerFilings)
	} else {
		r.breakers.RecordSuccess(providerFilings)
	}
	return out
}

// CacheSignal writes a signal record computed locally from a bulk history
// fetch directly into both cache tiers, without going through the provider
// round-trip fetchThrough would otherwise perform. Used by the Batch
// Prewarmer's Phase 1 to populate N signals from a single upstream call.
func (r *Router) CacheSignal(ticker string, signal domain.Signal) {
	encoded, err := cache.Encode(signal)
	if err != nil {
		r.log.Warn().Err(err).Str("ticker", ticker).Msg("failed to encode prewarmed signal")
		return
	}
	r.fabric.Put(signalsKey(ticker), encoded)
}

// InvalidateTicker clears every namespace's cache entry for ticker,
// forcing the next lookup of any kind to hit the provider again.
func (r *Router) InvalidateTicker(ticker string) {
	for _, ns := range []string{
		cache.NamespaceSignals, cache.NamespaceMoat, cache.NamespaceSector,
		cache.NamespaceETFHoldings, cache.NamespaceETFSector, cache.NamespaceBeta,
		cache.NamespaceEarnings, cache.NamespaceDividend,
	} {
		r.fabric.Invalidate(ns + ":" + ticker)
	}
}
