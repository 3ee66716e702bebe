// Package prewarm implements the Batch Prewarmer: a background job that
// warms the Cache Fabric for the user's entire ticker universe so the
// first real request of the day never pays a cold-cache upstream call.
package prewarm

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcore/internal/domain"
	"github.com/aristath/marketcore/internal/providers"
	"github.com/aristath/marketcore/internal/router"
)

// minHistoryRows is the minimum number of daily bars required before a
// signal record is derived from a bulk history series.
const minHistoryRows = 60

// Universe is the ticker sets the prewarmer iterates over, derived once
// from the watchlist/holdings repository by the caller.
type Universe struct {
	Signals   []string // excludes cash
	Moat      []string // excludes bond, cash
	ETF       []string // ETF-flagged tickers
	Beta      []string // == Signals
	Equity    []string // categorized as equity (for sector lookups)
	ETFSector []string // == ETF
}

// FearGreedSource computes the composite fear-and-greed index; injected so
// the prewarmer doesn't need to know its sub-component wiring.
type FearGreedSource interface {
	Compute(ctx context.Context) (domain.FearGreed, error)
}

// Investor identifies an institutional investor tracked for filings backfill.
type Investor struct {
	ID string
}

// InvestorSource lists the investors to backfill filings for.
type InvestorSource interface {
	ActiveInvestors(ctx context.Context) ([]Investor, error)
}

// FilingsPersister writes fetched filings and their holdings to storage.
// Injected so the prewarmer's phase 6 does more than discard what it
// fetches; optional (nil disables persistence, leaving only the upstream
// warm-up call).
type FilingsPersister interface {
	SaveFiling(ctx context.Context, f domain.Filing) (int64, error)
	SaveFilingHoldings(ctx context.Context, filingID int64, holdings []domain.FilingHolding) error
}

// SignalDeriver turns a raw price series into a technical signal record.
// Implemented by the scan package's pure computation and injected here to
// avoid a prewarm -> scan dependency in the other direction.
type SignalDeriver func(ticker string, series []domain.PricePoint) (domain.Signal, bool)

// Prewarmer runs the eight-phase warm-up.
type Prewarmer struct {
	router       *router.Router
	fearGreed    FearGreedSource
	investors    InvestorSource
	persister    FilingsPersister
	deriveSignal SignalDeriver
	log          zerolog.Logger

	mu    sync.RWMutex
	ready bool
}

// New constructs a Prewarmer. persister may be nil, in which case phase 6
// only warms the upstream call and derives nothing to store.
func New(r *router.Router, fg FearGreedSource, investors InvestorSource, persister FilingsPersister, deriver SignalDeriver, log zerolog.Logger) *Prewarmer {
	return &Prewarmer{
		router:       r,
		fearGreed:    fg,
		investors:    investors,
		persister:    persister,
		deriveSignal: deriver,
		log:          log.With().Str("component", "prewarmer").Logger(),
	}
}

// Ready reports whether the last Run completed (successfully or with
// per-phase warnings logged). Surfaced on the /prewarm-status endpoint.
func (p *Prewarmer) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready
}

// Run executes all eight phases in order. A failing phase logs a warning
// and does not prevent subsequent phases from running.
func (p *Prewarmer) Run(ctx context.Context, universe Universe) {
	p.mu.Lock()
	p.ready = false
	p.mu.Unlock()

	p.phase1BulkHistory(ctx, universe.Signals)
	p.phase2FearGreed(ctx)
	p.phase3Moat(ctx, universe.Moat)
	p.phase4ETFHoldings(ctx, universe.ETF)
	p.phase5Beta(ctx, universe.Beta)
	p.phase6FilingsBackfill(ctx)
	p.phase7Sector(ctx, universe.Equity)
	p.phase8ETFSectorWeights(ctx, universe.ETFSector)

	p.mu.Lock()
	p.ready = true
	p.mu.Unlock()
	p.log.Info().Msg("prewarm complete")
}

// phase1BulkHistory fetches history for every signals-eligible ticker in a
// single upstream round-trip and derives+caches a signal record per ticker
// with at least minHistoryRows of data.
func (p *Prewarmer) phase1BulkHistory(ctx context.Context, tickers []string) {
	if len(tickers) == 0 {
		return
	}
	to := time.Now()
	from := to.AddDate(-1, 0, 0)

	out := p.router.BulkHistory(ctx, tickers, from, to)
	if out.Status != providers.StatusOK {
		p.log.Warn().Str("reason", out.Reason).Msg("phase 1 bulk history failed")
		return
	}

	for ticker, series := range out.Value {
		if len(series) < minHistoryRows {
			continue
		}
		signal, ok := p.deriveSignal(ticker, series)
		if !ok {
			continue
		}
		p.router.CacheSignal(ticker, signal)
	}
}

func (p *Prewarmer) phase2FearGreed(ctx context.Context) {
	if p.fearGreed == nil {
		return
	}
	if _, err := p.fearGreed.Compute(ctx); err != nil {
		p.log.Warn().Err(err).Msg("phase 2 fear-greed computation failed")
	}
}

func (p *Prewarmer) phase3Moat(ctx context.Context, tickers []string) {
	for _, t := range tickers {
		if out := p.router.Moat(ctx, t); out.Status == providers.StatusDegraded {
			p.log.Warn().Str("ticker", t).Str("reason", out.Reason).Msg("phase 3 moat lookup failed")
		}
	}
}

func (p *Prewarmer) phase4ETFHoldings(ctx context.Context, tickers []string) {
	for _, t := range tickers {
		if out := p.router.ETFHoldings(ctx, t); out.Status == providers.StatusDegraded {
			p.log.Warn().Str("ticker", t).Str("reason", out.Reason).Msg("phase 4 ETF holdings lookup failed")
		}
	}
}

func (p *Prewarmer) phase5Beta(ctx context.Context, tickers []string) {
	for _, t := range tickers {
		if out := p.router.Beta(ctx, t); out.Status == providers.StatusDegraded {
			p.log.Warn().Str("ticker", t).Str("reason", out.Reason).Msg("phase 5 beta lookup failed")
		}
	}
}

func (p *Prewarmer) phase6FilingsBackfill(ctx context.Context) {
	if p.investors == nil {
		return
	}
	investors, err := p.investors.ActiveInvestors(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("phase 6 investor listing failed")
		return
	}
	since := time.Now().AddDate(-5, 0, 0)
	for _, inv := range investors {
		out := p.router.Filings(ctx, inv.ID, since)
		if out.Status == providers.StatusDegraded {
			p.log.Warn().Str("investor", inv.ID).Str("reason", out.Reason).Msg("phase 6 filings backfill failed")
			continue
		}
		for _, filing := range out.Value {
			filingID := filing.ID
			if p.persister != nil {
				savedID, err := p.persister.SaveFiling(ctx, filing)
				if err != nil {
					p.log.Warn().Str("investor", inv.ID).Err(err).Msg("phase 6 filing persist failed")
					continue
				}
				filingID = savedID
			}

			fh := p.router.FilingHoldings(ctx, filing.ID)
			if fh.Status == providers.StatusDegraded {
				p.log.Warn().Int64("filing_id", filing.ID).Str("reason", fh.Reason).Msg("phase 6 filing holdings fetch failed")
				continue
			}
			if p.persister != nil {
				if err := p.persister.SaveFilingHoldings(ctx, filingID, fh.Value); err != nil {
					p.log.Warn().Int64("filing_id", filingID).Err(err).Msg("phase 6 filing holdings persist failed")
				}
			}
		}
	}
}

func (p *Prewarmer) phase7Sector(ctx context.Context, tickers []string) {
	for _, t := range tickers {
		if out := p.router.Sector(ctx, t); out.Status == providers.StatusDegraded {
			p.log.Warn().Str("ticker", t).Str("reason", out.Reason).Msg("phase 7 sector lookup failed")
		}
	}
}

func (p *Prewarmer) phase8ETFSectorWeights(ctx context.Context, tickers []string) {
	for _, t := range tickers {
		if out := p.router.ETFSectorWeights(ctx, t); out.Status == providers.StatusDegraded {
			p.log.Warn().Str("ticker", t).Str("reason", out.Reason).Msg("phase 8 ETF sector weights lookup failed")
		}
	}
}
