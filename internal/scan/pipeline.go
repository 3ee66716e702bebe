// Package scan implements the three-layer Scan Pipeline: market-sentiment
// breadth, composite fear-and-greed, and bounded-worker-pool per-ticker
// evaluation, gated so at most one scan runs at a time.
package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcore/internal/domain"
	"github.com/aristath/marketcore/internal/notify"
	"github.com/aristath/marketcore/internal/providers"
	"github.com/aristath/marketcore/internal/router"
)

// ErrScanInProgress is returned when a scan is requested while one is
// already running; callers translate this to a 409-equivalent response.
var ErrScanInProgress = errors.New("a scan is already in progress")

// TickerRepository is the subset of the Holding/watchlist repository the
// scan pipeline needs: the universe to evaluate and persistence of results.
type TickerRepository interface {
	TrendSetterTickers(ctx context.Context) ([]string, error)
	EvaluationUniverse(ctx context.Context) ([]domain.Holding, error)
	LastSignal(ctx context.Context, ticker string) (domain.ScanSignal, bool, error)
	SaveScanLog(ctx context.Context, entry domain.ScanLogEntry) error
}

// FearGreedSource computes the composite fear-and-greed index.
type FearGreedSource interface {
	Compute(ctx context.Context) (domain.FearGreed, error)
}

// Result is the outcome of one completed scan.
type Result struct {
	MarketBreadth MarketBreadth
	FearGreed     domain.FearGreed
	Entries       []domain.ScanLogEntry
	ChangedCount  int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Pipeline orchestrates one end-to-end scan.
type Pipeline struct {
	router    *router.Router
	repo      TickerRepository
	fearGreed FearGreedSource
	notifier  *notify.Gate
	log       zerolog.Logger

	mu      sync.Mutex
	running bool

	lastResult *Result
	lastMu     sync.RWMutex
}

// New constructs a Pipeline.
func New(r *router.Router, repo TickerRepository, fg FearGreedSource, notifier *notify.Gate, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		router:    r,
		repo:      repo,
		fearGreed: fg,
		notifier:  notifier,
		log:       log.With().Str("component", "scan_pipeline").Logger(),
	}
}

// IsRunning reports whether a scan is currently executing.
func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// LastResult returns the most recently completed scan, if any.
func (p *Pipeline) LastResult() (Result, bool) {
	p.lastMu.RLock()
	defer p.lastMu.RUnlock()
	if p.lastResult == nil {
		return Result{}, false
	}
	return *p.lastResult, true
}

// Run executes one full scan. It returns ErrScanInProgress immediately
// (without blocking) if another scan is already running.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return Result{}, ErrScanInProgress
	}
	p.running = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	result := Result{StartedAt: time.Now()}

	result.MarketBreadth = p.computeMarketBreadth(ctx)

	if p.fearGreed != nil {
		fg, err := p.fearGreed.Compute(ctx)
		if err != nil {
			p.log.Warn().Err(err).Msg("fear-greed computation failed")
		} else {
			result.FearGreed = fg
		}
	}

	holdings, err := p.repo.EvaluationUniverse(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("failed to load evaluation universe")
	}

	tickers := make([]string, 0, len(holdings))
	byTicker := make(map[string]domain.Holding, len(holdings))
	for _, h := range holdings {
		if h.IsCash {
			continue
		}
		tickers = append(tickers, h.Ticker)
		byTicker[h.Ticker] = h
	}

	pool := NewWorkerPool(defaultWorkers)
	entries := pool.EvaluateBatch(tickers, func(ticker string) TickerResult {
		return p.evaluateTicker(ctx, byTicker[ticker], result.MarketBreadth, result.FearGreed)
	})

	changed := make([]domain.ScanLogEntry, 0, len(entries))
	for _, tr := range entries {
		if !tr.OK {
			continue
		}
		entry := tr.Entry
		if err := p.repo.SaveScanLog(ctx, entry); err != nil {
			p.log.Warn().Err(err).Str("ticker", entry.Ticker).Msg("failed to persist scan log entry")
		}
		result.Entries = append(result.Entries, entry)

		prev, hadPrev, _ := p.repo.LastSignal(ctx, entry.Ticker)
		if !hadPrev || prev != entry.Signal {
			changed = append(changed, entry)
		}
	}
	result.ChangedCount = len(changed)

	if p.notifier != nil && len(changed) > 0 {
		if err := p.notifier.Send(ctx, domain.CategoryScan, formatScanDigest(changed)); err != nil {
			p.log.Warn().Err(err).Msg("scan digest notification failed")
		}
	}

	result.FinishedAt = time.Now()
	p.lastMu.Lock()
	p.lastResult = &result
	p.lastMu.Unlock()

	return result, nil
}

// TickerResult is one worker's outcome; OK is false when the ticker had to
// be skipped (e.g. category excludes it, or every upstream lookup degraded).
type TickerResult struct {
	Entry domain.ScanLogEntry
	OK    bool
}

func (p *Pipeline) evaluateTicker(ctx context.Context, h domain.Holding, breadth MarketBreadth, fg domain.FearGreed) TickerResult {
	if h.Ticker == "" {
		return TickerResult{}
	}

	var moatStatus domain.MoatStatus = domain.MoatNotAvailable
	if h.Category != domain.CategoryBond && h.Category != domain.CategoryCash {
		if out := p.router.Moat(ctx, h.Ticker); out.Status == providers.StatusOK {
			moatStatus = out.Value.Status
		}
	}

	sigOut := p.router.Signals(ctx, h.Ticker)
	var bias, rsi, volumeRatio *float64
	var biasPercentile *float64
	if sigOut.Status == providers.StatusOK {
		bias = sigOut.Value.BiasPct
		rsi = sigOut.Value.RSI14
		volumeRatio = sigOut.Value.VolumeRatio
	}

	signal := DetermineScanSignal(h.Category, moatStatus, bias, rsi, biasPercentile, volumeRatio)

	var changePct *float64
	if sigOut.Status == providers.StatusOK {
		changePct = sigOut.Value.ChangePct
	}
	rogue := IsRogueWave(changePct, volumeRatio)

	entry := domain.ScanLogEntry{
		Ticker:              h.Ticker,
		Signal:              signal,
		MarketStatus:        breadth.Status,
		MarketStatusDetails: breadth.Details,
		RogueWave:           rogue,
		ScannedAt:           time.Now(),
	}
	return TickerResult{Entry: entry, OK: true}
}

func (p *Pipeline) computeMarketBreadth(ctx context.Context) MarketBreadth {
	trendSetters, err := p.repo.TrendSetterTickers(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("failed to load trend-setter tickers")
		return MarketBreadth{Status: domain.StatusNeutral}
	}

	quotes := make([]TrendSetterQuote, 0, len(trendSetters))
	for _, t := range trendSetters {
		out := p.router.Signals(ctx, t)
		if out.Status != providers.StatusOK || out.Value.LastClose == nil {
			continue
		}
		quotes = append(quotes, TrendSetterQuote{Ticker: t, LastClose: *out.Value.LastClose, MA60: out.Value.MA60})
	}
	return ComputeMarketBreadth(quotes)
}

func formatScanDigest(changed []domain.ScanLogEntry) string {
	if len(changed) == 0 {
		return ""
	}
	msg := "Scan signal changes:\n"
	for _, e := range changed {
		msg += "- " + e.Ticker + ": " + string(e.Signal) + "\n"
	}
	return msg
}
