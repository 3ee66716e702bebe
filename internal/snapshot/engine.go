// Package snapshot implements the Snapshot Engine: one portfolio
// valuation per calendar date, benchmark index backfill, and
// time-weighted return over a date range.
package snapshot

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcore/internal/clock"
	"github.com/aristath/marketcore/internal/domain"
	"github.com/aristath/marketcore/internal/providers"
	"github.com/aristath/marketcore/internal/router"
)

// Valuator computes the current portfolio total and per-category split.
// It is an external collaborator (the rebalancing calculator) the engine
// merely consumes.
type Valuator interface {
	Valuate(ctx context.Context) (totalValue float64, categoryValues map[domain.Category]float64, displayCurrency string, err error)
}

// Repository persists and reads snapshots.
type Repository interface {
	Upsert(ctx context.Context, s domain.PortfolioSnapshot) error
	InDateRange(ctx context.Context, from, to time.Time) ([]domain.PortfolioSnapshot, error)
	NeedingBenchmarkBackfill(ctx context.Context) ([]domain.PortfolioSnapshot, error)
}

// Engine is the Snapshot Engine.
type Engine struct {
	router     *router.Router
	valuator   Valuator
	repo       Repository
	benchmarks []string
	clk        clock.Clock
	log        zerolog.Logger
}

// New constructs an Engine. benchmarks is the fixed list of benchmark
// tickers (e.g. US broad, world, Japan, Taiwan) backfilled on every
// snapshot.
func New(r *router.Router, valuator Valuator, repo Repository, benchmarks []string, clk clock.Clock, log zerolog.Logger) *Engine {
	return &Engine{
		router:     r,
		valuator:   valuator,
		repo:       repo,
		benchmarks: benchmarks,
		clk:        clk,
		log:        log.With().Str("component", "snapshot_engine").Logger(),
	}
}

// TakeDaily records today's portfolio valuation plus each benchmark's
// latest close, upserting on today's calendar date.
func (e *Engine) TakeDaily(ctx context.Context) (domain.PortfolioSnapshot, error) {
	total, categoryValues, currency, err := e.valuator.Valuate(ctx)
	if err != nil {
		return domain.PortfolioSnapshot{}, err
	}

	benchmarkValues := make(map[string]*float64, len(e.benchmarks))
	for _, b := range e.benchmarks {
		out := e.router.Signals(ctx, b)
		if out.Status == providers.StatusOK && out.Value.LastClose != nil {
			benchmarkValues[b] = out.Value.LastClose
		} else {
			benchmarkValues[b] = nil
		}
	}

	today := truncateToDate(e.clk.Now())
	snap := domain.PortfolioSnapshot{
		Date:            today,
		TotalValue:      total,
		CategoryValues:  categoryValues,
		DisplayCurrency: currency,
		BenchmarkValues: benchmarkValues,
	}

	if err := e.repo.Upsert(ctx, snap); err != nil {
		return domain.PortfolioSnapshot{}, err
	}
	return snap, nil
}

// BackfillBenchmarks scans existing snapshots missing benchmark data,
// fetches each benchmark's full history once over the snapshot date
// range, and as-of joins each snapshot date to the most recent prior
// trading day's close.
func (e *Engine) BackfillBenchmarks(ctx context.Context) (int, error) {
	snapshots, err := e.repo.NeedingBenchmarkBackfill(ctx)
	if err != nil {
		return 0, err
	}
	if len(snapshots) == 0 {
		return 0, nil
	}

	minDate, maxDate := snapshots[0].Date, snapshots[0].Date
	for _, s := range snapshots[1:] {
		if s.Date.Before(minDate) {
			minDate = s.Date
		}
		if s.Date.After(maxDate) {
			maxDate = s.Date
		}
	}

	histories := make(map[string][]domain.PricePoint, len(e.benchmarks))
	for _, b := range e.benchmarks {
		out := e.router.History(ctx, b, minDate, maxDate)
		if out.Status != providers.StatusOK {
			e.log.Warn().Str("benchmark", b).Str("reason", out.Reason).Msg("benchmark history fetch failed during backfill")
			continue
		}
		sorted := make([]domain.PricePoint, len(out.Value))
		copy(sorted, out.Value)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
		histories[b] = sorted
	}

	updated := 0
	for _, s := range snapshots {
		if s.BenchmarkValues == nil {
			s.BenchmarkValues = make(map[string]*float64, len(e.benchmarks))
		}
		changed := false
		for _, b := range e.benchmarks {
			if existing, ok := s.BenchmarkValues[b]; ok && existing != nil {
				continue
			}
			close, found := asOfClose(histories[b], s.Date)
			if found {
				s.BenchmarkValues[b] = &close
				changed = true
			}
		}
		if changed {
			if err := e.repo.Upsert(ctx, s); err != nil {
				e.log.Warn().Err(err).Time("date", s.Date).Msg("failed to persist backfilled snapshot")
				continue
			}
			updated++
		}
	}
	return updated, nil
}

// asOfClose returns the close of the most recent bar on or before date.
func asOfClose(series []domain.PricePoint, date time.Time) (float64, bool) {
	var best *domain.PricePoint
	for i := range series {
		if series[i].Date.After(date) {
			break
		}
		best = &series[i]
	}
	if best == nil {
		return 0, false
	}
	return best.Close, true
}

// TimeWeightedReturn links consecutive valuations across [from, to] into a
// single linked return. Returns (0, false) when fewer than two snapshots
// exist in range.
func (e *Engine) TimeWeightedReturn(ctx context.Context, from, to time.Time) (float64, bool, error) {
	snapshots, err := e.repo.InDateRange(ctx, from, to)
	if err != nil {
		return 0, false, err
	}
	if len(snapshots) < 2 {
		return 0, false, nil
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Date.Before(snapshots[j].Date) })

	linked := 1.0
	for i := 1; i < len(snapshots); i++ {
		prev, cur := snapshots[i-1].TotalValue, snapshots[i].TotalValue
		if prev == 0 {
			continue
		}
		periodReturn := (cur - prev) / prev
		linked *= 1 + periodReturn
	}
	return linked - 1, true, nil
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
