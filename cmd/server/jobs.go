package main

import (
	"context"
	"fmt"

	"github.com/aristath/marketcore/internal/domain"
	"github.com/aristath/marketcore/internal/fxmonitor"
	"github.com/aristath/marketcore/internal/prewarm"
	"github.com/aristath/marketcore/internal/repository"
	"github.com/aristath/marketcore/internal/scan"
	"github.com/aristath/marketcore/internal/snapshot"
)

// prewarmJob runs the Batch Prewarmer's eight-phase warm-up against the
// current holdings universe.
type prewarmJob struct {
	prewarmer *prewarm.Prewarmer
	holdings  *repository.HoldingsRepository
}

func (j *prewarmJob) Name() string { return "prewarm" }

func (j *prewarmJob) Run(ctx context.Context) (string, error) {
	holdings, err := j.holdings.EvaluationUniverse(ctx)
	if err != nil {
		return "", fmt.Errorf("load evaluation universe: %w", err)
	}
	universe := buildPrewarmUniverse(holdings)
	j.prewarmer.Run(ctx, universe)
	return fmt.Sprintf("warmed %d tickers", len(universe.Signals)), nil
}

// buildPrewarmUniverse buckets holdings by category into the ticker lists
// the Prewarmer's phases need. No holding is currently flagged as an ETF
// in the repository's schema, so the ETF/ETFSector lists stay empty until
// that flag exists — phases 4 and 8 simply have nothing to warm in the
// meantime, which is the cache fabric's normal "nothing cached yet"
// posture rather than an error.
func buildPrewarmUniverse(holdings []domain.Holding) prewarm.Universe {
	var u prewarm.Universe
	for _, h := range holdings {
		if h.IsCash {
			continue
		}
		u.Signals = append(u.Signals, h.Ticker)
		u.Beta = append(u.Beta, h.Ticker)
		if h.Category != domain.CategoryBond {
			u.Moat = append(u.Moat, h.Ticker)
			u.Equity = append(u.Equity, h.Ticker)
		}
	}
	return u
}

// scanJob runs one end-to-end scan.
type scanJob struct {
	pipeline *scan.Pipeline
}

func (j *scanJob) Name() string { return "scan" }

func (j *scanJob) Run(ctx context.Context) (string, error) {
	result, err := j.pipeline.Run(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d tickers evaluated, %d changed", len(result.Entries), result.ChangedCount), nil
}

// snapshotJob takes the daily portfolio valuation snapshot.
type snapshotJob struct {
	engine *snapshot.Engine
}

func (j *snapshotJob) Name() string { return "snapshot" }

func (j *snapshotJob) Run(ctx context.Context) (string, error) {
	snap, err := j.engine.TakeDaily(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("total value %.2f %s", snap.TotalValue, snap.DisplayCurrency), nil
}

// fxCheckJob evaluates every active FX watch and sends alerts as needed.
type fxCheckJob struct {
	monitor *fxmonitor.Monitor
}

func (j *fxCheckJob) Name() string { return "fx_check" }

func (j *fxCheckJob) Run(ctx context.Context) (string, error) {
	evaluations, err := j.monitor.Alert(ctx)
	if err != nil {
		return "", err
	}
	alerted := 0
	for _, e := range evaluations {
		if e.ShouldAlert {
			alerted++
		}
	}
	return fmt.Sprintf("%d watches evaluated, %d alerted", len(evaluations), alerted), nil
}
