// Package fxmonitor evaluates user-configured exchange-rate watches
// against recent price history, detecting recent-high and
// consecutive-increase conditions and gating alerts by a per-watch
// cool-down.
package fxmonitor

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcore/internal/clock"
	"github.com/aristath/marketcore/internal/domain"
	"github.com/aristath/marketcore/internal/notify"
	"github.com/aristath/marketcore/internal/providers"
	"github.com/aristath/marketcore/internal/router"
)

// recentHighEpsilon absorbs floating-point noise when comparing today's
// close against the lookback high.
const recentHighEpsilon = 1e-9

// Scenario names the notification template variant for an evaluation.
type Scenario string

const (
	ScenarioBoth      Scenario = "should_alert_both"
	ScenarioHigh      Scenario = "should_alert_high"
	ScenarioConsec    Scenario = "should_alert_consec"
	ScenarioNoSignal  Scenario = "no_signal"
)

// Evaluation is the outcome of evaluating one FXWatch.
type Evaluation struct {
	Watch               domain.FXWatch
	TodayClose          float64
	LookbackHigh        float64
	IsRecentHigh        bool
	ConsecutiveIncreases int
	ShouldAlert         bool
	Scenario            Scenario
}

// Repository persists FX watches; the monitor only ever updates
// LastAlertedAt.
type Repository interface {
	ActiveWatches(ctx context.Context) ([]domain.FXWatch, error)
	SetLastAlerted(ctx context.Context, watchID int64, at time.Time) error
}

// Monitor is the FX Monitor component.
type Monitor struct {
	router   *router.Router
	repo     Repository
	notifier *notify.Gate
	clk      clock.Clock
	log      zerolog.Logger
}

// New constructs a Monitor.
func New(r *router.Router, repo Repository, notifier *notify.Gate, clk clock.Clock, log zerolog.Logger) *Monitor {
	return &Monitor{router: r, repo: repo, notifier: notifier, clk: clk, log: log.With().Str("component", "fx_monitor").Logger()}
}

// Evaluate runs the recent-high / consecutive-increase evaluation for a
// single watch against its long FX history, without sending anything.
func (m *Monitor) Evaluate(ctx context.Context, watch domain.FXWatch) (Evaluation, error) {
	to := m.clk.Now()
	from := to.AddDate(0, -3, 0)

	out := m.router.FXHistoryLong(ctx, watch.Base, watch.Quote, from, to)
	if out.Status != providers.StatusOK || len(out.Value) == 0 {
		return Evaluation{}, errNoHistory
	}

	series := out.Value
	todayClose := series[len(series)-1].Close

	lookback := series
	if len(lookback) > watch.RecentHighDays+1 {
		lookback = lookback[len(lookback)-watch.RecentHighDays-1:]
	}
	lookback = lookback[:len(lookback)-1] // exclude today

	lookbackHigh := todayClose
	for _, p := range lookback {
		if p.Close > lookbackHigh {
			lookbackHigh = p.Close
		}
	}
	isRecentHigh := todayClose >= lookbackHigh-recentHighEpsilon

	consecutive := 0
	for i := len(series) - 1; i > 0; i-- {
		if series[i].Close > series[i-1].Close {
			consecutive++
		} else {
			break
		}
	}

	shouldAlertHigh := watch.AlertOnRecentHigh && isRecentHigh
	shouldAlertConsec := watch.AlertOnConsecutive && consecutive >= watch.ConsecutiveDays
	shouldAlert := shouldAlertHigh || shouldAlertConsec

	scenario := ScenarioNoSignal
	switch {
	case shouldAlertHigh && shouldAlertConsec:
		scenario = ScenarioBoth
	case shouldAlertHigh:
		scenario = ScenarioHigh
	case shouldAlertConsec:
		scenario = ScenarioConsec
	}

	return Evaluation{
		Watch:                watch,
		TodayClose:           todayClose,
		LookbackHigh:         lookbackHigh,
		IsRecentHigh:         isRecentHigh,
		ConsecutiveIncreases: consecutive,
		ShouldAlert:          shouldAlert,
		Scenario:             scenario,
	}, nil
}

// Check evaluates every active watch and returns results without sending
// anything.
func (m *Monitor) Check(ctx context.Context) ([]Evaluation, error) {
	watches, err := m.repo.ActiveWatches(ctx)
	if err != nil {
		return nil, err
	}
	evaluations := make([]Evaluation, 0, len(watches))
	for _, w := range watches {
		eval, err := m.Evaluate(ctx, w)
		if err != nil {
			m.log.Warn().Err(err).Int64("watch_id", w.ID).Msg("fx watch evaluation failed")
			continue
		}
		evaluations = append(evaluations, eval)
	}
	return evaluations, nil
}

// Alert runs the same evaluation as Check but sends (subject to cool-down
// and the Notification Gate) and updates LastAlertedAt.
func (m *Monitor) Alert(ctx context.Context) ([]Evaluation, error) {
	watches, err := m.repo.ActiveWatches(ctx)
	if err != nil {
		return nil, err
	}

	evaluations := make([]Evaluation, 0, len(watches))
	for _, w := range watches {
		eval, err := m.Evaluate(ctx, w)
		if err != nil {
			m.log.Warn().Err(err).Int64("watch_id", w.ID).Msg("fx watch evaluation failed")
			continue
		}
		evaluations = append(evaluations, eval)

		if !eval.ShouldAlert {
			continue
		}
		if !m.coolDownElapsed(w) {
			continue
		}

		now := m.clk.Now()
		if m.notifier != nil {
			if err := m.notifier.Send(ctx, domain.CategoryFXAlert, formatFXAlert(eval)); err != nil {
				m.log.Warn().Err(err).Int64("watch_id", w.ID).Msg("fx alert notification failed")
			}
		}
		if err := m.repo.SetLastAlerted(ctx, w.ID, now); err != nil {
			m.log.Warn().Err(err).Int64("watch_id", w.ID).Msg("failed to persist last_alerted_at")
		}
	}
	return evaluations, nil
}

func (m *Monitor) coolDownElapsed(w domain.FXWatch) bool {
	if w.LastAlertedAt == nil {
		return true
	}
	interval := time.Duration(w.ReminderIntervalHours) * time.Hour
	return m.clk.Now().Sub(*w.LastAlertedAt) >= interval
}

func formatFXAlert(e Evaluation) string {
	switch e.Scenario {
	case ScenarioBoth:
		return e.Watch.Base + "/" + e.Watch.Quote + " hit a recent high and is on a consecutive-increase streak"
	case ScenarioHigh:
		return e.Watch.Base + "/" + e.Watch.Quote + " hit a recent high"
	case ScenarioConsec:
		return e.Watch.Base + "/" + e.Watch.Quote + " is on a consecutive-increase streak"
	default:
		return ""
	}
}

var errNoHistory = errors.New("no fx history available")
