package fxmonitor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketcore/internal/breaker"
	"github.com/aristath/marketcore/internal/cache"
	"github.com/aristath/marketcore/internal/clock"
	"github.com/aristath/marketcore/internal/dedup"
	"github.com/aristath/marketcore/internal/domain"
	"github.com/aristath/marketcore/internal/providers"
	"github.com/aristath/marketcore/internal/ratelimit"
	"github.com/aristath/marketcore/internal/router"
)

type fakeFXProvider struct {
	series []domain.PricePoint
}

func (f *fakeFXProvider) Name() string { return "fake_fx" }
func (f *fakeFXProvider) Signals(ctx context.Context, ticker string) providers.Outcome[domain.Signal] {
	return providers.NotFound[domain.Signal]()
}
func (f *fakeFXProvider) History(ctx context.Context, ticker string, from, to time.Time) providers.Outcome[[]domain.PricePoint] {
	return providers.OK[[]domain.PricePoint](nil)
}
func (f *fakeFXProvider) BulkHistory(ctx context.Context, tickers []string, from, to time.Time) providers.Outcome[map[string][]domain.PricePoint] {
	return providers.OK(map[string][]domain.PricePoint{})
}
func (f *fakeFXProvider) Moat(ctx context.Context, ticker string) providers.Outcome[domain.Moat] {
	return providers.NotFound[domain.Moat]()
}
func (f *fakeFXProvider) Earnings(ctx context.Context, ticker string) providers.Outcome[providers.EarningsRecord] {
	return providers.NotFound[providers.EarningsRecord]()
}
func (f *fakeFXProvider) Dividend(ctx context.Context, ticker string) providers.Outcome[providers.DividendRecord] {
	return providers.NotFound[providers.DividendRecord]()
}
func (f *fakeFXProvider) Beta(ctx context.Context, ticker string) providers.Outcome[float64] {
	return providers.NotFound[float64]()
}
func (f *fakeFXProvider) Sector(ctx context.Context, ticker string) providers.Outcome[string] {
	return providers.NotFound[string]()
}
func (f *fakeFXProvider) ExchangeRateHistory(ctx context.Context, base, quote string, from, to time.Time) providers.Outcome[[]domain.PricePoint] {
	return providers.OK(f.series)
}
func (f *fakeFXProvider) ETFSectorWeights(ctx context.Context, ticker string) providers.Outcome[map[string]float64] {
	return providers.NotFound[map[string]float64]()
}
func (f *fakeFXProvider) ETFHoldings(ctx context.Context, ticker string) providers.Outcome[map[string]float64] {
	return providers.NotFound[map[string]float64]()
}

func newTestMonitor(t *testing.T, series []domain.PricePoint) (*Monitor, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Now())
	fabric, err := cache.NewFabric(nil, cache.DefaultTTLPolicy(), clk, zerolog.Nop())
	require.NoError(t, err)
	lim := ratelimit.New(nil)
	brk := breaker.NewRegistry(nil, clk)
	r := router.New(fabric, dedup.New(), lim, brk, &fakeFXProvider{series: series}, nil, nil, nil, zerolog.Nop())
	return New(r, nil, nil, clk, zerolog.Nop()), clk
}

func buildSeries(closes []float64, base time.Time) []domain.PricePoint {
	out := make([]domain.PricePoint, len(closes))
	for i, c := range closes {
		out[i] = domain.PricePoint{Date: base.AddDate(0, 0, i), Close: c}
	}
	return out
}

func TestMonitor_Evaluate_RecentHigh(t *testing.T) {
	closes := []float64{30, 30.5, 30.2, 30.8, 31.5} // today (31.5) is the high
	m, _ := newTestMonitor(t, buildSeries(closes, time.Now().AddDate(0, 0, -5)))

	watch := domain.FXWatch{Base: "USD", Quote: "TWD", RecentHighDays: 4, AlertOnRecentHigh: true}
	eval, err := m.Evaluate(context.Background(), watch)
	require.NoError(t, err)
	assert.True(t, eval.IsRecentHigh)
	assert.True(t, eval.ShouldAlert)
	assert.Equal(t, ScenarioHigh, eval.Scenario)
}

func TestMonitor_Evaluate_ConsecutiveIncreases(t *testing.T) {
	closes := []float64{30, 30.2, 30.4, 30.6, 30.8}
	m, _ := newTestMonitor(t, buildSeries(closes, time.Now().AddDate(0, 0, -5)))

	watch := domain.FXWatch{Base: "USD", Quote: "TWD", ConsecutiveDays: 4, AlertOnConsecutive: true}
	eval, err := m.Evaluate(context.Background(), watch)
	require.NoError(t, err)
	assert.Equal(t, 4, eval.ConsecutiveIncreases)
	assert.True(t, eval.ShouldAlert)
}

func TestMonitor_Evaluate_NoSignal(t *testing.T) {
	closes := []float64{30, 29, 30, 29, 30}
	m, _ := newTestMonitor(t, buildSeries(closes, time.Now().AddDate(0, 0, -5)))

	watch := domain.FXWatch{Base: "USD", Quote: "TWD", RecentHighDays: 4, ConsecutiveDays: 3, AlertOnRecentHigh: true, AlertOnConsecutive: true}
	eval, err := m.Evaluate(context.Background(), watch)
	require.NoError(t, err)
	assert.False(t, eval.ShouldAlert)
	assert.Equal(t, ScenarioNoSignal, eval.Scenario)
}

func TestMonitor_CoolDownElapsed(t *testing.T) {
	m, clk := newTestMonitor(t, nil)
	now := clk.Now()

	w := domain.FXWatch{ReminderIntervalHours: 24, LastAlertedAt: &now}
	assert.False(t, m.coolDownElapsed(w))

	clk.Advance(25 * time.Hour)
	assert.True(t, m.coolDownElapsed(w))
}

func TestMonitor_CoolDownElapsed_NeverAlerted(t *testing.T) {
	m, _ := newTestMonitor(t, nil)
	w := domain.FXWatch{ReminderIntervalHours: 24}
	assert.True(t, m.coolDownElapsed(w))
}
