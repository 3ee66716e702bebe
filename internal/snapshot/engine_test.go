package snapshot

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

type fakeValuator struct {
	total    float64
	byCat    map[domain.Category]float64
	currency string
}

func (v *fakeValuator) Valuate(ctx context.Context) (float64, map[domain.Category]float64, string, error) {
	return v.total, v.byCat, v.currency, nil
}

type fakeSnapRepo struct {
	byDate map[string]domain.PortfolioSnapshot
}

func newFakeSnapRepo() *fakeSnapRepo { return &fakeSnapRepo{byDate: map[string]domain.PortfolioSnapshot{}} }

func (r *fakeSnapRepo) Upsert(ctx context.Context, s domain.PortfolioSnapshot) error {
	r.byDate[s.Date.Format("2006-01-02")] = s
	return nil
}

func (r *fakeSnapRepo) InDateRange(ctx context.Context, from, to time.Time) ([]domain.PortfolioSnapshot, error) {
	var out []domain.PortfolioSnapshot
	for _, s := range r.byDate {
		if !s.Date.Before(from) && !s.Date.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSnapRepo) NeedingBenchmarkBackfill(ctx context.Context) ([]domain.PortfolioSnapshot, error) {
	var out []domain.PortfolioSnapshot
	for _, s := range r.byDate {
		out = append(out, s)
	}
	return out, nil
}

func newTestEngine(t *testing.T, valuator Valuator, repo Repository) (*Engine, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC))
	fabric, err := cache.NewFabric(nil, cache.DefaultTTLPolicy(), clk, zerolog.Nop())
	require.NoError(t, err)
	lim := ratelimit.New(nil)
	brk := breaker.NewRegistry(nil, clk)
	r := router.New(fabric, dedup.New(), lim, brk, &fakeFXProviderForSnapshot{}, nil, nil, nil, zerolog.Nop())
	return New(r, valuator, repo, []string{"VTI"}, clk, zerolog.Nop()), clk
}

func TestEngine_TakeDaily_UpsertsOncePerDate(t *testing.T) {
	valuator := &fakeValuator{total: 10000, byCat: map[domain.Category]float64{domain.CategoryGrowth: 10000}, currency: "USD"}
	repo := newFakeSnapRepo()
	e, _ := newTestEngine(t, valuator, repo)

	_, err := e.TakeDaily(context.Background())
	require.NoError(t, err)

	valuator.total = 20000
	snap, err := e.TakeDaily(context.Background())
	require.NoError(t, err)

	assert.Len(t, repo.byDate, 1)
	assert.Equal(t, 20000.0, snap.TotalValue)
}

func TestEngine_TimeWeightedReturn_InsufficientSnapshots(t *testing.T) {
	repo := newFakeSnapRepo()
	e, _ := newTestEngine(t, &fakeValuator{}, repo)

	_, ok, err := e.TimeWeightedReturn(context.Background(), time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_TimeWeightedReturn_LinksConsecutivePeriods(t *testing.T) {
	repo := newFakeSnapRepo()
	repo.byDate["2026-01-01"] = domain.PortfolioSnapshot{Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), TotalValue: 100}
	repo.byDate["2026-01-02"] = domain.PortfolioSnapshot{Date: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), TotalValue: 110}
	repo.byDate["2026-01-03"] = domain.PortfolioSnapshot{Date: time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC), TotalValue: 121}

	e, _ := newTestEngine(t, &fakeValuator{}, repo)
	twr, ok, err := e.TimeWeightedReturn(context.Background(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.21, twr, 0.0001)
}

func TestAsOfClose_FindsMostRecentPriorBar(t *testing.T) {
	series := []domain.PricePoint{
		{Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Close: 10},
		{Date: time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC), Close: 12},
	}
	close, found := asOfClose(series, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.True(t, found)
	assert.Equal(t, 10.0, close)
}

func TestAsOfClose_NoPriorBar(t *testing.T) {
	series := []domain.PricePoint{{Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), Close: 10}}
	_, found := asOfClose(series, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, found)
}

type fakeFXProviderForSnapshot struct{}

func (f *fakeFXProviderForSnapshot) Name() string { return "fake" }

func (f *fakeFXProviderForSnapshot) Signals(ctx context.Context, ticker string) providers.Outcome[domain.Signal] {
	return providers.NotFound[domain.Signal]()
}

func (f *fakeFXProviderForSnapshot) History(ctx context.Context, ticker string, from, to time.Time) providers.Outcome[[]domain.PricePoint] {
	return providers.OK([]domain.PricePoint{
		{Date: from, Close: 100},
		{Date: to, Close: 105},
	})
}

func (f *fakeFXProviderForSnapshot) BulkHistory(ctx context.Context, tickers []string, from, to time.Time) providers.Outcome[map[string][]domain.PricePoint] {
	return providers.OK(map[string][]domain.PricePoint{})
}

func (f *fakeFXProviderForSnapshot) Moat(ctx context.Context, ticker string) providers.Outcome[domain.Moat] {
	return providers.NotFound[domain.Moat]()
}

func (f *fakeFXProviderForSnapshot) Earnings(ctx context.Context, ticker string) providers.Outcome[providers.EarningsRecord] {
	return providers.NotFound[providers.EarningsRecord]()
}

func (f *fakeFXProviderForSnapshot) Dividend(ctx context.Context, ticker string) providers.Outcome[providers.DividendRecord] {
	return providers.NotFound[providers.DividendRecord]()
}

func (f *fakeFXProviderForSnapshot) Beta(ctx context.Context, ticker string) providers.Outcome[float64] {
	return providers.NotFound[float64]()
}

func (f *fakeFXProviderForSnapshot) Sector(ctx context.Context, ticker string) providers.Outcome[string] {
	return providers.NotFound[string]()
}

func (f *fakeFXProviderForSnapshot) ExchangeRateHistory(ctx context.Context, base, quote string, from, to time.Time) providers.Outcome[[]domain.PricePoint] {
	return providers.OK[[]domain.PricePoint](nil)
}

func (f *fakeFXProviderForSnapshot) ETFSectorWeights(ctx context.Context, ticker string) providers.Outcome[map[string]float64] {
	return providers.NotFound[map[string]float64]()
}

func (f *fakeFXProviderForSnapshot) ETFHoldings(ctx context.Context, ticker string) providers.Outcome[map[string]float64] {
	return providers.NotFound[map[string]float64]()
}
