package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketcore/internal/domain"
)

func buildFlatSeries(n int, start time.Time) []domain.PricePoint {
	series := make([]domain.PricePoint, n)
	for i := 0; i < n; i++ {
		series[i] = domain.PricePoint{Date: start.AddDate(0, 0, i), Close: 100 + float64(i%5), Volume: 1000}
	}
	return series
}

func TestDeriveSignal_InsufficientHistory_ReturnsFalse(t *testing.T) {
	_, ok := DeriveSignal("AAPL", buildFlatSeries(10, time.Now()))
	assert.False(t, ok)
}

func TestDeriveSignal_EnoughHistory_PopulatesFields(t *testing.T) {
	signal, ok := DeriveSignal("AAPL", buildFlatSeries(260, time.Now().AddDate(-1, 0, 0)))
	require.True(t, ok)
	assert.Equal(t, "AAPL", signal.Ticker)
	require.NotNil(t, signal.LastClose)
	require.NotNil(t, signal.RSI14)
	require.NotNil(t, signal.MA60)
	require.NotNil(t, signal.MA200)
}

func TestDeriveSignal_ChangePct_ComputedFromPrevClose(t *testing.T) {
	series := buildFlatSeries(60, time.Now().AddDate(0, -3, 0))
	series[len(series)-2].Close = 100
	series[len(series)-1].Close = 110
	signal, ok := DeriveSignal("MSFT", series)
	require.True(t, ok)
	require.NotNil(t, signal.ChangePct)
	assert.InDelta(t, 10.0, *signal.ChangePct, 0.0001)
}
