package cache

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketcore/internal/clock"
)

func newTestFabric(t *testing.T) (*Fabric, *clock.Fake) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	f, err := NewFabric(db, map[string]TTLPair{
		"signals": {L1: time.Minute, L2: time.Hour},
	}, clk, zerolog.Nop())
	require.NoError(t, err)
	return f, clk
}

func TestFabric_PutGet_L1Hit(t *testing.T) {
	f, _ := newTestFabric(t)
	f.Put("signals:AAPL", []byte("bullish"))

	r := f.Get("signals:AAPL")
	assert.Equal(t, Present, r.State)
	assert.Equal(t, []byte("bullish"), r.Value)
}

func TestFabric_Get_AbsentKey(t *testing.T) {
	f, _ := newTestFabric(t)
	r := f.Get("signals:MISSING")
	assert.Equal(t, Absent, r.State)
}

func TestFabric_Sentinel_RoundTrip(t *testing.T) {
	f, _ := newTestFabric(t)
	f.PutSentinel("moat:XYZ", "no_filing_found")

	r := f.Get("moat:XYZ")
	assert.Equal(t, Sentinel, r.State)
	assert.Equal(t, "no_filing_found", r.SentinelTag)
}

func TestFabric_L1Expiry_PromotesFromL2(t *testing.T) {
	f, clk := newTestFabric(t)
	f.Put("signals:AAPL", []byte("bullish"))

	clk.Advance(2 * time.Minute) // past L1 TTL (1m), within L2 TTL (1h)

	r := f.Get("signals:AAPL")
	assert.Equal(t, Present, r.State)
	assert.Equal(t, []byte("bullish"), r.Value)
}

func TestFabric_L2Expiry_ReturnsAbsent(t *testing.T) {
	f, clk := newTestFabric(t)
	f.Put("signals:AAPL", []byte("bullish"))

	clk.Advance(2 * time.Hour) // past both TTLs

	r := f.Get("signals:AAPL")
	assert.Equal(t, Absent, r.State)
}

func TestFabric_Invalidate(t *testing.T) {
	f, _ := newTestFabric(t)
	f.Put("signals:AAPL", []byte("bullish"))
	f.Invalidate("signals:AAPL")

	r := f.Get("signals:AAPL")
	assert.Equal(t, Absent, r.State)
}

func TestFabric_InvalidateNamespace(t *testing.T) {
	f, _ := newTestFabric(t)
	f.Put("signals:AAPL", []byte("bullish"))
	f.Put("signals:MSFT", []byte("bearish"))
	f.Put("moat:AAPL", []byte("wide"))

	f.InvalidateNamespace("signals:")

	assert.Equal(t, Absent, f.Get("signals:AAPL").State)
	assert.Equal(t, Absent, f.Get("signals:MSFT").State)
	assert.Equal(t, Present, f.Get("moat:AAPL").State)
}

func TestFabric_Clear(t *testing.T) {
	f, _ := newTestFabric(t)
	f.Put("signals:AAPL", []byte("bullish"))
	f.Clear()
	assert.Equal(t, Absent, f.Get("signals:AAPL").State)
}

func TestFabric_BulkGet_MixesL1AndL2(t *testing.T) {
	f, _ := newTestFabric(t)
	f.Put("signals:AAPL", []byte("bullish"))
	f.Put("signals:MSFT", []byte("bearish"))

	// Force MSFT out of L1 only, to exercise the L2 batch path.
	f.mu.Lock()
	delete(f.l1, "signals:MSFT")
	f.mu.Unlock()

	results := f.BulkGet([]string{"signals:AAPL", "signals:MSFT", "signals:MISSING"})
	require.Len(t, results, 2)
	assert.Equal(t, []byte("bullish"), results["signals:AAPL"].Value)
	assert.Equal(t, []byte("bearish"), results["signals:MSFT"].Value)
	_, ok := results["signals:MISSING"]
	assert.False(t, ok)
}

func TestFabric_DeleteExpired(t *testing.T) {
	f, clk := newTestFabric(t)
	f.Put("signals:AAPL", []byte("bullish"))
	clk.Advance(2 * time.Hour)

	n, err := f.DeleteExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestFabric_NilDB_L1Only(t *testing.T) {
	clk := clock.NewFake(time.Now())
	f, err := NewFabric(nil, DefaultTTLPolicy(), clk, zerolog.Nop())
	require.NoError(t, err)

	f.Put("signals:AAPL", []byte("bullish"))
	r := f.Get("signals:AAPL")
	assert.Equal(t, Present, r.State)
}

func TestMarshalUnmarshalValue_RoundTrip(t *testing.T) {
	type payload struct {
		Score float64
		Label string
	}
	in := payload{Score: 0.75, Label: "bullish"}

	data, err := marshalValue(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, unmarshalValue(data, &out))
	assert.Equal(t, in, out)
}
