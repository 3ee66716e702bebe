package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/marketcore/internal/clock"
)

func newTestRegistry() (*Registry, *clock.Fake) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	r := NewRegistry(map[string]Config{
		"jp_provider": {FailureThreshold: 3, CoolDown: time.Minute},
	}, clk)
	return r, clk
}

func TestRegistry_StaysClosedBelowThreshold(t *testing.T) {
	r, _ := newTestRegistry()
	r.RecordFailure("jp_provider")
	r.RecordFailure("jp_provider")
	assert.True(t, r.Allow("jp_provider"))
	assert.Equal(t, Closed, r.StateOf("jp_provider"))
}

func TestRegistry_TripsOpenAtThreshold(t *testing.T) {
	r, _ := newTestRegistry()
	for i := 0; i < 3; i++ {
		r.RecordFailure("jp_provider")
	}
	assert.Equal(t, Open, r.StateOf("jp_provider"))
	assert.False(t, r.Allow("jp_provider"))
}

func TestRegistry_HalfOpensAfterCoolDown(t *testing.T) {
	r, clk := newTestRegistry()
	for i := 0; i < 3; i++ {
		r.RecordFailure("jp_provider")
	}
	clk.Advance(2 * time.Minute)

	assert.True(t, r.Allow("jp_provider")) // single trial call let through
	assert.Equal(t, HalfOpen, r.StateOf("jp_provider"))
	assert.False(t, r.Allow("jp_provider")) // second caller blocked while trial in flight
}

func TestRegistry_HalfOpenSuccess_Closes(t *testing.T) {
	r, clk := newTestRegistry()
	for i := 0; i < 3; i++ {
		r.RecordFailure("jp_provider")
	}
	clk.Advance(2 * time.Minute)
	r.Allow("jp_provider")
	r.RecordSuccess("jp_provider")

	assert.Equal(t, Closed, r.StateOf("jp_provider"))
	assert.True(t, r.Allow("jp_provider"))
}

func TestRegistry_HalfOpenFailure_ReopensImmediately(t *testing.T) {
	r, clk := newTestRegistry()
	for i := 0; i < 3; i++ {
		r.RecordFailure("jp_provider")
	}
	clk.Advance(2 * time.Minute)
	r.Allow("jp_provider")
	r.RecordFailure("jp_provider")

	assert.Equal(t, Open, r.StateOf("jp_provider"))
	assert.False(t, r.Allow("jp_provider"))
}

func TestRegistry_UnconfiguredProvider_UsesDefault(t *testing.T) {
	clk := clock.NewFake(time.Now())
	r := NewRegistry(map[string]Config{}, clk)
	for i := 0; i < DefaultConfig.FailureThreshold; i++ {
		r.RecordFailure("unknown")
	}
	assert.Equal(t, Open, r.StateOf("unknown"))
}

func TestRegistry_IndependentPerProvider(t *testing.T) {
	r, _ := newTestRegistry()
	for i := 0; i < 3; i++ {
		r.RecordFailure("jp_provider")
	}
	assert.Equal(t, Open, r.StateOf("jp_provider"))
	assert.Equal(t, Closed, r.StateOf("tw_provider"))
}
