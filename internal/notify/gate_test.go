package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketcore/internal/clock"
	"github.com/aristath/marketcore/internal/domain"
)

type fakePrefs struct {
	enabled map[domain.NotificationCategory]bool
}

func (f *fakePrefs) IsEnabled(ctx context.Context, category domain.NotificationCategory) (bool, error) {
	v, ok := f.enabled[category]
	if !ok {
		return true, nil
	}
	return v, nil
}

type fakeLedger struct {
	last map[domain.NotificationCategory]time.Time
}

func newFakeLedger() *fakeLedger { return &fakeLedger{last: map[domain.NotificationCategory]time.Time{}} }

func (l *fakeLedger) LastSent(ctx context.Context, category domain.NotificationCategory) (time.Time, bool, error) {
	t, ok := l.last[category]
	return t, ok, nil
}

func (l *fakeLedger) LogSent(ctx context.Context, category domain.NotificationCategory, at time.Time) error {
	l.last[category] = at
	return nil
}

type fakeChannel struct {
	sent []string
	err  error
}

func (c *fakeChannel) Send(ctx context.Context, text string) error {
	c.sent = append(c.sent, text)
	return c.err
}

func TestGate_Send_DisabledCategory_NeverSends(t *testing.T) {
	prefs := &fakePrefs{enabled: map[domain.NotificationCategory]bool{domain.CategoryScan: false}}
	ledger := newFakeLedger()
	channel := &fakeChannel{}
	clk := clock.NewFake(time.Now())

	g := New(prefs, ledger, channel, nil, nil, nil, clk, zerolog.Nop())
	require.NoError(t, g.Send(context.Background(), domain.CategoryScan, "hello"))
	assert.Empty(t, channel.sent)
}

func TestGate_Send_WithinRateLimit_Suppressed(t *testing.T) {
	prefs := &fakePrefs{enabled: map[domain.NotificationCategory]bool{}}
	ledger := newFakeLedger()
	channel := &fakeChannel{}
	clk := clock.NewFake(time.Now())

	g := New(prefs, ledger, channel, nil, nil, nil, clk, zerolog.Nop())
	require.NoError(t, g.Send(context.Background(), domain.CategoryFXAlert, "first"))
	require.NoError(t, g.Send(context.Background(), domain.CategoryFXAlert, "second"))

	assert.Len(t, channel.sent, 1)
	assert.Equal(t, "first", channel.sent[0])
}

func TestGate_Send_AfterCoolDown_SendsAgain(t *testing.T) {
	prefs := &fakePrefs{enabled: map[domain.NotificationCategory]bool{}}
	ledger := newFakeLedger()
	channel := &fakeChannel{}
	clk := clock.NewFake(time.Now())

	g := New(prefs, ledger, channel, nil, nil, nil, clk, zerolog.Nop())
	require.NoError(t, g.Send(context.Background(), domain.CategoryFXAlert, "first"))
	clk.Advance(2 * time.Hour)
	require.NoError(t, g.Send(context.Background(), domain.CategoryFXAlert, "second"))

	assert.Len(t, channel.sent, 2)
}

func TestGate_Send_DeliveryFailure_DoesNotPropagate(t *testing.T) {
	prefs := &fakePrefs{enabled: map[domain.NotificationCategory]bool{}}
	ledger := newFakeLedger()
	channel := &fakeChannel{err: errors.New("telegram unreachable")}
	clk := clock.NewFake(time.Now())

	g := New(prefs, ledger, channel, nil, nil, nil, clk, zerolog.Nop())
	assert.NoError(t, g.Send(context.Background(), domain.CategoryScan, "hello"))
}

func TestGate_IsEnabled_NoRecordDefaultsTrue(t *testing.T) {
	prefs := &fakePrefs{enabled: map[domain.NotificationCategory]bool{}}
	ledger := newFakeLedger()
	g := New(prefs, ledger, &fakeChannel{}, nil, nil, nil, clock.NewFake(time.Now()), zerolog.Nop())
	assert.True(t, g.IsEnabled(context.Background(), domain.CategoryDigest))
}
