// Package notify implements the Notification Gate: per-category
// enable/disable preferences, a minimum-interval rate limit per category,
// and a dedup ledger, all evaluated before a single outbound send.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcore/internal/clock"
	"github.com/aristath/marketcore/internal/domain"
	"github.com/aristath/marketcore/internal/secrets"
)

// minIntervals is the per-category minimum interval between two sends.
// Categories absent from this table use defaultMinInterval.
var minIntervals = map[domain.NotificationCategory]time.Duration{
	domain.CategoryScan:       15 * time.Minute,
	domain.CategoryDigest:     20 * time.Hour,
	domain.CategoryFXAlert:    time.Hour,
	domain.CategoryPriceAlert: 5 * time.Minute,
}

const defaultMinInterval = 5 * time.Minute

// PreferencesRepository reads per-user per-category enable flags. A
// category with no stored record defaults to enabled.
type PreferencesRepository interface {
	IsEnabled(ctx context.Context, category domain.NotificationCategory) (bool, error)
}

// Ledger tracks the most recent send per category.
type Ledger interface {
	LastSent(ctx context.Context, category domain.NotificationCategory) (time.Time, bool, error)
	LogSent(ctx context.Context, category domain.NotificationCategory, at time.Time) error
}

// Channel delivers a rendered message. The default channel is the system
// bot; a per-user override uses a channel key decrypted at send time.
type Channel interface {
	Send(ctx context.Context, text string) error
}

// ChannelKeyRepository looks up a user's encrypted per-channel key, if any.
type ChannelKeyRepository interface {
	EncryptedChannelKey(ctx context.Context) (string, bool, error)
}

// ChannelFactory builds a Channel from a decrypted key. Used when a
// per-user override is present; the default Channel is used otherwise.
type ChannelFactory func(decryptedKey string) Channel

// Gate is the Notification Gate.
type Gate struct {
	prefs          PreferencesRepository
	ledger         Ledger
	defaultChannel Channel
	channelKeys    ChannelKeyRepository
	channelFactory ChannelFactory
	encryptor      *secrets.Encryptor
	clk            clock.Clock
	log            zerolog.Logger
}

// New constructs a Gate. channelKeys, channelFactory, and encryptor may be
// nil when per-user channel overrides are not configured; sends then
// always use defaultChannel.
func New(
	prefs PreferencesRepository,
	ledger Ledger,
	defaultChannel Channel,
	channelKeys ChannelKeyRepository,
	channelFactory ChannelFactory,
	encryptor *secrets.Encryptor,
	clk clock.Clock,
	log zerolog.Logger,
) *Gate {
	return &Gate{
		prefs:          prefs,
		ledger:         ledger,
		defaultChannel: defaultChannel,
		channelKeys:    channelKeys,
		channelFactory: channelFactory,
		encryptor:      encryptor,
		clk:            clk,
		log:            log.With().Str("component", "notification_gate").Logger(),
	}
}

// IsEnabled reads the per-category preference, defaulting to enabled when
// the user has no record.
func (g *Gate) IsEnabled(ctx context.Context, category domain.NotificationCategory) bool {
	enabled, err := g.prefs.IsEnabled(ctx, category)
	if err != nil {
		g.log.Warn().Err(err).Str("category", string(category)).Msg("preference lookup failed, defaulting to enabled")
		return true
	}
	return enabled
}

// IsWithinRateLimit reports whether a send for category is currently
// allowed: true when the last send is older than the category's minimum
// interval (or there has never been one).
func (g *Gate) IsWithinRateLimit(ctx context.Context, category domain.NotificationCategory) bool {
	last, ok, err := g.ledger.LastSent(ctx, category)
	if err != nil {
		g.log.Warn().Err(err).Str("category", string(category)).Msg("ledger lookup failed, allowing send")
		return true
	}
	if !ok {
		return true
	}
	interval, configured := minIntervals[category]
	if !configured {
		interval = defaultMinInterval
	}
	return g.clk.Now().Sub(last) >= interval
}

// Send delivers text for category, subject to the enabled check and the
// rate limit. Both checks occur before any channel I/O. A send that clears
// both gates logs the ledger entry regardless of delivery outcome, since a
// delivery failure must not retrigger an immediate retry storm.
func (g *Gate) Send(ctx context.Context, category domain.NotificationCategory, text string) error {
	if !g.IsEnabled(ctx, category) {
		return nil
	}
	if !g.IsWithinRateLimit(ctx, category) {
		return nil
	}

	channel := g.resolveChannel(ctx)
	sendErr := channel.Send(ctx, text)

	if err := g.ledger.LogSent(ctx, category, g.clk.Now()); err != nil {
		g.log.Warn().Err(err).Str("category", string(category)).Msg("failed to record ledger entry")
	}

	if sendErr != nil {
		g.log.Warn().Err(sendErr).Str("category", string(category)).Msg("notification delivery failed")
	}
	return nil // notification errors never fail the triggering operation
}

func (g *Gate) resolveChannel(ctx context.Context) Channel {
	if g.channelKeys == nil || g.channelFactory == nil || g.encryptor == nil {
		return g.defaultChannel
	}
	encrypted, ok, err := g.channelKeys.EncryptedChannelKey(ctx)
	if err != nil || !ok || encrypted == "" {
		return g.defaultChannel
	}
	decrypted := g.encryptor.Decrypt(encrypted)
	if decrypted == "" {
		return g.defaultChannel
	}
	return g.channelFactory(decrypted)
}

// LogChannel is a Channel that writes through structured logging; used as
// the default when no real outbound transport is configured (dev mode).
type LogChannel struct {
	Log zerolog.Logger
}

func (c LogChannel) Send(ctx context.Context, text string) error {
	c.Log.Info().Str("channel", "log").Msg(fmt.Sprintf("notification: %s", text))
	return nil
}
