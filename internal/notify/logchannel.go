package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogChannel is the default Channel: it writes the rendered notification
// to the structured log at info level. It stands in for a real bot/webhook
// integration until one is configured as a per-user channel override.
type LogChannel struct {
	log zerolog.Logger
}

// NewLogChannel constructs a LogChannel.
func NewLogChannel(log zerolog.Logger) *LogChannel {
	return &LogChannel{log: log.With().Str("channel", "log").Logger()}
}

func (c *LogChannel) Send(ctx context.Context, text string) error {
	c.log.Info().Str("notification", text).Msg("notification sent")
	return nil
}
