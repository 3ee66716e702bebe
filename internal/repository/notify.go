package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcore/internal/domain"
)

// NotificationRepository backs the Notification Gate's PreferencesRepository
// and Ledger interfaces.
type NotificationRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *sql.DB, log zerolog.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, log: log.With().Str("repo", "notifications").Logger()}
}

// IsEnabled reports whether a category is enabled. Absent rows are the
// caller's concern to default (the Notification Gate defaults to true).
func (r *NotificationRepository) IsEnabled(ctx context.Context, category domain.NotificationCategory) (bool, error) {
	var enabled int
	err := r.db.QueryRowContext(ctx, `SELECT enabled FROM notification_preferences WHERE category = ?`, string(category)).Scan(&enabled)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("query notification preference: %w", err)
	}
	return enabled != 0, nil
}

// SetEnabled persists a category's enabled flag.
func (r *NotificationRepository) SetEnabled(ctx context.Context, category domain.NotificationCategory, enabled bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (category, enabled) VALUES (?, ?)
		ON CONFLICT(category) DO UPDATE SET enabled = excluded.enabled
	`, string(category), boolToInt(enabled))
	if err != nil {
		return fmt.Errorf("set notification preference: %w", err)
	}
	return nil
}

// LastSent returns the most recent send timestamp for a category.
func (r *NotificationRepository) LastSent(ctx context.Context, category domain.NotificationCategory) (time.Time, bool, error) {
	var windowStart int64
	err := r.db.QueryRowContext(ctx, `SELECT window_start FROM notification_ledger WHERE category = ?`, string(category)).Scan(&windowStart)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query notification ledger: %w", err)
	}
	return time.Unix(windowStart, 0).UTC(), true, nil
}

// LogSent records a send timestamp for a category.
func (r *NotificationRepository) LogSent(ctx context.Context, category domain.NotificationCategory, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_ledger (category, window_start) VALUES (?, ?)
		ON CONFLICT(category) DO UPDATE SET window_start = excluded.window_start
	`, string(category), at.Unix())
	if err != nil {
		return fmt.Errorf("log notification sent: %w", err)
	}
	return nil
}

// EncryptedChannelKey returns the single user's encrypted per-channel key,
// if one has been configured.
func (r *NotificationRepository) EncryptedChannelKey(ctx context.Context) (string, bool, error) {
	var key string
	err := r.db.QueryRowContext(ctx, `SELECT encrypted_key FROM channel_keys WHERE id = 1`).Scan(&key)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query channel key: %w", err)
	}
	return key, true, nil
}

// SetEncryptedChannelKey persists the single user's encrypted channel key.
func (r *NotificationRepository) SetEncryptedChannelKey(ctx context.Context, encryptedKey string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO channel_keys (id, encrypted_key) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET encrypted_key = excluded.encrypted_key
	`, encryptedKey)
	if err != nil {
		return fmt.Errorf("set channel key: %w", err)
	}
	return nil
}
