package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcore/internal/domain"
)

// FXWatchRepository backs the FX Monitor's Repository interface.
type FXWatchRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewFXWatchRepository constructs an FXWatchRepository.
func NewFXWatchRepository(db *sql.DB, log zerolog.Logger) *FXWatchRepository {
	return &FXWatchRepository{db: db, log: log.With().Str("repo", "fx_watches").Logger()}
}

// ActiveWatches returns every watch with is_active = 1.
func (r *FXWatchRepository) ActiveWatches(ctx context.Context) ([]domain.FXWatch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, base, quote, recent_high_days, consecutive_days, alert_on_recent_high,
		       alert_on_consecutive, reminder_interval_hours, last_alerted_at, is_active
		FROM fx_watches WHERE is_active = 1`)
	if err != nil {
		return nil, fmt.Errorf("query active fx watches: %w", err)
	}
	defer rows.Close()

	var out []domain.FXWatch
	for rows.Next() {
		var w domain.FXWatch
		var alertHigh, alertConsec, active int
		var lastAlerted sql.NullInt64
		if err := rows.Scan(&w.ID, &w.Base, &w.Quote, &w.RecentHighDays, &w.ConsecutiveDays,
			&alertHigh, &alertConsec, &w.ReminderIntervalHours, &lastAlerted, &active); err != nil {
			return nil, fmt.Errorf("scan fx watch: %w", err)
		}
		w.AlertOnRecentHigh = alertHigh != 0
		w.AlertOnConsecutive = alertConsec != 0
		w.IsActive = active != 0
		if lastAlerted.Valid {
			t := time.Unix(lastAlerted.Int64, 0).UTC()
			w.LastAlertedAt = &t
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// SetLastAlerted persists the watch's last-alerted timestamp.
func (r *FXWatchRepository) SetLastAlerted(ctx context.Context, watchID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE fx_watches SET last_alerted_at = ? WHERE id = ?`, at.Unix(), watchID)
	if err != nil {
		return fmt.Errorf("set last alerted: %w", err)
	}
	return nil
}
