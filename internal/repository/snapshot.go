package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcore/internal/domain"
)

// SnapshotRepository backs the Snapshot Engine's Repository interface.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository constructs a SnapshotRepository.
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{db: db, log: log.With().Str("repo", "portfolio_snapshots").Logger()}
}

// Upsert writes one snapshot, replacing any existing row for the same
// calendar date.
func (r *SnapshotRepository) Upsert(ctx context.Context, s domain.PortfolioSnapshot) error {
	categoryJSON, err := json.Marshal(s.CategoryValues)
	if err != nil {
		return fmt.Errorf("marshal category values: %w", err)
	}
	benchmarkJSON, err := json.Marshal(s.BenchmarkValues)
	if err != nil {
		return fmt.Errorf("marshal benchmark values: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO portfolio_snapshots (date, total_value, category_values, display_currency, benchmark_values)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_value = excluded.total_value,
			category_values = excluded.category_values,
			display_currency = excluded.display_currency,
			benchmark_values = excluded.benchmark_values
	`, s.Date.Format("2006-01-02"), s.TotalValue, string(categoryJSON), s.DisplayCurrency, string(benchmarkJSON))
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// InDateRange returns every snapshot with date in [from, to], inclusive.
func (r *SnapshotRepository) InDateRange(ctx context.Context, from, to time.Time) ([]domain.PortfolioSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, total_value, category_values, display_currency, benchmark_values
		FROM portfolio_snapshots WHERE date >= ? AND date <= ? ORDER BY date ASC
	`, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("query snapshots in range: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// NeedingBenchmarkBackfill returns every snapshot with at least one nil
// benchmark value.
func (r *SnapshotRepository) NeedingBenchmarkBackfill(ctx context.Context) ([]domain.PortfolioSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, total_value, category_values, display_currency, benchmark_values
		FROM portfolio_snapshots ORDER BY date ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	all, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}

	var needing []domain.PortfolioSnapshot
	for _, s := range all {
		for _, v := range s.BenchmarkValues {
			if v == nil {
				needing = append(needing, s)
				break
			}
		}
	}
	return needing, nil
}

func scanSnapshots(rows *sql.Rows) ([]domain.PortfolioSnapshot, error) {
	var out []domain.PortfolioSnapshot
	for rows.Next() {
		var s domain.PortfolioSnapshot
		var dateStr, categoryJSON, benchmarkJSON string
		if err := rows.Scan(&dateStr, &s.TotalValue, &categoryJSON, &s.DisplayCurrency, &benchmarkJSON); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot date: %w", err)
		}
		s.Date = date
		if err := json.Unmarshal([]byte(categoryJSON), &s.CategoryValues); err != nil {
			return nil, fmt.Errorf("unmarshal category values: %w", err)
		}
		if err := json.Unmarshal([]byte(benchmarkJSON), &s.BenchmarkValues); err != nil {
			return nil, fmt.Errorf("unmarshal benchmark values: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
