package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcore/internal/domain"
)

// ScanLogRepository persists per-ticker scan outcomes.
type ScanLogRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewScanLogRepository constructs a ScanLogRepository.
func NewScanLogRepository(db *sql.DB, log zerolog.Logger) *ScanLogRepository {
	return &ScanLogRepository{db: db, log: log.With().Str("repo", "scan_log").Logger()}
}

// SaveScanLog appends one ticker's scan result. Scan history is
// append-only; LastSignal reads the most recent row per ticker.
func (r *ScanLogRepository) SaveScanLog(ctx context.Context, entry domain.ScanLogEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scan_log (ticker, signal, market_status, market_status_details, rogue_wave, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.Ticker, string(entry.Signal), string(entry.MarketStatus), entry.MarketStatusDetails,
		boolToInt(entry.RogueWave), entry.ScannedAt.Unix())
	if err != nil {
		return fmt.Errorf("save scan log: %w", err)
	}
	return nil
}

// LastSignal returns the most recently recorded signal for a ticker.
func (r *ScanLogRepository) LastSignal(ctx context.Context, ticker string) (domain.ScanSignal, bool, error) {
	var signal string
	err := r.db.QueryRowContext(ctx, `
		SELECT signal FROM scan_log WHERE ticker = ? ORDER BY scanned_at DESC LIMIT 1
	`, ticker).Scan(&signal)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query last signal: %w", err)
	}
	return domain.ScanSignal(signal), true, nil
}

// History returns every logged entry for a ticker, most recent first.
func (r *ScanLogRepository) History(ctx context.Context, ticker string, limit int) ([]domain.ScanLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ticker, signal, market_status, market_status_details, rogue_wave, scanned_at
		FROM scan_log WHERE ticker = ? ORDER BY scanned_at DESC LIMIT ?
	`, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("query scan log history: %w", err)
	}
	defer rows.Close()

	var out []domain.ScanLogEntry
	for rows.Next() {
		var e domain.ScanLogEntry
		var signal, status string
		var rogue int
		var scannedAt int64
		if err := rows.Scan(&e.Ticker, &signal, &status, &e.MarketStatusDetails, &rogue, &scannedAt); err != nil {
			return nil, fmt.Errorf("scan scan log entry: %w", err)
		}
		e.Signal = domain.ScanSignal(signal)
		e.MarketStatus = domain.MarketStatus(status)
		e.RogueWave = rogue != 0
		e.ScannedAt = time.Unix(scannedAt, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// TickerRepository combines HoldingsRepository and ScanLogRepository into
// the single value scan.Pipeline's TickerRepository interface expects —
// the scan pipeline needs both the universe and the scan-result
// persistence, which live in separate tables/structs here.
type TickerRepository struct {
	*HoldingsRepository
	*ScanLogRepository
}

// NewTickerRepository constructs the combined TickerRepository.
func NewTickerRepository(holdings *HoldingsRepository, scanLog *ScanLogRepository) *TickerRepository {
	return &TickerRepository{HoldingsRepository: holdings, ScanLogRepository: scanLog}
}
