package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcore/internal/domain"
	"github.com/aristath/marketcore/internal/prewarm"
)

// FilingsRepository persists institutional-investor filings and their
// holdings, and lists active investors for the Batch Prewarmer's backfill
// phase.
type FilingsRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewFilingsRepository constructs a FilingsRepository.
func NewFilingsRepository(db *sql.DB, log zerolog.Logger) *FilingsRepository {
	return &FilingsRepository{db: db, log: log.With().Str("repo", "filings").Logger()}
}

// ActiveInvestors lists every investor flagged active, for
// prewarm.InvestorSource.
func (r *FilingsRepository) ActiveInvestors(ctx context.Context) ([]prewarm.Investor, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM investors WHERE active = 1`)
	if err != nil {
		return nil, fmt.Errorf("query active investors: %w", err)
	}
	defer rows.Close()

	var out []prewarm.Investor
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan investor: %w", err)
		}
		out = append(out, prewarm.Investor{ID: id})
	}
	return out, rows.Err()
}

// SaveFiling inserts a filing, demoting that investor's previously-current
// filing (the current_filing_per_investor invariant holds exactly one row
// per investor at is_current = 1).
func (r *FilingsRepository) SaveFiling(ctx context.Context, f domain.Filing) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save filing: %w", err)
	}
	defer tx.Rollback()

	if f.IsCurrent {
		if _, err := tx.ExecContext(ctx, `UPDATE filings SET is_current = 0 WHERE investor_id = ?`, f.InvestorID); err != nil {
			return 0, fmt.Errorf("demote previous filing: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO filings (investor_id, report_date, is_current) VALUES (?, ?, ?)
	`, f.InvestorID, f.ReportDate.Unix(), boolToInt(f.IsCurrent))
	if err != nil {
		return 0, fmt.Errorf("insert filing: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save filing: %w", err)
	}
	return id, nil
}

// SaveFilingHoldings replaces every holding row for a filing.
func (r *FilingsRepository) SaveFilingHoldings(ctx context.Context, filingID int64, holdings []domain.FilingHolding) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save filing holdings: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM filing_holdings WHERE filing_id = ?`, filingID); err != nil {
		return fmt.Errorf("clear filing holdings: %w", err)
	}

	for _, h := range holdings {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO filing_holdings (filing_id, cusip, ticker, company, value_usd, shares, action, change_pct, weight_pct)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, filingID, h.CUSIP, h.Ticker, h.Company, h.ValueUSD, h.Shares, string(h.Action), h.ChangePct, h.WeightPct); err != nil {
			return fmt.Errorf("insert filing holding: %w", err)
		}
	}
	return tx.Commit()
}

// LatestHoldingsByInvestor bulk-loads every current filing's holdings,
// grouped by investor, in a single query — the bulk-load-keyed-by-
// investor-id join the resonance and guru-dashboard computations need
// instead of one query per investor.
func (r *FilingsRepository) LatestHoldingsByInvestor(ctx context.Context) (map[string][]domain.FilingHolding, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT f.investor_id, fh.filing_id, fh.cusip, fh.ticker, fh.company, fh.value_usd, fh.shares, fh.action, fh.change_pct, fh.weight_pct
		FROM filings f
		JOIN filing_holdings fh ON fh.filing_id = f.id
		WHERE f.is_current = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("query latest holdings by investor: %w", err)
	}
	defer rows.Close()

	out := map[string][]domain.FilingHolding{}
	for rows.Next() {
		var investorID string
		var h domain.FilingHolding
		var action string
		if err := rows.Scan(&investorID, &h.FilingID, &h.CUSIP, &h.Ticker, &h.Company, &h.ValueUSD, &h.Shares, &action, &h.ChangePct, &h.WeightPct); err != nil {
			return nil, fmt.Errorf("scan latest holding: %w", err)
		}
		h.Action = domain.FilingAction(action)
		out[investorID] = append(out[investorID], h)
	}
	return out, rows.Err()
}

// CurrentFiling returns the investor's current filing, if any.
func (r *FilingsRepository) CurrentFiling(ctx context.Context, investorID string) (domain.Filing, bool, error) {
	var f domain.Filing
	var reportDate int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, investor_id, report_date, is_current FROM filings
		WHERE investor_id = ? AND is_current = 1
	`, investorID).Scan(&f.ID, &f.InvestorID, &reportDate, new(int))
	if err == sql.ErrNoRows {
		return domain.Filing{}, false, nil
	}
	if err != nil {
		return domain.Filing{}, false, fmt.Errorf("query current filing: %w", err)
	}
	f.ReportDate = time.Unix(reportDate, 0).UTC()
	f.IsCurrent = true
	return f, true, nil
}
