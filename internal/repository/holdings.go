package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcore/internal/domain"
)

// HoldingsRepository backs the watchlist/holdings reads every component
// that needs the user's universe depends on.
type HoldingsRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHoldingsRepository constructs a HoldingsRepository.
func NewHoldingsRepository(db *sql.DB, log zerolog.Logger) *HoldingsRepository {
	return &HoldingsRepository{db: db, log: log.With().Str("repo", "holdings").Logger()}
}

// All returns every holding, cash positions included.
func (r *HoldingsRepository) All(ctx context.Context) ([]domain.Holding, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT ticker, category, quantity, cost_basis, currency, broker, is_cash FROM holdings`)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()
	return scanHoldings(rows)
}

// EvaluationUniverse returns every non-cash holding, the set the Scan
// Pipeline's worker pool evaluates.
func (r *HoldingsRepository) EvaluationUniverse(ctx context.Context) ([]domain.Holding, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT ticker, category, quantity, cost_basis, currency, broker, is_cash FROM holdings WHERE is_cash = 0`)
	if err != nil {
		return nil, fmt.Errorf("query evaluation universe: %w", err)
	}
	defer rows.Close()
	return scanHoldings(rows)
}

// TrendSetterTickers returns the tickers categorized Trend_Setter, the
// watchlist the market-breadth layer reads.
func (r *HoldingsRepository) TrendSetterTickers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT ticker FROM holdings WHERE category = ?`, string(domain.CategoryTrendSetter))
	if err != nil {
		return nil, fmt.Errorf("query trend setter tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan trend setter ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

func scanHoldings(rows *sql.Rows) ([]domain.Holding, error) {
	var out []domain.Holding
	for rows.Next() {
		var h domain.Holding
		var category string
		var isCash int
		if err := rows.Scan(&h.Ticker, &category, &h.Quantity, &h.CostBasis, &h.Currency, &h.Broker, &isCash); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		h.Category = domain.Category(category)
		h.IsCash = isCash != 0
		out = append(out, h)
	}
	return out, rows.Err()
}
