// Package repository is the SQLite-backed persistence layer behind the
// watchlist, FX watches, portfolio snapshots, scan log, notification
// preferences, and institutional-filings repository interfaces consumed
// by the core components. The core never imports this package directly;
// cmd/server wires concrete *repository.XxxRepository values into the
// router/scan/snapshot/fxmonitor/notify/prewarm constructors through
// their narrow interfaces.
package repository

import (
	"database/sql"
	"fmt"
)

// Migrate creates every table this package owns if it doesn't already
// exist. Safe to call on every startup.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS holdings (
			ticker     TEXT PRIMARY KEY,
			category   TEXT NOT NULL,
			quantity   REAL NOT NULL,
			cost_basis REAL,
			currency   TEXT NOT NULL,
			broker     TEXT,
			is_cash    INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS fx_watches (
			id                      INTEGER PRIMARY KEY AUTOINCREMENT,
			base                    TEXT NOT NULL,
			quote                   TEXT NOT NULL,
			recent_high_days        INTEGER NOT NULL,
			consecutive_days        INTEGER NOT NULL,
			alert_on_recent_high    INTEGER NOT NULL,
			alert_on_consecutive    INTEGER NOT NULL,
			reminder_interval_hours INTEGER NOT NULL,
			last_alerted_at         INTEGER,
			is_active               INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS portfolio_snapshots (
			date             TEXT PRIMARY KEY,
			total_value      REAL NOT NULL,
			category_values  TEXT NOT NULL,
			display_currency TEXT NOT NULL,
			benchmark_values TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scan_log (
			ticker                TEXT NOT NULL,
			signal                TEXT NOT NULL,
			market_status         TEXT NOT NULL,
			market_status_details TEXT,
			rogue_wave            INTEGER NOT NULL DEFAULT 0,
			scanned_at            INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_log_ticker_scanned ON scan_log(ticker, scanned_at DESC)`,
		`CREATE TABLE IF NOT EXISTS notification_preferences (
			category TEXT PRIMARY KEY,
			enabled  INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notification_ledger (
			category     TEXT PRIMARY KEY,
			window_start INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS channel_keys (
			id            INTEGER PRIMARY KEY CHECK (id = 1),
			encrypted_key TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS investors (
			id     TEXT PRIMARY KEY,
			name   TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS filings (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			investor_id TEXT NOT NULL,
			report_date INTEGER NOT NULL,
			is_current  INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_filings_investor ON filings(investor_id, report_date DESC)`,
		`CREATE TABLE IF NOT EXISTS filing_holdings (
			filing_id  INTEGER NOT NULL,
			cusip      TEXT NOT NULL,
			ticker     TEXT,
			company    TEXT NOT NULL,
			value_usd  REAL NOT NULL,
			shares     REAL NOT NULL,
			action     TEXT NOT NULL,
			change_pct REAL,
			weight_pct REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_filing_holdings_filing ON filing_holdings(filing_id)`,
		`CREATE TABLE IF NOT EXISTS job_runs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			job_name   TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			success    INTEGER,
			summary    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_job_runs_name_started ON job_runs(job_name, started_at DESC)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("repository migrate: %w", err)
		}
	}
	return nil
}
