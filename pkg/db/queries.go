// Package db persists the transaction log, snapshot history and API users.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tradectl/internal/ledger"
	"tradectl/internal/metrics"
)

var ErrNotFound = errors.New("record not found")

// Queries provides the controller's database operations.
type Queries struct {
	db *sql.DB
}

// NewQueries creates a Queries instance over an open database.
func NewQueries(d *Database) *Queries {
	return &Queries{db: d.DB}
}

// ----------------------------------------
// Transaction Queries
// ----------------------------------------

// SaveTransaction appends one executed transaction to the log.
func (q *Queries) SaveTransaction(ctx context.Context, tx ledger.Transaction) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO transactions (id, symbol, kind, qty, price, commission, ts, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.ID, tx.Symbol, string(tx.Kind), tx.Quantity, tx.Price, tx.Commission, tx.Timestamp, tx.Notes)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the full transaction log ordered by timestamp.
func (q *Queries) ListTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, symbol, kind, qty, price, COALESCE(commission, 0), ts, COALESCE(notes, '')
		FROM transactions
		ORDER BY ts ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		var (
			tx   ledger.Transaction
			kind string
		)
		if err := rows.Scan(&tx.ID, &tx.Symbol, &kind, &tx.Quantity, &tx.Price, &tx.Commission, &tx.Timestamp, &tx.Notes); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Kind = ledger.Kind(kind)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// ReplaceAllTransactions swaps the whole log for broker-synced history in one
// SQL transaction. Partial failure rolls back to the previous log.
func (q *Queries) ReplaceAllTransactions(ctx context.Context, txs []ledger.Transaction) error {
	sqlTx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	for _, tx := range txs {
		if _, err := sqlTx.ExecContext(ctx, `
			INSERT INTO transactions (id, symbol, kind, qty, price, commission, ts, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, tx.ID, tx.Symbol, string(tx.Kind), tx.Quantity, tx.Price, tx.Commission, tx.Timestamp, tx.Notes); err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
	}
	return sqlTx.Commit()
}

// ----------------------------------------
// Snapshot Queries
// ----------------------------------------

// SaveSnapshot appends one portfolio snapshot.
func (q *Queries) SaveSnapshot(ctx context.Context, s metrics.PortfolioSnapshot) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO snapshots (ts, total_value, cash_balance, invested_value, total_pnl, positions_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.Timestamp, s.TotalValue, s.CashBalance, s.InvestedValue, s.TotalPnL, s.PositionsCount)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// ListRecentSnapshots returns the newest snapshots in chronological order.
func (q *Queries) ListRecentSnapshots(ctx context.Context, limit int) ([]metrics.PortfolioSnapshot, error) {
	if limit <= 0 {
		limit = metrics.DefaultHistoryLimit
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT ts, total_value, cash_balance, invested_value, total_pnl, positions_count
		FROM (
			SELECT * FROM snapshots ORDER BY ts DESC LIMIT ?
		)
		ORDER BY ts ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []metrics.PortfolioSnapshot
	for rows.Next() {
		var s metrics.PortfolioSnapshot
		if err := rows.Scan(&s.Timestamp, &s.TotalValue, &s.CashBalance, &s.InvestedValue, &s.TotalPnL, &s.PositionsCount); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// ----------------------------------------
// User Queries
// ----------------------------------------

// CreateUser inserts a new API user.
func (q *Queries) CreateUser(ctx context.Context, u User) error {
	now := time.Now()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.PasswordHash, now, now)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByEmail returns a user by email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}
