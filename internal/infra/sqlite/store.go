// Package sqlite is the persistence adapter: the transaction ledger, the
// running balance cell, and the cached exchange rate all live in one
// embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bitledger/bitledger-go/internal/domain"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("sqlite")

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	amount REAL NOT NULL,
	type TEXT NOT NULL,
	category TEXT,
	date DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date DESC);

CREATE TABLE IF NOT EXISTS balance (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	amount REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS bitcoin_rate (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	rate REAL NOT NULL
);
`

// Store implements port.TransactionStore and port.RateStore on SQLite.
// The two services share the database but never touch each other's tables.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the database at path and applies the schema.
// A schema failure here is the one fatal startup condition.
func Open(path string, logger *zap.Logger) (*Store, error) {
	// WAL + busy timeout so the poll timer and UI-triggered writes can
	// overlap without SQLITE_BUSY surfacing to callers.
	dsn := path + "?_journal=WAL&_busy_timeout=10000&_loc=auto"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	logger.Info("sqlite store opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertOrUpdateTransaction upserts by transaction id, so a duplicate insert
// for the same id converges to one row instead of creating a second one.
func (s *Store) InsertOrUpdateTransaction(ctx context.Context, t domain.Transaction) error {
	ctx, span := tracer.Start(ctx, "Store.InsertOrUpdateTransaction")
	defer span.End()

	category := sql.NullString{}
	if t.Type == domain.TypeExpense {
		category = sql.NullString{String: string(t.Category), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, amount, type, category, date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			type = excluded.type,
			category = excluded.category,
			date = excluded.date
	`, t.ID.String(), t.Amount, string(t.Type), category, t.Date)
	if err != nil {
		return &domain.ErrStore{Op: "insert_transaction", Err: err}
	}
	return nil
}

// FetchTransactions returns a page of the ledger sorted by date descending.
func (s *Store) FetchTransactions(ctx context.Context, limit, offset int) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Store.FetchTransactions")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount, type, category, date
		FROM transactions
		ORDER BY date DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, &domain.ErrStore{Op: "fetch_transactions", Err: err}
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var (
			id       string
			t        domain.Transaction
			category sql.NullString
		)
		if err := rows.Scan(&id, &t.Amount, &t.Type, &category, &t.Date); err != nil {
			return nil, &domain.ErrStore{Op: "scan_transaction", Err: err}
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, &domain.ErrStore{Op: "scan_transaction", Err: err}
		}
		t.ID = parsed
		if category.Valid {
			t.Category = domain.Category(category.String)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrStore{Op: "fetch_transactions", Err: err}
	}
	return txns, nil
}

// FetchTotalCount returns the total number of ledger rows.
func (s *Store) FetchTotalCount(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "Store.FetchTotalCount")
	defer span.End()

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count)
	if err != nil {
		return 0, &domain.ErrStore{Op: "fetch_total_count", Err: err}
	}
	return count, nil
}

// GetBalance returns the persisted running balance, zero when none exists yet.
func (s *Store) GetBalance(ctx context.Context) (float64, error) {
	ctx, span := tracer.Start(ctx, "Store.GetBalance")
	defer span.End()

	var balance float64
	err := s.db.QueryRowContext(ctx, `SELECT amount FROM balance WHERE id = 1`).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, &domain.ErrStore{Op: "get_balance", Err: err}
	}
	return balance, nil
}

// SetBalance writes the running balance cell.
func (s *Store) SetBalance(ctx context.Context, balance float64) error {
	ctx, span := tracer.Start(ctx, "Store.SetBalance")
	defer span.End()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balance (id, amount) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET amount = excluded.amount
	`, balance)
	if err != nil {
		return &domain.ErrStore{Op: "set_balance", Err: err}
	}
	return nil
}

// GetCachedRate returns the cached exchange rate. ok is false when no rate
// was ever saved — a missing rate is not an error.
func (s *Store) GetCachedRate(ctx context.Context) (float64, bool, error) {
	ctx, span := tracer.Start(ctx, "Store.GetCachedRate")
	defer span.End()

	var rate float64
	err := s.db.QueryRowContext(ctx, `SELECT rate FROM bitcoin_rate WHERE id = 1`).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &domain.ErrStore{Op: "get_cached_rate", Err: err}
	}
	return rate, true, nil
}

// SetCachedRate overwrites the cached exchange rate cell.
func (s *Store) SetCachedRate(ctx context.Context, rate float64) error {
	ctx, span := tracer.Start(ctx, "Store.SetCachedRate")
	defer span.End()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bitcoin_rate (id, rate) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET rate = excluded.rate
	`, rate)
	if err != nil {
		return &domain.ErrStore{Op: "set_cached_rate", Err: err}
	}
	return nil
}
