// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/bitledger/bitledger-go/internal/domain"
)

// TransactionStore persists the ledger and its running balance.
// Implemented by the SQLite adapter (or any other persistence layer).
type TransactionStore interface {
	// InsertOrUpdateTransaction upserts by transaction id, so a duplicate
	// insert for the same id converges to a single row.
	InsertOrUpdateTransaction(ctx context.Context, t domain.Transaction) error

	// FetchTransactions returns a slice of the ledger sorted by date
	// descending.
	FetchTransactions(ctx context.Context, limit, offset int) ([]domain.Transaction, error)

	FetchTotalCount(ctx context.Context) (int, error)

	GetBalance(ctx context.Context) (float64, error)
	SetBalance(ctx context.Context, balance float64) error
}

// RateStore persists the last successfully fetched exchange rate.
type RateStore interface {
	// GetCachedRate returns the cached rate, or ok=false when none was ever
	// saved.
	GetCachedRate(ctx context.Context) (rate float64, ok bool, err error)
	SetCachedRate(ctx context.Context, rate float64) error
}

// RateFetcher performs a single remote call for the current exchange rate.
type RateFetcher interface {
	FetchRate(ctx context.Context) (domain.BitcoinRate, error)
}

// Reachability observes network connectivity.
type Reachability interface {
	// IsConnected reports the current connectivity status.
	IsConnected() bool

	// StatusChanges emits only on transitions, not on every probe.
	StatusChanges() <-chan bool
}

// AnalyticsSink records domain events. Implementations must never block the
// caller.
type AnalyticsSink interface {
	Track(event domain.AnalyticsEvent)
}
