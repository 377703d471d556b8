// Package service provides the business logic layer: the transaction ledger
// and the exchange-rate cache pipeline.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/bitledger/bitledger-go/internal/domain"
	"github.com/bitledger/bitledger-go/internal/infra/observability"
	"github.com/bitledger/bitledger-go/internal/port"
	"github.com/bitledger/bitledger-go/internal/pubsub"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ledgerTracer = otel.Tracer("service/ledger")

// LedgerService is the single source of truth for the transaction history
// and running balance, with page-at-a-time retrieval for UI consumption.
//
// Store failures are absorbed: they become analytics error events and the
// published streams simply keep their last good value. The only error a
// caller ever sees is input validation.
type LedgerService struct {
	store     port.TransactionStore
	analytics port.AnalyticsSink
	metrics   *observability.Metrics
	logger    *zap.Logger
	pageSize  int

	balance *pubsub.Value[float64]
	groups  *pubsub.Value[[]domain.TransactionGroup]

	// mu serializes all ledger mutations. In particular the balance
	// read-modify-write is a classic lost-update hazard under concurrent
	// AddTransaction calls, so it only ever runs with mu held.
	mu          sync.Mutex
	working     []domain.Transaction
	currentPage int
	loading     bool
}

// NewLedgerService loads the persisted balance and the first page
// (concurrently), publishes both, and sets the page cursor to 1.
func NewLedgerService(
	ctx context.Context,
	store port.TransactionStore,
	analytics port.AnalyticsSink,
	metrics *observability.Metrics,
	logger *zap.Logger,
	pageSize int,
) *LedgerService {
	s := &LedgerService{
		store:       store,
		analytics:   analytics,
		metrics:     metrics,
		logger:      logger,
		pageSize:    pageSize,
		balance:     pubsub.NewValue(0.0),
		groups:      pubsub.NewValue([]domain.TransactionGroup{}),
		currentPage: 1,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		balance, err := store.GetBalance(gCtx)
		if err != nil {
			s.absorb(err, domain.CtxLoadCurrentBalance, "get_balance")
			return nil
		}
		s.balance.Set(balance)
		return nil
	})

	g.Go(func() error {
		txns, err := store.FetchTransactions(gCtx, pageSize, 0)
		if err != nil {
			s.absorb(err, domain.CtxLoadInitialTransactions, "fetch_transactions")
			return nil
		}
		s.mu.Lock()
		s.working = txns
		s.mu.Unlock()
		s.groups.Set(domain.GroupByDay(txns))
		return nil
	})

	// Load errors are absorbed inside each goroutine.
	_ = g.Wait()
	return s
}

// Balance exposes the running balance stream.
func (s *LedgerService) Balance() *pubsub.Value[float64] {
	return s.balance
}

// Groups exposes the grouped transaction stream.
func (s *LedgerService) Groups() *pubsub.Value[[]domain.TransactionGroup] {
	return s.groups
}

// AddTransaction validates and inserts t, updates the running balance, then
// reloads the whole working set from the beginning so the new row lands in
// its correctly sorted position without client-side merge logic.
//
// A non-nil return always means the input was rejected; persistence
// failures are absorbed into analytics events per the degradation policy.
func (s *LedgerService) AddTransaction(ctx context.Context, t domain.Transaction) error {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.AddTransaction")
	defer span.End()
	span.SetAttributes(
		attribute.String("transaction.type", string(t.Type)),
		attribute.Float64("transaction.amount", t.Amount),
	)

	if err := validateTransaction(t); err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		s.metrics.RecordOpDuration("add_transaction", time.Since(start))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.InsertOrUpdateTransaction(ctx, t); err != nil {
		s.absorb(err, domain.CtxAddTransaction, "insert_transaction")
		return nil
	}

	// Balance delta is applied to the current *persisted* balance, not the
	// published one.
	if err := s.applyBalanceDelta(ctx, t.SignedAmount()); err != nil {
		s.absorb(err, domain.CtxUpdateBalance, "set_balance")
	}

	s.reloadWorkingSet(ctx)

	s.analytics.Track(domain.TransactionEvent(t))
	s.metrics.IncrTransactionAdded(string(t.Type))
	return nil
}

// AddIncome is a convenience that records an income transaction dated now.
func (s *LedgerService) AddIncome(ctx context.Context, amount float64) error {
	return s.AddTransaction(ctx, domain.NewIncome(amount))
}

// LoadNextPage appends the next slice of the ledger to the working set.
// It is a no-op while a load is in flight or when no more pages exist.
// On failure the cursor is not advanced, so a retry re-fetches the same
// offset.
func (s *LedgerService) LoadNextPage(ctx context.Context) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.LoadNextPage")
	defer span.End()

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return
	}
	s.loading = true
	page := s.currentPage
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	if !s.HasMorePages(ctx) {
		return
	}

	offset := page * s.pageSize
	txns, err := s.store.FetchTransactions(ctx, s.pageSize, offset)
	if err != nil {
		s.absorb(err, domain.CtxLoadNextPage, "fetch_transactions")
		return
	}

	s.mu.Lock()
	s.working = append(s.working, txns...)
	s.currentPage++
	groups := domain.GroupByDay(s.working)
	s.mu.Unlock()

	s.metrics.IncrPageLoaded()
	s.groups.Set(groups)
}

// HasMorePages queries the live row count; it is derived, never cached.
// A count failure degrades to "no more pages" rather than propagating.
func (s *LedgerService) HasMorePages(ctx context.Context) bool {
	total, err := s.store.FetchTotalCount(ctx)
	if err != nil {
		s.metrics.IncrStoreError("fetch_total_count")
		s.logger.Warn("could not count transactions, suspending pagination", zap.Error(err))
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return total > s.currentPage*s.pageSize
}

// applyBalanceDelta performs the balance read-modify-write. Callers must
// hold mu.
func (s *LedgerService) applyBalanceDelta(ctx context.Context, delta float64) error {
	current, err := s.store.GetBalance(ctx)
	if err != nil {
		return err
	}
	updated := current + delta
	if err := s.store.SetBalance(ctx, updated); err != nil {
		return err
	}
	s.balance.Set(updated)
	return nil
}

// reloadWorkingSet re-fetches everything loaded so far (offset 0, limit
// pageSize×currentPage) and republishes the groups. Callers must hold mu.
func (s *LedgerService) reloadWorkingSet(ctx context.Context) {
	txns, err := s.store.FetchTransactions(ctx, s.pageSize*s.currentPage, 0)
	if err != nil {
		s.absorb(err, domain.CtxAddTransaction, "fetch_transactions")
		return
	}
	s.working = txns
	s.groups.Set(domain.GroupByDay(txns))
}

// absorb converts a store failure into an analytics error event and a
// metric; nothing propagates to callers.
func (s *LedgerService) absorb(err error, context, op string) {
	s.metrics.IncrStoreError(op)
	s.analytics.Track(domain.ErrorEvent(err, context))
	s.logger.Error("store operation failed", zap.String("context", context), zap.Error(err))
}

func validateTransaction(t domain.Transaction) error {
	if t.Amount <= 0 {
		return &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	switch t.Type {
	case domain.TypeIncome:
		if t.Category != "" {
			return &domain.ErrValidation{Field: "category", Message: "income carries no category"}
		}
	case domain.TypeExpense:
		if !t.Category.Valid() {
			return &domain.ErrValidation{Field: "category", Message: "unknown category"}
		}
	default:
		return &domain.ErrValidation{Field: "type", Message: "must be income or expense"}
	}
	return nil
}
