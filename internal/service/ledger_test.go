package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bitledger/bitledger-go/internal/domain"
	"github.com/bitledger/bitledger-go/internal/infra/observability"
	"github.com/bitledger/bitledger-go/internal/service"

	"go.uber.org/zap"
)

func newLedger(store *mockTransactionStore, analytics *mockAnalytics) *service.LedgerService {
	return service.NewLedgerService(
		context.Background(),
		store,
		analytics,
		observability.NewMetrics(),
		zap.NewNop(),
		20,
	)
}

// --- Construction ---

func TestNewLedgerService_LoadsFirstPageAndBalance(t *testing.T) {
	store := newMockTransactionStore()
	store.seed([]domain.Transaction{domain.NewIncome(1.0)}, 500.0)

	svc := newLedger(store, &mockAnalytics{})

	if store.fetchCallCount != 1 {
		t.Errorf("expected 1 fetch, got %d", store.fetchCallCount)
	}
	if store.fetchLastLimit != 20 || store.fetchLastOffset != 0 {
		t.Errorf("expected limit=20 offset=0, got limit=%d offset=%d", store.fetchLastLimit, store.fetchLastOffset)
	}
	if store.getBalanceCalls != 1 {
		t.Errorf("expected 1 balance load, got %d", store.getBalanceCalls)
	}
	if got := svc.Balance().Get(); got != 500.0 {
		t.Errorf("expected published balance 500.0, got %f", got)
	}
	if got := len(svc.Groups().Get()); got != 1 {
		t.Errorf("expected 1 group, got %d", got)
	}
}

func TestNewLedgerService_AbsorbsLoadFailures(t *testing.T) {
	store := newMockTransactionStore()
	store.fetchErr = errors.New("disk gone")
	store.balanceErr = errors.New("disk gone")
	analytics := &mockAnalytics{}

	svc := newLedger(store, analytics)

	if got := svc.Balance().Get(); got != 0 {
		t.Errorf("expected balance 0 after load failure, got %f", got)
	}
	if len(analytics.errorEvents(domain.CtxLoadInitialTransactions)) != 1 {
		t.Error("expected load_initial_transactions error event")
	}
	if len(analytics.errorEvents(domain.CtxLoadCurrentBalance)) != 1 {
		t.Error("expected load_current_balance error event")
	}
}

// --- AddTransaction ---

func TestAddTransaction_Success(t *testing.T) {
	store := newMockTransactionStore()
	store.seed(nil, 500.0)
	analytics := &mockAnalytics{}
	svc := newLedger(store, analytics)

	err := svc.AddTransaction(context.Background(), domain.NewExpense(100.0, domain.CategoryGroceries))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if store.insertCallCount != 1 {
		t.Errorf("expected 1 insert, got %d", store.insertCallCount)
	}
	if store.setBalanceCalls != 1 {
		t.Errorf("expected 1 balance write, got %d", store.setBalanceCalls)
	}
	if store.lastSetBalance != 400.0 {
		t.Errorf("expected persisted balance 400.0, got %f", store.lastSetBalance)
	}
	if got := svc.Balance().Get(); got != 400.0 {
		t.Errorf("expected published balance 400.0, got %f", got)
	}
	// Initial load + full reload after insert.
	if store.fetchCallCount != 2 {
		t.Errorf("expected 2 fetches, got %d", store.fetchCallCount)
	}

	events := analytics.named(domain.EventTransactionAdded)
	if len(events) != 1 {
		t.Fatalf("expected 1 transaction event, got %d", len(events))
	}
	if events[0].Parameters["type"] != "expense" {
		t.Errorf("expected type expense, got %s", events[0].Parameters["type"])
	}
	if events[0].Parameters["category"] != "groceries" {
		t.Errorf("expected category groceries, got %s", events[0].Parameters["category"])
	}
	if events[0].Parameters["amount"] != "100.00" {
		t.Errorf("expected amount 100.00, got %s", events[0].Parameters["amount"])
	}
}

func TestAddTransaction_StoreFailureAbsorbed(t *testing.T) {
	store := newMockTransactionStore()
	store.insertErr = errors.New("disk full")
	analytics := &mockAnalytics{}
	svc := newLedger(store, analytics)

	err := svc.AddTransaction(context.Background(), domain.NewIncome(100.0))
	if err != nil {
		t.Fatalf("store failures must not propagate, got %v", err)
	}

	if len(analytics.errorEvents(domain.CtxAddTransaction)) != 1 {
		t.Error("expected add_transaction error event")
	}
	if store.setBalanceCalls != 0 {
		t.Error("balance must not move when insert fails")
	}
	if len(analytics.named(domain.EventTransactionAdded)) != 0 {
		t.Error("no transaction event on failure")
	}
}

func TestAddTransaction_BalanceWriteFailureAbsorbed(t *testing.T) {
	store := newMockTransactionStore()
	store.setErr = errors.New("disk full")
	analytics := &mockAnalytics{}
	svc := newLedger(store, analytics)

	if err := svc.AddTransaction(context.Background(), domain.NewIncome(100.0)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(analytics.errorEvents(domain.CtxUpdateBalance)) != 1 {
		t.Error("expected update_balance_after_transaction error event")
	}
	if got := svc.Balance().Get(); got != 0 {
		t.Errorf("published balance must keep last good value, got %f", got)
	}
}

func TestAddTransaction_UpsertConvergesDuplicateIDs(t *testing.T) {
	store := newMockTransactionStore()
	svc := newLedger(store, &mockAnalytics{})

	tx := domain.NewIncome(100.0)
	svc.AddTransaction(context.Background(), tx)
	svc.AddTransaction(context.Background(), tx)

	total, _ := store.FetchTotalCount(context.Background())
	if total != 1 {
		t.Errorf("expected duplicate insert to converge to 1 row, got %d", total)
	}
}

func TestAddIncome(t *testing.T) {
	store := newMockTransactionStore()
	analytics := &mockAnalytics{}
	svc := newLedger(store, analytics)

	if err := svc.AddIncome(context.Background(), 500.0); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if store.lastInserted == nil || store.lastInserted.Type != domain.TypeIncome {
		t.Fatal("expected an income transaction to be inserted")
	}
	if store.lastInserted.Amount != 500.0 {
		t.Errorf("expected amount 500.0, got %f", store.lastInserted.Amount)
	}

	events := analytics.named(domain.EventTransactionAdded)
	if len(events) != 1 {
		t.Fatalf("expected 1 transaction event, got %d", len(events))
	}
	if _, hasCategory := events[0].Parameters["category"]; hasCategory {
		t.Error("income event must not carry a category")
	}
}

// --- Validation policy: non-positive amounts are rejected uniformly ---

func TestAddTransaction_RejectsNonPositiveAmounts(t *testing.T) {
	store := newMockTransactionStore()
	svc := newLedger(store, &mockAnalytics{})

	for _, amount := range []float64{0, -5} {
		err := svc.AddIncome(context.Background(), amount)
		var validation *domain.ErrValidation
		if !errors.As(err, &validation) {
			t.Errorf("amount %f: expected validation error, got %v", amount, err)
		}
	}
	if store.insertCallCount != 0 {
		t.Error("rejected transactions must never reach the store")
	}
}

func TestAddTransaction_RejectsUnknownCategory(t *testing.T) {
	svc := newLedger(newMockTransactionStore(), &mockAnalytics{})

	tx := domain.NewExpense(1, "jetski")
	err := svc.AddTransaction(context.Background(), tx)
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// --- Balance invariant ---

func TestBalanceEqualsIncomeMinusExpenses(t *testing.T) {
	store := newMockTransactionStore()
	svc := newLedger(store, &mockAnalytics{})

	if err := svc.AddIncome(context.Background(), 500.0); err != nil {
		t.Fatal(err)
	}
	if err := svc.AddTransaction(context.Background(), domain.NewExpense(50.0, domain.CategoryGroceries)); err != nil {
		t.Fatal(err)
	}

	if got := svc.Balance().Get(); got != 450.0 {
		t.Errorf("expected balance 450.0, got %f", got)
	}

	groups := svc.Groups().Get()
	if len(groups) != 1 {
		t.Fatalf("expected both transactions under today, got %d groups", len(groups))
	}
	if len(groups[0].Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(groups[0].Transactions))
	}
	// Newest-first by actual timestamps: the expense was inserted later.
	first, second := groups[0].Transactions[0], groups[0].Transactions[1]
	if first.Date.Before(second.Date) {
		t.Error("expected newest transaction first")
	}
	if first.Type != domain.TypeExpense {
		t.Error("expected the later-inserted expense first")
	}
}

func TestConcurrentAddsDoNotLoseUpdates(t *testing.T) {
	store := newMockTransactionStore()
	svc := newLedger(store, &mockAnalytics{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.AddIncome(context.Background(), 1.0)
		}()
	}
	wg.Wait()

	if got := svc.Balance().Get(); got != 10.0 {
		t.Errorf("expected balance 10.0 after 10 concurrent adds, got %f", got)
	}
}

// --- Pagination ---

func seedPages(store *mockTransactionStore, n int) {
	txns := make([]domain.Transaction, 0, n)
	base := time.Now().Add(-time.Duration(n) * time.Minute)
	for i := 0; i < n; i++ {
		tx := domain.NewIncome(1.0)
		tx.Date = base.Add(time.Duration(i) * time.Minute)
		txns = append(txns, tx)
	}
	store.seed(txns, 0)
}

func TestLoadNextPage_Success(t *testing.T) {
	store := newMockTransactionStore()
	seedPages(store, 25)
	svc := newLedger(store, &mockAnalytics{})

	svc.LoadNextPage(context.Background())

	if store.fetchCallCount != 2 {
		t.Errorf("expected initial + next page fetch, got %d", store.fetchCallCount)
	}
	if store.fetchLastLimit != 20 || store.fetchLastOffset != 20 {
		t.Errorf("expected limit=20 offset=20, got limit=%d offset=%d", store.fetchLastLimit, store.fetchLastOffset)
	}

	count := 0
	for _, g := range svc.Groups().Get() {
		count += len(g.Transactions)
	}
	if count != 25 {
		t.Errorf("expected 25 transactions in working set, got %d", count)
	}
}

func TestLoadNextPage_NoOpWhenExhausted(t *testing.T) {
	store := newMockTransactionStore()
	seedPages(store, 5)
	svc := newLedger(store, &mockAnalytics{})

	fetchesBefore := store.fetchCallCount
	svc.LoadNextPage(context.Background())
	svc.LoadNextPage(context.Background())

	if store.fetchCallCount != fetchesBefore {
		t.Errorf("expected no page fetches when exhausted, got %d extra", store.fetchCallCount-fetchesBefore)
	}

	count := 0
	for _, g := range svc.Groups().Get() {
		count += len(g.Transactions)
	}
	if count != 5 {
		t.Errorf("expected no duplicates, got %d transactions", count)
	}
}

func TestLoadNextPage_FailureKeepsCursor(t *testing.T) {
	store := newMockTransactionStore()
	seedPages(store, 45)
	analytics := &mockAnalytics{}
	svc := newLedger(store, analytics)

	store.mu.Lock()
	store.fetchErr = errors.New("io error")
	store.mu.Unlock()

	svc.LoadNextPage(context.Background())

	if len(analytics.errorEvents(domain.CtxLoadNextPage)) != 1 {
		t.Error("expected load_next_page error event")
	}

	store.mu.Lock()
	store.fetchErr = nil
	store.mu.Unlock()

	// Retry re-fetches the same offset.
	svc.LoadNextPage(context.Background())
	if store.fetchLastOffset != 20 {
		t.Errorf("expected retry at offset 20, got %d", store.fetchLastOffset)
	}
}

// --- HasMorePages ---

func TestHasMorePages(t *testing.T) {
	store := newMockTransactionStore()
	seedPages(store, 65)
	svc := newLedger(store, &mockAnalytics{})

	if !svc.HasMorePages(context.Background()) {
		t.Error("expected more pages with 65 rows")
	}
	if store.countCallCount != 1 {
		t.Errorf("expected a live count query, got %d", store.countCallCount)
	}
}

func TestHasMorePages_False(t *testing.T) {
	store := newMockTransactionStore()
	seedPages(store, 5)
	svc := newLedger(store, &mockAnalytics{})

	if svc.HasMorePages(context.Background()) {
		t.Error("expected no more pages with 5 rows")
	}
}

func TestHasMorePages_CountFailureDegradesToFalse(t *testing.T) {
	store := newMockTransactionStore()
	seedPages(store, 65)
	store.countErr = errors.New("count failed")
	svc := newLedger(store, &mockAnalytics{})

	if svc.HasMorePages(context.Background()) {
		t.Error("expected count failure to degrade to false")
	}
}
