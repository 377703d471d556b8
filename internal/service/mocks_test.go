package service_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bitledger/bitledger-go/internal/domain"
)

// --- Mocks ---

// mockTransactionStore is a functional in-memory store with call counters
// and per-operation error injection.
type mockTransactionStore struct {
	mu sync.Mutex

	transactions map[string]domain.Transaction
	balance      float64

	insertErr  error
	fetchErr   error
	countErr   error
	balanceErr error
	setErr     error

	insertCallCount  int
	fetchCallCount   int
	fetchLastLimit   int
	fetchLastOffset  int
	countCallCount   int
	getBalanceCalls  int
	setBalanceCalls  int
	lastSetBalance   float64
	lastInserted     *domain.Transaction
}

func newMockTransactionStore() *mockTransactionStore {
	return &mockTransactionStore{transactions: make(map[string]domain.Transaction)}
}

func (m *mockTransactionStore) InsertOrUpdateTransaction(_ context.Context, t domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCallCount++
	m.lastInserted = &t
	if m.insertErr != nil {
		return m.insertErr
	}
	m.transactions[t.ID.String()] = t
	return nil
}

func (m *mockTransactionStore) FetchTransactions(_ context.Context, limit, offset int) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCallCount++
	m.fetchLastLimit = limit
	m.fetchLastOffset = offset
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}

	all := make([]domain.Transaction, 0, len(m.transactions))
	for _, t := range m.transactions {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *mockTransactionStore) FetchTotalCount(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countCallCount++
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.transactions), nil
}

func (m *mockTransactionStore) GetBalance(_ context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getBalanceCalls++
	if m.balanceErr != nil {
		return 0, m.balanceErr
	}
	return m.balance, nil
}

func (m *mockTransactionStore) SetBalance(_ context.Context, balance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setBalanceCalls++
	if m.setErr != nil {
		return m.setErr
	}
	m.balance = balance
	m.lastSetBalance = balance
	return nil
}

// seed bypasses counters to preload ledger state.
func (m *mockTransactionStore) seed(txns []domain.Transaction, balance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range txns {
		m.transactions[t.ID.String()] = t
	}
	m.balance = balance
}

type mockRateStore struct {
	mu sync.Mutex

	rate    float64
	hasRate bool

	getErr error
	setErr error

	getCallCount int
	setCallCount int
	lastSaved    float64
}

func (m *mockRateStore) GetCachedRate(_ context.Context) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCallCount++
	if m.getErr != nil {
		return 0, false, m.getErr
	}
	return m.rate, m.hasRate, nil
}

func (m *mockRateStore) SetCachedRate(_ context.Context, rate float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCallCount++
	if m.setErr != nil {
		return m.setErr
	}
	m.rate = rate
	m.hasRate = true
	m.lastSaved = rate
	return nil
}

func (m *mockRateStore) saves() (int, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCallCount, m.lastSaved
}

type mockRateFetcher struct {
	mu sync.Mutex

	rate domain.BitcoinRate
	err  error

	callCount int
}

func (m *mockRateFetcher) FetchRate(_ context.Context) (domain.BitcoinRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	if m.err != nil {
		return domain.BitcoinRate{}, m.err
	}
	return m.rate, nil
}

func (m *mockRateFetcher) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

type mockReachability struct {
	mu        sync.Mutex
	connected bool
	changes   chan bool
}

func newMockReachability(connected bool) *mockReachability {
	return &mockReachability{connected: connected, changes: make(chan bool, 16)}
}

func (m *mockReachability) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockReachability) StatusChanges() <-chan bool {
	return m.changes
}

func (m *mockReachability) simulate(connected bool) {
	m.mu.Lock()
	m.connected = connected
	m.mu.Unlock()
	m.changes <- connected
}

type mockAnalytics struct {
	mu     sync.Mutex
	events []domain.AnalyticsEvent
}

func (m *mockAnalytics) Track(event domain.AnalyticsEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

// errorEvents returns recorded error events with the given context tag.
func (m *mockAnalytics) errorEvents(context string) []domain.AnalyticsEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AnalyticsEvent
	for _, e := range m.events {
		if e.Name == domain.EventErrorOccurred && e.Parameters["context"] == context {
			out = append(out, e)
		}
	}
	return out
}

func (m *mockAnalytics) named(name string) []domain.AnalyticsEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AnalyticsEvent
	for _, e := range m.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// --- Async test helpers ---

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for emission")
		panic("unreachable")
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}
