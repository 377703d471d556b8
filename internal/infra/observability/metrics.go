package observability

import (
	"time"

	"github.com/bitledger/bitledger-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the ledger service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	opDuration        *prometheus.HistogramVec
	rateFetches       *prometheus.CounterVec
	storeErrors       *prometheus.CounterVec
	transactionsAdded *prometheus.CounterVec
	pagesLoaded       prometheus.Counter
	currentRate       prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		opDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bitledger_operation_duration_seconds",
				Help:    "Duration of ledger operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		rateFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bitledger_rate_fetches_total",
				Help: "Total exchange rate fetch attempts by result.",
			},
			[]string{"result"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bitledger_store_errors_total",
				Help: "Total persistent store failures by operation.",
			},
			[]string{"operation"},
		),
		transactionsAdded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bitledger_transactions_added_total",
				Help: "Total transactions inserted into the ledger by type.",
			},
			[]string{"type"},
		),
		pagesLoaded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bitledger_pages_loaded_total",
				Help: "Total ledger pages appended to the working set.",
			},
		),
		currentRate: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bitledger_bitcoin_rate",
				Help: "Last published BTC exchange rate.",
			},
		),
	}
}

// RecordOpDuration records the duration of a ledger operation.
func (m *Metrics) RecordOpDuration(operation string, d time.Duration) {
	m.opDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrRateFetch increments the rate fetch counter with a result label.
func (m *Metrics) IncrRateFetch(result string) {
	m.rateFetches.WithLabelValues(result).Inc()
}

// IncrStoreError increments the store error counter for an operation.
func (m *Metrics) IncrStoreError(operation string) {
	m.storeErrors.WithLabelValues(operation).Inc()
}

// IncrTransactionAdded increments the transactions counter by type.
func (m *Metrics) IncrTransactionAdded(txType string) {
	m.transactionsAdded.WithLabelValues(txType).Inc()
}

// IncrPageLoaded increments the loaded pages counter.
func (m *Metrics) IncrPageLoaded() {
	m.pagesLoaded.Inc()
}

// SetCurrentRate records the last published exchange rate.
func (m *Metrics) SetCurrentRate(rate float64) {
	m.currentRate.Set(rate)
}

// GetLedgerSnapshot returns a snapshot of the core counters suitable for the
// GET /v1/metrics/ledger endpoint.
func (m *Metrics) GetLedgerSnapshot() *domain.LedgerMetrics {
	// Note: Prometheus counters expose cumulative values.
	income := getCounterValue(m.transactionsAdded, string(domain.TypeIncome))
	expense := getCounterValue(m.transactionsAdded, string(domain.TypeExpense))
	fetchOK := getCounterValue(m.rateFetches, "success")
	fetchFail := getCounterValue(m.rateFetches, "failure")

	fetchErrorRate := float64(0)
	if fetchOK+fetchFail > 0 {
		fetchErrorRate = fetchFail / (fetchOK + fetchFail)
	}

	return &domain.LedgerMetrics{
		TransactionsAdded: int64(income + expense),
		IncomeAdded:       int64(income),
		ExpensesAdded:     int64(expense),
		RateFetches:       int64(fetchOK + fetchFail),
		RateFetchFailures: int64(fetchFail),
		RateFetchErrPct:   fetchErrorRate * 100,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
