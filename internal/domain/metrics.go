package domain

// LedgerMetrics is a point-in-time snapshot of the core counters, served by
// the operational metrics endpoint.
type LedgerMetrics struct {
	TransactionsAdded int64   `json:"transactions_added"`
	IncomeAdded       int64   `json:"income_added"`
	ExpensesAdded     int64   `json:"expenses_added"`
	RateFetches       int64   `json:"rate_fetches"`
	RateFetchFailures int64   `json:"rate_fetch_failures"`
	RateFetchErrPct   float64 `json:"rate_fetch_error_pct"`
}
