package domain

import (
	"fmt"
	"time"
)

// Analytics event names emitted by the core services.
const (
	EventTransactionAdded  = "transaction_added"
	EventBitcoinRateFetch  = "bitcoin_rate_fetched"
	EventErrorOccurred     = "error_occurred"
)

// Error event context tags identify the failing operation.
const (
	CtxLoadInitialTransactions = "load_initial_transactions"
	CtxLoadCurrentBalance      = "load_current_balance"
	CtxAddTransaction          = "add_transaction"
	CtxUpdateBalance           = "update_balance_after_transaction"
	CtxLoadNextPage            = "load_next_page"
	CtxBitcoinRateFetch        = "bitcoin_rate_fetch"
	CtxLoadCachedBitcoinRate   = "load_cached_bitcoin_rate"
)

// AnalyticsEvent is a recorded domain event: a name plus flat string parameters.
type AnalyticsEvent struct {
	Name       string            `json:"name"`
	Parameters map[string]string `json:"parameters"`
	Date       time.Time         `json:"date"`
}

// TransactionEvent describes a successfully added transaction.
func TransactionEvent(t Transaction) AnalyticsEvent {
	params := map[string]string{
		"type":   string(t.Type),
		"amount": fmt.Sprintf("%.2f", t.Amount),
	}
	if t.Type == TypeExpense {
		params["category"] = string(t.Category)
	}
	return AnalyticsEvent{Name: EventTransactionAdded, Parameters: params, Date: time.Now()}
}

// BitcoinRateEvent describes a successful rate fetch.
func BitcoinRateEvent(rate BitcoinRate) AnalyticsEvent {
	return AnalyticsEvent{
		Name: EventBitcoinRateFetch,
		Parameters: map[string]string{
			"rate":     fmt.Sprintf("%.2f", rate.Rate),
			"currency": rate.Currency,
		},
		Date: time.Now(),
	}
}

// ErrorEvent describes an absorbed failure, tagged with its operation context.
func ErrorEvent(err error, context string) AnalyticsEvent {
	return AnalyticsEvent{
		Name: EventErrorOccurred,
		Parameters: map[string]string{
			"error_description": err.Error(),
			"context":           context,
		},
		Date: time.Now(),
	}
}
