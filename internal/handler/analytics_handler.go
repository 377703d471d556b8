package handler

import (
	"net/http"
	"time"

	"github.com/bitledger/bitledger-go/internal/domain"
	"github.com/bitledger/bitledger-go/internal/infra/observability"
	"github.com/bitledger/bitledger-go/internal/service"

	"go.uber.org/zap"
)

// analyticsEventsHandler serves recorded analytics events, filterable by
// name and RFC3339 date range.
func analyticsEventsHandler(analytics *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var from, to time.Time
		if v := r.URL.Query().Get("from"); v != "" {
			parsed, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "from must be RFC3339")
				return
			}
			from = parsed
		}
		if v := r.URL.Query().Get("to"); v != "" {
			parsed, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "to must be RFC3339")
				return
			}
			to = parsed
		}

		events := analytics.Events(r.URL.Query().Get("name"), from, to)
		if events == nil {
			events = []domain.AnalyticsEvent{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
	}
}

func ledgerMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetLedgerSnapshot())
	}
}
