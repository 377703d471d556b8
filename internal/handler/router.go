// Package handler exposes the ledger and rate services over HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/bitledger/bitledger-go/internal/infra/observability"
	"github.com/bitledger/bitledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(
	ledger *service.LedgerService,
	rate *service.RateService,
	analytics *service.AnalyticsService,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	startedAt := time.Now()
	r.Get("/healthz", healthzHandler(startedAt))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		// Ledger commands
		r.Post("/transactions", addTransactionHandler(ledger, logger))
		r.Post("/transactions/income", addIncomeHandler(ledger, logger))
		r.Post("/transactions/pages", loadNextPageHandler(ledger))

		// Ledger queries
		r.Get("/transactions", getGroupsHandler(ledger))
		r.Get("/transactions/pages/more", hasMorePagesHandler(ledger))
		r.Get("/balance", getBalanceHandler(ledger))

		// Rate
		r.Get("/rate", getRateHandler(rate))

		// Live streams
		r.Get("/rate/stream", rateStreamHandler(rate))
		r.Get("/balance/stream", balanceStreamHandler(ledger))
		r.Get("/transactions/stream", groupsStreamHandler(ledger))

		// Diagnostics
		r.Get("/analytics/events", analyticsEventsHandler(analytics, logger))
		r.Get("/metrics/ledger", ledgerMetricsHandler(metrics))
	})

	return r
}
