package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitledger/bitledger-go/internal/config"
	"github.com/bitledger/bitledger-go/internal/handler"
	"github.com/bitledger/bitledger-go/internal/infra/blockchain"
	"github.com/bitledger/bitledger-go/internal/infra/observability"
	"github.com/bitledger/bitledger-go/internal/infra/reachability"
	"github.com/bitledger/bitledger-go/internal/infra/resilience"
	"github.com/bitledger/bitledger-go/internal/infra/sqlite"
	"github.com/bitledger/bitledger-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("db_path", cfg.DBPath),
		zap.String("ticker_url", cfg.TickerURL),
		zap.Duration("rate_poll_interval", cfg.RatePollInterval),
		zap.Int("page_size", cfg.PageSize),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "bitledger")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	store, err := sqlite.Open(cfg.DBPath, logger)
	if err != nil {
		// Schema/load failure at startup is the one fatal condition.
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	// --- Analytics ---
	analytics := service.NewAnalyticsService(logger)

	// --- Reachability ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	monitor := reachability.NewMonitor(httpClient, cfg.ProbeURL, cfg.ProbeInterval, logger)
	defer monitor.Stop()

	// --- Rate pipeline ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}
	cb := resilience.NewCircuitBreaker("ticker")
	fetcher := blockchain.NewClient(httpClient, cfg.TickerURL, cfg.RateCurrency, cb, resilienceCfg)

	rateSvc := service.NewRateService(fetcher, store, monitor, analytics, metrics, logger, cfg.RatePollInterval)
	rateSvc.Start()
	defer rateSvc.Stop()

	// --- Ledger ---
	ledgerSvc := service.NewLedgerService(context.Background(), store, analytics, metrics, logger, cfg.PageSize)

	// --- Router ---
	router := handler.NewRouter(ledgerSvc, rateSvc, analytics, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE streams stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
