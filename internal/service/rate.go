package service

import (
	"context"
	"sync"
	"time"

	"github.com/bitledger/bitledger-go/internal/domain"
	"github.com/bitledger/bitledger-go/internal/infra/observability"
	"github.com/bitledger/bitledger-go/internal/infra/resilience"
	"github.com/bitledger/bitledger-go/internal/port"
	"github.com/bitledger/bitledger-go/internal/pubsub"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var rateTracer = otel.Tracer("service/rate")

// RateService maintains a live, best-effort-fresh BTC exchange rate that
// stays usable offline.
//
// The published stream never goes silent: every fetch attempt ends in
// exactly one emission — the fresh rate on success, the reaffirmed cached
// rate on failure.
type RateService struct {
	fetcher   port.RateFetcher
	store     port.RateStore
	reach     port.Reachability
	analytics port.AnalyticsSink
	metrics   *observability.Metrics
	logger    *zap.Logger

	interval time.Duration
	rate     *pubsub.Value[float64]

	// inFlight serializes fetches: an attempt that finds one already
	// running is skipped and the poll timer retries naturally.
	inFlight *resilience.Bulkhead

	mu       sync.Mutex
	polling  bool
	pollStop chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateService loads the cached rate from the store and publishes it
// immediately (0 when none exists — an "unknown" sentinel, not an error).
// Call Start to begin connectivity-gated polling.
func NewRateService(
	fetcher port.RateFetcher,
	store port.RateStore,
	reach port.Reachability,
	analytics port.AnalyticsSink,
	metrics *observability.Metrics,
	logger *zap.Logger,
	interval time.Duration,
) *RateService {
	initial := 0.0
	cached, ok, err := store.GetCachedRate(context.Background())
	switch {
	case err != nil:
		analytics.Track(domain.ErrorEvent(err, domain.CtxLoadCachedBitcoinRate))
		metrics.IncrStoreError("get_cached_rate")
		logger.Warn("could not load cached rate", zap.Error(err))
	case ok:
		initial = cached
	}

	s := &RateService{
		fetcher:   fetcher,
		store:     store,
		reach:     reach,
		analytics: analytics,
		metrics:   metrics,
		logger:    logger,
		interval:  interval,
		rate:      pubsub.NewValue(initial),
		inFlight:  resilience.NewBulkhead(1),
		stop:      make(chan struct{}),
	}
	metrics.SetCurrentRate(initial)
	return s
}

// Rate exposes the rate stream. New subscribers immediately receive the
// latest published value.
func (s *RateService) Rate() *pubsub.Value[float64] {
	return s.rate
}

// Start begins watching connectivity. While reachable the service fetches
// immediately and then on the configured interval; on loss of connectivity
// the timer is torn down (in-flight fetches are not aborted, and their
// results are still applied).
func (s *RateService) Start() {
	go func() {
		if s.reach.IsConnected() {
			s.startPolling()
		}
		for {
			select {
			case <-s.stop:
				return
			case connected, ok := <-s.reach.StatusChanges():
				if !ok {
					return
				}
				if connected {
					s.startPolling()
				} else {
					s.stopPolling()
				}
			}
		}
	}()
}

// Stop tears down polling and the connectivity watch. Idempotent.
func (s *RateService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.stopPolling()
}

func (s *RateService) startPolling() {
	s.mu.Lock()
	if s.polling {
		s.mu.Unlock()
		return
	}
	s.polling = true
	s.pollStop = make(chan struct{})
	pollStop := s.pollStop
	s.mu.Unlock()

	s.logger.Info("rate polling started", zap.Duration("interval", s.interval))

	go func() {
		s.fetchOnce()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-pollStop:
				return
			case <-ticker.C:
				s.fetchOnce()
			}
		}
	}()
}

func (s *RateService) stopPolling() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.polling {
		return
	}
	s.polling = false
	close(s.pollStop)
	s.logger.Info("rate polling stopped")
}

// fetchOnce performs one guarded fetch attempt.
func (s *RateService) fetchOnce() {
	// Skip guaranteed failures while offline.
	if !s.reach.IsConnected() {
		return
	}
	if !s.inFlight.TryAcquire() {
		return
	}
	defer s.inFlight.Release()

	ctx, span := rateTracer.Start(context.Background(), "RateService.fetchOnce")
	defer span.End()

	start := time.Now()
	rate, err := s.fetcher.FetchRate(ctx)
	s.metrics.RecordOpDuration("rate_fetch", time.Since(start))

	if err != nil {
		s.metrics.IncrRateFetch("failure")
		s.analytics.Track(domain.ErrorEvent(err, domain.CtxBitcoinRateFetch))
		s.logger.Warn("rate fetch failed, falling back to cached value", zap.Error(err))
		s.publishCached(ctx)
		return
	}

	s.metrics.IncrRateFetch("success")
	s.metrics.SetCurrentRate(rate.Rate)
	s.rate.Set(rate.Rate)
	s.analytics.Track(domain.BitcoinRateEvent(rate))

	// Persistence is best-effort: a store failure after a successful fetch
	// never degrades the in-memory rate for this session.
	go func() {
		if err := s.store.SetCachedRate(context.Background(), rate.Rate); err != nil {
			s.metrics.IncrStoreError("set_cached_rate")
			s.logger.Warn("could not persist fetched rate", zap.Error(err))
		}
	}()
}

// publishCached re-reads the cached rate from the store (not from memory,
// to tolerate external store mutation) and re-publishes it.
func (s *RateService) publishCached(ctx context.Context) {
	cached, ok, err := s.store.GetCachedRate(ctx)
	if err != nil {
		s.metrics.IncrStoreError("get_cached_rate")
		s.analytics.Track(domain.ErrorEvent(err, domain.CtxLoadCachedBitcoinRate))
		// Still emit: reaffirm the last in-memory value.
		s.rate.Set(s.rate.Get())
		return
	}
	if !ok {
		cached = 0
	}
	s.rate.Set(cached)
}
