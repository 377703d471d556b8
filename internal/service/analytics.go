package service

import (
	"sync"
	"time"

	"github.com/bitledger/bitledger-go/internal/domain"

	"go.uber.org/zap"
)

// AnalyticsService is an in-memory, fire-and-forget event sink with a small
// query surface for diagnostics. It implements port.AnalyticsSink and never
// blocks the core services.
type AnalyticsService struct {
	logger *zap.Logger

	mu     sync.Mutex
	events []domain.AnalyticsEvent
}

// NewAnalyticsService creates an empty sink.
func NewAnalyticsService(logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{logger: logger}
}

// Track records an event.
func (s *AnalyticsService) Track(event domain.AnalyticsEvent) {
	if event.Date.IsZero() {
		event.Date = time.Now()
	}

	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()

	s.logger.Debug("analytics event",
		zap.String("name", event.Name),
		zap.Any("parameters", event.Parameters),
	)
}

// TrackNamed records an ad-hoc event from a name and flat parameters.
func (s *AnalyticsService) TrackNamed(name string, parameters map[string]string) {
	s.Track(domain.AnalyticsEvent{Name: name, Parameters: parameters, Date: time.Now()})
}

// Events returns recorded events filtered by name and date range. Zero
// values disable the corresponding filter.
func (s *AnalyticsService) Events(name string, from, to time.Time) []domain.AnalyticsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.AnalyticsEvent
	for _, e := range s.events {
		if name != "" && e.Name != name {
			continue
		}
		if !from.IsZero() && e.Date.Before(from) {
			continue
		}
		if !to.IsZero() && e.Date.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Clear drops all recorded events.
func (s *AnalyticsService) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
