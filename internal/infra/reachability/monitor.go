// Package reachability reports whether the process currently has a usable
// network path, by probing a well-known endpoint on a fixed interval.
package reachability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Monitor probes probeURL periodically and publishes connectivity
// transitions. It implements port.Reachability.
type Monitor struct {
	httpClient *http.Client
	probeURL   string
	interval   time.Duration
	logger     *zap.Logger

	mu        sync.Mutex
	connected bool
	known     bool

	changes  chan bool
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a monitor and starts probing immediately.
func NewMonitor(httpClient *http.Client, probeURL string, interval time.Duration, logger *zap.Logger) *Monitor {
	m := &Monitor{
		httpClient: httpClient,
		probeURL:   probeURL,
		interval:   interval,
		logger:     logger,
		changes:    make(chan bool, 16),
		stop:       make(chan struct{}),
	}
	go m.loop()
	return m
}

// IsConnected reports the last observed connectivity status.
// Until the first probe completes, the status is disconnected.
func (m *Monitor) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// StatusChanges emits only on transitions, not on every probe.
func (m *Monitor) StatusChanges() <-chan bool {
	return m.changes
}

// Stop tears down the probe loop. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) loop() {
	m.observe(m.probe())

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.observe(m.probe())
		}
	}
}

// probe considers any HTTP response (regardless of status) proof of a
// usable network path; only transport failures count as disconnected.
func (m *Monitor) probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), m.interval)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		return false
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

func (m *Monitor) observe(now bool) {
	m.mu.Lock()
	changed := !m.known || m.connected != now
	m.known = true
	m.connected = now
	m.mu.Unlock()

	if !changed {
		return
	}

	m.logger.Info("connectivity changed", zap.Bool("connected", now))
	select {
	case m.changes <- now:
	default:
		// Consumer is not keeping up; the latest status is still
		// available via IsConnected.
		m.logger.Warn("dropping connectivity transition, channel full")
	}
}
