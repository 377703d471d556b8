// Package blockchain fetches the current BTC exchange rate from a
// blockchain.info-style ticker endpoint.
package blockchain

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bitledger/bitledger-go/internal/domain"
	"github.com/bitledger/bitledger-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("blockchain")

// Client fetches the exchange rate with retry, circuit breaker, and tracing.
type Client struct {
	httpClient *http.Client
	tickerURL  string
	currency   string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewClient creates a ticker client. currency selects the entry of the
// ticker payload, e.g. "USD".
func NewClient(httpClient *http.Client, tickerURL, currency string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *Client {
	return &Client{
		httpClient: httpClient,
		tickerURL:  tickerURL,
		currency:   currency,
		cb:         cb,
		cfg:        cfg,
	}
}

// FetchRate performs a single ticker call and returns the configured
// currency's rate. Transport, status, and decode failures are all reported
// as typed errors so the rate service can treat them uniformly.
func (c *Client) FetchRate(ctx context.Context) (domain.BitcoinRate, error) {
	ctx, span := tracer.Start(ctx, "Client.FetchRate")
	defer span.End()
	span.SetAttributes(attribute.String("rate.currency", c.currency))

	var rate domain.BitcoinRate

	result, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tickerURL, nil)
			if err != nil {
				return err
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return &domain.ErrServerStatus{Endpoint: "ticker", StatusCode: resp.StatusCode}
			}

			var ticker domain.TickerResponse
			if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
				return &domain.ErrDecode{Endpoint: "ticker", Err: err}
			}

			entry, ok := ticker[c.currency]
			if !ok {
				return &domain.ErrDecode{
					Endpoint: "ticker",
					Err:      &domain.ErrValidation{Field: "currency", Message: c.currency + " missing from payload"},
				}
			}

			rate = domain.BitcoinRate{Rate: entry.Last, Currency: c.currency}
			return nil
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return rate, nil
	})

	if err != nil {
		return domain.BitcoinRate{}, &domain.ErrExternalService{Service: "ticker", Err: err}
	}

	return result.(domain.BitcoinRate), nil
}
