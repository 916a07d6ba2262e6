// Package sirene provides a client for the SIRENE company registry API.
package sirene

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/proprio-data/cadastre-api/internal/resilience"
)

const defaultBaseURL = "https://api.registre-entreprises.fr/v3"

// Client defines the registry operations used by the enrichment layer.
type Client interface {
	// LookupByIdentifier fetches the legal unit for a 9-digit SIREN.
	// A registry miss returns (nil, nil); only transport-level failures
	// that survive retries return an error.
	LookupByIdentifier(ctx context.Context, siren string) (*UnitRecord, error)
}

// Option configures the sirene client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.client = hc
	}
}

// WithRateLimit overrides the client-level throttle (30 req/s, the
// registry's published ceiling). Zero or negative disables it.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithRetry overrides the transient-error retry configuration.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewClient creates a registry client. The API key may be empty for
// unauthenticated test servers.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(30, 30),
		retry:   resilience.DefaultRetryConfig(),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LookupByIdentifier implements Client.
func (c *httpClient) LookupByIdentifier(ctx context.Context, siren string) (*UnitRecord, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "sirene: rate limit")
		}
	}

	return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*UnitRecord, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*UnitRecord, error) {
			return c.fetchUnit(ctx, siren)
		})
	})
}

func (c *httpClient) fetchUnit(ctx context.Context, siren string) (*UnitRecord, error) {
	url := fmt.Sprintf("%s/unites/%s", c.baseURL, siren)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sirene: create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "sirene: lookup request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("sirene: http %d for %s", resp.StatusCode, siren),
			resp.StatusCode,
		)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("sirene: http %d for %s", resp.StatusCode, siren)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, eris.Wrap(err, "sirene: read response")
	}

	var unit UnitRecord
	if err := json.Unmarshal(body, &unit); err != nil {
		return nil, eris.Wrapf(err, "sirene: decode unit %s", siren)
	}

	return &unit, nil
}
