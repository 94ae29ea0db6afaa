// Package cappsule provides a client for the Cappsule medicine search API.
package cappsule

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/medsearch/internal/model"
	"github.com/sells-group/medsearch/internal/resilience"
)

// DefaultBaseURL is the production search backend.
const DefaultBaseURL = "https://backend.cappsule.co.in"

const searchPath = "/api/v1/new_search"

// Client defines the search API operations.
type Client interface {
	// Search looks up salt suggestions for a free-text medicine query.
	Search(ctx context.Context, query string) (*SearchResponse, error)
}

// SearchResponse is a parsed search response together with its raw body.
type SearchResponse struct {
	Query   string
	Results []model.SearchResult
	Body    []byte
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client. The client is used as given;
// WithTimeout does not modify it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
		c.customHTTP = true
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.timeout = d
	}
}

// WithPharmacyIDs sets the source identifiers sent with every query.
func WithPharmacyIDs(ids ...int) Option {
	return func(c *httpClient) {
		c.pharmacyIDs = ids
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *httpClient) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithRetry sets the retry policy. The default is a single attempt.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithBreaker fails searches fast while b is open.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *httpClient) {
		c.breaker = b
	}
}

type httpClient struct {
	baseURL     string
	pharmacyIDs []int
	http        *http.Client
	customHTTP  bool
	timeout     time.Duration
	limiter     *rate.Limiter
	retry       resilience.RetryConfig
	breaker     *resilience.Breaker
}

// NewClient creates a search API client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:     DefaultBaseURL,
		pharmacyIDs: []int{1, 2, 3},
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.SingleAttempt(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 && !c.customHTTP {
		c.http.Timeout = c.timeout
	}
	return c
}

func (c *httpClient) searchURL(query string) string {
	ids := make([]string, 0, len(c.pharmacyIDs))
	for _, id := range c.pharmacyIDs {
		ids = append(ids, strconv.Itoa(id))
	}
	return fmt.Sprintf("%s%s?q=%s&pharmacyIds=%s",
		c.baseURL, searchPath, url.QueryEscape(query), strings.Join(ids, ","))
}

func (c *httpClient) Search(ctx context.Context, query string) (*SearchResponse, error) {
	reqURL := c.searchURL(query)

	body, err := resilience.Call(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
			return c.get(ctx, reqURL)
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "cappsule: search request failed")
	}

	results, err := model.ParseSearchResults(body)
	if err != nil {
		return nil, eris.Wrap(err, "cappsule: parse search response")
	}

	return &SearchResponse{Query: query, Results: results, Body: body}, nil
}

func (c *httpClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "cappsule: rate limiter wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "cappsule: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "cappsule: do request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "cappsule: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := eris.Errorf("cappsule: unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
