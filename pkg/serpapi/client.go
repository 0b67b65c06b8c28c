// Package serpapi queries SerpAPI's google_maps engine.
package serpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/maps-enrich/internal/resilience"
)

const defaultBaseURL = "https://serpapi.com"

// noResultsMessage prefixes the error SerpAPI reports for an empty search.
const noResultsMessage = "google hasn't returned any results"

// Client searches Google Maps through SerpAPI.
type Client interface {
	Search(ctx context.Context, query string) (*Response, error)
}

// APIError is an error reported by SerpAPI in the response body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return "serpapi: " + e.Message
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLocale sets the hl and gl parameters.
func WithLocale(language, country string) Option {
	return func(c *httpClient) {
		if language != "" {
			c.hl = language
		}
		if country != "" {
			c.gl = country
		}
	}
}

// WithRateLimit caps outgoing searches per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	hl, gl  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a SerpAPI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		hl:      "en",
		gl:      "us",
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search runs a google_maps search. A provider-reported error is returned as
// *APIError, except SerpAPI's empty-result message which yields a Response
// with no results. 429 and 5xx responses are returned as transient.
func (c *httpClient) Search(ctx context.Context, query string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "serpapi: rate limit")
		}
	}

	params := url.Values{}
	params.Set("engine", "google_maps")
	params.Set("type", "search")
	params.Set("q", query)
	params.Set("hl", c.hl)
	params.Set("gl", c.gl)
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: read response")
	}

	var out Response
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.Transient(fmt.Errorf("serpapi: status %d: %s", resp.StatusCode, msg), resp.StatusCode)
		}
		if isNoResults(msg) {
			return &Response{}, nil
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return nil, eris.Wrap(decodeErr, "serpapi: unmarshal response")
	}
	if out.Error != "" {
		if isNoResults(out.Error) {
			return &Response{SearchMetadata: out.SearchMetadata}, nil
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: out.Error}
	}
	return &out, nil
}

func isNoResults(msg string) bool {
	return strings.HasPrefix(strings.ToLower(msg), noResultsMessage)
}
