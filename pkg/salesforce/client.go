// Package salesforce wraps go-salesforce for the Account reads and writes the
// enricher performs.
package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the Salesforce API operations used by the enricher.
type Client interface {
	Query(ctx context.Context, soql string, out any) error
	Count(ctx context.Context, soql string) (int, error)
	UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error
	UpdateCollection(ctx context.Context, sObjectName string, records []CollectionRecord) ([]CollectionResult, error)
	Merge(ctx context.Context, sObjectName, masterID string, duplicateIDs []string) error
}

// CollectionRecord is one record in a collection update.
type CollectionRecord struct {
	ID     string         `json:"Id"`
	Fields map[string]any `json:"fields"`
}

// CollectionResult is the outcome of one record in a collection operation.
type CollectionResult struct {
	ID      string   `json:"id"`
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`

	// BatchFailed is set when the whole request failed rather than this record.
	BatchFailed bool `json:"-"`
}

// ClientOption configures the Salesforce client.
type ClientOption func(*sfClient)

// WithRateLimit sets a per-second rate limit for SF API calls.
func WithRateLimit(rps float64) ClientOption {
	return func(c *sfClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// sfClient wraps go-salesforce. The library takes no context, so ctx only
// bounds the rate limiter wait.
type sfClient struct {
	sf      *salesforce.Salesforce
	limiter *rate.Limiter
}

// NewClient creates a Client around an initialized go-salesforce instance.
func NewClient(sf *salesforce.Salesforce, opts ...ClientOption) Client {
	c := &sfClient{sf: sf}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *sfClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return ctx.Err()
	}
	return c.limiter.Wait(ctx)
}

func (c *sfClient) Query(ctx context.Context, soql string, out any) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "sf: rate limit")
	}
	if err := c.sf.Query(soql, out); err != nil {
		return eris.Wrap(err, "sf: query")
	}
	return nil
}

type countResponse struct {
	TotalSize int  `json:"totalSize"`
	Done      bool `json:"done"`
}

// Count runs a SELECT COUNT() query and returns totalSize.
func (c *sfClient) Count(ctx context.Context, soql string) (int, error) {
	if err := c.wait(ctx); err != nil {
		return 0, eris.Wrap(err, "sf: rate limit")
	}
	resp, err := c.sf.DoRequest(http.MethodGet, "/query/?q="+url.QueryEscape(soql), nil)
	if err != nil {
		return 0, eris.Wrap(err, "sf: count")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := checkResponse(resp); err != nil {
		return 0, eris.Wrap(err, "sf: count")
	}
	var out countResponse
	if err := decodeJSON(resp.Body, &out); err != nil {
		return 0, eris.Wrap(err, "sf: count")
	}
	return out.TotalSize, nil
}

func (c *sfClient) UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "sf: rate limit")
	}
	rec := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		rec[k] = v
	}
	rec["Id"] = id
	if err := c.sf.UpdateOne(sObjectName, rec); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update %s %s", sObjectName, id))
	}
	return nil
}

func (c *sfClient) UpdateCollection(ctx context.Context, sObjectName string, records []CollectionRecord) ([]CollectionResult, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "sf: rate limit")
	}
	maps := make([]map[string]any, len(records))
	for i, rec := range records {
		m := make(map[string]any, len(rec.Fields)+1)
		for k, v := range rec.Fields {
			m[k] = v
		}
		m["Id"] = rec.ID
		maps[i] = m
	}

	sfResults, err := c.sf.UpdateCollection(sObjectName, maps, maxBatchSize)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: update collection %s", sObjectName))
	}

	results := make([]CollectionResult, len(sfResults.Results))
	for i, r := range sfResults.Results {
		var errs []string
		for _, e := range r.Errors {
			errs = append(errs, e.Message)
		}
		results[i] = CollectionResult{ID: r.Id, Success: r.Success, Errors: errs}
	}
	return results, nil
}

type mergeRequest struct {
	IDsToMerge []string `json:"idsToMerge"`
}

// Merge folds duplicateIDs into masterID. Salesforce re-parents related
// records and deletes the duplicates.
func (c *sfClient) Merge(ctx context.Context, sObjectName, masterID string, duplicateIDs []string) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "sf: rate limit")
	}
	body, err := json.Marshal(mergeRequest{IDsToMerge: duplicateIDs})
	if err != nil {
		return eris.Wrap(err, "sf: marshal merge request")
	}

	uri := fmt.Sprintf("/sobjects/%s/%s/merge", sObjectName, masterID)
	resp, err := c.sf.DoRequest(http.MethodPost, uri, body)
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: merge into %s", masterID))
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := checkResponse(resp); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: merge into %s", masterID))
	}
	return nil
}
