// Package cms fetches provider snapshots from the CMS provider data
// datastore API.
package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nursinghomes/internal/domain/facility"
	"nursinghomes/internal/domain/owner"
)

const (
	DefaultBaseURL         = "https://data.cms.gov/provider-data/api/1/datastore/query"
	DefaultFacilityDataset = "4pq5-n9py"
	DefaultOwnerDataset    = "y2hd-n93e"
	DefaultPageSize        = 1500
	defaultTimeout         = 120 * time.Second
	maxPages               = 1000
)

// ErrMalformedResponse is returned when the datastore answers without a
// results array.
var ErrMalformedResponse = errors.New("malformed datastore response")

// Config holds datastore client settings. Zero values fall back to the
// public endpoint and datasets.
type Config struct {
	BaseURL         string
	FacilityDataset string
	OwnerDataset    string
	PageSize        int
	Timeout         time.Duration
}

// Client handles communication with the datastore API
type Client struct {
	httpClient *http.Client
	cfg        Config
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new datastore client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.FacilityDataset == "" {
		cfg.FacilityDataset = DefaultFacilityDataset
	}
	if cfg.OwnerDataset == "" {
		cfg.OwnerDataset = DefaultOwnerDataset
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cfg: cfg,
	}
}

// page is one datastore query response
type page[T any] struct {
	Results *[]T `json:"results"`
	Count   int  `json:"count"`
}

// ErrorResponse represents an error body returned by the datastore
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// FetchFacilities returns the full provider information snapshot.
func (c *Client) FetchFacilities(ctx context.Context) ([]facility.Attributes, error) {
	return fetchAll[facility.Attributes](ctx, c, c.cfg.FacilityDataset)
}

// FetchOwners returns the full ownership snapshot.
func (c *Client) FetchOwners(ctx context.Context) ([]owner.Record, error) {
	return fetchAll[owner.Record](ctx, c, c.cfg.OwnerDataset)
}

// fetchAll walks the dataset with limit/offset. When the datastore reports
// a count it is followed even if the server serves pages shorter than the
// requested limit; otherwise a short page ends the walk.
func fetchAll[T any](ctx context.Context, c *Client, dataset string) ([]T, error) {
	var all []T
	offset := 0
	for i := 0; i < maxPages; i++ {
		p, err := fetchPage[T](ctx, c, dataset, offset)
		if err != nil {
			return nil, err
		}
		n := len(*p.Results)
		all = append(all, *p.Results...)
		offset += n

		switch {
		case n == 0:
			return all, nil
		case p.Count > 0:
			if offset >= p.Count {
				return all, nil
			}
		case n < c.cfg.PageSize:
			return all, nil
		}
	}
	return nil, fmt.Errorf("dataset %s exceeded %d pages", dataset, maxPages)
}

func fetchPage[T any](ctx context.Context, c *Client, dataset string, offset int) (*page[T], error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.cfg.PageSize))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("count", "true")
	q.Set("results", "true")
	endpoint := fmt.Sprintf("%s/%s/0?%s", c.cfg.BaseURL, dataset, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil || errResp.Message == "" {
			return nil, fmt.Errorf("datastore request failed with status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("datastore error (status %d): %s", resp.StatusCode, errResp.Message)
	}

	var p page[T]
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if p.Results == nil {
		return nil, fmt.Errorf("%w: missing results", ErrMalformedResponse)
	}

	return &p, nil
}
