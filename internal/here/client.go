// Package here is a client for the HERE Places browse endpoint.
package here

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
	"sync"
	"time"

	"placesweep/internal/geo"
	"placesweep/internal/logging"
)

var (
	// ErrUnauthorized is returned for 401/403 responses.
	ErrUnauthorized = errors.New("places API rejected credentials")
	// ErrStatus is wrapped by StatusError for any other non-200 response.
	ErrStatus = errors.New("places API returned an error status")
	// ErrResponseTooLarge is returned when a body exceeds maxResponseBytes.
	ErrResponseTooLarge = errors.New("places API response too large")
)

// maxResponseBytes caps a single browse response body.
var maxResponseBytes int64 = 16 << 20

// StatusError carries a non-200 response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("places API status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Browser is the part of the client the sweeper depends on.
type Browser interface {
	Browse(ctx context.Context, req BrowseRequest) ([]json.RawMessage, error)
}

// BrowseRequest describes one rectangular browse query.
type BrowseRequest struct {
	In         geo.Rectangle
	Size       int
	Categories []string
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	APIKey      string
	AppID       string
	AppCode     string
	PageSize    int
	MaxPages    int
	Timeout     time.Duration
	MinInterval time.Duration
}

// DefaultConfig returns defaults for the public endpoint.
func DefaultConfig() Config {
	return Config{
		BaseURL:  "https://places.api.here.com/places/v1",
		PageSize: 100,
		MaxPages: 1,
		Timeout:  30 * time.Second,
	}
}

// Client implements Browser against the HERE Places REST API.
type Client struct {
	baseURL     string
	apiKey      string
	appID       string
	appCode     string
	pageSize    int
	maxPages    int
	minInterval time.Duration
	httpClient  *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// NewClient creates a client with custom config.
func NewClient(cfg Config) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		appID:       cfg.AppID,
		appCode:     cfg.AppCode,
		pageSize:    cfg.PageSize,
		maxPages:    cfg.MaxPages,
		minInterval: cfg.MinInterval,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Browse returns the places in req.In, following next links up to the
// configured page limit. Items are returned as raw JSON objects.
func (c *Client) Browse(ctx context.Context, req BrowseRequest) ([]json.RawMessage, error) {
	size := req.Size
	if size <= 0 {
		size = c.pageSize
	}

	params := url.Values{}
	params.Set("in", req.In.String())
	params.Set("size", strconv.Itoa(size))
	if len(req.Categories) > 0 {
		params.Set("cat", strings.Join(req.Categories, ","))
	}

	start := time.Now()
	next := c.baseURL + "/browse?" + c.authorize(params).Encode()

	var items []json.RawMessage
	for page := 0; page < c.maxPages && next != ""; page++ {
		resp, err := c.get(ctx, next)
		if err != nil {
			return nil, err
		}
		items = append(items, resp.Results.Items...)
		next = ""
		if resp.Results.Next != "" && page+1 < c.maxPages {
			logging.API("Following page %d for in=%s", page+2, req.In)
			next, err = c.nextURL(resp.Results.Next)
			if err != nil {
				return nil, err
			}
		}
	}

	logging.APIDebug("browse in=%s size=%d items=%d took=%v", req.In, size, len(items), time.Since(start))
	return items, nil
}

func (c *Client) authorize(params url.Values) url.Values {
	if c.apiKey != "" {
		params.Set("apiKey", c.apiKey)
	} else {
		params.Set("app_id", c.appID)
		params.Set("app_code", c.appCode)
	}
	return params
}

// nextURL re-applies credentials to a pagination link; the API does not
// echo them back.
func (c *Client) nextURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid next link %q: %w", raw, err)
	}
	if !u.IsAbs() {
		base, err := url.Parse(c.baseURL + "/")
		if err != nil {
			return "", err
		}
		u = base.ResolveReference(u)
	}
	u.RawQuery = c.authorize(u.Query()).Encode()
	return u.String(), nil
}

func (c *Client) pace(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wait := c.minInterval - time.Since(c.lastRequest); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	c.lastRequest = time.Now()
	return nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*BrowseResponse, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > maxResponseBytes {
		logging.APIError("browse response exceeds %d bytes", maxResponseBytes)
		return nil, fmt.Errorf("%w (limit %d bytes)", ErrResponseTooLarge, maxResponseBytes)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		logging.APIError("browse rejected: status=%d", resp.StatusCode)
		return nil, fmt.Errorf("%w (status %d)", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		logging.APIError("browse failed: status=%d body=%s", resp.StatusCode, truncate(string(body), 200))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 500)}
	}

	var out BrowseResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
