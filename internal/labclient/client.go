// Package labclient fetches test results from the lab result server.
package labclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cwa-verification/tanserver/internal/core/domain"
	"github.com/cwa-verification/tanserver/internal/infra/buildinfo"
)

// ResultPath is the lab server endpoint, relative to the base URL.
const ResultPath = "/api/v1/app/result"

// maxResponseBytes caps the lab response body.
const maxResponseBytes = 1 << 20

// Config holds client settings.
type Config struct {
	// BaseURL is the lab server root, e.g. https://lab.example.
	BaseURL string

	// Timeout bounds one request (default: 10s).
	Timeout time.Duration
}

// Client is an HTTP implementation of service.LabResultClient.
type Client struct {
	endpoint string
	client   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// New creates a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("labclient: base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("labclient: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("labclient: unsupported scheme %q", u.Scheme)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + ResultPath,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type resultRequest struct {
	ID string `json:"id"`
}

type resultResponse struct {
	TestResult *int `json:"testResult"`
}

// Result posts the hashed GUID and returns the lab's result code.
// The code is returned as sent; range checks are the caller's concern.
func (c *Client) Result(ctx context.Context, hashedGUID string) (domain.TestResult, error) {
	body, err := json.Marshal(resultRequest{ID: hashedGUID})
	if err != nil {
		return 0, fmt.Errorf("labclient: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("labclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tan-server/"+buildinfo.Version)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("labclient: post result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return 0, fmt.Errorf("labclient: unexpected status %d", resp.StatusCode)
	}

	var out resultResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return 0, fmt.Errorf("labclient: decode response: %w", err)
	}
	if out.TestResult == nil {
		return 0, errors.New("labclient: response has no testResult")
	}
	return domain.TestResult(*out.TestResult), nil
}
