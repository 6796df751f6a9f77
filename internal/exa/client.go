// Package exa is a thin client for the Exa search API. It attaches
// credentials, bounds every attempt with a timeout, retries transient
// failures with exponential backoff and hands back the raw JSON body.
// Interpreting that body is left to the caller.
package exa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hession/exatool/internal/logger"
)

const (
	DefaultBaseURL          = "https://api.exa.ai"
	DefaultTimeout          = 30 * time.Second
	DefaultLivecrawlTimeout = 90 * time.Second
	DefaultMaxRetries       = 2
	DefaultBackoff          = 500 * time.Millisecond
	DefaultUserAgent        = "exatool/0.1"

	maxBackoffFactor = 8
	maxResponseBytes = 16 << 20
	errorBodyLimit   = 512
)

// Options configures a Client. Zero durations and strings fall back to the
// defaults above. MaxRetries is taken as given; negative counts as zero.
type Options struct {
	APIKey           string
	BaseURL          string
	UserAgent        string
	Timeout          time.Duration
	LivecrawlTimeout time.Duration
	MaxRetries       int
	Backoff          time.Duration
	HTTPClient       *http.Client
	Logger           *logger.Logger
}

// Client calls the Exa API. It holds no per-call state and is safe for
// concurrent use.
type Client struct {
	apiKey           string
	baseURL          string
	userAgent        string
	timeout          time.Duration
	livecrawlTimeout time.Duration
	maxRetries       int
	backoff          time.Duration
	httpClient       *http.Client
	logger           *logger.Logger
}

// New creates a client from opts.
func New(opts Options) *Client {
	c := &Client{
		apiKey:           strings.TrimSpace(opts.APIKey),
		baseURL:          strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		userAgent:        opts.UserAgent,
		timeout:          opts.Timeout,
		livecrawlTimeout: opts.LivecrawlTimeout,
		maxRetries:       opts.MaxRetries,
		backoff:          opts.Backoff,
		httpClient:       opts.HTTPClient,
		logger:           opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(c.userAgent) == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.livecrawlTimeout <= 0 {
		c.livecrawlTimeout = DefaultLivecrawlTimeout
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.backoff <= 0 {
		c.backoff = DefaultBackoff
	}
	if c.httpClient == nil {
		// Per-attempt deadlines come from the request context.
		c.httpClient = &http.Client{}
	}
	return c
}

// MaxRetries reports how many times a transient failure is retried.
func (c *Client) MaxRetries() int {
	return c.maxRetries
}

// Search calls POST /search.
func (c *Client) Search(ctx context.Context, req *SearchRequest) (json.RawMessage, error) {
	return c.post(ctx, EndpointSearch, req, c.timeout)
}

// Answer calls POST /answer.
func (c *Client) Answer(ctx context.Context, req *AnswerRequest) (json.RawMessage, error) {
	return c.post(ctx, EndpointAnswer, req, c.timeout)
}

// FindSimilar calls POST /findSimilar.
func (c *Client) FindSimilar(ctx context.Context, req *FindSimilarRequest) (json.RawMessage, error) {
	return c.post(ctx, EndpointFindSimilar, req, c.timeout)
}

// Contents calls POST /contents. Requests that may crawl live pages get the
// longer livecrawl timeout.
func (c *Client) Contents(ctx context.Context, req *ContentsRequest) (json.RawMessage, error) {
	timeout := c.timeout
	if req.Livecrawl != "" && req.Livecrawl != "never" {
		timeout = c.livecrawlTimeout
	}
	return c.post(ctx, EndpointContents, req, timeout)
}

func (c *Client) log(endpoint string) *logger.Entry {
	if c.logger != nil {
		return c.logger.With("endpoint", endpoint)
	}
	return logger.With("endpoint", endpoint)
}

// post sends payload to endpoint, retrying transient failures.
func (c *Client) post(ctx context.Context, endpoint string, payload any, timeout time.Duration) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s request: %w", endpoint, err)
	}

	var last *TransportError
	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		if attempt > 1 {
			delay := c.backoffFor(attempt - 1)
			c.log(endpoint).Debug("retrying in %s after: %v", delay, last)
			if err := sleep(ctx, delay); err != nil {
				return nil, &TransportError{Kind: ErrCanceled, Endpoint: endpoint, Attempts: attempt - 1, Err: err}
			}
		}

		data, terr, retryable := c.attempt(ctx, endpoint, body, timeout)
		if terr == nil {
			return data, nil
		}
		terr.Attempts = attempt
		if !retryable {
			return nil, terr
		}
		last = terr
	}

	c.log(endpoint).Warn("giving up after %d attempts: %v", last.Attempts, last)
	return nil, &TransportError{
		Kind:     ErrUnavailable,
		Endpoint: endpoint,
		Status:   last.Status,
		Attempts: last.Attempts,
		Body:     last.Body,
		Err:      last.Err,
	}
}

// attempt performs a single request. The bool result reports whether the
// failure is worth retrying.
func (c *Client) attempt(ctx context.Context, endpoint string, body []byte, timeout time.Duration) (json.RawMessage, *TransportError, bool) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Kind: ErrUnavailable, Endpoint: endpoint, Err: fmt.Errorf("failed to create request: %w", err)}, false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TransportError{Kind: ErrCanceled, Endpoint: endpoint, Err: ctx.Err()}, false
		}
		// Connection failures and attempt timeouts.
		return nil, &TransportError{Kind: ErrUnavailable, Endpoint: endpoint, Err: err}, true
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &TransportError{
			Kind:     ErrUnavailable,
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Body:     readErrorBody(resp.Body),
		}, true
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{
			Kind:     ErrClient,
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Body:     readErrorBody(resp.Body),
		}, false
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TransportError{Kind: ErrCanceled, Endpoint: endpoint, Err: ctx.Err()}, false
		}
		return nil, &TransportError{Kind: ErrUnavailable, Endpoint: endpoint, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}, true
	}
	return data, nil, false
}

// backoffFor returns the wait before retry n (1-based): base, 2×base, 4×base,
// capped at maxBackoffFactor×base.
func (c *Client) backoffFor(n int) time.Duration {
	factor := 1 << (n - 1)
	if n > 4 || factor > maxBackoffFactor {
		factor = maxBackoffFactor
	}
	return c.backoff * time.Duration(factor)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// readErrorBody keeps a short excerpt of an error response and drains the
// rest so the connection can be reused.
func readErrorBody(rc io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(rc, errorBodyLimit))
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 4096))
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Sprintf("(failed to read error body: %v)", err)
	}
	return strings.TrimSpace(string(body))
}
