// Package shortener talks to a Shlink instance to turn long file URLs into short links.
package shortener

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Tag is attached to every short URL created by this service.
const Tag = "quick-share-file"

const shortURLPath = "/rest/v3/short-urls"

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// ErrEmptyShortURL is returned when Shlink answers 2xx without a shortUrl.
var ErrEmptyShortURL = errors.New("shortener response has no shortUrl")

// APIError is a non-2xx answer from Shlink.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Title
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("shlink returned %d: %s", e.StatusCode, msg)
}

// Shortener creates short links.
type Shortener interface {
	Shorten(ctx context.Context, longURL string) (string, error)
}

// Options tune the client. The zero value means a single attempt with a 10s timeout.
type Options struct {
	Timeout     time.Duration
	MaxRetries  uint64
	RetryPeriod time.Duration
	HTTPClient  *http.Client
}

// Client is a Shlink REST API v3 client.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	maxRetries  uint64
	retryPeriod time.Duration
}

type createRequest struct {
	LongURL string   `json:"longUrl"`
	Tags    []string `json:"tags"`
}

type createResponse struct {
	ShortURL string `json:"shortUrl"`
}

// problem is Shlink's RFC 7807 error body.
type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// NewClient creates a Client for the Shlink instance at baseURL.
func NewClient(baseURL, apiKey string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	retryPeriod := opts.RetryPeriod
	if retryPeriod <= 0 {
		retryPeriod = 500 * time.Millisecond
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		httpClient:  httpClient,
		maxRetries:  opts.MaxRetries,
		retryPeriod: retryPeriod,
	}
}

// Shorten registers longURL with Shlink and returns the short URL.
// Transport errors and 5xx answers are retried up to MaxRetries times;
// everything else fails on the first attempt.
func (c *Client) Shorten(ctx context.Context, longURL string) (string, error) {
	body, err := json.Marshal(createRequest{LongURL: longURL, Tags: []string{Tag}})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	var shortURL string
	op := func() error {
		var err error
		shortURL, err = c.create(ctx, body)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryPeriod
	b := backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx)

	if err := backoff.Retry(op, b); err != nil {
		return "", err
	}
	return shortURL, nil
}

func (c *Client) create(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+shortURLPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("call shlink: %w", err)
		if ctx.Err() != nil {
			return "", backoff.Permanent(err)
		}
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var p problem
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&p); err == nil {
			apiErr.Title = p.Title
			apiErr.Detail = p.Detail
		}
		if apiErr.StatusCode >= 500 {
			return "", apiErr
		}
		return "", backoff.Permanent(apiErr)
	}

	// Past this point the link exists on the Shlink side; a retry would create a duplicate.
	var out createResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", backoff.Permanent(fmt.Errorf("decode shlink response: %w", err))
	}
	if out.ShortURL == "" {
		return "", backoff.Permanent(ErrEmptyShortURL)
	}
	return out.ShortURL, nil
}
