// Package dify is a client for a Dify-compatible knowledge API: dataset listing and
// per-dataset hybrid retrieval.
package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/knoguchi/kbsearch/internal/httpclient"
)

const (
	// DefaultBaseURL is the default knowledge API base URL.
	DefaultBaseURL = "http://localhost/v1"

	// DefaultTimeout bounds a single retrieval request.
	DefaultTimeout = 30 * time.Second

	// DefaultListLimit is the page size used when listing datasets.
	DefaultListLimit = 40

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 16 << 20
)

// Config holds configuration for the knowledge API client.
type Config struct {
	// BaseURL is the API root, e.g. http://dify.example.com/v1.
	BaseURL string

	// APIKey is the dataset API key, sent as a bearer token.
	APIKey string

	// Timeout bounds each request (default: 30s).
	Timeout time.Duration

	// Retrieval holds the fixed retrieval parameters sent with every query.
	// Nil means DefaultRetrieval().
	Retrieval *RetrievalDefaults

	// RateLimit caps outbound requests per second. Zero disables limiting.
	RateLimit float64

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client talks to the knowledge API.
type Client struct {
	baseURL   string
	apiKey    string
	retrieval RetrievalDefaults
	limiter   *rate.Limiter
	client    *http.Client
	logger    *slog.Logger
}

// NewClient creates a new knowledge API client with the given configuration.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = httpclient.NewPooledClient(timeout)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		baseURL:   baseURL,
		apiKey:    cfg.APIKey,
		retrieval: resolveRetrieval(cfg.Retrieval),
		limiter:   limiter,
		client:    client,
		logger:    logger,
	}
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do waits for the rate limiter, sends the request and reads the whole body.
func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, body, nil
}

func datasetPath(id string) string {
	return "/datasets/" + url.PathEscape(id)
}

// reasonPhrase extracts "Not Found" from a status line such as "404 Not Found".
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
