// ABOUTME: net/http implementation of the request transport used by the sync engine
// ABOUTME: Applies per-request timeouts, optional request pacing and quota header capture

package driver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"greader-sync/models"
)

const defaultUserAgent = "greader-sync/1.0"

// Request describes one HTTP call. A zero Timeout means the transport default.
type Request struct {
	URL     string
	Method  string
	Body    []byte
	Headers map[string]string
	Timeout time.Duration
}

// Response carries the status and full body of a completed HTTP call
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport performs HTTP requests. Errors are returned only for transport
// failures; non-2xx statuses come back as a Response.
type Transport interface {
	PerformRequest(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransportConfig configures HTTPTransport
type HTTPTransportConfig struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
	// OnAPIUsage receives provider quota headers when a response carries them.
	OnAPIUsage func(models.APIUsage)
}

// HTTPTransport is the production Transport backed by net/http
type HTTPTransport struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	userAgent  string
	onAPIUsage func(models.APIUsage)
	logger     *slog.Logger
}

// NewHTTPTransport creates a transport with a tuned connection pool
func NewHTTPTransport(cfg HTTPTransportConfig, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &HTTPTransport{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   2,
			},
		},
		limiter:    limiter,
		timeout:    cfg.Timeout,
		userAgent:  cfg.UserAgent,
		onAPIUsage: cfg.OnAPIUsage,
		logger:     logger,
	}
}

// SetHTTPClient allows injecting a custom HTTP client (useful for testing)
func (t *HTTPTransport) SetHTTPClient(client *http.Client) {
	t.httpClient = client
}

// HTTPClient exposes the underlying client so token refreshes share the pool
func (t *HTTPTransport) HTTPClient() *http.Client {
	return t.httpClient
}

// PerformRequest executes the request and reads the whole body
func (t *HTTPTransport) PerformRequest(ctx context.Context, req *Request) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("request pacing: %w", err)
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = t.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", t.userAgent)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		t.logger.Warn("HTTP request failed",
			"method", method,
			"url", req.URL,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if t.onAPIUsage != nil {
		if usage, ok := models.APIUsageFromHeaders(resp.Header, time.Now()); ok {
			t.onAPIUsage(usage)
		}
	}

	t.logger.Debug("HTTP request completed",
		"method", method,
		"url", req.URL,
		"status_code", resp.StatusCode,
		"response_size", len(data),
		"duration_ms", time.Since(start).Milliseconds())

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       data,
		Header:     resp.Header,
	}, nil
}
