// Package client provides the authenticated marketplace HTTP client with
// default headers, retries, rate-limit cooldowns, and JSON decoding.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/altered-tcg-client/pkg/ratelimit"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultBaseURL is the marketplace API host.
	DefaultBaseURL = "https://api.altered.gg"

	// DefaultUserAgent is sent until a rate-limited response triggers a rotation.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:138.0) Gecko/20100101 Firefox/138.0"

	// DefaultTimeout bounds a single request attempt.
	DefaultTimeout = 260 * time.Second

	tracerName = "github.com/Sternrassler/altered-tcg-client/pkg/client"
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 408 and 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassTimeout represents 408 responses and transport timeouts.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassNetwork represents other transport failures.
	ErrorClassNetwork ErrorClass = "network"
)

// Client is the marketplace API client. It is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	headers     http.Header
	rateLimiter *ratelimit.Tracker
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API host, e.g. https://api.altered.gg
	BaseURL string

	// Token is the bearer credential, with or without the "Bearer " prefix.
	Token string

	// UserAgent is the initial User-Agent header.
	UserAgent string

	// Timeout bounds each request attempt.
	Timeout time.Duration

	// Retry controls the retry policy shared by all methods.
	Retry RetryConfig

	// RateLimiter, when set, shares 429 cooldowns between concurrent requests.
	RateLimiter *ratelimit.Tracker

	// DisableUserAgentRotation keeps the User-Agent fixed across 429 retries.
	DisableUserAgentRotation bool

	// HTTPClient overrides the underlying transport (for testing).
	HTTPClient *http.Client
}

// RequestOptions describes the optional parts of a request.
type RequestOptions struct {
	Query url.Values
	Body  any
}

// DefaultConfig returns the default configuration for the given credential.
func DefaultConfig(token string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Token:     token,
		UserAgent: DefaultUserAgent,
		Timeout:   DefaultTimeout,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new marketplace client. The credential is attached once here
// and never changes for the lifetime of the client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrMissingToken
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("retry max_attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	headers := http.Header{}
	headers.Set("User-Agent", cfg.UserAgent)
	headers.Set("Origin", "https://www.altered.gg")
	headers.Set("Referer", "https://www.altered.gg/")
	headers.Set("Accept", "*/*")
	headers.Set("Pragma", "no-cache")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Content-Type", "application/json")
	headers.Set("Authorization", FormatToken(cfg.Token))

	return &Client{
		httpClient:  httpClient,
		baseURL:     baseURL,
		headers:     headers,
		rateLimiter: cfg.RateLimiter,
		config:      cfg,
		logger:      log.With().Str("component", "altered-client").Logger(),
	}, nil
}

// FormatToken normalizes a credential so it carries the "Bearer " prefix exactly once.
func FormatToken(token string) string {
	token = strings.TrimSpace(token)
	for strings.HasPrefix(token, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	}
	return "Bearer " + token
}

// GetJSON performs a GET request and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.Send(ctx, http.MethodGet, path, RequestOptions{Query: query}, out)
}

// Send performs a request with retries and decodes a 2xx JSON body into out.
// A nil out discards the body.
func (c *Client) Send(ctx context.Context, method, path string, opts RequestOptions, out any) (err error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(method).Observe(time.Since(startTime).Seconds())
	}()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "altered "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("altered.path", path),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	target := c.baseURL.JoinPath(path)
	if len(opts.Query) > 0 {
		target.RawQuery = opts.Query.Encode()
	}

	var body []byte
	if opts.Body != nil {
		body, err = json.Marshal(opts.Body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	// Per-call copy: the retry hook may rewrite the User-Agent of this call only.
	headers := c.headers.Clone()

	c.logger.Debug().
		Str("path", path).
		Str("method", method).
		Msg("Executing API request")

	var payload []byte
	retryErr := retryWithBackoff(ctx, c.logger, c.config.Retry, func(attempt int) error {
		span.SetAttributes(attribute.Int("altered.attempts", attempt))
		var attemptErr error
		payload, attemptErr = c.attempt(ctx, method, path, target.String(), headers, body)
		return attemptErr
	}, func(err error) ErrorClass {
		return c.classifyError(ctx, err)
	}, func(attempt int, err error) {
		c.beforeRetry(headers, attempt, err)
	})
	if retryErr != nil {
		return retryErr
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// attempt sends one request and returns the 2xx body.
func (c *Client) attempt(ctx context.Context, method, path, target string, headers http.Header, body []byte) ([]byte, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn().Err(err).Msg("Rate limit state unavailable, sending anyway")
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header = headers.Clone()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errClass := c.classifyError(ctx, err)
		errorsTotal.WithLabelValues(string(errClass)).Inc()
		requestsTotal.WithLabelValues(method, "network_error").Inc()
		c.logger.Debug().Err(err).Str("path", path).Msg("HTTP request failed")
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, fmt.Errorf("read response body: %w", err)
	}

	requestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	errClass := classifyStatus(resp.StatusCode)
	errorsTotal.WithLabelValues(string(errClass)).Inc()

	apiErr := &APIError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		ErrorClass: errClass,
		Message:    resp.Status,
		retryAfter: parseRetryAfter(resp.Header, time.Now()),
	}
	if snippet := strings.TrimSpace(string(data)); snippet != "" {
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		apiErr.Message = resp.Status + ": " + snippet
	}

	c.logger.Warn().
		Str("path", path).
		Int("status", resp.StatusCode).
		Str("error_class", string(errClass)).
		Msg("API request error")

	if errClass == ErrorClassRateLimit && c.rateLimiter != nil {
		if err := c.rateLimiter.RecordRateLimit(ctx, apiErr.retryAfter); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to record rate limit")
		}
	}

	return nil, apiErr
}

// beforeRetry rotates the User-Agent of the in-flight call after a 429.
func (c *Client) beforeRetry(headers http.Header, attempt int, err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		return
	}
	if c.config.DisableUserAgentRotation {
		return
	}
	headers.Set("User-Agent", RandomUserAgent())
	userAgentRotationsTotal.Inc()
	c.logger.Debug().
		Int("attempt", attempt).
		Str("path", apiErr.Path).
		Msg("Rotated User-Agent after rate limit")
}

// classifyError categorizes an error for observability and retry decisions.
// Errors caused by the caller's context are never retried.
func (c *Client) classifyError(ctx context.Context, err error) ErrorClass {
	if err == nil {
		return ""
	}
	if ctx.Err() != nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTimeout
	}
	return ErrorClassNetwork
}

// classifyStatus maps a non-2xx status code to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status == http.StatusRequestTimeout:
		return ErrorClassTimeout
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func parseRetryAfter(headers http.Header, now time.Time) time.Duration {
	raw := strings.TrimSpace(headers.Get("Retry-After"))
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
