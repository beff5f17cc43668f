// Package client provides the HTTP client for the account validation service,
// together with API key management, retry with backoff, and the per-record
// request executor used by the pipeline.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/account-validator/pkg/ratelimit"
	"github.com/Sternrassler/account-validator/pkg/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Endpoint paths on the validation service.
const (
	KeyPath      = "/api/key"
	ValidatePath = "/api/validate"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 1 << 20

// Config holds the client configuration.
type Config struct {
	// BaseURL of the validation service, e.g. "http://localhost:8000". Required.
	BaseURL string

	// APIKey seeds the first credential. When empty, a key is fetched from
	// KeyPath on first use.
	APIKey string

	UserAgent string

	// RequestTimeout bounds each individual HTTP request.
	RequestTimeout time.Duration

	// Retry
	MaxRetries int
	RetryDelay time.Duration
	MaxBackoff time.Duration
	Jitter     bool

	// Client-side pacing, see ratelimit.Config.
	RateLimit ratelimit.Config

	// HTTPClient overrides the default transport (for testing).
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	retry := DefaultRetryConfig()
	return Config{
		BaseURL:        baseURL,
		UserAgent:      "account-validator/1.0",
		RequestTimeout: 30 * time.Second,
		MaxRetries:     retry.MaxRetries,
		RetryDelay:     retry.InitialBackoff,
		MaxBackoff:     retry.MaxBackoff,
		Jitter:         retry.Jitter,
		RateLimit:      ratelimit.DefaultConfig(),
	}
}

// RetryConfig derives the retry policy from the client configuration.
func (cfg Config) RetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        cfg.MaxRetries,
		InitialBackoff:    cfg.RetryDelay,
		MaxBackoff:        cfg.MaxBackoff,
		BackoffMultiplier: 2.0,
		Jitter:            cfg.Jitter,
	}
}

// Client talks to the validation service. It is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Tracker
	config      Config
	logger      zerolog.Logger
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ValidateResponse is the body returned by ValidatePath.
type ValidateResponse struct {
	Status            string `json:"status"`
	AccountHolderName string `json:"accountHolderName"`
	BankName          string `json:"bankName"`
	Currency          string `json:"currency"`
	ErrorCode         string `json:"errorCode"`
	ErrorDescription  string `json:"errorDescription"`

	// Error bodies of non-2xx responses.
	Message string `json:"message"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
}

type validateRequest struct {
	AccountNumber string `json:"accountNumber"`
	BankCode      string `json:"bankCode"`
}

type keyResponse struct {
	APIKey string `json:"apiKey"`
	Token  string `json:"token"`
}

// New creates a new validation service client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%w: base URL is required", validation.ErrConfiguration)
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("%w: request timeout must be > 0 (got %s)", validation.ErrConfiguration, cfg.RequestTimeout)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("%w: max retries must be >= 0 (got %d)", validation.ErrConfiguration, cfg.MaxRetries)
	}
	if cfg.RetryDelay < 0 {
		return nil, fmt.Errorf("%w: retry delay must be >= 0 (got %s)", validation.ErrConfiguration, cfg.RetryDelay)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "account-validator/1.0"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	logger := log.With().Str("component", "validator-client").Logger()

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		httpClient:  httpClient,
		rateLimiter: ratelimit.NewTracker(cfg.RateLimit, logger),
		config:      cfg,
		logger:      logger,
	}, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}

// RateLimiter returns the tracker fed by this client's responses.
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// FetchKey performs GET KeyPath. Transport failures are returned as errors;
// any HTTP status is returned as a Response.
func (c *Client) FetchKey(ctx context.Context) (*Response, error) {
	return c.do(ctx, http.MethodGet, KeyPath, nil, "")
}

// Validate performs POST ValidatePath for one record with the given bearer token.
func (c *Client) Validate(ctx context.Context, rec validation.Record, token string) (*Response, error) {
	body := validateRequest{
		AccountNumber: strings.TrimSpace(rec.AccountNumber),
		BankCode:      strings.TrimSpace(rec.BankCode),
	}
	return c.do(ctx, http.MethodPost, ValidatePath, body, token)
}

// do executes one request under the per-request timeout and reads the body.
func (c *Client) do(ctx context.Context, method, endpoint string, payload any, token string) (*Response, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.config.BaseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Str("request_id", requestID).
		Msg("Executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if err := c.rateLimiter.UpdateFromHeaders(resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// decodeKey extracts the API key from a KeyPath response body.
func decodeKey(body []byte) (string, error) {
	var kr keyResponse
	if err := json.Unmarshal(body, &kr); err != nil {
		return "", fmt.Errorf("decode key response: %w", err)
	}
	key := kr.APIKey
	if key == "" {
		key = kr.Token
	}
	if key == "" {
		return "", fmt.Errorf("key response carries no apiKey")
	}
	return key, nil
}
