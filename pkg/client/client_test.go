package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sternrassler/account-validator/internal/testutil"
	"github.com/Sternrassler/account-validator/pkg/validation"
	"github.com/google/uuid"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:        "missing base URL",
			mutate:      func(c *Config) { c.BaseURL = "  " },
			expectError: true,
		},
		{
			name:        "zero request timeout",
			mutate:      func(c *Config) { c.RequestTimeout = 0 },
			expectError: true,
		},
		{
			name:        "negative retries",
			mutate:      func(c *Config) { c.MaxRetries = -1 },
			expectError: true,
		},
		{
			name:        "negative retry delay",
			mutate:      func(c *Config) { c.RetryDelay = -time.Second },
			expectError: true,
		},
		{
			name:   "empty user agent gets default",
			mutate: func(c *Config) { c.UserAgent = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("http://localhost:8000/")
			tt.mutate(&cfg)

			client, err := New(cfg)
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if !errors.Is(err, validation.ErrConfiguration) {
					t.Errorf("error = %v, want ErrConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client.Config().UserAgent == "" {
				t.Error("UserAgent should never be empty")
			}
			if client.Config().BaseURL != "http://localhost:8000" {
				t.Errorf("BaseURL = %q, want trailing slash trimmed", client.Config().BaseURL)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("http://localhost:8000")

	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.RequestTimeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.RetryDelay != 2*time.Second {
		t.Errorf("RetryDelay = %v, want 2s", cfg.RetryDelay)
	}

	retry := cfg.RetryConfig()
	if retry.InitialBackoff != cfg.RetryDelay || retry.MaxRetries != cfg.MaxRetries {
		t.Errorf("RetryConfig() = %+v, does not match client config", retry)
	}
}

func TestValidate_RequestShape(t *testing.T) {
	var (
		gotHeader http.Header
		gotBody   map[string]string
		gotMethod string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotMethod = r.Method
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "Valid"}`))
	}))
	defer server.Close()

	cfg := DefaultConfig(server.URL)
	cfg.UserAgent = "TestApp/1.0.0 (test@example.com)"
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	rec := validation.Record{AccountNumber: " 1234567890 ", BankCode: "01"}
	resp, err := client.Validate(context.Background(), rec, "secret")
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if got := gotHeader.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer secret")
	}
	if got := gotHeader.Get("User-Agent"); got != cfg.UserAgent {
		t.Errorf("User-Agent = %q, want %q", got, cfg.UserAgent)
	}
	if _, err := uuid.Parse(gotHeader.Get("X-Request-ID")); err != nil {
		t.Errorf("X-Request-ID = %q is not a UUID", gotHeader.Get("X-Request-ID"))
	}
	if gotBody["accountNumber"] != "1234567890" || gotBody["bankCode"] != "01" {
		t.Errorf("body = %v, want trimmed accountNumber and bankCode", gotBody)
	}
}

func TestValidate_UpdatesRateLimitState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "42")
		w.Header().Set("X-RateLimit-Limit", "100")
		w.Header().Set("X-RateLimit-Reset", "60")
		w.Write([]byte(`{"status": "Valid"}`))
	}))
	defer server.Close()

	client, err := New(DefaultConfig(server.URL))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if _, err := client.Validate(context.Background(), validation.Record{AccountNumber: "1", BankCode: "01"}, "k"); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	state := client.RateLimiter().GetState()
	if !state.Known || state.Remaining != 42 || state.Limit != 100 {
		t.Errorf("rate limit state = %+v, want remaining 42 of 100", state)
	}
}

func TestFetchKey(t *testing.T) {
	mock := testutil.NewMockValidator()
	defer mock.Close()
	mock.SetAPIKey("abc123")

	client, err := New(DefaultConfig(mock.URL()))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	resp, err := client.FetchKey(context.Background())
	if err != nil {
		t.Fatalf("FetchKey() failed: %v", err)
	}
	key, err := decodeKey(resp.Body)
	if err != nil {
		t.Fatalf("decodeKey() failed: %v", err)
	}
	if key != "abc123" {
		t.Errorf("key = %q, want abc123", key)
	}
}

func TestDecodeKey(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "apiKey field", body: `{"apiKey": "k1"}`, want: "k1"},
		{name: "token field", body: `{"token": "k2"}`, want: "k2"},
		{name: "empty", body: `{}`, wantErr: true},
		{name: "not json", body: `nope`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeKey([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("decodeKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDo_RequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	cfg := DefaultConfig(server.URL)
	cfg.RequestTimeout = 50 * time.Millisecond
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ctx := context.Background()
	_, err = client.Validate(ctx, validation.Record{AccountNumber: "1", BankCode: "01"}, "k")
	if err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
	if class := classifyTransportError(ctx, err); class != ErrorClassTimeout {
		t.Errorf("classifyTransportError() = %q, want timeout", class)
	}
}
