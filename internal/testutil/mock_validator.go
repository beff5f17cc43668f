// Package testutil provides testing utilities for the account validator.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// DefaultAPIKey is issued by the mock key endpoint unless overridden.
const DefaultAPIKey = "test-api-key"

// Endpoint paths served by the mock.
const (
	KeyPath      = "/api/key"
	ValidatePath = "/api/validate"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// ValidateRequest is the body the mock expects on ValidatePath.
type ValidateRequest struct {
	AccountNumber string `json:"accountNumber"`
	BankCode      string `json:"bankCode"`
}

// MockValidator is a configurable mock validation service for testing.
// Without custom handlers, the key endpoint issues DefaultAPIKey and every
// request bearing that key validates as a valid account.
type MockValidator struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	apiKey       string
	validateFunc func(req ValidateRequest) MockResponse

	// Tracking
	RequestCount      int
	KeyCount          int
	ValidateCount     int
	LastRequestHeader http.Header
	AccountCounts     map[string]int
}

// NewMockValidator creates a new mock validation server.
func NewMockValidator() *MockValidator {
	mock := &MockValidator{
		handlers:      make(map[string]func(w http.ResponseWriter, r *http.Request)),
		apiKey:        DefaultAPIKey,
		AccountCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		switch r.URL.Path {
		case KeyPath:
			mock.KeyCount++
		case ValidatePath:
			mock.ValidateCount++
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockValidator) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockValidator) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockValidator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.KeyCount = 0
	m.ValidateCount = 0
	m.LastRequestHeader = nil
	m.AccountCounts = make(map[string]int)
}

// SetAPIKey changes the key issued by the default key handler and accepted by
// the default validate handler.
func (m *MockValidator) SetAPIKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiKey = key
}

// SetHandler sets a custom handler for a specific path.
func (m *MockValidator) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockValidator) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetSequence configures a path to answer with the given responses in order.
// The last response repeats once the sequence is used up.
func (m *MockValidator) SetSequence(path string, responses ...MockResponse) {
	var (
		mu   sync.Mutex
		next int
	)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		i := next
		if next < len(responses)-1 {
			next++
		}
		mu.Unlock()

		writeResponse(w, responses[i])
	})
}

// SetValidateFunc decides the validate response per request. The bearer key is
// still checked by the default handler.
func (m *MockValidator) SetValidateFunc(fn func(req ValidateRequest) MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validateFunc = fn
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockValidator) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetKeyCount returns the number of key endpoint requests.
func (m *MockValidator) GetKeyCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.KeyCount
}

// GetValidateCount returns the number of validate endpoint requests.
func (m *MockValidator) GetValidateCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ValidateCount
}

// GetAccountCount returns how often an account number was validated by the
// default handler.
func (m *MockValidator) GetAccountCount(accountNumber string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.AccountCounts[accountNumber]
}

// defaultHandler provides key issuance and bearer-checked validation.
func (m *MockValidator) defaultHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	key := m.apiKey
	fn := m.validateFunc
	m.mu.RUnlock()

	switch r.URL.Path {
	case KeyPath:
		writeResponse(w, NewKeyResponse(key))

	case ValidatePath:
		if r.Header.Get("Authorization") != "Bearer "+key {
			writeResponse(w, NewUnauthorizedResponse())
			return
		}

		var req ValidateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeResponse(w, MockResponse{
				StatusCode: http.StatusBadRequest,
				Body:       `{"message": "malformed request"}`,
			})
			return
		}

		m.mu.Lock()
		m.AccountCounts[req.AccountNumber]++
		m.mu.Unlock()

		if fn != nil {
			writeResponse(w, fn(req))
			return
		}
		writeResponse(w, NewValidResponse("Test Holder", "Test Bank"))

	default:
		writeResponse(w, MockResponse{
			StatusCode: http.StatusNotFound,
			Body:       `{"message": "not found"}`,
		})
	}
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	w.Header().Set("Content-Type", "application/json")
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func jsonString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

// NewKeyResponse creates a key endpoint response issuing key.
func NewKeyResponse(key string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"apiKey": %s}`, jsonString(key)),
	}
}

// NewValidResponse creates a 200 response for a valid account.
func NewValidResponse(holder, bank string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body: fmt.Sprintf(`{"status": "Valid", "accountHolderName": %s, "bankName": %s, "currency": "KES"}`,
			jsonString(holder), jsonString(bank)),
	}
}

// NewInvalidResponse creates a 200 response rejecting an account with code.
func NewInvalidResponse(code, description string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body: fmt.Sprintf(`{"status": "Invalid", "errorCode": %s, "errorDescription": %s}`,
			jsonString(code), jsonString(description)),
	}
}

// NewNotFoundResponse creates a 404 response with message.
func NewNotFoundResponse(message string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf(`{"message": %s}`, jsonString(message)),
	}
}

// NewUnauthorizedResponse creates a 401 response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"message": "Invalid API key"}`,
	}
}

// NewRateLimitResponse creates a 429 response with a Retry-After hint.
func NewRateLimitResponse(retryAfterSeconds int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"Retry-After":           fmt.Sprintf("%d", retryAfterSeconds),
			"X-RateLimit-Remaining": "0",
		},
	}
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Internal server error"}`,
	}
}

// ByAccount builds a validate func answering from a table keyed by account
// number, falling back to a valid response.
func ByAccount(table map[string]MockResponse) func(req ValidateRequest) MockResponse {
	return func(req ValidateRequest) MockResponse {
		if resp, ok := table[strings.TrimSpace(req.AccountNumber)]; ok {
			return resp
		}
		return NewValidResponse("Holder "+req.AccountNumber, "Test Bank")
	}
}
