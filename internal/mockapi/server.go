// Package mockapi is an in-process stand-in for the account validation
// service. It serves fixture accounts, rejects unknown keys, and answers
// unknown but well-formed accounts at random.
package mockapi

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls the mock's behaviour.
type Config struct {
	APIKey string

	// Each validate call sleeps a random duration in [MinLatency, MaxLatency].
	MinLatency time.Duration
	MaxLatency time.Duration

	// ValidRatio is the chance an unknown, well-formed account is reported valid.
	ValidRatio float64

	// Seed fixes the random source; 0 seeds from the clock.
	Seed int64
}

// DefaultConfig mirrors the hosted sandbox: 0.1-0.5s latency, 70% valid.
func DefaultConfig() Config {
	return Config{
		APIKey:     DefaultAPIKey,
		MinLatency: 100 * time.Millisecond,
		MaxLatency: 500 * time.Millisecond,
		ValidRatio: 0.7,
	}
}

// Server is the mock validation service.
type Server struct {
	cfg    Config
	router *chi.Mux
	logger zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

type validateRequest struct {
	AccountNumber string `json:"accountNumber"`
	BankCode      string `json:"bankCode"`
}

type validateResponse struct {
	AccountNumber     string `json:"accountNumber,omitempty"`
	BankCode          string `json:"bankCode,omitempty"`
	Status            string `json:"status"`
	AccountHolderName string `json:"accountHolderName,omitempty"`
	BankName          string `json:"bankName,omitempty"`
	Currency          string `json:"currency,omitempty"`
	ErrorCode         string `json:"errorCode,omitempty"`
	ErrorDescription  string `json:"errorDescription,omitempty"`
}

// New creates a mock server.
func New(cfg Config) *Server {
	if cfg.APIKey == "" {
		cfg.APIKey = DefaultAPIKey
	}
	if cfg.MaxLatency < cfg.MinLatency {
		cfg.MaxLatency = cfg.MinLatency
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		logger: log.With().Str("component", "mockapi").Logger(),
		rng:    rand.New(rand.NewSource(seed)),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requestLogger)

	s.router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/key", s.handleKey)
		r.Post("/validate", s.handleValidate)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}

func (s *Server) handleKey(w http.ResponseWriter, _ *http.Request) {
	mockRequestsTotal.WithLabelValues("key", "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"apiKey": s.cfg.APIKey})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		s.reject(w, http.StatusBadRequest, CodeInvalidFormat, "Invalid request format")
		return
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.cfg.APIKey {
		s.reject(w, http.StatusUnauthorized, "AUTH", "Invalid API key")
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, http.StatusBadRequest, CodeInvalidFormat, "Invalid request format")
		return
	}
	if req.AccountNumber == "" || req.BankCode == "" {
		s.reject(w, http.StatusBadRequest, CodeInvalidFormat, "Missing required fields")
		return
	}

	if err := s.delay(r.Context()); err != nil {
		return
	}

	resp := s.lookup(req)
	result := strings.ToLower(resp.Status)
	if resp.ErrorCode != "" {
		result = resp.ErrorCode
	}
	mockRequestsTotal.WithLabelValues("validate", result).Inc()
	writeJSON(w, http.StatusOK, resp)
}

// lookup decides the verdict for a well-formed, authorised request.
func (s *Server) lookup(req validateRequest) validateResponse {
	invalid := func(code, msg string) validateResponse {
		if msg == "" {
			msg = codeMessages[code]
		}
		return validateResponse{
			AccountNumber:    req.AccountNumber,
			BankCode:         req.BankCode,
			Status:           "Invalid",
			ErrorCode:        code,
			ErrorDescription: msg,
		}
	}
	valid := func(holder string) validateResponse {
		return validateResponse{
			AccountNumber:     req.AccountNumber,
			BankCode:          req.BankCode,
			Status:            "Valid",
			AccountHolderName: holder,
			BankName:          banks[req.BankCode],
			Currency:          "KES",
		}
	}

	if _, ok := banks[req.BankCode]; !ok {
		return invalid(CodeInvalidBank, "")
	}
	if !isDigits(req.AccountNumber) {
		return invalid(CodeInvalidFormat, "")
	}
	if n := len(req.AccountNumber); n < 6 || n > 20 {
		return invalid(CodeInvalidFormat, "Account number length is invalid")
	}

	if acct, ok := accounts[req.BankCode][req.AccountNumber]; ok {
		if code, bad := statusCodes[acct.status]; bad {
			return invalid(code, "")
		}
		return valid(acct.holder)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rng.Float64() < s.cfg.ValidRatio {
		return valid(firstNames[s.rng.Intn(len(firstNames))] + " " + lastNames[s.rng.Intn(len(lastNames))])
	}
	return invalid(CodeAccountNotFound, "")
}

func (s *Server) reject(w http.ResponseWriter, status int, code, msg string) {
	mockRequestsTotal.WithLabelValues("validate", code).Inc()
	s.logger.Warn().Int("status", status).Str("code", code).Msg(msg)
	writeJSON(w, status, validateResponse{Status: "Invalid", ErrorCode: code, ErrorDescription: msg})
}

func (s *Server) delay(ctx context.Context) error {
	if s.cfg.MaxLatency <= 0 {
		return nil
	}
	d := s.cfg.MinLatency
	if span := s.cfg.MaxLatency - s.cfg.MinLatency; span > 0 {
		s.mu.Lock()
		d += time.Duration(s.rng.Int63n(int64(span)))
		s.mu.Unlock()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
