package config

import (
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/account-validator/pkg/validation"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PESALINK_API_BASE_URL", "PESALINK_API_KEY", "MAX_BATCH_SIZE",
		"WORKER_THREADS", "ENABLE_PARALLEL_PROCESSING", "REQUEST_TIMEOUT", "OUTPUT_FORMAT", "METRICS_ADDR"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Client.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.Client.BaseURL, DefaultBaseURL)
	}
	if cfg.Pipeline.MaxBatchSize != 1000 {
		t.Errorf("MaxBatchSize = %d, want 1000", cfg.Pipeline.MaxBatchSize)
	}
	if cfg.Pipeline.Concurrency != 10 {
		t.Errorf("Concurrency = %d, want 10", cfg.Pipeline.Concurrency)
	}
	if !cfg.Pipeline.Parallel {
		t.Error("Parallel should default to true")
	}
	if cfg.Client.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.Client.RequestTimeout)
	}
	if cfg.Output.Format != "csv" {
		t.Errorf("Output.Format = %q, want csv", cfg.Output.Format)
	}
	if cfg.Metrics.Addr != "" {
		t.Errorf("Metrics.Addr = %q, want empty", cfg.Metrics.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PESALINK_API_BASE_URL", "http://localhost:8000")
	t.Setenv("PESALINK_API_KEY", "secret")
	t.Setenv("REQUEST_TIMEOUT", "5")
	t.Setenv("RETRY_DELAY", "250ms")
	t.Setenv("MAX_RETRIES", "7")
	t.Setenv("MAX_BATCH_SIZE", "50")
	t.Setenv("WORKER_THREADS", "4")
	t.Setenv("ENABLE_PARALLEL_PROCESSING", "false")
	t.Setenv("RATE_LIMIT_RPS", "12.5")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("OUTPUT_FORMAT", "JSON")
	t.Setenv("METRICS_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"BaseURL", cfg.Client.BaseURL, "http://localhost:8000"},
		{"APIKey", cfg.Client.APIKey, "secret"},
		{"RequestTimeout", cfg.Client.RequestTimeout, 5 * time.Second},
		{"RetryDelay", cfg.Client.RetryDelay, 250 * time.Millisecond},
		{"MaxRetries", cfg.Client.MaxRetries, 7},
		{"MaxBatchSize", cfg.Pipeline.MaxBatchSize, 50},
		{"Concurrency", cfg.Pipeline.Concurrency, 4},
		{"Parallel", cfg.Pipeline.Parallel, false},
		{"RequestsPerSecond", cfg.Client.RateLimit.RequestsPerSecond, 12.5},
		{"Burst", cfg.Client.RateLimit.Burst, 3},
		{"LogLevel", string(cfg.Log.Level), "debug"},
		{"LogFormat", cfg.Log.Format, "console"},
		{"OutputFormat", cfg.Output.Format, "json"},
		{"MetricsAddr", cfg.Metrics.Addr, ":9090"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("MAX_BATCH_SIZE", "lots")
	t.Setenv("ENABLE_PARALLEL_PROCESSING", "maybe")
	t.Setenv("REQUEST_TIMEOUT", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pipeline.MaxBatchSize != 1000 {
		t.Errorf("MaxBatchSize = %d, want default 1000", cfg.Pipeline.MaxBatchSize)
	}
	if !cfg.Pipeline.Parallel {
		t.Error("Parallel should keep its default")
	}
	if cfg.Client.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want default", cfg.Client.RequestTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.Client.BaseURL = " " }},
		{"zero timeout", func(c *Config) { c.Client.RequestTimeout = 0 }},
		{"negative retries", func(c *Config) { c.Client.MaxRetries = -1 }},
		{"negative delay", func(c *Config) { c.Client.RetryDelay = -time.Second }},
		{"zero batch size", func(c *Config) { c.Pipeline.MaxBatchSize = 0 }},
		{"zero workers", func(c *Config) { c.Pipeline.Concurrency = 0 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad output format", func(c *Config) { c.Output.Format = "yaml" }},
		{"empty output dir", func(c *Config) { c.Output.Dir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			if !errors.Is(err, validation.ErrConfiguration) {
				t.Errorf("Validate() = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	def := 7 * time.Second
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", def},
		{"30", 30 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{"30s", 30 * time.Second},
		{"2m", 2 * time.Minute},
		{"garbage", def},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseDuration(tt.in, def); got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
