// Package config loads the validator configuration from the environment.
// A .env file in the working directory is honoured when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/account-validator/pkg/client"
	"github.com/Sternrassler/account-validator/pkg/logging"
	"github.com/Sternrassler/account-validator/pkg/pipeline"
	"github.com/Sternrassler/account-validator/pkg/validation"
	"github.com/joho/godotenv"
)

// DefaultBaseURL is the validation service used when PESALINK_API_BASE_URL is unset.
const DefaultBaseURL = "https://account-validation-service.dev.pesalink.co.ke"

// Config is the complete runtime configuration.
type Config struct {
	Client   client.Config
	Pipeline pipeline.Config
	Log      logging.Config
	Output   OutputConfig
	Metrics  MetricsConfig
}

// OutputConfig controls report writing.
type OutputConfig struct {
	Dir    string
	Format string
}

// MetricsConfig controls the optional /metrics listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string
}

// Output formats accepted by OUTPUT_FORMAT.
var OutputFormats = []string{"csv", "json", "xml"}

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	clientDefaults := client.DefaultConfig(DefaultBaseURL)
	pipeDefaults := pipeline.DefaultConfig()

	cfg := &Config{
		Client: client.Config{
			BaseURL:        getEnv("PESALINK_API_BASE_URL", DefaultBaseURL),
			APIKey:         getEnv("PESALINK_API_KEY", ""),
			UserAgent:      getEnv("USER_AGENT", clientDefaults.UserAgent),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", clientDefaults.RequestTimeout),
			MaxRetries:     getEnvAsInt("MAX_RETRIES", clientDefaults.MaxRetries),
			RetryDelay:     getEnvAsDuration("RETRY_DELAY", clientDefaults.RetryDelay),
			MaxBackoff:     getEnvAsDuration("MAX_BACKOFF", clientDefaults.MaxBackoff),
			Jitter:         getEnvAsBool("RETRY_JITTER", clientDefaults.Jitter),
			RateLimit:      clientDefaults.RateLimit,
		},
		Pipeline: pipeline.Config{
			MaxBatchSize:  getEnvAsInt("MAX_BATCH_SIZE", pipeDefaults.MaxBatchSize),
			Concurrency:   getEnvAsInt("WORKER_THREADS", pipeDefaults.Concurrency),
			Parallel:      getEnvAsBool("ENABLE_PARALLEL_PROCESSING", pipeDefaults.Parallel),
			ProgressEvery: pipeDefaults.ProgressEvery,
		},
		Log: logging.Config{
			Level:  logging.LogLevel(strings.ToLower(getEnv("LOG_LEVEL", string(logging.LevelInfo)))),
			Format: strings.ToLower(getEnv("LOG_FORMAT", logging.FormatJSON)),
			File:   getEnv("LOG_FILE", ""),
			Output: os.Stderr,
		},
		Output: OutputConfig{
			Dir:    getEnv("DEFAULT_OUTPUT_DIR", "output"),
			Format: strings.ToLower(getEnv("OUTPUT_FORMAT", "csv")),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ""),
		},
	}

	cfg.Client.RateLimit.RequestsPerSecond = getEnvAsFloat("RATE_LIMIT_RPS", cfg.Client.RateLimit.RequestsPerSecond)
	cfg.Client.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", cfg.Client.RateLimit.Burst)

	return cfg, nil
}

// Validate checks the configuration. Errors wrap validation.ErrConfiguration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Client.BaseURL) == "" {
		return fmt.Errorf("%w: PESALINK_API_BASE_URL is required", validation.ErrConfiguration)
	}
	if c.Client.RequestTimeout <= 0 {
		return fmt.Errorf("%w: REQUEST_TIMEOUT must be > 0", validation.ErrConfiguration)
	}
	if c.Client.MaxRetries < 0 {
		return fmt.Errorf("%w: MAX_RETRIES must be >= 0", validation.ErrConfiguration)
	}
	if c.Client.RetryDelay < 0 || c.Client.MaxBackoff < 0 {
		return fmt.Errorf("%w: RETRY_DELAY and MAX_BACKOFF must be >= 0", validation.ErrConfiguration)
	}
	if c.Client.RateLimit.RequestsPerSecond < 0 || c.Client.RateLimit.Burst < 0 {
		return fmt.Errorf("%w: RATE_LIMIT_RPS and RATE_LIMIT_BURST must be >= 0", validation.ErrConfiguration)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	switch c.Log.Format {
	case logging.FormatJSON, logging.FormatConsole:
	default:
		return fmt.Errorf("%w: LOG_FORMAT must be json or console (got %q)", validation.ErrConfiguration, c.Log.Format)
	}
	if !isOutputFormat(c.Output.Format) {
		return fmt.Errorf("%w: OUTPUT_FORMAT must be one of %s (got %q)",
			validation.ErrConfiguration, strings.Join(OutputFormats, ", "), c.Output.Format)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("%w: DEFAULT_OUTPUT_DIR is required", validation.ErrConfiguration)
	}
	return nil
}

func isOutputFormat(f string) bool {
	for _, v := range OutputFormats {
		if v == f {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("30s", "1m") and bare seconds ("30").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	return ParseDuration(getEnv(key, ""), defaultValue)
}

// ParseDuration parses s as a Go duration or a whole number of seconds,
// returning defaultValue when s is empty or malformed.
func ParseDuration(s string, defaultValue time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultValue
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return defaultValue
}
