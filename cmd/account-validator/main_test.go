package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/account-validator/internal/config"
	"github.com/Sternrassler/account-validator/internal/mockapi"
)

func setupEnv(t *testing.T, apiURL string) string {
	t.Helper()
	out := t.TempDir()
	t.Setenv("PESALINK_API_BASE_URL", apiURL)
	t.Setenv("PESALINK_API_KEY", "")
	t.Setenv("RETRY_DELAY", "1ms")
	t.Setenv("MAX_BACKOFF", "5ms")
	t.Setenv("DEFAULT_OUTPUT_DIR", out)
	t.Setenv("OUTPUT_FORMAT", "csv")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_FILE", "")
	t.Setenv("METRICS_ADDR", "")
	return out
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_EndToEnd(t *testing.T) {
	api := httptest.NewServer(mockapi.New(mockapi.Config{ValidRatio: 0, Seed: 7}))
	defer api.Close()
	out := setupEnv(t, api.URL)

	input := writeInput(t, "account_number,bank_code\n"+
		"1234567890,01\n"+
		"1357924680,04\n"+
		"9876543210,02\n"+
		",01\n")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-input", input, "-workers", "2", "-batch-size", "2"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}

	got := stdout.String()
	for _, want := range []string{"4 records in 2 batches", "valid:   2", "invalid: 2", "ACCOUNT_CLOSED", "INVALID_FORMAT"} {
		if !strings.Contains(got, want) {
			t.Errorf("stdout missing %q:\n%s", want, got)
		}
	}

	matches, err := filepath.Glob(filepath.Join(out, "all_accounts_*.csv"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("all_accounts report = %v (%v)", matches, err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 {
		t.Fatalf("all report lines = %d, want 5", len(lines))
	}
	if !strings.HasPrefix(lines[1], "1234567890,01") || !strings.HasPrefix(lines[3], "9876543210,02") {
		t.Errorf("report not in input order:\n%s", data)
	}
}

func TestRun_CredentialFailure(t *testing.T) {
	// Nothing listens here once closed; key acquisition fails.
	api := httptest.NewServer(mockapi.New(mockapi.Config{}))
	url := api.URL
	api.Close()
	setupEnv(t, url)
	t.Setenv("MAX_RETRIES", "1")

	input := writeInput(t, "account_number,bank_code\n1234567890,01\n")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-input", input}, &stdout, &stderr)
	if code != exitFailed {
		t.Fatalf("exit code = %d, want %d", code, exitFailed)
	}
	if !strings.Contains(stdout.String(), "error:   1") {
		t.Errorf("partial results should still be summarised:\n%s", stdout.String())
	}
}

func TestRun_Usage(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:1")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"help", []string{"-h"}, exitOK},
		{"missing input", nil, exitUsage},
		{"unknown flag", []string{"-nope"}, exitUsage},
		{"bad format", []string{"-input", "x.csv", "-format", "yaml"}, exitUsage},
		{"bad batch size", []string{"-input", "x.csv", "-batch-size", "0"}, exitUsage},
		{"missing file", []string{"-input", filepath.Join(t.TempDir(), "none.csv")}, exitFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if got := run(context.Background(), tt.args, &stdout, &stderr); got != tt.want {
				t.Errorf("exit code = %d, want %d (stderr: %s)", got, tt.want, stderr.String())
			}
		})
	}
}

func TestParseFlags_OverrideEnvironment(t *testing.T) {
	setupEnv(t, "http://env.example")
	t.Setenv("WORKER_THREADS", "3")

	cfg, err := loadConfig(t)
	if err != nil {
		t.Fatal(err)
	}

	var stderr bytes.Buffer
	opts, err := parseFlags([]string{"-api-url", "http://flag.example", "-sequential", "in.csv"}, cfg, &stderr)
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if opts.input != "in.csv" {
		t.Errorf("input = %q, want in.csv", opts.input)
	}
	if cfg.Client.BaseURL != "http://flag.example" {
		t.Errorf("BaseURL = %q, want flag value", cfg.Client.BaseURL)
	}
	if cfg.Pipeline.Concurrency != 3 {
		t.Errorf("Concurrency = %d, want env value 3", cfg.Pipeline.Concurrency)
	}
	if cfg.Pipeline.Workers() != 1 {
		t.Errorf("Workers() = %d, want 1 in sequential mode", cfg.Pipeline.Workers())
	}
}

func loadConfig(t *testing.T) (*config.Config, error) {
	t.Helper()
	return config.Load()
}
