// Command mock-validator serves a local stand-in for the account validation
// service, for trying the validator without credentials.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/account-validator/internal/mockapi"
	"github.com/Sternrassler/account-validator/pkg/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	defaults := mockapi.DefaultConfig()

	addr := flag.String("addr", ":8000", "listen address")
	apiKey := flag.String("api-key", defaults.APIKey, "API key handed out and accepted")
	minLatency := flag.Duration("min-latency", defaults.MinLatency, "minimum artificial latency per validation")
	maxLatency := flag.Duration("max-latency", defaults.MaxLatency, "maximum artificial latency per validation")
	validRatio := flag.Float64("valid-ratio", defaults.ValidRatio, "chance an unknown account is reported valid")
	seed := flag.Int64("seed", 0, "random seed (0 uses the clock)")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	logFormat := flag.String("log-format", logging.FormatConsole, "json or console")
	flag.Parse()

	if _, _, err := logging.Setup(logging.Config{
		Level:  logging.LogLevel(*logLevel),
		Format: *logFormat,
		Output: os.Stderr,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	srv := &http.Server{
		Addr: *addr,
		Handler: mockapi.New(mockapi.Config{
			APIKey:     *apiKey,
			MinLatency: *minLatency,
			MaxLatency: *maxLatency,
			ValidRatio: *validRatio,
			Seed:       *seed,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", *addr).Msg("Mock validation service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
}
