package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/alkime/voicebank/internal/config"
	applog "github.com/alkime/voicebank/internal/logger"
	"github.com/alkime/voicebank/internal/observe"
	"github.com/alkime/voicebank/internal/server"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup structured logging
	logger := applog.SetupLogger(cfg)

	logger.Info("Starting voicebank sandbox",
		"env", cfg.Env,
		"port", cfg.Port,
		"version", version,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped", "error", err)
		log.Fatalf("Fatal: %v", err)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	mp, shutdown, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName:    "voicebank-sandbox",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Error("Failed to shut down metrics", "error", err)
		}
	}()

	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		return fmt.Errorf("failed to create metric instruments: %w", err)
	}

	corpus, err := server.LoadCorpus(cfg.CorpusPath)
	if err != nil {
		return err
	}

	return server.Run(server.New(cfg, logger, corpus, metrics))
}
