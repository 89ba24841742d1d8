package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cadenza/internal/config"
	"cadenza/internal/events"
	"cadenza/internal/library"
	"cadenza/internal/metadata"
	"cadenza/internal/playback"
	"cadenza/internal/playlist"
	"cadenza/internal/server"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Optional .env for local overrides; absence is fine.
	_ = godotenv.Load()

	configPath := os.Getenv("CADENZA_CONFIG")
	if configPath == "" {
		configPath = "./config.toml"
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.WithError(err).Fatal("Error loading configuration")
	}
	applyLogging(logger, cfg)

	bus := events.NewBus(logger)
	catalog := library.NewCatalog()
	cache := library.NewCacheStore(cfg.Cache.Path, logger)
	extractor := metadata.NewExtractor(cfg.Music.SupportedFormats, logger)
	scanner := library.NewScanner(catalog, cache, extractor, cfg.Music.SupportedFormats, bus, logger)
	transport := playback.NewTransport(playback.NullPlayer{}, bus, logger)

	store, err := playlist.NewStore(cfg.Playlists.DatabasePath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Error initializing playlist store")
	}
	defer store.Close()

	// Serve the cached catalog immediately; the next scan re-validates
	// freshness against disk.
	if tracks, _, ok := cache.Load(); ok {
		catalog.Replace(tracks)
	}

	if cfg.Music.ScanOnStartup {
		go func() {
			if _, err := scanner.Scan(cfg.Music.Directories); err != nil {
				logger.WithError(err).Error("Startup library scan failed")
			}
		}()
	}

	srv := server.New(cfg, catalog, scanner, transport, store, bus, logger)

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-sigCh
	logger.Info("Received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func applyLogging(logger *logrus.Logger, cfg *config.Config) {
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
}
