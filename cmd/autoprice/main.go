package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autoprice/internal/cfg"
	"autoprice/internal/features"
	"autoprice/internal/logging"
	"autoprice/internal/metrics"
	"autoprice/internal/ml"
	"autoprice/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	// .env is optional
	envErr := godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("logging setup failed")
	}
	defer logCloser.Close()
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn().Err(envErr).Msg("failed to read .env")
	}

	// Initialize components
	m := metrics.New()
	recorder := metrics.NewRecorder(m)

	bundle, err := ml.LoadBundle(c.BundleDir)
	if err != nil {
		log.Fatal().Err(err).Str("bundle_dir", c.BundleDir).Msg("artifact bundle unavailable")
	}
	m.SetBundleInfo(len(bundle.FeatureOrder()), bundle.LoadedAt())

	reference := initializeReference(c)

	service, err := ml.NewService(bundle, reference, recorder, ml.ServiceConfig{CacheSize: c.CacheSize})
	if err != nil {
		log.Fatal().Err(err).Msg("service initialization failed")
	}

	serverConfig := ml.ServerConfig{
		Port:           c.Port,
		RequestTimeout: c.RequestTimeout,
		WSReadLimit:    c.WSReadLimit,
		MetricsHandler: promhttp.Handler(),
		Metrics:        recorder,
	}
	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
		serverConfig.PredictionLog = store
	}

	server := ml.NewServer(service, serverConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	waitForShutdown(ctx, serveErr)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown prediction server")
	}
	log.Info().Msg("prediction server stopped")
}

// initializeReference loads the raw dataset if REFERENCE_PATH is configured.
// Options fall back to encoder vocabularies without it.
func initializeReference(c cfg.Settings) *ml.Reference {
	if c.ReferencePath == "" {
		return nil
	}
	ref, err := ml.LoadReference(c.ReferencePath, features.CategoricalColumns())
	if err != nil {
		log.Warn().Err(err).Msg("reference dataset unavailable, options will use encoder vocabularies")
		return nil
	}
	return ref
}

// initializeStorage opens the prediction log if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	if err := os.MkdirAll(c.DataPath, 0o755); err != nil {
		log.Warn().Err(err).Msg("cannot create data directory, continuing without persistence")
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without persistence")
		return nil
	}
	log.Info().Str("data_path", c.DataPath).Msg("prediction log enabled")
	return store
}

func waitForShutdown(ctx context.Context, serveErr <-chan error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case err, ok := <-serveErr:
		if ok {
			log.Error().Err(err).Msg("prediction server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
}
