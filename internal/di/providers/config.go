// Package providers contains dependency injection providers for the
// ingestion daemon.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/skywatch-app/skywatch-server/internal/config"
	"github.com/skywatch-app/skywatch-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.Load()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("starting label ingester",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"stream_endpoint", cfg.Stream.Endpoint,
		"storage_backend", cfg.Storage.Backend,
		"download_blobs", cfg.Blobs.DownloadEnabled,
	)

	return log, nil
}
