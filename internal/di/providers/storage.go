package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/skywatch-app/skywatch-server/internal/config"
	"github.com/skywatch-app/skywatch-server/internal/errors"
	"github.com/skywatch-app/skywatch-server/internal/logger"
	"github.com/skywatch-app/skywatch-server/internal/storage"
)

// ProvideStorageBackend provides the blob storage backend selected by
// configuration.
func ProvideStorageBackend(i do.Injector) (storage.Backend, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch cfg.Storage.Backend {
	case "local", "":
		backend, err := storage.NewLocal(cfg.Storage.LocalPath)
		if err != nil {
			return nil, err
		}
		log.Info("local blob storage ready", "path", cfg.Storage.LocalPath)
		return backend, nil

	case "s3":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		backend, err := storage.NewS3(ctx, cfg.Storage.S3Bucket, cfg.Storage.S3Region)
		if err != nil {
			return nil, err
		}
		log.Info("s3 blob storage ready",
			"bucket", cfg.Storage.S3Bucket,
			"region", cfg.Storage.S3Region,
		)
		return backend, nil

	default:
		return nil, errors.Validationf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
