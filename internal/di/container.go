// Package di provides dependency injection configuration for the
// ingestion daemon.
package di

import (
	"github.com/samber/do/v2"

	"github.com/skywatch-app/skywatch-server/internal/blob"
	"github.com/skywatch-app/skywatch-server/internal/config"
	"github.com/skywatch-app/skywatch-server/internal/cursor"
	"github.com/skywatch-app/skywatch-server/internal/di/providers"
	"github.com/skywatch-app/skywatch-server/internal/firehose"
	"github.com/skywatch-app/skywatch-server/internal/hydrate"
	"github.com/skywatch-app/skywatch-server/internal/identity"
	"github.com/skywatch-app/skywatch-server/internal/logger"
	"github.com/skywatch-app/skywatch-server/internal/ratelimit"
	"github.com/skywatch-app/skywatch-server/internal/storage"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Durable state
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideCursorStore)
	do.Provide(injector, providers.ProvideStorageBackend)

	// Hydration layer
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideIdentityResolver)
	do.Provide(injector, providers.ProvideHydrateClient)
	do.Provide(injector, providers.ProvideBlobProcessor)
	do.Provide(injector, providers.ProvidePostHydrator)
	do.Provide(injector, providers.ProvideProfileHydrator)

	// Stream layer
	do.Provide(injector, providers.ProvideFilter)
	do.Provide(injector, providers.ProvidePipeline)
	do.Provide(injector, providers.ProvideConnector)

	return injector
}

// Bootstrap initializes all services and returns once the daemon is
// ingesting. Invocation order matters: the connector comes last so it
// only starts reading once everything downstream is ready.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*cursor.FileStore](injector)
	_ = do.MustInvoke[storage.Backend](injector)
	_ = do.MustInvoke[*ratelimit.Limiter](injector)
	_ = do.MustInvoke[*identity.Resolver](injector)
	_ = do.MustInvoke[*hydrate.Client](injector)
	_ = do.MustInvoke[*blob.Processor](injector)
	_ = do.MustInvoke[*hydrate.PostHydrator](injector)
	_ = do.MustInvoke[*hydrate.ProfileHydrator](injector)
	_ = do.MustInvoke[*firehose.Filter](injector)
	_ = do.MustInvoke[*providers.PipelineHandle](injector)
	_ = do.MustInvoke[*providers.ConnectorHandle](injector)

	return nil
}
