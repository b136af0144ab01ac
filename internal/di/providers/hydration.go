package providers

import (
	"github.com/samber/do/v2"

	"github.com/skywatch-app/skywatch-server/internal/blob"
	"github.com/skywatch-app/skywatch-server/internal/config"
	"github.com/skywatch-app/skywatch-server/internal/hydrate"
	"github.com/skywatch-app/skywatch-server/internal/identity"
	"github.com/skywatch-app/skywatch-server/internal/logger"
	"github.com/skywatch-app/skywatch-server/internal/ratelimit"
	"github.com/skywatch-app/skywatch-server/internal/storage"
)

// ProvideRateLimiter provides the shared outbound request limiter. All
// network fetches (records, repo descriptions, blobs) pass through it so
// upstream services see one well-behaved client.
func ProvideRateLimiter(i do.Injector) (*ratelimit.Limiter, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return ratelimit.New(ratelimit.Config{
		RPS:         cfg.Hydration.RPS,
		Burst:       cfg.Hydration.Burst,
		MaxInflight: cfg.Hydration.MaxInflight,
		MaxWait:     cfg.Hydration.MaxWait,
	}), nil
}

// ProvideIdentityResolver provides the DID document resolver. Directory
// lookups draw from the same rate budget as every other outbound call.
func ProvideIdentityResolver(i do.Injector) (*identity.Resolver, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	limiter := do.MustInvoke[*ratelimit.Limiter](i)

	return identity.NewResolver(cfg.Hydration.PLCEndpoint, limiter, log.Logger)
}

// ProvideHydrateClient provides the XRPC client used for hydration.
func ProvideHydrateClient(i do.Injector) (*hydrate.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	limiter := do.MustInvoke[*ratelimit.Limiter](i)

	return hydrate.NewClient(cfg.Hydration.AppviewEndpoint, limiter, log.Logger)
}

// ProvideBlobProcessor provides the blob fingerprinting stage.
func ProvideBlobProcessor(i do.Injector) (*blob.Processor, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*hydrate.Client](i)
	resolver := do.MustInvoke[*identity.Resolver](i)
	backend := do.MustInvoke[storage.Backend](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	return blob.NewProcessor(
		blob.Config{DownloadEnabled: cfg.Blobs.DownloadEnabled},
		client,
		resolver,
		backend,
		storeHandle.Store,
		log.Logger,
	), nil
}

// ProvidePostHydrator provides the content record hydrator.
func ProvidePostHydrator(i do.Injector) (*hydrate.PostHydrator, error) {
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*hydrate.Client](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	blobs := do.MustInvoke[*blob.Processor](i)

	return hydrate.NewPostHydrator(client, storeHandle.Store, blobs, log.Logger), nil
}

// ProvideProfileHydrator provides the account record hydrator.
func ProvideProfileHydrator(i do.Injector) (*hydrate.ProfileHydrator, error) {
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*hydrate.Client](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	blobs := do.MustInvoke[*blob.Processor](i)

	return hydrate.NewProfileHydrator(client, storeHandle.Store, blobs, log.Logger), nil
}
