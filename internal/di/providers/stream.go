package providers

import (
	"github.com/samber/do/v2"

	"github.com/skywatch-app/skywatch-server/internal/config"
	"github.com/skywatch-app/skywatch-server/internal/cursor"
	"github.com/skywatch-app/skywatch-server/internal/firehose"
	"github.com/skywatch-app/skywatch-server/internal/hydrate"
	"github.com/skywatch-app/skywatch-server/internal/logger"
	"github.com/skywatch-app/skywatch-server/internal/pipeline"
)

// ProvideFilter provides the label value allow-list filter.
func ProvideFilter(i do.Injector) (*firehose.Filter, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if len(cfg.Labels.Allowlist) > 0 {
		log.Info("label allow-list active", "values", cfg.Labels.Allowlist)
	} else {
		log.Info("capturing all label values")
	}

	return firehose.NewFilter(cfg.Labels.Allowlist), nil
}

// PipelineHandle wraps the pipeline with shutdown capability.
type PipelineHandle struct {
	*pipeline.Pipeline
}

// Shutdown implements do.Shutdownable.
func (h *PipelineHandle) Shutdown() error {
	h.Pipeline.Stop()
	return nil
}

// ProvidePipeline provides the label processing pipeline with its
// dispatcher running.
func ProvidePipeline(i do.Injector) (*PipelineHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	filter := do.MustInvoke[*firehose.Filter](i)
	posts := do.MustInvoke[*hydrate.PostHydrator](i)
	profiles := do.MustInvoke[*hydrate.ProfileHydrator](i)

	p := pipeline.New(storeHandle.Store, filter, posts, profiles, log.Logger)
	p.Start()

	log.Info("pipeline started")

	return &PipelineHandle{Pipeline: p}, nil
}

// ConnectorHandle wraps the stream connector with shutdown capability.
type ConnectorHandle struct {
	*firehose.Connector
}

// Shutdown implements do.Shutdownable.
func (h *ConnectorHandle) Shutdown() error {
	h.Connector.Stop()
	return nil
}

// ProvideConnector provides the label stream connector, connected and
// reading. It is provided last so container shutdown stops the intake
// before the pipeline drains.
func ProvideConnector(i do.Injector) (*ConnectorHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cursors := do.MustInvoke[*cursor.FileStore](i)
	pipelineHandle := do.MustInvoke[*PipelineHandle](i)

	conn, err := firehose.New(firehose.Config{
		Endpoint: cfg.Stream.Endpoint,
		Username: cfg.Stream.Username,
		Password: cfg.Stream.Password,
	}, cursors, pipelineHandle.HandleFrame, log.Logger)
	if err != nil {
		return nil, err
	}

	if err := conn.Start(); err != nil {
		return nil, err
	}

	log.Info("stream connector started", "endpoint", cfg.Stream.Endpoint)

	return &ConnectorHandle{Connector: conn}, nil
}
