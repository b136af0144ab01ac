// Package pipeline connects the stream to the enrichment machinery: every
// accepted label event is persisted and, per subject, exactly one hydration
// task is queued.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skywatch-app/skywatch-server/internal/dispatch"
	"github.com/skywatch-app/skywatch-server/internal/domain"
	"github.com/skywatch-app/skywatch-server/internal/firehose"
	"github.com/skywatch-app/skywatch-server/internal/hydrate"
	"github.com/skywatch-app/skywatch-server/internal/store"
)

// Pipeline routes decoded frames into the store and the hydration queue,
// and dispatcher tasks into the matching hydrator.
type Pipeline struct {
	store      *store.Store
	filter     *firehose.Filter
	dispatcher *dispatch.Dispatcher
	posts      *hydrate.PostHydrator
	profiles   *hydrate.ProfileHydrator
	logger     *slog.Logger
}

// New creates the pipeline and its dispatcher.
func New(s *store.Store, filter *firehose.Filter, posts *hydrate.PostHydrator, profiles *hydrate.ProfileHydrator, logger *slog.Logger) *Pipeline {
	p := &Pipeline{
		store:    s,
		filter:   filter,
		posts:    posts,
		profiles: profiles,
		logger:   logger,
	}
	p.dispatcher = dispatch.New(p.HandleTask, logger)
	return p
}

// Start launches the hydration worker.
func (p *Pipeline) Start() {
	p.dispatcher.Start()
}

// Stop stops accepting hydration work and waits for the in-flight task.
func (p *Pipeline) Stop() {
	p.dispatcher.Stop()
}

// Dispatcher exposes the work queue, mainly for tests and bootstrap wiring.
func (p *Pipeline) Dispatcher() *dispatch.Dispatcher {
	return p.dispatcher
}

// HandleFrame is the connector handler. It returns an error only when a
// label could not be durably stored, which keeps the frame's cursor
// uncommitted so the whole frame replays.
func (p *Pipeline) HandleFrame(msg *firehose.Message) error {
	received := time.Now().UTC()

	for i := range msg.Labels {
		label := &msg.Labels[i]

		ev, err := domain.EventFromLabel(label, msg.Seq, received)
		if err != nil {
			// A malformed label is dropped with context; the rest
			// of the frame still counts.
			p.logger.Warn("dropping invalid label",
				"uri", label.URI,
				"val", label.Value,
				"error", err,
			)
			continue
		}

		if !p.filter.ShouldCapture(label) {
			p.logger.Debug("label filtered out", "uri", ev.URI, "val", ev.Value)
			continue
		}

		if err := p.store.PutLabelEvent(context.Background(), ev); err != nil {
			return fmt.Errorf("store label event %s: %w", ev.Key(), err)
		}

		subject, err := domain.ParseSubject(ev.URI)
		if err != nil {
			// Stored but not hydratable; record why nothing more
			// will be captured for it.
			p.logger.Warn("label subject not hydratable", "uri", ev.URI, "error", err)
			continue
		}

		task := domain.TaskForSubject(subject)
		if p.dispatcher.Enqueue(task) {
			p.logger.Debug("hydration task queued",
				"kind", task.Kind.String(),
				"subject", subject.ID(),
			)
		}
	}

	return nil
}

// HandleTask routes one dequeued task to its hydrator.
func (p *Pipeline) HandleTask(ctx context.Context, task domain.Task) error {
	switch task.Kind {
	case domain.TaskContent:
		return p.posts.Hydrate(ctx, task.Subject)
	case domain.TaskAccount:
		return p.profiles.Hydrate(ctx, task.Subject)
	default:
		return fmt.Errorf("unknown task kind %d", task.Kind)
	}
}
