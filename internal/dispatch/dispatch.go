// Package dispatch sequences hydration work derived from accepted label
// events. The dispatcher is a single FIFO queue with deduplication: at most
// one task per (kind, subject) is ever queued or in flight, and tasks run
// strictly one at a time.
package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/skywatch-app/skywatch-server/internal/domain"
)

// Handler executes one hydration task. A handler failure is logged and
// isolated; it never halts the dispatcher.
type Handler func(ctx context.Context, task domain.Task) error

// Dispatcher is the deduplicating work queue between the stream connector
// and the hydrators. Slow hydration never stalls label ingestion because
// Enqueue only appends.
type Dispatcher struct {
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	queue   []domain.Task
	pending map[string]struct{} // queued or in-flight task keys
	started bool
	stopped bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a dispatcher that runs tasks through handler.
func New(handler Handler, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handler: handler,
		logger:  logger,
		pending: make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start launches the worker loop.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	d.wg.Add(1)
	go d.loop()
}

// Stop stops accepting new work and waits for the in-flight task to finish
// naturally. Remaining queued tasks are abandoned; their subjects replay on
// the next run because the cursor only advances for fully handled frames.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		d.wg.Wait()
		return
	}
	d.stopped = true
	close(d.done)
	d.mu.Unlock()

	d.wg.Wait()
}

// Enqueue adds a task unless an equal task is already queued or in flight.
// Returns whether the task was accepted.
func (d *Dispatcher) Enqueue(task domain.Task) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return false
	}

	key := task.Key()
	if _, exists := d.pending[key]; exists {
		return false
	}

	d.pending[key] = struct{}{}
	d.queue = append(d.queue, task)

	// Nudge an idle worker; a full wake channel means it is already due
	// to check the queue.
	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// QueueLen returns the number of queued (not in-flight) tasks.
func (d *Dispatcher) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// loop processes tasks sequentially in dequeue order, parking when idle.
func (d *Dispatcher) loop() {
	defer d.wg.Done()

	ctx := context.Background()

	for {
		task, ok := d.next()
		if !ok {
			select {
			case <-d.wake:
				continue
			case <-d.done:
				return
			}
		}

		d.runTask(ctx, task)

		select {
		case <-d.done:
			return
		default:
		}
	}
}

// next pops the queue head, leaving the task's key in the pending set so
// duplicates arriving while it runs are still rejected.
func (d *Dispatcher) next() (domain.Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.queue) == 0 {
		return domain.Task{}, false
	}
	task := d.queue[0]
	d.queue = d.queue[1:]
	return task, true
}

// runTask executes one task with failure isolation.
func (d *Dispatcher) runTask(ctx context.Context, task domain.Task) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("hydration task panicked",
				"kind", task.Kind.String(),
				"subject", task.Subject.ID(),
				"panic", r,
			)
		}

		d.mu.Lock()
		delete(d.pending, task.Key())
		d.mu.Unlock()
	}()

	if err := d.handler(ctx, task); err != nil {
		d.logger.Error("hydration task failed",
			"kind", task.Kind.String(),
			"subject", task.Subject.ID(),
			"error", err,
		)
	}
}
