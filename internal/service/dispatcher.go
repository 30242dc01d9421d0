package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ujmp/editorial-api/internal/models"
	"github.com/ujmp/editorial-api/pkg/jobs"
)

// DomainEventHandler reacts to one domain event.
type DomainEventHandler func(ctx context.Context, event models.DomainEvent) error

// Dispatcher fans domain events out to queue-backed consumers. Each Register
// call gets its own worker queue, so a slow certificate render never delays
// notification emails. Publish is fire-and-forget; producers have already
// committed by the time they publish.
type Dispatcher struct {
	logger *zap.Logger
	queues []*jobs.Queue
	routes map[models.EventKind][]*jobs.Queue
}

// NewDispatcher constructs an empty dispatcher.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		logger: logger,
		routes: make(map[models.EventKind][]*jobs.Queue),
	}
}

// Register attaches a consumer for the given event kinds. Must be called
// before Start.
func (d *Dispatcher) Register(name string, cfg jobs.QueueConfig, handler DomainEventHandler, kinds ...models.EventKind) {
	if cfg.Logger == nil {
		cfg.Logger = d.logger
	}
	queue := jobs.NewQueue(name, func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(models.DomainEvent)
		if !ok {
			return fmt.Errorf("unexpected payload type for job %s", job.ID)
		}
		return handler(ctx, event)
	}, cfg)
	d.queues = append(d.queues, queue)
	for _, kind := range kinds {
		d.routes[kind] = append(d.routes[kind], queue)
	}
}

// Start launches all consumer queues.
func (d *Dispatcher) Start(ctx context.Context) {
	for _, queue := range d.queues {
		queue.Start(ctx)
	}
}

// Stop drains and stops all consumer queues.
func (d *Dispatcher) Stop() {
	for _, queue := range d.queues {
		queue.Stop()
	}
}

// Publish routes one event to every registered consumer of its kind.
func (d *Dispatcher) Publish(event models.DomainEvent) {
	queues := d.routes[event.Kind]
	if len(queues) == 0 {
		d.logger.Debug("event has no consumers", zap.String("kind", string(event.Kind)))
		return
	}
	for _, queue := range queues {
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    string(event.Kind),
			Payload: event,
		}
		if err := queue.Enqueue(job); err != nil {
			d.logger.Error("failed to enqueue domain event",
				zap.String("kind", string(event.Kind)),
				zap.String("article_id", event.ArticleID),
				zap.Error(err))
		}
	}
}
