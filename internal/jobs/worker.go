package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/provider"

	"go.uber.org/zap"
)

// SyncRunner executes the sync operations jobs dispatch to. Implemented by
// the registry manager.
type SyncRunner interface {
	SyncCatalog(ctx context.Context, restaurantID string) (*provider.CatalogSyncResult, error)
	SyncOrders(ctx context.Context, restaurantID string, since, until time.Time) (*provider.OrderSyncResult, error)
	RefetchObject(ctx context.Context, restaurantID, objectType, objectID string) error
}

const maxJobAttempts = 3

// Pool consumes the queue with a fixed number of workers. Failed jobs are
// requeued with an attempt counter until maxJobAttempts.
type Pool struct {
	queue   Queue
	runner  SyncRunner
	logger  *zap.Logger
	workers int

	wg sync.WaitGroup
}

// NewPool builds a worker pool. A non-positive worker count defaults to 4.
func NewPool(queue Queue, runner SyncRunner, workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{queue: queue, runner: runner, logger: logger, workers: workers}
}

// Start launches the workers. They stop when ctx is cancelled or the queue
// closes.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, id)
		}(i)
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	log := p.logger.With(zap.Int("worker", id))
	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrQueueClosed) {
				return
			}
			log.Error("dequeue failed", zap.Error(err))
			return
		}
		p.handle(ctx, log, job)
	}
}

func (p *Pool) handle(ctx context.Context, log *zap.Logger, job Job) {
	log = log.With(
		zap.String("job_type", job.Type),
		zap.String("restaurant_id", job.RestaurantID),
		zap.Int("attempt", job.Attempt))

	err := p.dispatch(ctx, job)
	if err == nil {
		log.Info("job done")
		return
	}

	if job.Attempt+1 >= maxJobAttempts {
		log.Error("job failed, giving up", zap.Error(err))
		return
	}
	job.Attempt++
	log.Warn("job failed, requeueing", zap.Error(err))
	if qErr := p.queue.Enqueue(ctx, job); qErr != nil {
		log.Error("requeue failed", zap.Error(qErr))
	}
}

func (p *Pool) dispatch(ctx context.Context, job Job) error {
	switch job.Type {
	case TypeCatalogSync:
		_, err := p.runner.SyncCatalog(ctx, job.RestaurantID)
		return err
	case TypeOrdersSync:
		since, until := job.Since, job.Until
		if until.IsZero() {
			until = time.Now()
		}
		if since.IsZero() {
			since = until.Add(-24 * time.Hour)
		}
		_, err := p.runner.SyncOrders(ctx, job.RestaurantID, since, until)
		return err
	case TypeObjectRefetch:
		return p.runner.RefetchObject(ctx, job.RestaurantID, job.ObjectType, job.ObjectID)
	default:
		p.logger.Warn("unknown job type dropped", zap.String("job_type", job.Type))
		return nil
	}
}
