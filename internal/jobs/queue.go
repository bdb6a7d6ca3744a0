package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Queue transports job triggers to workers. The jobs table stays the single
// source of truth for job state; the queue only says "job X is ready to run".
// A lost or duplicated trigger is therefore harmless: duplicates lose the
// claim race and no-op.
type Queue interface {
	Enqueue(ctx context.Context, jobID uuid.UUID) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

const defaultQueueSize = 128

// MemoryQueue dispatches jobs over a buffered channel to a pool of worker
// goroutines. Used in tests and in single-process deployments without
// postgres.
type MemoryQueue struct {
	jobs    chan uuid.UUID
	runner  *Runner
	workers int
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	log     *zap.SugaredLogger
}

// Make sure we conform to Queue interface
var _ Queue = (*MemoryQueue)(nil)

func NewMemoryQueue(runner *Runner, workers int) *MemoryQueue {
	if workers <= 0 {
		workers = 1
	}
	return &MemoryQueue{
		jobs:    make(chan uuid.UUID, defaultQueueSize),
		runner:  runner,
		workers: workers,
		log:     zap.S().Named("queue"),
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, jobID uuid.UUID) error {
	select {
	case q.jobs <- jobID:
		return nil
	default:
		return fmt.Errorf("queue full: cannot enqueue job %s", jobID)
	}
}

func (q *MemoryQueue) Start(ctx context.Context) error {
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	q.cancel = cancel

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.runWorker(workerCtx)
	}
	return nil
}

func (q *MemoryQueue) Stop(_ context.Context) error {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
	return nil
}

func (q *MemoryQueue) runWorker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-q.jobs:
			if err := q.runner.Run(ctx, jobID); err != nil {
				q.log.Errorw("job run failed", "job_id", jobID, "error", err)
			}
		}
	}
}
