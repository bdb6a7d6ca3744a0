package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	"github.com/AirSaas/flash-reports-poc-sub000/internal/config"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/store"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/store/model"
	"github.com/AirSaas/flash-reports-poc-sub000/pkg/metrics"
)

// TimeoutError means the client gave up waiting for a job. The job itself
// keeps running server side and can still be polled later.
type TimeoutError struct {
	JobID  uuid.UUID
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for job %s after %s", e.JobID, e.Waited)
}

// JobError means the job reached the failed state.
type JobError struct {
	JobID   uuid.UUID
	Message string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
}

// Client submits jobs and polls them until they reach a terminal state.
// Submission is fire-and-forget: the job row is the durable record, the
// queue trigger only wakes a worker up.
type Client struct {
	store    store.Store
	queue    Queue
	interval time.Duration
	maxWait  time.Duration
	log      *zap.SugaredLogger
}

func NewClient(s store.Store, queue Queue, pipeline *config.PipelineConfig) *Client {
	return &Client{
		store:    s,
		queue:    queue,
		interval: pipeline.PollInterval,
		maxWait:  pipeline.MaxWait,
		log:      zap.S().Named("jobclient"),
	}
}

// Submit persists a new job in pending state and enqueues its trigger.
func (c *Client) Submit(ctx context.Context, sessionID string, kind string, payload model.JobPayload) (*model.Job, error) {
	job, err := c.store.Job().Create(ctx, model.Job{
		ID:        uuid.New(),
		SessionID: sessionID,
		Kind:      kind,
		Status:    model.JobStatusPending,
		Payload:   model.MakeJSONField(payload),
	})
	if err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	metrics.IncreaseJobsTotalMetric(kind, string(model.JobStatusPending))

	if err := c.queue.Enqueue(ctx, job.ID); err != nil {
		// The row exists but no worker will pick it up. Claim it so the
		// failure is a legal transition from processing.
		c.abandon(ctx, job.ID, fmt.Sprintf("enqueue failed: %v", err))
		return nil, fmt.Errorf("enqueueing job %s: %w", job.ID, err)
	}

	return job, nil
}

func (c *Client) abandon(ctx context.Context, jobID uuid.UUID, message string) {
	claimed, err := c.store.Job().TransitionToProcessing(ctx, jobID)
	if err != nil {
		c.log.Errorw("failed to claim unqueued job", "job_id", jobID, "error", err)
		return
	}
	if !claimed {
		return
	}
	if err := c.store.Job().Fail(ctx, jobID, message); err != nil {
		c.log.Errorw("failed to mark unqueued job as failed", "job_id", jobID, "error", err)
	}
}

// Trigger re-enqueues an existing job. Safe to call repeatedly: a job past
// pending loses the claim race and the trigger is a no-op.
func (c *Client) Trigger(ctx context.Context, jobID uuid.UUID) error {
	return c.queue.Enqueue(ctx, jobID)
}

// Poll returns the current job state without blocking.
func (c *Client) Poll(ctx context.Context, jobID uuid.UUID, sessionID string) (*model.Job, error) {
	return c.store.Job().Get(ctx, jobID, sessionID)
}

// Wait polls the job on a jittered ticker until it reaches a terminal state.
// A completed job is returned as is; a failed job is returned alongside a
// JobError. Giving up on the deadline returns a TimeoutError and leaves the
// job untouched.
func (c *Client) Wait(ctx context.Context, jobID uuid.UUID, sessionID string) (*model.Job, error) {
	deadline := time.NewTimer(c.maxWait)
	defer deadline.Stop()

	ticker := jitterbug.New(c.interval, &jitterbug.Norm{Stdev: 30 * time.Millisecond, Mean: 0})
	defer ticker.Stop()

	start := time.Now()
	for {
		job, err := c.store.Job().Get(ctx, jobID, sessionID)
		if err != nil {
			return nil, err
		}
		if job.Status.IsTerminal() {
			if job.Status == model.JobStatusFailed {
				return job, &JobError{JobID: jobID, Message: job.Error}
			}
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			c.log.Warnw("gave up waiting for job", "job_id", jobID, "waited", time.Since(start))
			return nil, &TimeoutError{JobID: jobID, Waited: time.Since(start)}
		case <-ticker.C:
		}
	}
}
