package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

const (
	DefaultQueue  = "flash_reports"
	MaxJobRetries = 1
	JobTimeout    = 10 * time.Minute
	jobKind       = "report_job"
)

// ReportJobArgs carries only the domain job ID. All job state lives in the
// jobs table, so a replayed river job simply loses the claim race.
type ReportJobArgs struct {
	JobID uuid.UUID `json:"job_id"`
}

func (ReportJobArgs) Kind() string {
	return jobKind
}

func (ReportJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       DefaultQueue,
		MaxAttempts: MaxJobRetries,
	}
}

type ReportJobWorker struct {
	river.WorkerDefaults[ReportJobArgs]
	runner *Runner
}

func NewReportJobWorker(runner *Runner) *ReportJobWorker {
	return &ReportJobWorker{runner: runner}
}

func (w *ReportJobWorker) Timeout(job *river.Job[ReportJobArgs]) time.Duration {
	return JobTimeout
}

func (w *ReportJobWorker) Work(ctx context.Context, job *river.Job[ReportJobArgs]) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return w.runner.Run(ctx, job.Args.JobID)
}

// RiverQueue is the production Queue backed by postgres via river.
type RiverQueue struct {
	client *river.Client[pgx.Tx]
}

// Make sure we conform to Queue interface
var _ Queue = (*RiverQueue)(nil)

func NewRiverQueue(pool *pgxpool.Pool, runner *Runner, maxWorkers int) (*RiverQueue, error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewReportJobWorker(runner))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			DefaultQueue: {MaxWorkers: maxWorkers},
		},
		Workers:                     workers,
		FetchCooldown:               50 * time.Millisecond,
		JobTimeout:                  JobTimeout,
		CompletedJobRetentionPeriod: 24 * time.Hour,
		DiscardedJobRetentionPeriod: 7 * 24 * time.Hour,
	})
	if err != nil {
		return nil, err
	}

	return &RiverQueue{client: riverClient}, nil
}

func (q *RiverQueue) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	_, err := q.client.Insert(ctx, ReportJobArgs{JobID: jobID}, &river.InsertOpts{
		Queue:       DefaultQueue,
		MaxAttempts: MaxJobRetries,
	})
	return err
}

func (q *RiverQueue) Start(ctx context.Context) error {
	return q.client.Start(ctx)
}

func (q *RiverQueue) Stop(ctx context.Context) error {
	return q.client.Stop(ctx)
}
