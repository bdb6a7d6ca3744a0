package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/AirSaas/flash-reports-poc-sub000/internal/config"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/store/model"
)

type failingQueue struct{}

func (q *failingQueue) Enqueue(context.Context, uuid.UUID) error {
	return errors.New("queue unavailable")
}
func (q *failingQueue) Start(context.Context) error { return nil }
func (q *failingQueue) Stop(context.Context) error  { return nil }

// dropQueue accepts triggers but never runs anything.
type dropQueue struct{}

func (q *dropQueue) Enqueue(context.Context, uuid.UUID) error { return nil }
func (q *dropQueue) Start(context.Context) error              { return nil }
func (q *dropQueue) Stop(context.Context) error               { return nil }

func testPipeline(maxWait time.Duration) *config.PipelineConfig {
	pipeline := config.DefaultPipeline()
	pipeline.PollInterval = 50 * time.Millisecond
	pipeline.MaxWait = maxWait
	return pipeline
}

func TestClientSubmitAndWait(t *testing.T) {
	f := newRunnerFixture(t)

	queue := NewMemoryQueue(f.runner, 2)
	require.NoError(t, queue.Start(context.Background()))
	t.Cleanup(func() { _ = queue.Stop(context.Background()) })

	client := NewClient(f.store, queue, testPipeline(5*time.Second))

	job, err := client.Submit(context.Background(), "session-1", model.JobKindReportGeneration, model.JobPayload{
		Records: []map[string]any{{"id": "proj-1"}},
	})
	require.NoError(t, err)
	require.Equal(t, model.JobStatusPending, job.Status)

	done, err := client.Wait(context.Background(), job.ID, "session-1")
	require.NoError(t, err)
	require.Equal(t, model.JobStatusCompleted, done.Status)
	require.NotNil(t, done.Result)
}

func TestClientWaitReturnsJobError(t *testing.T) {
	f := newRunnerFixture(t)
	f.generator.err = errors.New("model unavailable")

	queue := NewMemoryQueue(f.runner, 1)
	require.NoError(t, queue.Start(context.Background()))
	t.Cleanup(func() { _ = queue.Stop(context.Background()) })

	client := NewClient(f.store, queue, testPipeline(5*time.Second))

	job, err := client.Submit(context.Background(), "session-1", model.JobKindReportGeneration, model.JobPayload{
		Records: []map[string]any{{"id": "proj-1"}},
	})
	require.NoError(t, err)

	done, err := client.Wait(context.Background(), job.ID, "session-1")
	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	require.Equal(t, job.ID, jobErr.JobID)
	require.NotNil(t, done)
	require.Equal(t, model.JobStatusFailed, done.Status)
}

func TestClientWaitTimesOut(t *testing.T) {
	f := newRunnerFixture(t)

	client := NewClient(f.store, &dropQueue{}, testPipeline(150*time.Millisecond))

	job, err := client.Submit(context.Background(), "session-1", model.JobKindReportGeneration, model.JobPayload{
		Records: []map[string]any{{"id": "proj-1"}},
	})
	require.NoError(t, err)

	_, err = client.Wait(context.Background(), job.ID, "session-1")
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.Equal(t, job.ID, timeoutErr.JobID)

	// Giving up does not touch the job.
	current, err := client.Poll(context.Background(), job.ID, "session-1")
	require.NoError(t, err)
	require.Equal(t, model.JobStatusPending, current.Status)
}

func TestClientSubmitEnqueueFailureFailsJob(t *testing.T) {
	f := newRunnerFixture(t)

	client := NewClient(f.store, &failingQueue{}, testPipeline(time.Second))

	_, err := client.Submit(context.Background(), "session-1", model.JobKindReportGeneration, model.JobPayload{
		Records: []map[string]any{{"id": "proj-1"}},
	})
	require.Error(t, err)

	jobList, listErr := f.store.Job().List(context.Background(), "session-1")
	require.NoError(t, listErr)
	require.Len(t, jobList, 1)
	require.Equal(t, model.JobStatusFailed, jobList[0].Status)
	require.Contains(t, jobList[0].Error, "enqueue failed")
}

func TestClientWaitForeignSessionNotFound(t *testing.T) {
	f := newRunnerFixture(t)

	client := NewClient(f.store, &dropQueue{}, testPipeline(time.Second))

	job, err := client.Submit(context.Background(), "session-1", model.JobKindReportGeneration, model.JobPayload{
		Records: []map[string]any{{"id": "proj-1"}},
	})
	require.NoError(t, err)

	_, err = client.Wait(context.Background(), job.ID, "session-2")
	require.Error(t, err)
}
