// Package jobs runs report jobs asynchronously: a Runner executes one job to
// a terminal state, a Queue transports job triggers to workers, and a Client
// submits jobs and polls them for completion.
package jobs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AirSaas/flash-reports-poc-sub000/internal/compress"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/config"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/genai"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/storage"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/store"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/store/model"
	"github.com/AirSaas/flash-reports-poc-sub000/pkg/metrics"
)

// ProjectFetcher pulls the full data snapshot for one project.
type ProjectFetcher interface {
	FetchProjectData(ctx context.Context, projectID string) (map[string]any, error)
}

// Runner executes a single job from claim to terminal state. Whatever
// happens inside, the job always ends up completed or failed; a job is never
// left in processing by a returning Run call.
type Runner struct {
	store      store.Store
	compressor *compress.Compressor
	generator  genai.Generator
	evaluator  genai.Evaluator
	objects    storage.ObjectStore
	fetcher    ProjectFetcher
	pipeline   *config.PipelineConfig
	log        *zap.SugaredLogger
}

func NewRunner(
	s store.Store,
	compressor *compress.Compressor,
	generator genai.Generator,
	evaluator genai.Evaluator,
	objects storage.ObjectStore,
	fetcher ProjectFetcher,
	pipeline *config.PipelineConfig,
) *Runner {
	return &Runner{
		store:      s,
		compressor: compressor,
		generator:  generator,
		evaluator:  evaluator,
		objects:    objects,
		fetcher:    fetcher,
		pipeline:   pipeline,
		log:        zap.S().Named("jobs"),
	}
}

// Run claims and executes the job. A duplicate trigger for an already
// claimed or finished job is a no-op, not an error.
func (r *Runner) Run(ctx context.Context, jobID uuid.UUID) (err error) {
	claimed, err := r.store.Job().TransitionToProcessing(ctx, jobID)
	if err != nil {
		return fmt.Errorf("claiming job %s: %w", jobID, err)
	}
	if !claimed {
		r.log.Infow("job already claimed or finished, skipping", "job_id", jobID)
		return nil
	}

	job, err := r.store.Job().GetByID(ctx, jobID)
	if err != nil {
		r.fail(ctx, jobID, job, fmt.Sprintf("loading job: %v", err))
		return err
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorw("panic while running job", "job_id", jobID, "panic", rec)
			r.fail(ctx, jobID, job, fmt.Sprintf("internal error: %v", rec))
			err = fmt.Errorf("job %s panicked: %v", jobID, rec)
		}
	}()

	start := time.Now()
	r.log.Infow("running job", "job_id", jobID, "kind", job.Kind, "session_id", job.SessionID)

	var runErr error
	switch job.Kind {
	case model.JobKindReportGeneration:
		runErr = r.runGeneration(ctx, job)
	case model.JobKindReportEvaluation:
		runErr = r.runEvaluation(ctx, job)
	default:
		runErr = fmt.Errorf("unknown job kind %q", job.Kind)
	}

	if runErr != nil {
		r.fail(ctx, jobID, job, runErr.Error())
		metrics.IncreaseJobsTotalMetric(job.Kind, string(model.JobStatusFailed))
		metrics.ObserveJobDurationMetric(job.Kind, time.Since(start))
		return runErr
	}

	metrics.IncreaseJobsTotalMetric(job.Kind, string(model.JobStatusCompleted))
	metrics.ObserveJobDurationMetric(job.Kind, time.Since(start))
	return nil
}

func (r *Runner) runGeneration(ctx context.Context, job *model.Job) error {
	if job.Payload == nil {
		return fmt.Errorf("generation job without payload")
	}
	payload := job.Payload.Data

	records := payload.Records
	if len(records) == 0 {
		for _, projectID := range payload.ProjectIDs {
			data, err := r.fetcher.FetchProjectData(ctx, projectID)
			if err != nil {
				return fmt.Errorf("fetching project %s: %w", projectID, err)
			}
			records = append(records, data)
		}
	}
	if len(records) == 0 {
		return fmt.Errorf("generation job with no project records")
	}

	records = compress.ApplyLongTextStrategy(records, payload.LongTextStrategy)
	compressed := r.compressor.Compress(records, r.pipeline.TokenBudget)
	r.log.Infow("compressed project data",
		"job_id", job.ID,
		"records_in", len(records),
		"records_out", len(compressed),
		"estimate", compress.EstimateTokens(compressed))

	artifact, err := r.generator.Generate(ctx, genai.GenerateRequest{
		Mapping:          payload.Mapping,
		Records:          compressed,
		LongTextStrategy: payload.LongTextStrategy,
		Format:           payload.Format,
		Feedback:         payload.Feedback,
	})
	if err != nil {
		return err
	}

	reportID := uuid.New()
	key := fmt.Sprintf("reports/%s/%s.%s", job.SessionID, reportID, artifact.Format)
	fileURL, err := r.objects.Put(ctx, key, contentTypeFor(artifact.Format), bytes.NewReader(artifact.Content), int64(len(artifact.Content)))
	if err != nil {
		return fmt.Errorf("storing artifact: %w", err)
	}

	iteration := payload.Iteration
	if iteration == 0 {
		iteration = 1
	}
	report, err := r.store.Report().Create(ctx, model.Report{
		ID:        reportID,
		SessionID: job.SessionID,
		JobID:     &job.ID,
		ProjectID: payload.FirstProject(),
		Format:    artifact.Format,
		ObjectKey: key,
		Iteration: iteration,
	})
	if err != nil {
		return fmt.Errorf("persisting report: %w", err)
	}

	return r.store.Job().Complete(ctx, job.ID, model.JobResult{
		ReportID:   &report.ID,
		FileURL:    fileURL,
		Format:     artifact.Format,
		Iterations: iteration,
	})
}

func (r *Runner) runEvaluation(ctx context.Context, job *model.Job) error {
	if job.Payload == nil || job.Payload.Data.ReportID == nil {
		return fmt.Errorf("evaluation job without report reference")
	}
	payload := job.Payload.Data

	report, err := r.store.Report().Get(ctx, *payload.ReportID, job.SessionID)
	if err != nil {
		return fmt.Errorf("loading report %s: %w", payload.ReportID, err)
	}

	object, err := r.objects.Get(ctx, report.ObjectKey)
	if err != nil {
		return fmt.Errorf("loading artifact: %w", err)
	}
	content, err := io.ReadAll(object)
	object.Close()
	if err != nil {
		return fmt.Errorf("reading artifact: %w", err)
	}

	eval, err := r.evaluator.Evaluate(ctx, &genai.Artifact{Content: content, Format: report.Format}, payload.ProjectCount)
	if err != nil {
		return err
	}

	if err := r.store.Report().UpdateEvaluation(ctx, report.ID, model.Evaluation{
		Score:          eval.Score,
		Issues:         eval.Issues,
		Suggestions:    eval.EmptyFields,
		Recommendation: eval.Recommendation,
	}); err != nil {
		return fmt.Errorf("persisting evaluation: %w", err)
	}
	metrics.ObserveEvaluationScoreMetric(eval.Score)

	score := eval.Score
	return r.store.Job().Complete(ctx, job.ID, model.JobResult{
		ReportID: &report.ID,
		Score:    &score,
	})
}

// fail moves the job to failed. Errors here are logged, not propagated: the
// caller already has the original failure.
func (r *Runner) fail(ctx context.Context, jobID uuid.UUID, job *model.Job, message string) {
	if err := r.store.Job().Fail(ctx, jobID, message); err != nil {
		r.log.Errorw("failed to mark job as failed", "job_id", jobID, "error", err)
	}
	if job != nil {
		r.log.Warnw("job failed", "job_id", jobID, "kind", job.Kind, "error", message)
	}
}

func contentTypeFor(format string) string {
	switch format {
	case "html":
		return "text/html"
	case "pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	default:
		return "application/octet-stream"
	}
}
