// Package iteration drives the bounded generate, evaluate, regenerate loop
// around report jobs.
package iteration

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/AirSaas/flash-reports-poc-sub000/internal/config"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/genai"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/jobs"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/store"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/store/model"
)

// Outcome is the final state of one report request after the loop ends. It
// always references a stored artifact: the loop can end without a passing
// score, but never without a report.
type Outcome struct {
	Result     model.JobResult   `json:"result"`
	Evaluation *model.Evaluation `json:"evaluation,omitempty"`
	Iterations int               `json:"iterations"`
	Passed     bool              `json:"passed"`
}

// Controller submits generation and evaluation jobs through the polling
// client and decides whether to accept the artifact or loop back. The loop
// is bounded: once the iteration cap is reached the last artifact is
// delivered after one final evaluation, whatever its score.
type Controller struct {
	client        *jobs.Client
	store         store.Store
	threshold     int
	maxIterations int
	log           *zap.SugaredLogger
}

func NewController(client *jobs.Client, s store.Store, pipeline *config.PipelineConfig) *Controller {
	maxIterations := pipeline.MaxIterations
	if maxIterations < 1 {
		maxIterations = 1
	}
	return &Controller{
		client:        client,
		store:         s,
		threshold:     pipeline.EvalThreshold,
		maxIterations: maxIterations,
		log:           zap.S().Named("iteration"),
	}
}

// Run generates a report for the payload and iterates until the evaluation
// passes or the iteration cap is reached. A generation failure is terminal.
// An evaluation failure is not: the artifact already exists, so it is
// delivered with whatever verdict we have.
func (c *Controller) Run(ctx context.Context, sessionID string, payload model.JobPayload) (*Outcome, error) {
	var feedback []string

	// Report iteration numbering continues across requests for the same
	// project.
	base, err := c.store.Report().CountByProject(ctx, sessionID, payload.FirstProject())
	if err != nil {
		return nil, err
	}

	for iteration := 1; ; iteration++ {
		payload.Iteration = int(base) + iteration
		payload.Feedback = feedback

		result, err := c.generate(ctx, sessionID, payload)
		if err != nil {
			return nil, fmt.Errorf("generation iteration %d: %w", iteration, err)
		}

		eval, err := c.evaluate(ctx, sessionID, result, projectCount(payload))
		if err != nil {
			c.log.Warnw("evaluation failed, delivering unevaluated artifact",
				"session_id", sessionID, "iteration", iteration, "error", err)
			return &Outcome{Result: *result, Iterations: iteration}, nil
		}

		passed := eval.Score >= c.threshold || eval.Recommendation == genai.RecommendationPass
		if passed {
			return &Outcome{Result: *result, Evaluation: eval, Iterations: iteration, Passed: true}, nil
		}
		if iteration >= c.maxIterations {
			c.log.Warnw("iteration cap reached, delivering last artifact",
				"session_id", sessionID, "iterations", iteration, "score", eval.Score)
			return &Outcome{Result: *result, Evaluation: eval, Iterations: iteration}, nil
		}

		c.log.Infow("regenerating report",
			"session_id", sessionID, "iteration", iteration, "score", eval.Score, "issues", len(eval.Issues))
		feedback = eval.Issues
	}
}

func (c *Controller) generate(ctx context.Context, sessionID string, payload model.JobPayload) (*model.JobResult, error) {
	job, err := c.client.Submit(ctx, sessionID, model.JobKindReportGeneration, payload)
	if err != nil {
		return nil, err
	}

	job, err = c.client.Wait(ctx, job.ID, sessionID)
	if err != nil {
		return nil, err
	}
	if job.Result == nil {
		return nil, errors.New("completed generation job carries no result")
	}

	return &job.Result.Data, nil
}

func (c *Controller) evaluate(ctx context.Context, sessionID string, result *model.JobResult, count int) (*model.Evaluation, error) {
	if result.ReportID == nil {
		return nil, errors.New("generation result carries no report reference")
	}

	job, err := c.client.Submit(ctx, sessionID, model.JobKindReportEvaluation, model.JobPayload{
		ReportID:     result.ReportID,
		ProjectCount: count,
	})
	if err != nil {
		return nil, err
	}

	if _, err = c.client.Wait(ctx, job.ID, sessionID); err != nil {
		return nil, err
	}

	report, err := c.store.Report().Get(ctx, *result.ReportID, sessionID)
	if err != nil {
		return nil, err
	}
	if report.Evaluation == nil {
		return nil, errors.New("evaluated report carries no verdict")
	}

	return &report.Evaluation.Data, nil
}

func projectCount(payload model.JobPayload) int {
	if len(payload.ProjectIDs) > 0 {
		return len(payload.ProjectIDs)
	}
	return len(payload.Records)
}
