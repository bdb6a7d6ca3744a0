package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AirSaas/flash-reports-poc-sub000/internal/iteration"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/jobs"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/store"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/store/model"
)

// GenerateRequest is the validated submission payload for a report.
type GenerateRequest struct {
	ProjectIDs       []string         `json:"projectIds"`
	Records          []map[string]any `json:"records,omitempty"`
	Mapping          map[string]any   `json:"mapping"`
	LongTextStrategy string           `json:"longTextStrategy,omitempty"`
	Format           string           `json:"format,omitempty"`
}

// ReportService ties the HTTP surface to the job pipeline.
type ReportService struct {
	client     *jobs.Client
	controller *iteration.Controller
	store      store.Store
	fetcher    jobs.ProjectFetcher
	log        *zap.SugaredLogger
}

func NewReportService(client *jobs.Client, controller *iteration.Controller, s store.Store, fetcher jobs.ProjectFetcher) *ReportService {
	return &ReportService{
		client:     client,
		controller: controller,
		store:      s,
		fetcher:    fetcher,
		log:        zap.S().Named("report_service"),
	}
}

func (s *ReportService) validate(sessionID string, req GenerateRequest) (model.JobPayload, error) {
	if sessionID == "" {
		return model.JobPayload{}, NewErrValidation("missing session id")
	}
	if len(req.ProjectIDs) == 0 && len(req.Records) == 0 {
		return model.JobPayload{}, NewErrValidation("at least one project id or inline record is required")
	}
	switch req.Format {
	case "", "html", "pptx":
	default:
		return model.JobPayload{}, NewErrValidation("unsupported format " + req.Format)
	}

	return model.JobPayload{
		ProjectIDs:       req.ProjectIDs,
		Records:          req.Records,
		Mapping:          req.Mapping,
		LongTextStrategy: req.LongTextStrategy,
		Format:           req.Format,
	}, nil
}

// CreateGenerationJob validates the request and submits one generation job.
// The caller polls the returned job until it is terminal.
func (s *ReportService) CreateGenerationJob(ctx context.Context, sessionID string, req GenerateRequest) (*model.Job, error) {
	payload, err := s.validate(sessionID, req)
	if err != nil {
		return nil, err
	}

	session, err := s.recordSessionSetup(ctx, sessionID, req)
	if err != nil {
		return nil, err
	}
	// An earlier fetch left a snapshot on the session; prefer it over
	// refetching inside the worker.
	if len(payload.Records) == 0 && session.Snapshot != nil && len(session.Snapshot.Data) > 0 {
		payload.Records = session.Snapshot.Data
	}

	// Iteration numbering continues across requests for the same project.
	count, err := s.store.Report().CountByProject(ctx, sessionID, payload.FirstProject())
	if err != nil {
		return nil, err
	}
	payload.Iteration = int(count) + 1

	job, err := s.client.Submit(ctx, sessionID, model.JobKindReportGeneration, payload)
	if err != nil {
		return nil, err
	}

	s.log.Infow("generation job submitted", "job_id", job.ID, "session_id", sessionID, "iteration", payload.Iteration)
	return job, nil
}

// GenerateAndWait runs the full bounded generate/evaluate loop and returns
// the final outcome. Used by callers that prefer one blocking call over
// polling.
func (s *ReportService) GenerateAndWait(ctx context.Context, sessionID string, req GenerateRequest) (*iteration.Outcome, error) {
	payload, err := s.validate(sessionID, req)
	if err != nil {
		return nil, err
	}

	session, err := s.recordSessionSetup(ctx, sessionID, req)
	if err != nil {
		return nil, err
	}
	if len(payload.Records) == 0 && session.Snapshot != nil && len(session.Snapshot.Data) > 0 {
		payload.Records = session.Snapshot.Data
	}

	return s.controller.Run(ctx, sessionID, payload)
}

// CreateEvaluationJob submits an evaluation job for an existing report.
func (s *ReportService) CreateEvaluationJob(ctx context.Context, sessionID string, reportID uuid.UUID, projectCount int) (*model.Job, error) {
	if sessionID == "" {
		return nil, NewErrValidation("missing session id")
	}

	report, err := s.store.Report().Get(ctx, reportID, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrReportNotFound(reportID)
		}
		return nil, err
	}
	if projectCount <= 0 {
		projectCount = 1
	}

	return s.client.Submit(ctx, sessionID, model.JobKindReportEvaluation, model.JobPayload{
		ReportID:     &report.ID,
		ProjectCount: projectCount,
	})
}

// GetJob returns a job for the owning session. Jobs of other sessions are
// reported as not found.
func (s *ReportService) GetJob(ctx context.Context, sessionID string, jobID uuid.UUID) (*model.Job, error) {
	job, err := s.client.Poll(ctx, jobID, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(jobID)
		}
		return nil, err
	}
	return job, nil
}

// ProcessJob re-triggers a job. Idempotent: triggering a job past pending is
// acknowledged but changes nothing.
func (s *ReportService) ProcessJob(ctx context.Context, sessionID string, jobID uuid.UUID) error {
	if _, err := s.client.Poll(ctx, jobID, sessionID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrJobNotFound(jobID)
		}
		return err
	}
	return s.client.Trigger(ctx, jobID)
}

// ListJobs returns the session's jobs, newest first.
func (s *ReportService) ListJobs(ctx context.Context, sessionID string) (model.JobList, error) {
	return s.store.Job().List(ctx, sessionID)
}

// ListReports returns the session's reports, newest first.
func (s *ReportService) ListReports(ctx context.Context, sessionID string) (model.ReportList, error) {
	return s.store.Report().List(ctx, sessionID)
}

// FetchProjectSnapshot pulls a project's full data snapshot from the
// upstream API. With a session id the snapshot is also stored on the
// session, so a later generation request can reuse it.
func (s *ReportService) FetchProjectSnapshot(ctx context.Context, sessionID string, projectID string) (map[string]any, error) {
	if projectID == "" {
		return nil, NewErrValidation("missing project id")
	}

	snapshot, err := s.fetcher.FetchProjectData(ctx, projectID)
	if err != nil {
		return nil, NewErrProjectFetchFailed(projectID, err)
	}

	if sessionID != "" {
		if err := s.appendSessionSnapshot(ctx, sessionID, snapshot); err != nil {
			s.log.Errorw("failed to store snapshot on session", "session_id", sessionID, "error", err)
		}
	}

	return snapshot, nil
}

// recordSessionSetup bumps the session and records the request's mapping and
// long-text strategy on it. Returns the loaded session including any
// previously fetched snapshot.
func (s *ReportService) recordSessionSetup(ctx context.Context, sessionID string, req GenerateRequest) (*model.Session, error) {
	if _, err := s.store.Session().Touch(ctx, sessionID); err != nil {
		return nil, err
	}
	session, err := s.store.Session().Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if req.Mapping != nil {
		session.Mapping = model.MakeJSONField(req.Mapping)
	}
	if req.LongTextStrategy != "" {
		session.LongTextStrategy = req.LongTextStrategy
	}
	session.CurrentStep = model.SessionStepGenerating

	return s.store.Session().Update(ctx, session)
}

func (s *ReportService) appendSessionSnapshot(ctx context.Context, sessionID string, snapshot map[string]any) error {
	if _, err := s.store.Session().Touch(ctx, sessionID); err != nil {
		return err
	}
	session, err := s.store.Session().Get(ctx, sessionID)
	if err != nil {
		return err
	}

	var records []map[string]any
	if session.Snapshot != nil {
		records = session.Snapshot.Data
	}
	session.Snapshot = model.MakeJSONField(append(records, snapshot))
	session.CurrentStep = model.SessionStepFetching

	_, err = s.store.Session().Update(ctx, session)
	return err
}
