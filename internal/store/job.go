package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AirSaas/flash-reports-poc-sub000/internal/store/model"
)

// Job interface for report job database operations.
//
// Status transitions are guarded at the SQL level: every update carries the
// expected current status in its WHERE clause, so two workers racing on the
// same job cannot both win. A job that reached completed or failed never
// changes again.
type Job interface {
	Create(ctx context.Context, job model.Job) (*model.Job, error)
	Get(ctx context.Context, id uuid.UUID, sessionID string) (*model.Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Job, error)
	List(ctx context.Context, sessionID string) (model.JobList, error)
	TransitionToProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	Complete(ctx context.Context, id uuid.UUID, result model.JobResult) error
	Fail(ctx context.Context, id uuid.UUID, jobErr string) error
}

type JobStore struct {
	db *gorm.DB
}

// Make sure we conform to Job interface
var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job model.Job) (*model.Job, error) {
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	result := s.getDB(ctx).Create(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating job: %w", result.Error)
	}
	return &job, nil
}

// Get returns the job only if it belongs to the given session. A job owned by
// another session is reported as not found rather than forbidden.
func (s *JobStore) Get(ctx context.Context, id uuid.UUID, sessionID string) (*model.Job, error) {
	var job model.Job
	result := s.getDB(ctx).First(&job, "id = ? AND session_id = ?", id, sessionID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", result.Error)
	}

	return &job, nil
}

// GetByID skips the session ownership check. Reserved for workers that
// process jobs on behalf of the owning session.
func (s *JobStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	result := s.getDB(ctx).First(&job, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", result.Error)
	}

	return &job, nil
}

func (s *JobStore) List(ctx context.Context, sessionID string) (model.JobList, error) {
	var jobs model.JobList
	result := s.getDB(ctx).Where("session_id = ?", sessionID).Order("created_at DESC").Find(&jobs)
	if result.Error != nil {
		return nil, fmt.Errorf("listing jobs: %w", result.Error)
	}
	return jobs, nil
}

// TransitionToProcessing claims a pending job. It returns false without error
// when the job exists but was already claimed or finished, so duplicate
// triggers for the same job become no-ops.
func (s *JobStore) TransitionToProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now()
	result := s.getDB(ctx).Model(&model.Job{}).
		Where("id = ? AND status = ?", id, model.JobStatusPending).
		Updates(map[string]any{
			"status":     model.JobStatusProcessing,
			"started_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("claiming job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if err := s.exists(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}

	return true, nil
}

// Complete moves a processing job to completed and records its result. The
// error column stays empty.
func (s *JobStore) Complete(ctx context.Context, id uuid.UUID, jobResult model.JobResult) error {
	now := time.Now()
	result := s.getDB(ctx).Model(&model.Job{}).
		Where("id = ? AND status = ?", id, model.JobStatusProcessing).
		Updates(map[string]any{
			"status":       model.JobStatusCompleted,
			"result":       model.MakeJSONField(jobResult),
			"error":        "",
			"completed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return fmt.Errorf("completing job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if err := s.exists(ctx, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}

	return nil
}

// Fail moves a processing job to failed and records the error message. The
// result column stays empty.
func (s *JobStore) Fail(ctx context.Context, id uuid.UUID, jobErr string) error {
	now := time.Now()
	result := s.getDB(ctx).Model(&model.Job{}).
		Where("id = ? AND status = ?", id, model.JobStatusProcessing).
		Updates(map[string]any{
			"status":       model.JobStatusFailed,
			"result":       nil,
			"error":        jobErr,
			"completed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return fmt.Errorf("failing job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if err := s.exists(ctx, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}

	return nil
}

func (s *JobStore) exists(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := s.getDB(ctx).Model(&model.Job{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("querying job: %w", err)
	}
	if count == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
