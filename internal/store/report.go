package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AirSaas/flash-reports-poc-sub000/internal/store/model"
)

// Report interface for generated report database operations.
type Report interface {
	Create(ctx context.Context, report model.Report) (*model.Report, error)
	Get(ctx context.Context, id uuid.UUID, sessionID string) (*model.Report, error)
	List(ctx context.Context, sessionID string) (model.ReportList, error)
	CountByProject(ctx context.Context, sessionID string, projectID string) (int64, error)
	UpdateEvaluation(ctx context.Context, id uuid.UUID, eval model.Evaluation) error
}

type ReportStore struct {
	db *gorm.DB
}

// Make sure we conform to Report interface
var _ Report = (*ReportStore)(nil)

func NewReportStore(db *gorm.DB) Report {
	return &ReportStore{db: db}
}

func (s *ReportStore) Create(ctx context.Context, report model.Report) (*model.Report, error) {
	result := s.getDB(ctx).Create(&report)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating report: %w", result.Error)
	}
	return &report, nil
}

func (s *ReportStore) Get(ctx context.Context, id uuid.UUID, sessionID string) (*model.Report, error) {
	var report model.Report
	result := s.getDB(ctx).First(&report, "id = ? AND session_id = ?", id, sessionID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying report: %w", result.Error)
	}

	return &report, nil
}

func (s *ReportStore) List(ctx context.Context, sessionID string) (model.ReportList, error) {
	var reports model.ReportList
	result := s.getDB(ctx).Where("session_id = ?", sessionID).Order("created_at DESC").Find(&reports)
	if result.Error != nil {
		return nil, fmt.Errorf("listing reports: %w", result.Error)
	}
	return reports, nil
}

// CountByProject returns how many reports a session already generated for a
// project. The count seeds the iteration number of the next report.
func (s *ReportStore) CountByProject(ctx context.Context, sessionID string, projectID string) (int64, error) {
	var count int64
	result := s.getDB(ctx).Model(&model.Report{}).
		Where("session_id = ? AND project_id = ?", sessionID, projectID).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("counting reports: %w", result.Error)
	}
	return count, nil
}

func (s *ReportStore) UpdateEvaluation(ctx context.Context, id uuid.UUID, eval model.Evaluation) error {
	result := s.getDB(ctx).Model(&model.Report{}).
		Where("id = ?", id).
		Update("evaluation", model.MakeJSONField(eval))
	if result.Error != nil {
		return fmt.Errorf("updating report evaluation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (s *ReportStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
