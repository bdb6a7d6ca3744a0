package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

// Job status constants
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job kind constants
const (
	JobKindReportGeneration = "report_generation"
	JobKindReportEvaluation = "report_evaluation"
)

// IsTerminal reports whether a job in this status will never change again.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobPayload is the input snapshot captured at submission time. It is
// validated before the job row is created, so a worker never sees an invalid
// payload.
type JobPayload struct {
	ProjectIDs       []string         `json:"project_ids,omitempty"`
	Records          []map[string]any `json:"records,omitempty"`
	Mapping          map[string]any   `json:"mapping,omitempty"`
	LongTextStrategy string           `json:"long_text_strategy,omitempty"`
	Format           string           `json:"format,omitempty"`
	Feedback         []string         `json:"feedback,omitempty"`
	Iteration        int              `json:"iteration,omitempty"`
	ReportID         *uuid.UUID       `json:"report_id,omitempty"`
	ProjectCount     int              `json:"project_count,omitempty"`
}

// FirstProject names the project used for report bookkeeping. Multi-project
// submissions and inline-record submissions fall under one portfolio bucket.
func (p JobPayload) FirstProject() string {
	if len(p.ProjectIDs) > 0 {
		return p.ProjectIDs[0]
	}
	return "portfolio"
}

// JobResult is stored in the job's result column once the job completes.
type JobResult struct {
	ReportID   *uuid.UUID `json:"report_id,omitempty"`
	FileURL    string     `json:"file_url,omitempty"`
	Format     string     `json:"format,omitempty"`
	Score      *int       `json:"score,omitempty"`
	Iterations int        `json:"iterations,omitempty"`
}

type Job struct {
	ID          uuid.UUID `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   *time.Time
	SessionID   string                 `gorm:"not null;type:VARCHAR(255);index:jobs_session_id_idx"`
	Kind        string                 `gorm:"not null;type:VARCHAR(100)"`
	Status      JobStatus              `gorm:"not null;type:VARCHAR(50);index:jobs_status_idx"`
	Payload     *JSONField[JobPayload] `gorm:"type:jsonb"`
	Result      *JSONField[JobResult]  `gorm:"type:jsonb"`
	Error       string                 `gorm:"type:TEXT"`
	StartedAt   *time.Time
	CompletedAt *time.Time
}

type JobList []Job

func (j Job) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}
