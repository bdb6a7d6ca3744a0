package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Evaluation is the structured verdict returned by the quality reviewer.
type Evaluation struct {
	Score          int      `json:"score"`
	Issues         []string `json:"issues"`
	Suggestions    []string `json:"suggestions"`
	Recommendation string   `json:"recommendation"`
}

type Report struct {
	ID         uuid.UUID `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  *time.Time
	SessionID  string                 `gorm:"not null;type:VARCHAR(255);index:reports_session_id_idx"`
	JobID      *uuid.UUID             `gorm:"type:VARCHAR(255);index:reports_job_id_idx"`
	ProjectID  string                 `gorm:"not null;type:VARCHAR(255)"`
	Format     string                 `gorm:"not null;type:VARCHAR(20)"`
	ObjectKey  string                 `gorm:"type:VARCHAR(512)"`
	Iteration  int                    `gorm:"not null;default:1"`
	Evaluation *JSONField[Evaluation] `gorm:"type:jsonb"`
}

type ReportList []Report

func (r Report) String() string {
	val, _ := json.Marshal(r)
	return string(val)
}
