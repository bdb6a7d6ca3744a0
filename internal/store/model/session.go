package model

import (
	"encoding/json"
	"time"
)

// Session workflow steps.
const (
	SessionStepFetching   = "fetching"
	SessionStepGenerating = "generating"
)

// Session tracks one client's workflow state: the last fetched project
// snapshot, the chosen field mapping and long-text strategy, and where in
// the flow the client currently is.
type Session struct {
	ID               string                       `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	CreatedAt        time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	LastSeenAt       time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	Snapshot         *JSONField[[]map[string]any] `gorm:"type:jsonb"`
	Mapping          *JSONField[map[string]any]   `gorm:"type:jsonb"`
	LongTextStrategy string                       `gorm:"type:VARCHAR(50)"`
	CurrentStep      string                       `gorm:"type:VARCHAR(50)"`
}

func (s Session) String() string {
	val, _ := json.Marshal(s)
	return string(val)
}
