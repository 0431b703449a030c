package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type JobKind string

const (
	JobAutoSubmit JobKind = "auto_submit"
)

// ScheduledJob is a durable one-shot deferred action. Jobs are
// persisted so deadlines survive process restarts; the poller picks up
// every unprocessed job whose fire time has passed, however late.
// Payload carries the action's arguments, keyed by Kind.
type ScheduledJob struct {
	ID      uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Kind    JobKind        `json:"kind" gorm:"not null;size:50"`
	FireAt  time.Time      `json:"fire_at" gorm:"not null;index"`
	Payload datatypes.JSON `json:"payload" gorm:"type:jsonb"`

	Processed   bool       `json:"processed" gorm:"default:false;index"`
	ProcessedAt *time.Time `json:"processed_at"`

	CreatedAt time.Time `json:"created_at"`
}

func (ScheduledJob) TableName() string {
	return "scheduled_jobs"
}
