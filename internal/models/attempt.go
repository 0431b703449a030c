package models

import (
	"time"

	"github.com/google/uuid"
)

type AttemptState string

const (
	AttemptInProgress             AttemptState = "InProgress"
	AttemptSubmitted              AttemptState = "Submitted"
	AttemptAutomaticallySubmitted AttemptState = "AutomaticallySubmitted"
	AttemptGraded                 AttemptState = "Graded"
	// AttemptTimedOut is reserved; no transition currently produces it.
	AttemptTimedOut AttemptState = "TimedOut"
)

// Terminal reports whether the state forbids starting a fresh attempt
// for the same (student, quiz) pair.
func (s AttemptState) Terminal() bool {
	switch s {
	case AttemptSubmitted, AttemptAutomaticallySubmitted, AttemptGraded:
		return true
	}
	return false
}

// Submittable reports whether the grading pipeline may pick the
// attempt up.
func (s AttemptState) Submittable() bool {
	return s == AttemptSubmitted || s == AttemptAutomaticallySubmitted
}

type QuizAttempt struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	// The unique index enforces one attempt per (student, quiz) even
	// when two start requests race past the service-level check.
	QuizID    uuid.UUID `json:"quiz_id" gorm:"type:uuid;not null;uniqueIndex:idx_attempts_quiz_student"`
	StudentID uuid.UUID `json:"student_id" gorm:"type:uuid;not null;uniqueIndex:idx_attempts_quiz_student"`

	AttemptStart   time.Time    `json:"attempt_start" gorm:"not null"`
	AttemptEnd     time.Time    `json:"attempt_end" gorm:"not null"`
	LastSaved      time.Time    `json:"last_saved"`
	SubmissionTime *time.Time   `json:"submission_time"`
	State          AttemptState `json:"state" gorm:"not null;default:InProgress;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Quiz Quiz `json:"-" gorm:"foreignKey:QuizID"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}
