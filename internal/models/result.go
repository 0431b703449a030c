package models

import (
	"time"

	"github.com/google/uuid"
)

// QuizResult is produced exactly once per (student, quiz) by a
// successful grading run. It exists if and only if the owning attempt
// is Graded, and is never updated in place.
type QuizResult struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	QuizID    uuid.UUID `json:"quiz_id" gorm:"type:uuid;not null;uniqueIndex:idx_results_quiz_student"`
	StudentID uuid.UUID `json:"student_id" gorm:"type:uuid;not null;uniqueIndex:idx_results_quiz_student"`
	QuizTitle string    `json:"quiz_title" gorm:"size:200"`

	Grade            int `json:"grade" gorm:"not null"`
	PossiblePoints   int `json:"possible_points" gorm:"not null"`
	CorrectQuestions int `json:"correct_questions" gorm:"not null"`
	TotalQuestions   int `json:"total_questions" gorm:"not null"`
	SecondsTaken     int `json:"seconds_taken" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
}

func (QuizResult) TableName() string {
	return "quiz_results"
}

// QuizSubmission is an audit row recorded at submit time, one per
// accepted submission.
type QuizSubmission struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	QuizID      uuid.UUID `json:"quiz_id" gorm:"type:uuid;not null;index"`
	StudentID   uuid.UUID `json:"student_id" gorm:"type:uuid;not null;index"`
	SubmittedAt time.Time `json:"submitted_at" gorm:"not null"`
	Automatic   bool      `json:"automatic" gorm:"default:false"`
}

func (QuizSubmission) TableName() string {
	return "quiz_submissions"
}
