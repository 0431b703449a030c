package models

import (
	"time"

	"github.com/google/uuid"
)

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionFreeText       QuestionType = "free_text"
)

type Quiz struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Title           string    `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Description     *string   `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	StartsAt        time.Time `json:"starts_at" gorm:"not null;index"`
	DurationMinutes int       `json:"duration_minutes" gorm:"not null" validate:"required,min=1,max=300"`
	Randomize       bool      `json:"randomize" gorm:"default:false"`
	PossiblePoints  int       `json:"possible_points" gorm:"default:0"`
	QuestionCount   int       `json:"question_count" gorm:"default:0"`

	CreatedBy uuid.UUID `json:"created_by" gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Questions []Question `json:"questions" gorm:"foreignKey:QuizID"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// Duration returns the quiz's nominal duration.
func (q *Quiz) Duration() time.Duration {
	return time.Duration(q.DurationMinutes) * time.Minute
}

// EndsAt returns the quiz's global end including the configured grace
// window. No attempt may run past this instant regardless of when it
// started.
func (q *Quiz) EndsAt(grace time.Duration) time.Time {
	return q.StartsAt.Add(q.Duration() + grace)
}

// TotalPoints sums the point values over the full question set.
func (q *Quiz) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

type Question struct {
	ID           uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	QuizID       uuid.UUID    `json:"quiz_id" gorm:"type:uuid;not null;index"`
	Text         string       `json:"text" gorm:"type:text;not null" validate:"required"`
	ImageURL     *string      `json:"image_url" gorm:"size:500"`
	Type         QuestionType `json:"type" gorm:"not null" validate:"question_type"`
	Points       int          `json:"points" gorm:"not null" validate:"min=0"`
	OrderIndex   int          `json:"order_index" gorm:"not null;default:0"`
	// Canonical answer text for free-text questions; unused when the
	// question carries options.
	CorrectAnswer *string `json:"correct_answer" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Options []QuestionOption `json:"options" gorm:"foreignKey:QuestionID"`
}

func (Question) TableName() string {
	return "questions"
}

// CorrectOption returns the option flagged correct, or nil for
// free-text questions.
func (q *Question) CorrectOption() *QuestionOption {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return &q.Options[i]
		}
	}
	return nil
}

type QuestionOption struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	QuestionID uuid.UUID `json:"question_id" gorm:"type:uuid;not null;index"`
	Letter     string    `json:"letter" gorm:"size:1;not null" validate:"required,len=1"`
	Text       string    `json:"text" gorm:"type:text;not null" validate:"required"`
	IsCorrect  bool      `json:"-" gorm:"default:false"`
}

func (QuestionOption) TableName() string {
	return "question_options"
}
