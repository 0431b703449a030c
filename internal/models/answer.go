package models

import (
	"time"

	"github.com/google/uuid"
)

// StudentAnswer holds one student's answer to one question. Exactly one
// row exists per (student, quiz, question); saves upsert it in place.
// The grading fields are filled by the grading pipeline and stay nil
// until then.
type StudentAnswer struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	QuizID     uuid.UUID `json:"quiz_id" gorm:"type:uuid;not null;uniqueIndex:idx_answers_student_quiz_question,priority:2"`
	StudentID  uuid.UUID `json:"student_id" gorm:"type:uuid;not null;uniqueIndex:idx_answers_student_quiz_question,priority:1"`
	QuestionID uuid.UUID `json:"question_id" gorm:"type:uuid;not null;uniqueIndex:idx_answers_student_quiz_question,priority:3"`

	OptionLetter *string `json:"option_letter" gorm:"size:1"`
	AnswerText   string  `json:"answer_text" gorm:"type:text"`

	GradingRating     *int    `json:"grading_rating"`
	GradingConfidence *int    `json:"grading_confidence"`
	GradingFeedback   *string `json:"grading_feedback" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StudentAnswer) TableName() string {
	return "student_answers"
}

// Empty reports whether the answer carries neither a selected option
// nor any free text. Empty answers are never persisted.
func (a *StudentAnswer) Empty() bool {
	return a.OptionLetter == nil && a.AnswerText == ""
}
