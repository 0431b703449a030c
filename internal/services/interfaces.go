package services

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AttemptService owns the lifecycle of a student's quiz attempt: start,
// incremental progress saves, and manual or scheduled submission.
type AttemptService interface {
	GetQuizMetadata(ctx context.Context, quizID, studentID uuid.UUID) (*QuizMetadataResponse, error)
	Start(ctx context.Context, quizID, studentID uuid.UUID) (*StartAttemptResponse, error)
	SaveProgress(ctx context.Context, studentID uuid.UUID, req *SaveProgressRequest) error
	GetProgress(ctx context.Context, quizID, studentID uuid.UUID) (*ProgressResponse, error)
	Submit(ctx context.Context, studentID uuid.UUID, req *SubmitQuizRequest) error

	// AutoSubmit is invoked by the deadline scheduler. It re-checks the
	// attempt's current state and is a no-op when the attempt is no
	// longer InProgress.
	AutoSubmit(ctx context.Context, attemptID uuid.UUID) error

	GetResult(ctx context.Context, quizID, studentID uuid.UUID) (*ResultResponse, error)
}

// GradingService runs the automated grading pipeline for a submitted
// attempt. Safe to retry after a transient failure: a failed run leaves
// no partial state behind.
type GradingService interface {
	GradeQuiz(ctx context.Context, studentID, quizID uuid.UUID) error
}

// Scheduler registers durable one-shot auto-submit jobs. Scheduling is
// fire-and-forget; correctness relies on the fired action's state
// guard, not on cancellation.
type Scheduler interface {
	Schedule(ctx context.Context, attemptID uuid.UUID, fireAt time.Time) error
}

// GradingClient sends a finished prompt to the external grading model
// and returns the raw reply text.
type GradingClient interface {
	Evaluate(ctx context.Context, prompt string) (string, error)
}

// ===== REQUEST / RESPONSE SHAPES =====

type AnswerPayload struct {
	QuestionID   uuid.UUID `json:"question_id" validate:"required"`
	OptionLetter *string   `json:"option_letter" validate:"omitempty,option_letter"`
	AnswerText   string    `json:"answer_text"`
}

type SaveProgressRequest struct {
	AttemptID uuid.UUID       `json:"attempt_id" validate:"required"`
	Answers   []AnswerPayload `json:"answers" validate:"dive"`
}

type SubmitQuizRequest struct {
	QuizID  uuid.UUID       `json:"quiz_id" validate:"required"`
	Answers []AnswerPayload `json:"answers" validate:"dive"`
}

type QuizMetadataResponse struct {
	QuizID          uuid.UUID `json:"quiz_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	QuestionCount   int       `json:"question_count"`
	PossiblePoints  int       `json:"possible_points"`
	DidStartQuiz    bool      `json:"did_start_quiz"`
}

type OptionView struct {
	OptionID uuid.UUID `json:"option_id"`
	Letter   string    `json:"letter"`
	Text     string    `json:"text"`
}

type QuestionView struct {
	QuestionID uuid.UUID    `json:"question_id"`
	Text       string       `json:"text"`
	ImageURL   *string      `json:"image_url,omitempty"`
	Type       string       `json:"type"`
	Points     int          `json:"points"`
	Options    []OptionView `json:"options,omitempty"`
}

type StartAttemptResponse struct {
	AttemptID       uuid.UUID      `json:"attempt_id"`
	QuizID          uuid.UUID      `json:"quiz_id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	AttemptStart    time.Time      `json:"attempt_start"`
	AttemptEnd      time.Time      `json:"attempt_end"`
	DurationMinutes int            `json:"duration_minutes"`
	Questions       []QuestionView `json:"questions"`
}

type ProgressResponse struct {
	AttemptID    uuid.UUID       `json:"attempt_id"`
	Answers      []AnswerPayload `json:"answers"`
	LastSaved    time.Time       `json:"last_saved"`
	AttemptStart time.Time       `json:"attempt_start"`
	AttemptEnd   time.Time       `json:"attempt_end"`
}

type ResultResponse struct {
	StudentID        uuid.UUID `json:"student_id"`
	QuizID           uuid.UUID `json:"quiz_id"`
	QuizTitle        string    `json:"quiz_title"`
	Grade            int       `json:"grade"`
	PossiblePoints   int       `json:"possible_points"`
	CorrectQuestions int       `json:"correct_questions"`
	TotalQuestions   int       `json:"total_questions"`
	SecondsTaken     int       `json:"seconds_taken"`
	CreatedAt        time.Time `json:"created_at"`
}
