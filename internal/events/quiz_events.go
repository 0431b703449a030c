package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventAttemptSubmitted EventType = "quiz.attempt.submitted"
	EventAttemptGraded    EventType = "quiz.attempt.graded"
)

// QuizEvent is the envelope published to the notification topic. The
// notification service consumes these; delivery itself is not this
// service's concern.
type QuizEvent struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type AttemptSubmittedEvent struct {
	AttemptID   uuid.UUID `json:"attempt_id"`
	QuizID      uuid.UUID `json:"quiz_id"`
	StudentID   uuid.UUID `json:"student_id"`
	Automatic   bool      `json:"automatic"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type AttemptGradedEvent struct {
	AttemptID        uuid.UUID `json:"attempt_id"`
	QuizID           uuid.UUID `json:"quiz_id"`
	StudentID        uuid.UUID `json:"student_id"`
	Grade            int       `json:"grade"`
	PossiblePoints   int       `json:"possible_points"`
	CorrectQuestions int       `json:"correct_questions"`
	TotalQuestions   int       `json:"total_questions"`
	GradedAt         time.Time `json:"graded_at"`
}

func NewQuizEvent(eventType EventType, data interface{}) *QuizEvent {
	return &QuizEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    "quiz-service",
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
