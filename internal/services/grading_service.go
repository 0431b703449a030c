package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/light-quiz/quiz-service/internal/events"
	"github.com/light-quiz/quiz-service/internal/grading"
	"github.com/light-quiz/quiz-service/internal/models"
	"github.com/light-quiz/quiz-service/internal/repositories"
	"github.com/light-quiz/quiz-service/internal/utils"
)

// correctThreshold is the minimum rating (exclusive) for a judgment to
// count the question as correct.
const correctThreshold = 5

type gradingService struct {
	repo      repositories.Repository
	client    GradingClient
	publisher events.EventPublisher
	clock     utils.Clock
	logger    utils.Logger
}

func NewGradingService(
	repo repositories.Repository,
	client GradingClient,
	publisher events.EventPublisher,
	clock utils.Clock,
	logger utils.Logger,
) GradingService {
	return &gradingService{
		repo:      repo,
		client:    client,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// GradeQuiz grades one submitted attempt end to end: build the batched
// evaluation request, call the grading model, then persist every
// judgment, the result row, and the Graded transition in a single
// transaction. A failed run leaves no partial state, so a retry
// re-derives everything from the untouched answers.
func (s *gradingService) GradeQuiz(ctx context.Context, studentID, quizID uuid.UUID) error {
	attempt, err := s.repo.Attempt().GetByStudentAndQuiz(ctx, studentID, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.State == models.AttemptGraded {
		return ErrAttemptAlreadyGraded
	}
	if !attempt.State.Submittable() {
		return ErrAttemptNotSubmitted
	}

	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("failed to get quiz: %w", err)
	}

	answers, err := s.repo.Answer().GetByStudentAndQuiz(ctx, studentID, quizID)
	if err != nil {
		return fmt.Errorf("failed to get answers: %w", err)
	}

	units, answersByQuestion := buildEvaluationUnits(quiz, answers)
	if len(units) == 0 {
		s.logger.Info("No answered questions to grade",
			"quiz_id", quizID, "student_id", studentID)
		return nil
	}

	prompt, err := grading.BuildPrompt(units)
	if err != nil {
		return fmt.Errorf("failed to build grading prompt: %w", err)
	}

	raw, err := s.client.Evaluate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("grading request failed: %w", err)
	}

	response, err := grading.DecodeResponse(raw)
	if err != nil {
		return fmt.Errorf("failed to decode grading response: %w", err)
	}

	result := s.buildResult(quiz, attempt, response.Results, answersByQuestion)

	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		for _, judgment := range response.Results {
			answer, ok := answersByQuestion[judgment.QuestionID]
			if !ok {
				// The model invented or echoed a question id we never
				// asked about. Drop it; it already contributed nothing
				// to the result totals.
				s.logger.Warn("Dropping judgment for unknown question",
					"quiz_id", quizID, "question_id", judgment.QuestionID)
				continue
			}
			rating := judgment.Rating
			confidence := judgment.Confidence
			feedback := judgment.Feedback
			answer.GradingRating = &rating
			answer.GradingConfidence = &confidence
			answer.GradingFeedback = &feedback
			if err := tx.Answer().Update(ctx, answer); err != nil {
				return fmt.Errorf("failed to persist judgment for question %s: %w", judgment.QuestionID, err)
			}
		}

		if err := tx.Result().Create(ctx, result); err != nil {
			return fmt.Errorf("failed to create result: %w", err)
		}

		ok, err := tx.Attempt().MarkGraded(ctx, attempt.ID)
		if err != nil {
			return fmt.Errorf("failed to mark attempt graded: %w", err)
		}
		if !ok {
			return ErrAttemptAlreadyGraded
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Attempt graded",
		"attempt_id", attempt.ID,
		"quiz_id", quizID,
		"student_id", studentID,
		"grade", result.Grade,
		"possible_points", result.PossiblePoints)

	event := events.NewQuizEvent(events.EventAttemptGraded, events.AttemptGradedEvent{
		AttemptID:        attempt.ID,
		QuizID:           quizID,
		StudentID:        studentID,
		Grade:            result.Grade,
		PossiblePoints:   result.PossiblePoints,
		CorrectQuestions: result.CorrectQuestions,
		TotalQuestions:   result.TotalQuestions,
		GradedAt:         s.clock.Now(),
	})
	if err := s.publisher.PublishQuizEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish graded event", "attempt_id", attempt.ID, "error", err)
	}
	return nil
}

// buildEvaluationUnits pairs each question with the student's answer.
// Unanswered questions are skipped; a blank question is normal, not an
// error. The returned map indexes the loaded answers by question id
// for judgment application later.
func buildEvaluationUnits(quiz *models.Quiz, answers []*models.StudentAnswer) ([]grading.EvaluationUnit, map[uuid.UUID]*models.StudentAnswer) {
	byQuestion := make(map[uuid.UUID]*models.StudentAnswer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	units := make([]grading.EvaluationUnit, 0, len(answers))
	for i := range quiz.Questions {
		question := &quiz.Questions[i]
		answer, ok := byQuestion[question.ID]
		if !ok {
			continue
		}

		unit := grading.EvaluationUnit{
			QuestionID:   question.ID,
			QuestionText: question.Text,
		}
		switch question.Type {
		case models.QuestionMultipleChoice:
			if opt := question.CorrectOption(); opt != nil {
				unit.CorrectAnswer = opt.Letter
			}
			if answer.OptionLetter != nil {
				unit.StudentAnswer = *answer.OptionLetter
			}
		default:
			if question.CorrectAnswer != nil {
				unit.CorrectAnswer = *question.CorrectAnswer
			}
			unit.StudentAnswer = answer.AnswerText
		}
		units = append(units, unit)
	}
	return units, byQuestion
}

// buildResult computes the aggregate result from the model's
// judgments. Judgments for unknown questions are ignored; possible
// points always cover the quiz's full question set, graded or not.
func (s *gradingService) buildResult(quiz *models.Quiz, attempt *models.QuizAttempt, judgments []grading.Judgment, answersByQuestion map[uuid.UUID]*models.StudentAnswer) *models.QuizResult {
	pointsByQuestion := make(map[uuid.UUID]int, len(quiz.Questions))
	for _, q := range quiz.Questions {
		pointsByQuestion[q.ID] = q.Points
	}

	grade := 0
	correct := 0
	for _, judgment := range judgments {
		if _, known := answersByQuestion[judgment.QuestionID]; !known {
			continue
		}
		points, known := pointsByQuestion[judgment.QuestionID]
		if !known {
			continue
		}
		if judgment.Rating > correctThreshold {
			grade += points
			correct++
		}
	}

	secondsTaken := 0
	if attempt.SubmissionTime != nil {
		secondsTaken = int(attempt.SubmissionTime.Sub(attempt.AttemptStart) / time.Second)
	}

	totalQuestions := quiz.QuestionCount
	if totalQuestions == 0 {
		totalQuestions = len(quiz.Questions)
	}

	return &models.QuizResult{
		ID:               uuid.New(),
		QuizID:           quiz.ID,
		StudentID:        attempt.StudentID,
		QuizTitle:        quiz.Title,
		Grade:            grade,
		PossiblePoints:   quiz.TotalPoints(),
		CorrectQuestions: correct,
		TotalQuestions:   totalQuestions,
		SecondsTaken:     secondsTaken,
	}
}
