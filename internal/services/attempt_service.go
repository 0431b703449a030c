package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/light-quiz/quiz-service/internal/cache"
	"github.com/light-quiz/quiz-service/internal/events"
	"github.com/light-quiz/quiz-service/internal/models"
	"github.com/light-quiz/quiz-service/internal/repositories"
	"github.com/light-quiz/quiz-service/internal/utils"
)

const (
	quizMetadataCacheTTL = 10 * time.Minute
	resultCacheTTL       = time.Hour
)

type attemptService struct {
	repo      repositories.Repository
	scheduler Scheduler
	grading   GradingService
	publisher events.EventPublisher
	cache     cache.CacheService
	clock     utils.Clock
	validator *utils.Validator
	logger    utils.Logger
	grace     time.Duration
}

func NewAttemptService(
	repo repositories.Repository,
	scheduler Scheduler,
	grading GradingService,
	publisher events.EventPublisher,
	cacheService cache.CacheService,
	clock utils.Clock,
	validator *utils.Validator,
	logger utils.Logger,
	grace time.Duration,
) AttemptService {
	return &attemptService{
		repo:      repo,
		scheduler: scheduler,
		grading:   grading,
		publisher: publisher,
		cache:     cacheService,
		clock:     clock,
		validator: validator,
		logger:    logger,
		grace:     grace,
	}
}

// ===== QUIZ METADATA =====

func (s *attemptService) GetQuizMetadata(ctx context.Context, quizID, studentID uuid.UUID) (*QuizMetadataResponse, error) {
	var quiz models.Quiz
	key := cache.QuizMetadataKey(quizID.String())
	if err := s.cache.Get(ctx, key, &quiz); err != nil {
		fetched, err := s.repo.Quiz().GetByID(ctx, quizID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrQuizNotFound
			}
			return nil, fmt.Errorf("failed to get quiz: %w", err)
		}
		quiz = *fetched
		if err := s.cache.Set(ctx, key, quiz, quizMetadataCacheTTL); err != nil {
			s.logger.Warn("Failed to cache quiz metadata", "quiz_id", quizID, "error", err)
		}
	}

	didStart := false
	if _, err := s.repo.Attempt().GetByStudentAndQuiz(ctx, studentID, quizID); err == nil {
		didStart = true
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check existing attempt: %w", err)
	}

	resp := &QuizMetadataResponse{
		QuizID:          quiz.ID,
		Title:           quiz.Title,
		StartsAt:        quiz.StartsAt,
		DurationMinutes: quiz.DurationMinutes,
		QuestionCount:   quiz.QuestionCount,
		PossiblePoints:  quiz.PossiblePoints,
		DidStartQuiz:    didStart,
	}
	if quiz.Description != nil {
		resp.Description = *quiz.Description
	}
	return resp, nil
}

// ===== START =====

func (s *attemptService) Start(ctx context.Context, quizID, studentID uuid.UUID) (*StartAttemptResponse, error) {
	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	existing, err := s.repo.Attempt().GetByStudentAndQuiz(ctx, studentID, quizID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check existing attempt: %w", err)
	}
	if existing != nil {
		if existing.State == models.AttemptInProgress {
			return nil, ErrAttemptCannotStart
		}
		return nil, ErrQuizAlreadyTaken
	}

	now := s.clock.Now()
	quizEnd := quiz.EndsAt(s.grace)
	if !now.Before(quizEnd) {
		return nil, ErrQuizEnded
	}

	// Every attempt ends at the quiz's global end. A late starter gets
	// whatever time remains, never an extension past that ceiling.
	attemptEnd := quizEnd

	attempt := &models.QuizAttempt{
		ID:           uuid.New(),
		QuizID:       quizID,
		StudentID:    studentID,
		AttemptStart: now,
		AttemptEnd:   attemptEnd,
		LastSaved:    now,
		State:        models.AttemptInProgress,
	}
	if err := s.repo.Attempt().Create(ctx, attempt); err != nil {
		// A concurrent start for the same (student, quiz) won the
		// insert; the unique index is the authoritative guard.
		if repositories.IsDuplicateKeyError(err) {
			return nil, ErrAttemptCannotStart
		}
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	if err := s.scheduler.Schedule(ctx, attempt.ID, attemptEnd); err != nil {
		// The attempt is live; the poller resweep covers a missed job
		// only if the row exists, so a failure here is a real gap.
		s.logger.Error("Failed to schedule auto-submit", "attempt_id", attempt.ID, "error", err)
		return nil, fmt.Errorf("failed to schedule auto-submit: %w", err)
	}

	s.logger.Info("Attempt started",
		"attempt_id", attempt.ID,
		"quiz_id", quizID,
		"student_id", studentID,
		"attempt_end", attemptEnd)

	return s.buildStartResponse(quiz, attempt), nil
}

func (s *attemptService) buildStartResponse(quiz *models.Quiz, attempt *models.QuizAttempt) *StartAttemptResponse {
	questions := make([]QuestionView, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		view := QuestionView{
			QuestionID: q.ID,
			Text:       q.Text,
			ImageURL:   q.ImageURL,
			Type:       string(q.Type),
			Points:     q.Points,
		}
		for _, opt := range q.Options {
			view.Options = append(view.Options, OptionView{
				OptionID: opt.ID,
				Letter:   opt.Letter,
				Text:     opt.Text,
			})
		}
		questions = append(questions, view)
	}

	if quiz.Randomize {
		rand.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}

	resp := &StartAttemptResponse{
		AttemptID:       attempt.ID,
		QuizID:          quiz.ID,
		Title:           quiz.Title,
		AttemptStart:    attempt.AttemptStart,
		AttemptEnd:      attempt.AttemptEnd,
		DurationMinutes: quiz.DurationMinutes,
		Questions:       questions,
	}
	if quiz.Description != nil {
		resp.Description = *quiz.Description
	}
	return resp
}

// ===== PROGRESS =====

func (s *attemptService) SaveProgress(ctx context.Context, studentID uuid.UUID, req *SaveProgressRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	attempt, err := s.repo.Attempt().GetByID(ctx, req.AttemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.StudentID != studentID {
		return ErrAttemptNotOwned
	}
	if attempt.State != models.AttemptInProgress {
		return ErrAttemptNotActive
	}

	now := s.clock.Now()
	return s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := s.mergeAnswers(ctx, tx, attempt, req.Answers); err != nil {
			return err
		}
		attempt.LastSaved = now
		if err := tx.Attempt().Update(ctx, attempt); err != nil {
			return fmt.Errorf("failed to update attempt: %w", err)
		}
		return nil
	})
}

// mergeAnswers upserts the request's answers onto the stored set.
// Answers already stored for questions the request omits are kept;
// empty answers are skipped entirely.
func (s *attemptService) mergeAnswers(ctx context.Context, tx repositories.Repository, attempt *models.QuizAttempt, answers []AnswerPayload) error {
	for _, payload := range answers {
		answer := &models.StudentAnswer{
			ID:           uuid.New(),
			QuizID:       attempt.QuizID,
			StudentID:    attempt.StudentID,
			QuestionID:   payload.QuestionID,
			OptionLetter: payload.OptionLetter,
			AnswerText:   payload.AnswerText,
		}
		if answer.Empty() {
			continue
		}
		if err := tx.Answer().Upsert(ctx, answer); err != nil {
			return fmt.Errorf("failed to upsert answer for question %s: %w", payload.QuestionID, err)
		}
	}
	return nil
}

func (s *attemptService) GetProgress(ctx context.Context, quizID, studentID uuid.UUID) (*ProgressResponse, error) {
	attempt, err := s.repo.Attempt().GetByStudentAndQuiz(ctx, studentID, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotStarted
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	answers, err := s.repo.Answer().GetByStudentAndQuiz(ctx, studentID, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}

	payloads := make([]AnswerPayload, 0, len(answers))
	for _, a := range answers {
		payloads = append(payloads, AnswerPayload{
			QuestionID:   a.QuestionID,
			OptionLetter: a.OptionLetter,
			AnswerText:   a.AnswerText,
		})
	}

	return &ProgressResponse{
		AttemptID:    attempt.ID,
		Answers:      payloads,
		LastSaved:    attempt.LastSaved,
		AttemptStart: attempt.AttemptStart,
		AttemptEnd:   attempt.AttemptEnd,
	}, nil
}

// ===== SUBMIT =====

func (s *attemptService) Submit(ctx context.Context, studentID uuid.UUID, req *SubmitQuizRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	attempt, err := s.repo.Attempt().GetByStudentAndQuiz(ctx, studentID, req.QuizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAttemptNotStarted
		}
		return fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.State.Terminal() {
		return ErrAttemptAlreadySubmitted
	}

	now := s.clock.Now()
	if err := s.finalizeAttempt(ctx, attempt, models.AttemptSubmitted, now, req.Answers); err != nil {
		return err
	}

	s.logger.Info("Attempt submitted",
		"attempt_id", attempt.ID,
		"quiz_id", attempt.QuizID,
		"student_id", studentID)

	s.afterSubmit(attempt, false, now)
	return nil
}

// AutoSubmit fires at the attempt deadline. The attempt may already be
// gone or manually submitted; either way nothing happens and no error
// is reported, so the scheduler can mark the job done.
func (s *attemptService) AutoSubmit(ctx context.Context, attemptID uuid.UUID) error {
	attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			s.logger.Warn("Auto-submit skipped, attempt missing", "attempt_id", attemptID)
			return nil
		}
		return fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.State != models.AttemptInProgress {
		s.logger.Debug("Auto-submit skipped, attempt not in progress",
			"attempt_id", attemptID, "state", attempt.State)
		return nil
	}

	now := s.clock.Now()
	err = s.finalizeAttempt(ctx, attempt, models.AttemptAutomaticallySubmitted, now, nil)
	if err != nil {
		// Losing the race to a manual submit is the expected outcome,
		// not a failure.
		if err == ErrAttemptAlreadySubmitted {
			s.logger.Debug("Auto-submit lost race to manual submit", "attempt_id", attemptID)
			return nil
		}
		return err
	}

	s.logger.Info("Attempt auto-submitted",
		"attempt_id", attempt.ID,
		"quiz_id", attempt.QuizID,
		"student_id", attempt.StudentID)

	s.afterSubmit(attempt, true, now)
	return nil
}

// finalizeAttempt performs the submission transaction: the state flip,
// the final answer merge, and the audit row. The flip is a guarded
// single-statement update, so when manual submit and the deadline job
// race, exactly one of them gets through.
func (s *attemptService) finalizeAttempt(ctx context.Context, attempt *models.QuizAttempt, to models.AttemptState, now time.Time, answers []AnswerPayload) error {
	return s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		ok, err := tx.Attempt().MarkSubmitted(ctx, attempt.ID, to, now)
		if err != nil {
			return fmt.Errorf("failed to mark attempt submitted: %w", err)
		}
		if !ok {
			return ErrAttemptAlreadySubmitted
		}
		attempt.State = to
		attempt.SubmissionTime = &now

		if err := s.mergeAnswers(ctx, tx, attempt, answers); err != nil {
			return err
		}

		submission := &models.QuizSubmission{
			ID:          uuid.New(),
			QuizID:      attempt.QuizID,
			StudentID:   attempt.StudentID,
			SubmittedAt: now,
			Automatic:   to == models.AttemptAutomaticallySubmitted,
		}
		if err := tx.Submission().Create(ctx, submission); err != nil {
			return fmt.Errorf("failed to record submission: %w", err)
		}
		return nil
	})
}

// afterSubmit runs the post-commit side effects: the submitted event
// and the async grading kickoff. Neither can affect the accepted
// submission, so failures are logged and swallowed.
func (s *attemptService) afterSubmit(attempt *models.QuizAttempt, automatic bool, submittedAt time.Time) {
	event := events.NewQuizEvent(events.EventAttemptSubmitted, events.AttemptSubmittedEvent{
		AttemptID:   attempt.ID,
		QuizID:      attempt.QuizID,
		StudentID:   attempt.StudentID,
		Automatic:   automatic,
		SubmittedAt: submittedAt,
	})
	if err := s.publisher.PublishQuizEvent(context.Background(), event); err != nil {
		s.logger.Error("Failed to publish submitted event", "attempt_id", attempt.ID, "error", err)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.grading.GradeQuiz(ctx, attempt.StudentID, attempt.QuizID); err != nil {
			s.logger.Error("Grading failed",
				"attempt_id", attempt.ID,
				"quiz_id", attempt.QuizID,
				"student_id", attempt.StudentID,
				"error", err)
		}
	}()
}

// ===== RESULT =====

func (s *attemptService) GetResult(ctx context.Context, quizID, studentID uuid.UUID) (*ResultResponse, error) {
	key := cache.ResultKey(studentID.String(), quizID.String())
	var cached ResultResponse
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	result, err := s.repo.Result().GetByStudentAndQuiz(ctx, studentID, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, s.classifyMissingResult(ctx, quizID, studentID)
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	resp := &ResultResponse{
		StudentID:        result.StudentID,
		QuizID:           result.QuizID,
		QuizTitle:        result.QuizTitle,
		Grade:            result.Grade,
		PossiblePoints:   result.PossiblePoints,
		CorrectQuestions: result.CorrectQuestions,
		TotalQuestions:   result.TotalQuestions,
		SecondsTaken:     result.SecondsTaken,
		CreatedAt:        result.CreatedAt,
	}
	// Results never change once written, so a long TTL is safe.
	if err := s.cache.Set(ctx, key, resp, resultCacheTTL); err != nil {
		s.logger.Warn("Failed to cache result", "quiz_id", quizID, "student_id", studentID, "error", err)
	}
	return resp, nil
}

// classifyMissingResult distinguishes "grading still running" from
// "nothing to grade" when no result row exists yet.
func (s *attemptService) classifyMissingResult(ctx context.Context, quizID, studentID uuid.UUID) error {
	attempt, err := s.repo.Attempt().GetByStudentAndQuiz(ctx, studentID, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrResultNotFound
		}
		return fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.State.Submittable() {
		return ErrResultNotReady
	}
	return ErrResultNotFound
}
