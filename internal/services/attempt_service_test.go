package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/light-quiz/quiz-service/internal/cache"
	"github.com/light-quiz/quiz-service/internal/events"
	"github.com/light-quiz/quiz-service/internal/models"
	"github.com/light-quiz/quiz-service/internal/utils"
)

const testGrace = 5 * time.Minute

type attemptServiceFixture struct {
	repo      *MockRepository
	scheduler *MockScheduler
	grading   *MockGradingService
	publisher *events.MockEventPublisher
	cache     *MockCacheService
	clock     *utils.FixedClock
	service   AttemptService
}

func newAttemptServiceFixture(t *testing.T) *attemptServiceFixture {
	t.Helper()
	f := &attemptServiceFixture{
		repo:      NewMockRepository(),
		scheduler: &MockScheduler{},
		grading:   &MockGradingService{},
		publisher: events.NewMockEventPublisher(nil),
		cache:     &MockCacheService{},
		clock:     &utils.FixedClock{Instant: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)},
	}
	f.service = NewAttemptService(
		f.repo, f.scheduler, f.grading, f.publisher, f.cache,
		f.clock, utils.NewValidator(), utils.NewDevelopmentLogger(), testGrace,
	)
	return f
}

func testQuiz(startsAt time.Time) *models.Quiz {
	desc := "Covers chapters 1-3"
	q1 := uuid.New()
	q2 := uuid.New()
	return &models.Quiz{
		ID:              uuid.New(),
		Title:           "Midterm",
		Description:     &desc,
		StartsAt:        startsAt,
		DurationMinutes: 60,
		QuestionCount:   2,
		PossiblePoints:  15,
		Questions: []models.Question{
			{
				ID:     q1,
				Text:   "Pick A",
				Type:   models.QuestionMultipleChoice,
				Points: 5,
				Options: []models.QuestionOption{
					{ID: uuid.New(), QuestionID: q1, Letter: "A", Text: "first", IsCorrect: true},
					{ID: uuid.New(), QuestionID: q1, Letter: "B", Text: "second"},
				},
			},
			{
				ID:            q2,
				Text:          "Explain",
				Type:          models.QuestionFreeText,
				Points:        10,
				CorrectAnswer: strPtr("because"),
			},
		},
	}
}

func strPtr(s string) *string { return &s }

func TestAttemptService_Start(t *testing.T) {
	ctx := context.Background()
	studentID := uuid.New()

	t.Run("creates attempt ending at the quiz deadline", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		quiz := testQuiz(f.clock.Now())
		wantEnd := quiz.StartsAt.Add(time.Hour + testGrace)

		f.repo.quiz.On("GetByIDWithQuestions", ctx, quiz.ID).Return(quiz, nil)
		f.repo.attempt.On("GetByStudentAndQuiz", ctx, studentID, quiz.ID).Return(nil, gorm.ErrRecordNotFound)
		f.repo.attempt.On("Create", ctx, mock.MatchedBy(func(a *models.QuizAttempt) bool {
			return a.State == models.AttemptInProgress && a.AttemptEnd.Equal(wantEnd)
		})).Return(nil)
		f.scheduler.On("Schedule", ctx, mock.Anything, wantEnd).Return(nil)

		resp, err := f.service.Start(ctx, quiz.ID, studentID)

		assert.NoError(t, err)
		assert.Equal(t, wantEnd, resp.AttemptEnd)
		assert.Len(t, resp.Questions, 2)
		f.repo.AssertExpectations(t)
		f.scheduler.AssertExpectations(t)
	})

	t.Run("late starter keeps the same absolute deadline", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		quiz := testQuiz(f.clock.Now().Add(-30 * time.Minute))
		wantEnd := quiz.StartsAt.Add(time.Hour + testGrace)

		f.repo.quiz.On("GetByIDWithQuestions", ctx, quiz.ID).Return(quiz, nil)
		f.repo.attempt.On("GetByStudentAndQuiz", ctx, studentID, quiz.ID).Return(nil, gorm.ErrRecordNotFound)
		f.repo.attempt.On("Create", ctx, mock.Anything).Return(nil)
		f.scheduler.On("Schedule", ctx, mock.Anything, wantEnd).Return(nil)

		resp, err := f.service.Start(ctx, quiz.ID, studentID)

		assert.NoError(t, err)
		assert.Equal(t, wantEnd, resp.AttemptEnd)
	})

	t.Run("rejects start after the quiz deadline", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		quiz := testQuiz(f.clock.Now().Add(-2 * time.Hour))

		f.repo.quiz.On("GetByIDWithQuestions", ctx, quiz.ID).Return(quiz, nil)
		f.repo.attempt.On("GetByStudentAndQuiz", ctx, studentID, quiz.ID).Return(nil, gorm.ErrRecordNotFound)

		_, err := f.service.Start(ctx, quiz.ID, studentID)

		assert.ErrorIs(t, err, ErrQuizEnded)
	})

	t.Run("rejects second start while an attempt is in progress", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		quiz := testQuiz(f.clock.Now())
		existing := &models.QuizAttempt{ID: uuid.New(), State: models.AttemptInProgress}

		f.repo.quiz.On("GetByIDWithQuestions", ctx, quiz.ID).Return(quiz, nil)
		f.repo.attempt.On("GetByStudentAndQuiz", ctx, studentID, quiz.ID).Return(existing, nil)

		_, err := f.service.Start(ctx, quiz.ID, studentID)

		assert.ErrorIs(t, err, ErrAttemptCannotStart)
	})

	t.Run("concurrent start loses to the unique index", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		quiz := testQuiz(f.clock.Now())

		// Both racers pass the read check; the second insert hits the
		// (student, quiz) unique index and must not schedule a job.
		f.repo.quiz.On("GetByIDWithQuestions", ctx, quiz.ID).Return(quiz, nil)
		f.repo.attempt.On("GetByStudentAndQuiz", ctx, studentID, quiz.ID).Return(nil, gorm.ErrRecordNotFound)
		f.repo.attempt.On("Create", ctx, mock.Anything).Return(gorm.ErrDuplicatedKey)

		_, err := f.service.Start(ctx, quiz.ID, studentID)

		assert.ErrorIs(t, err, ErrAttemptCannotStart)
		f.scheduler.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects restart after a finished attempt", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		quiz := testQuiz(f.clock.Now())
		existing := &models.QuizAttempt{ID: uuid.New(), State: models.AttemptSubmitted}

		f.repo.quiz.On("GetByIDWithQuestions", ctx, quiz.ID).Return(quiz, nil)
		f.repo.attempt.On("GetByStudentAndQuiz", ctx, studentID, quiz.ID).Return(existing, nil)

		_, err := f.service.Start(ctx, quiz.ID, studentID)

		assert.ErrorIs(t, err, ErrQuizAlreadyTaken)
	})

	t.Run("hides option correctness in the question list", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		quiz := testQuiz(f.clock.Now())

		f.repo.quiz.On("GetByIDWithQuestions", ctx, quiz.ID).Return(quiz, nil)
		f.repo.attempt.On("GetByStudentAndQuiz", ctx, studentID, quiz.ID).Return(nil, gorm.ErrRecordNotFound)
		f.repo.attempt.On("Create", ctx, mock.Anything).Return(nil)
		f.scheduler.On("Schedule", ctx, mock.Anything, mock.Anything).Return(nil)

		resp, err := f.service.Start(ctx, quiz.ID, studentID)

		assert.NoError(t, err)
		for _, q := range resp.Questions {
			for _, opt := range q.Options {
				assert.NotEmpty(t, opt.Letter)
				assert.NotEmpty(t, opt.Text)
			}
		}
	})
}

func TestAttemptService_SaveProgress(t *testing.T) {
	ctx := context.Background()
	studentID := uuid.New()

	t.Run("upserts answers and stamps last saved", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		attempt := &models.QuizAttempt{
			ID:        uuid.New(),
			QuizID:    uuid.New(),
			StudentID: studentID,
			State:     models.AttemptInProgress,
		}
		req := &SaveProgressRequest{
			AttemptID: attempt.ID,
			Answers: []AnswerPayload{
				{QuestionID: uuid.New(), OptionLetter: strPtr("A")},
				{QuestionID: uuid.New(), AnswerText: "because"},
				{QuestionID: uuid.New()}, // blank, must be skipped
			},
		}

		f.repo.attempt.On("GetByID", ctx, attempt.ID).Return(attempt, nil)
		f.repo.answer.On("Upsert", ctx, mock.Anything).Return(nil).Twice()
		f.repo.attempt.On("Update", ctx, mock.MatchedBy(func(a *models.QuizAttempt) bool {
			return a.LastSaved.Equal(f.clock.Now())
		})).Return(nil)

		err := f.service.SaveProgress(ctx, studentID, req)

		assert.NoError(t, err)
		f.repo.AssertExpectations(t)
	})

	t.Run("rejects save on another student's attempt", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		attempt := &models.QuizAttempt{ID: uuid.New(), StudentID: uuid.New(), State: models.AttemptInProgress}

		f.repo.attempt.On("GetByID", ctx, attempt.ID).Return(attempt, nil)

		err := f.service.SaveProgress(ctx, studentID, &SaveProgressRequest{AttemptID: attempt.ID})

		assert.ErrorIs(t, err, ErrAttemptNotOwned)
	})

	t.Run("rejects save after submission", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		attempt := &models.QuizAttempt{ID: uuid.New(), StudentID: studentID, State: models.AttemptSubmitted}

		f.repo.attempt.On("GetByID", ctx, attempt.ID).Return(attempt, nil)

		err := f.service.SaveProgress(ctx, studentID, &SaveProgressRequest{AttemptID: attempt.ID})

		assert.ErrorIs(t, err, ErrAttemptNotActive)
	})
}

func TestAttemptService_Submit(t *testing.T) {
	ctx := context.Background()
	studentID := uuid.New()
	quizID := uuid.New()

	activeAttempt := func(f *attemptServiceFixture) *models.QuizAttempt {
		return &models.QuizAttempt{
			ID:           uuid.New(),
			QuizID:       quizID,
			StudentID:    studentID,
			AttemptStart: f.clock.Now().Add(-20 * time.Minute),
			State:        models.AttemptInProgress,
		}
	}

	t.Run("flips state, merges answers, records submission", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		attempt := activeAttempt(f)
		var wg sync.WaitGroup
		wg.Add(1)

		f.repo.attempt.On("GetByStudentAndQuiz", ctx, studentID, quizID).Return(attempt, nil)
		f.repo.attempt.On("MarkSubmitted", ctx, attempt.ID, models.AttemptSubmitted, f.clock.Now()).Return(true, nil)
		f.repo.answer.On("Upsert", ctx, mock.Anything).Return(nil)
		f.repo.submission.On("Create", ctx, mock.MatchedBy(func(s *models.QuizSubmission) bool {
			return !s.Automatic && s.StudentID == studentID
		})).Return(nil)
		f.grading.On("GradeQuiz", mock.Anything, studentID, quizID).Run(func(mock.Arguments) {
			wg.Done()
		}).Return(nil)

		err := f.service.Submit(ctx, studentID, &SubmitQuizRequest{
			QuizID:  quizID,
			Answers: []AnswerPayload{{QuestionID: uuid.New(), OptionLetter: strPtr("B")}},
		})

		assert.NoError(t, err)
		wg.Wait()
		f.repo.AssertExpectations(t)
		f.grading.AssertExpectations(t)

		published := f.publisher.GetPublishedEvents()
		assert.Len(t, published, 1)
		assert.Equal(t, events.EventAttemptSubmitted, published[0].Type)
	})

	t.Run("second submit is a conflict", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		attempt := activeAttempt(f)
		attempt.State = models.AttemptSubmitted

		f.repo.attempt.On("GetByStudentAndQuiz", ctx, studentID, quizID).Return(attempt, nil)

		err := f.service.Submit(ctx, studentID, &SubmitQuizRequest{QuizID: quizID})

		assert.ErrorIs(t, err, ErrAttemptAlreadySubmitted)
		assert.Empty(t, f.publisher.GetPublishedEvents())
	})

	t.Run("losing the submit race is a conflict", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		attempt := activeAttempt(f)

		f.repo.attempt.On("GetByStudentAndQuiz", ctx, studentID, quizID).Return(attempt, nil)
		f.repo.attempt.On("MarkSubmitted", ctx, attempt.ID, models.AttemptSubmitted, f.clock.Now()).Return(false, nil)

		err := f.service.Submit(ctx, studentID, &SubmitQuizRequest{QuizID: quizID})

		assert.ErrorIs(t, err, ErrAttemptAlreadySubmitted)
	})

	t.Run("submit on a never-started quiz is rejected", func(t *testing.T) {
		f := newAttemptServiceFixture(t)

		f.repo.attempt.On("GetByStudentAndQuiz", ctx, studentID, quizID).Return(nil, gorm.ErrRecordNotFound)

		err := f.service.Submit(ctx, studentID, &SubmitQuizRequest{QuizID: quizID})

		assert.ErrorIs(t, err, ErrAttemptNotStarted)
	})
}

func TestAttemptService_AutoSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("submits an in-progress attempt automatically", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		attempt := &models.QuizAttempt{
			ID:           uuid.New(),
			QuizID:       uuid.New(),
			StudentID:    uuid.New(),
			AttemptStart: f.clock.Now().Add(-time.Hour),
			State:        models.AttemptInProgress,
		}
		var wg sync.WaitGroup
		wg.Add(1)

		f.repo.attempt.On("GetByID", ctx, attempt.ID).Return(attempt, nil)
		f.repo.attempt.On("MarkSubmitted", ctx, attempt.ID, models.AttemptAutomaticallySubmitted, f.clock.Now()).Return(true, nil)
		f.repo.submission.On("Create", ctx, mock.MatchedBy(func(s *models.QuizSubmission) bool {
			return s.Automatic
		})).Return(nil)
		f.grading.On("GradeQuiz", mock.Anything, attempt.StudentID, attempt.QuizID).Run(func(mock.Arguments) {
			wg.Done()
		}).Return(nil)

		err := f.service.AutoSubmit(ctx, attempt.ID)

		assert.NoError(t, err)
		wg.Wait()
		f.repo.AssertExpectations(t)
	})

	t.Run("no-op after a manual submit", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		attempt := &models.QuizAttempt{ID: uuid.New(), State: models.AttemptSubmitted}

		f.repo.attempt.On("GetByID", ctx, attempt.ID).Return(attempt, nil)

		err := f.service.AutoSubmit(ctx, attempt.ID)

		assert.NoError(t, err)
		assert.Empty(t, f.publisher.GetPublishedEvents())
	})

	t.Run("no-op on a missing attempt", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		attemptID := uuid.New()

		f.repo.attempt.On("GetByID", ctx, attemptID).Return(nil, gorm.ErrRecordNotFound)

		err := f.service.AutoSubmit(ctx, attemptID)

		assert.NoError(t, err)
	})

	t.Run("no-op when losing the race at fire time", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		attempt := &models.QuizAttempt{ID: uuid.New(), State: models.AttemptInProgress}

		f.repo.attempt.On("GetByID", ctx, attempt.ID).Return(attempt, nil)
		f.repo.attempt.On("MarkSubmitted", ctx, attempt.ID, models.AttemptAutomaticallySubmitted, f.clock.Now()).Return(false, nil)

		err := f.service.AutoSubmit(ctx, attempt.ID)

		assert.NoError(t, err)
		assert.Empty(t, f.publisher.GetPublishedEvents())
	})
}

func TestAttemptService_GetResult(t *testing.T) {
	ctx := context.Background()
	studentID := uuid.New()
	quizID := uuid.New()

	t.Run("returns and caches the stored result", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		result := &models.QuizResult{
			ID:               uuid.New(),
			QuizID:           quizID,
			StudentID:        studentID,
			QuizTitle:        "Midterm",
			Grade:            15,
			PossiblePoints:   20,
			CorrectQuestions: 2,
			TotalQuestions:   3,
			SecondsTaken:     1200,
		}

		f.cache.On("Get", ctx, cache.ResultKey(studentID.String(), quizID.String()), mock.Anything).Return(cache.ErrCacheMiss)
		f.repo.result.On("GetByStudentAndQuiz", ctx, studentID, quizID).Return(result, nil)
		f.cache.On("Set", ctx, cache.ResultKey(studentID.String(), quizID.String()), mock.Anything, mock.Anything).Return(nil)

		resp, err := f.service.GetResult(ctx, quizID, studentID)

		assert.NoError(t, err)
		assert.Equal(t, 15, resp.Grade)
		assert.Equal(t, 20, resp.PossiblePoints)
		assert.Equal(t, 2, resp.CorrectQuestions)
		assert.Equal(t, 3, resp.TotalQuestions)
		f.cache.AssertExpectations(t)
	})

	t.Run("not ready while grading is pending", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		attempt := &models.QuizAttempt{ID: uuid.New(), State: models.AttemptSubmitted}

		f.cache.On("Get", ctx, mock.Anything, mock.Anything).Return(cache.ErrCacheMiss)
		f.repo.result.On("GetByStudentAndQuiz", ctx, studentID, quizID).Return(nil, gorm.ErrRecordNotFound)
		f.repo.attempt.On("GetByStudentAndQuiz", ctx, studentID, quizID).Return(attempt, nil)

		_, err := f.service.GetResult(ctx, quizID, studentID)

		assert.ErrorIs(t, err, ErrResultNotReady)
	})

	t.Run("not found without any attempt", func(t *testing.T) {
		f := newAttemptServiceFixture(t)

		f.cache.On("Get", ctx, mock.Anything, mock.Anything).Return(cache.ErrCacheMiss)
		f.repo.result.On("GetByStudentAndQuiz", ctx, studentID, quizID).Return(nil, gorm.ErrRecordNotFound)
		f.repo.attempt.On("GetByStudentAndQuiz", ctx, studentID, quizID).Return(nil, gorm.ErrRecordNotFound)

		_, err := f.service.GetResult(ctx, quizID, studentID)

		assert.ErrorIs(t, err, ErrResultNotFound)
	})
}

func TestAttemptService_GetQuizMetadata(t *testing.T) {
	ctx := context.Background()
	studentID := uuid.New()

	t.Run("reports whether the student already started", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		quiz := testQuiz(f.clock.Now())

		f.cache.On("Get", ctx, cache.QuizMetadataKey(quiz.ID.String()), mock.Anything).Return(cache.ErrCacheMiss)
		f.repo.quiz.On("GetByID", ctx, quiz.ID).Return(quiz, nil)
		f.cache.On("Set", ctx, cache.QuizMetadataKey(quiz.ID.String()), mock.Anything, mock.Anything).Return(nil)
		f.repo.attempt.On("GetByStudentAndQuiz", ctx, studentID, quiz.ID).Return(&models.QuizAttempt{ID: uuid.New()}, nil)

		resp, err := f.service.GetQuizMetadata(ctx, quiz.ID, studentID)

		assert.NoError(t, err)
		assert.True(t, resp.DidStartQuiz)
		assert.Equal(t, "Midterm", resp.Title)
	})

	t.Run("unknown quiz", func(t *testing.T) {
		f := newAttemptServiceFixture(t)
		quizID := uuid.New()

		f.cache.On("Get", ctx, mock.Anything, mock.Anything).Return(cache.ErrCacheMiss)
		f.repo.quiz.On("GetByID", ctx, quizID).Return(nil, gorm.ErrRecordNotFound)

		_, err := f.service.GetQuizMetadata(ctx, quizID, studentID)

		assert.ErrorIs(t, err, ErrQuizNotFound)
	})
}
