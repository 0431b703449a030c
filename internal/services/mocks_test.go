package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/light-quiz/quiz-service/internal/models"
	"github.com/light-quiz/quiz-service/internal/repositories"
)

// MockRepository aggregates the per-entity mocks and runs transactions
// against itself, so expectations set on the sub-mocks cover both
// direct and transactional calls.
type MockRepository struct {
	mock.Mock
	quiz       *MockQuizRepository
	attempt    *MockAttemptRepository
	answer     *MockAnswerRepository
	result     *MockResultRepository
	submission *MockSubmissionRepository
	job        *MockJobRepository
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		quiz:       &MockQuizRepository{},
		attempt:    &MockAttemptRepository{},
		answer:     &MockAnswerRepository{},
		result:     &MockResultRepository{},
		submission: &MockSubmissionRepository{},
		job:        &MockJobRepository{},
	}
}

func (m *MockRepository) Quiz() repositories.QuizRepository             { return m.quiz }
func (m *MockRepository) Attempt() repositories.AttemptRepository       { return m.attempt }
func (m *MockRepository) Answer() repositories.AnswerRepository         { return m.answer }
func (m *MockRepository) Result() repositories.ResultRepository         { return m.result }
func (m *MockRepository) Submission() repositories.SubmissionRepository { return m.submission }
func (m *MockRepository) Job() repositories.JobRepository               { return m.job }

func (m *MockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

func (m *MockRepository) AssertExpectations(t mock.TestingT) bool {
	ok := true
	for _, sub := range []interface{ AssertExpectations(mock.TestingT) bool }{
		m.quiz, m.attempt, m.answer, m.result, m.submission, m.job,
	} {
		ok = sub.AssertExpectations(t) && ok
	}
	return ok
}

type MockQuizRepository struct {
	mock.Mock
}

func (m *MockQuizRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quiz), args.Error(1)
}

func (m *MockQuizRepository) GetByIDWithQuestions(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quiz), args.Error(1)
}

type MockAttemptRepository struct {
	mock.Mock
}

func (m *MockAttemptRepository) Create(ctx context.Context, attempt *models.QuizAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.QuizAttempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuizAttempt), args.Error(1)
}

func (m *MockAttemptRepository) GetByStudentAndQuiz(ctx context.Context, studentID, quizID uuid.UUID) (*models.QuizAttempt, error) {
	args := m.Called(ctx, studentID, quizID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuizAttempt), args.Error(1)
}

func (m *MockAttemptRepository) Update(ctx context.Context, attempt *models.QuizAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockAttemptRepository) MarkSubmitted(ctx context.Context, id uuid.UUID, to models.AttemptState, at time.Time) (bool, error) {
	args := m.Called(ctx, id, to, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockAttemptRepository) MarkGraded(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type MockAnswerRepository struct {
	mock.Mock
}

func (m *MockAnswerRepository) GetByStudentAndQuiz(ctx context.Context, studentID, quizID uuid.UUID) ([]*models.StudentAnswer, error) {
	args := m.Called(ctx, studentID, quizID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StudentAnswer), args.Error(1)
}

func (m *MockAnswerRepository) Upsert(ctx context.Context, answer *models.StudentAnswer) error {
	args := m.Called(ctx, answer)
	return args.Error(0)
}

func (m *MockAnswerRepository) Update(ctx context.Context, answer *models.StudentAnswer) error {
	args := m.Called(ctx, answer)
	return args.Error(0)
}

type MockResultRepository struct {
	mock.Mock
}

func (m *MockResultRepository) Create(ctx context.Context, result *models.QuizResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockResultRepository) GetByStudentAndQuiz(ctx context.Context, studentID, quizID uuid.UUID) (*models.QuizResult, error) {
	args := m.Called(ctx, studentID, quizID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuizResult), args.Error(1)
}

type MockSubmissionRepository struct {
	mock.Mock
}

func (m *MockSubmissionRepository) Create(ctx context.Context, submission *models.QuizSubmission) error {
	args := m.Called(ctx, submission)
	return args.Error(0)
}

type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Create(ctx context.Context, job *models.ScheduledJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) GetDue(ctx context.Context, cutoff time.Time, limit int) ([]*models.ScheduledJob, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ScheduledJob), args.Error(1)
}

func (m *MockJobRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Schedule(ctx context.Context, attemptID uuid.UUID, fireAt time.Time) error {
	args := m.Called(ctx, attemptID, fireAt)
	return args.Error(0)
}

type MockGradingService struct {
	mock.Mock
}

func (m *MockGradingService) GradeQuiz(ctx context.Context, studentID, quizID uuid.UUID) error {
	args := m.Called(ctx, studentID, quizID)
	return args.Error(0)
}

type MockGradingClient struct {
	mock.Mock
}

func (m *MockGradingClient) Evaluate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheService) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *MockCacheService) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
