package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/light-quiz/quiz-service/internal/models"
)

// Repository aggregates the per-entity repositories. WithTransaction
// runs fn against a transactional view of the same repositories;
// returning an error rolls everything back.
type Repository interface {
	Quiz() QuizRepository
	Attempt() AttemptRepository
	Answer() AnswerRepository
	Result() ResultRepository
	Submission() SubmissionRepository
	Job() JobRepository

	WithTransaction(ctx context.Context, fn func(Repository) error) error
}

// QuizRepository reads the quiz authoring read models. Quiz CRUD lives
// in the authoring service; this core only consumes it.
type QuizRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	GetByIDWithQuestions(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
}

type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.QuizAttempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.QuizAttempt, error)
	GetByStudentAndQuiz(ctx context.Context, studentID, quizID uuid.UUID) (*models.QuizAttempt, error)
	Update(ctx context.Context, attempt *models.QuizAttempt) error

	// MarkSubmitted flips an InProgress attempt to the given submitted
	// state and stamps the submission time. It reports false when the
	// attempt was not InProgress; the check and the write are a single
	// statement so concurrent submit triggers cannot both win.
	MarkSubmitted(ctx context.Context, id uuid.UUID, to models.AttemptState, at time.Time) (bool, error)

	// MarkGraded flips a submitted attempt to Graded, reporting false
	// when the attempt was not in a submitted state.
	MarkGraded(ctx context.Context, id uuid.UUID) (bool, error)
}

type AnswerRepository interface {
	GetByStudentAndQuiz(ctx context.Context, studentID, quizID uuid.UUID) ([]*models.StudentAnswer, error)
	Upsert(ctx context.Context, answer *models.StudentAnswer) error
	Update(ctx context.Context, answer *models.StudentAnswer) error
}

type ResultRepository interface {
	Create(ctx context.Context, result *models.QuizResult) error
	GetByStudentAndQuiz(ctx context.Context, studentID, quizID uuid.UUID) (*models.QuizResult, error)
}

type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.QuizSubmission) error
}

type JobRepository interface {
	Create(ctx context.Context, job *models.ScheduledJob) error
	// GetDue returns unprocessed jobs whose fire time is at or before
	// the cutoff, oldest first.
	GetDue(ctx context.Context, cutoff time.Time, limit int) ([]*models.ScheduledJob, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// IsNotFoundError reports whether err is the driver's record-not-found
// error, so services can map it to their own sentinel errors.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateKeyError reports whether err is a unique-constraint
// violation. Requires the connection to be opened with error
// translation enabled.
func IsDuplicateKeyError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
