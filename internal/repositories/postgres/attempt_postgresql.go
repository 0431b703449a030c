package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/light-quiz/quiz-service/internal/models"
	"github.com/light-quiz/quiz-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, attempt *models.QuizAttempt) error {
	return a.db.WithContext(ctx).Create(attempt).Error
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id uuid.UUID) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	if err := a.db.WithContext(ctx).First(&attempt, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByStudentAndQuiz(ctx context.Context, studentID, quizID uuid.UUID) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	if err := a.db.WithContext(ctx).
		Where("student_id = ? AND quiz_id = ?", studentID, quizID).
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, attempt *models.QuizAttempt) error {
	return a.db.WithContext(ctx).Save(attempt).Error
}

func (a *AttemptPostgreSQL) MarkSubmitted(ctx context.Context, id uuid.UUID, to models.AttemptState, at time.Time) (bool, error) {
	res := a.db.WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("id = ? AND state = ?", id, models.AttemptInProgress).
		Updates(map[string]interface{}{
			"state":           to,
			"submission_time": at,
			"updated_at":      at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (a *AttemptPostgreSQL) MarkGraded(ctx context.Context, id uuid.UUID) (bool, error) {
	res := a.db.WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("id = ? AND state IN ?", id, []models.AttemptState{
			models.AttemptSubmitted,
			models.AttemptAutomaticallySubmitted,
		}).
		Update("state", models.AttemptGraded)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
