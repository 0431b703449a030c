package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/light-quiz/quiz-service/internal/models"
	"github.com/light-quiz/quiz-service/internal/repositories"
)

type ResultPostgreSQL struct {
	db *gorm.DB
}

func NewResultPostgreSQL(db *gorm.DB) repositories.ResultRepository {
	return &ResultPostgreSQL{db: db}
}

func (r *ResultPostgreSQL) Create(ctx context.Context, result *models.QuizResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

func (r *ResultPostgreSQL) GetByStudentAndQuiz(ctx context.Context, studentID, quizID uuid.UUID) (*models.QuizResult, error) {
	var result models.QuizResult
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND quiz_id = ?", studentID, quizID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

type SubmissionPostgreSQL struct {
	db *gorm.DB
}

func NewSubmissionPostgreSQL(db *gorm.DB) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{db: db}
}

func (s *SubmissionPostgreSQL) Create(ctx context.Context, submission *models.QuizSubmission) error {
	return s.db.WithContext(ctx).Create(submission).Error
}
