package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/light-quiz/quiz-service/internal/models"
	"github.com/light-quiz/quiz-service/internal/repositories"
)

type AnswerPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerPostgreSQL(db *gorm.DB) repositories.AnswerRepository {
	return &AnswerPostgreSQL{db: db}
}

func (a *AnswerPostgreSQL) GetByStudentAndQuiz(ctx context.Context, studentID, quizID uuid.UUID) ([]*models.StudentAnswer, error) {
	var answers []*models.StudentAnswer
	if err := a.db.WithContext(ctx).
		Where("student_id = ? AND quiz_id = ?", studentID, quizID).
		Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}

func (a *AnswerPostgreSQL) Upsert(ctx context.Context, answer *models.StudentAnswer) error {
	if answer.ID == uuid.Nil {
		answer.ID = uuid.New()
	}
	return a.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "student_id"}, {Name: "quiz_id"}, {Name: "question_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"option_letter", "answer_text", "updated_at"}),
		}).
		Create(answer).Error
}

func (a *AnswerPostgreSQL) Update(ctx context.Context, answer *models.StudentAnswer) error {
	return a.db.WithContext(ctx).Save(answer).Error
}
