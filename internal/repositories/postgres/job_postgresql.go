package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/light-quiz/quiz-service/internal/models"
	"github.com/light-quiz/quiz-service/internal/repositories"
)

type JobPostgreSQL struct {
	db *gorm.DB
}

func NewJobPostgreSQL(db *gorm.DB) repositories.JobRepository {
	return &JobPostgreSQL{db: db}
}

func (j *JobPostgreSQL) Create(ctx context.Context, job *models.ScheduledJob) error {
	return j.db.WithContext(ctx).Create(job).Error
}

func (j *JobPostgreSQL) GetDue(ctx context.Context, cutoff time.Time, limit int) ([]*models.ScheduledJob, error) {
	var jobs []*models.ScheduledJob
	if err := j.db.WithContext(ctx).
		Where("processed = ? AND fire_at <= ?", false, cutoff).
		Order("fire_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (j *JobPostgreSQL) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return j.db.WithContext(ctx).
		Model(&models.ScheduledJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed":    true,
			"processed_at": at,
		}).Error
}
