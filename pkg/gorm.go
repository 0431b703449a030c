package pkg

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/light-quiz/quiz-service/internal/config"
	"github.com/light-quiz/quiz-service/internal/models"
)

func InitDatabase(cfg *config.Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	// TranslateError surfaces unique-constraint violations as
	// gorm.ErrDuplicatedKey, which the repositories classify.
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Quiz{},
		&models.Question{},
		&models.QuestionOption{},
		&models.QuizAttempt{},
		&models.StudentAnswer{},
		&models.QuizResult{},
		&models.QuizSubmission{},
		&models.ScheduledJob{},
	)
}
