// Package postgres implements the repository interfaces on gorm with
// the PostgreSQL driver.
package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/light-quiz/quiz-service/internal/repositories"
)

type repository struct {
	db *gorm.DB

	quiz       repositories.QuizRepository
	attempt    repositories.AttemptRepository
	answer     repositories.AnswerRepository
	result     repositories.ResultRepository
	submission repositories.SubmissionRepository
	job        repositories.JobRepository
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		db:         db,
		quiz:       NewQuizPostgreSQL(db),
		attempt:    NewAttemptPostgreSQL(db),
		answer:     NewAnswerPostgreSQL(db),
		result:     NewResultPostgreSQL(db),
		submission: NewSubmissionPostgreSQL(db),
		job:        NewJobPostgreSQL(db),
	}
}

func (r *repository) Quiz() repositories.QuizRepository             { return r.quiz }
func (r *repository) Attempt() repositories.AttemptRepository       { return r.attempt }
func (r *repository) Answer() repositories.AnswerRepository         { return r.answer }
func (r *repository) Result() repositories.ResultRepository         { return r.result }
func (r *repository) Submission() repositories.SubmissionRepository { return r.submission }
func (r *repository) Job() repositories.JobRepository               { return r.job }

func (r *repository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
