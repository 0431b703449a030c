package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/light-quiz/quiz-service/internal/models"
	"github.com/light-quiz/quiz-service/internal/repositories"
	"github.com/light-quiz/quiz-service/internal/utils"
)

const defaultBatchSize = 100

// Handler is the action invoked when a due job fires.
type Handler func(ctx context.Context, attemptID uuid.UUID) error

// Scheduler persists one-shot deferred jobs and fires them when due.
// Jobs live in the database, so deadlines survive restarts; after a
// crash the next poll sweeps up everything that came due in the
// meantime. There is no cancellation: a job whose attempt was already
// submitted fires anyway and the handler's state guard makes it a
// no-op.
type Scheduler struct {
	repo     repositories.Repository
	handler  Handler
	clock    utils.Clock
	logger   utils.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

func New(repo repositories.Repository, clock utils.Clock, logger utils.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{
		repo:     repo,
		clock:    clock,
		logger:   logger,
		interval: interval,
	}
}

// SetHandler wires the fire action. Must be called before Start; the
// handler is constructed after the scheduler because the attempt
// service itself schedules jobs.
func (s *Scheduler) SetHandler(h Handler) {
	s.handler = h
}

// autoSubmitArgs is the stored payload of an auto-submit job.
type autoSubmitArgs struct {
	AttemptID uuid.UUID `json:"attempt_id"`
}

// Schedule persists an auto-submit job for the attempt.
func (s *Scheduler) Schedule(ctx context.Context, attemptID uuid.UUID, fireAt time.Time) error {
	payload, err := json.Marshal(autoSubmitArgs{AttemptID: attemptID})
	if err != nil {
		return fmt.Errorf("failed to encode job payload: %w", err)
	}
	job := &models.ScheduledJob{
		ID:      uuid.New(),
		Kind:    models.JobAutoSubmit,
		FireAt:  fireAt,
		Payload: payload,
	}
	if err := s.repo.Job().Create(ctx, job); err != nil {
		return fmt.Errorf("failed to create scheduled job: %w", err)
	}
	s.logger.Debug("Scheduled auto-submit", "attempt_id", attemptID, "fire_at", fireAt)
	return nil
}

// Start launches the polling loop. It returns immediately; call Stop
// to shut the loop down.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stopped = make(chan struct{})

	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// Sweep immediately so jobs that came due while the process
		// was down fire without waiting a full interval.
		s.sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Stop halts the polling loop and waits for the in-flight sweep to
// finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, stopped := s.cancel, s.stopped
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-stopped
	}
}

// Sweep fires every due job once. Exported for tests and for callers
// driving the loop themselves.
func (s *Scheduler) Sweep(ctx context.Context) {
	s.sweep(ctx)
}

func (s *Scheduler) sweep(ctx context.Context) {
	jobs, err := s.repo.Job().GetDue(ctx, s.clock.Now(), defaultBatchSize)
	if err != nil {
		s.logger.Error("Failed to fetch due jobs", "error", err)
		return
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		args, err := decodeJob(job)
		if err != nil {
			// A job that cannot decode will never succeed; retire it
			// instead of resweeping it forever.
			s.logger.Error("Dropping undecodable job", "job_id", job.ID, "kind", job.Kind, "error", err)
			s.markProcessed(ctx, job)
			continue
		}
		if err := s.handler(ctx, args.AttemptID); err != nil {
			// Leave the job unprocessed; the next sweep retries it.
			s.logger.Error("Scheduled job failed",
				"job_id", job.ID,
				"attempt_id", args.AttemptID,
				"error", err)
			continue
		}
		s.markProcessed(ctx, job)
	}
}

func decodeJob(job *models.ScheduledJob) (autoSubmitArgs, error) {
	var args autoSubmitArgs
	switch job.Kind {
	case models.JobAutoSubmit:
		if err := json.Unmarshal(job.Payload, &args); err != nil {
			return args, fmt.Errorf("failed to decode payload: %w", err)
		}
		return args, nil
	default:
		return args, fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

func (s *Scheduler) markProcessed(ctx context.Context, job *models.ScheduledJob) {
	if err := s.repo.Job().MarkProcessed(ctx, job.ID, s.clock.Now()); err != nil {
		s.logger.Error("Failed to mark job processed", "job_id", job.ID, "error", err)
	}
}
