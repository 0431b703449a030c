package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/light-quiz/quiz-service/internal/models"
	"github.com/light-quiz/quiz-service/internal/repositories"
	"github.com/light-quiz/quiz-service/internal/utils"
)

// fakeJobRepository is an in-memory JobRepository. Jobs fire in
// creation order, matching the oldest-first contract of the real
// query.
type fakeJobRepository struct {
	mu   sync.Mutex
	jobs []*models.ScheduledJob
}

func (f *fakeJobRepository) Create(ctx context.Context, job *models.ScheduledJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeJobRepository) GetDue(ctx context.Context, cutoff time.Time, limit int) ([]*models.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	due := make([]*models.ScheduledJob, 0)
	for _, job := range f.jobs {
		if !job.Processed && !job.FireAt.After(cutoff) {
			due = append(due, job)
		}
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (f *fakeJobRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.ID == id {
			job.Processed = true
			processedAt := at
			job.ProcessedAt = &processedAt
			return nil
		}
	}
	return errors.New("job not found")
}

type fakeRepository struct {
	repositories.Repository
	job *fakeJobRepository
}

func (f *fakeRepository) Job() repositories.JobRepository { return f.job }

func newTestScheduler() (*Scheduler, *fakeJobRepository, *utils.FixedClock) {
	jobs := &fakeJobRepository{}
	clock := &utils.FixedClock{Instant: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	s := New(&fakeRepository{job: jobs}, clock, utils.NewDevelopmentLogger(), time.Minute)
	return s, jobs, clock
}

func TestSchedulerFiresDueJobs(t *testing.T) {
	s, jobs, clock := newTestScheduler()

	var mu sync.Mutex
	fired := make([]uuid.UUID, 0)
	s.SetHandler(func(ctx context.Context, attemptID uuid.UUID) error {
		mu.Lock()
		defer mu.Unlock()
		fired = append(fired, attemptID)
		return nil
	})

	early := uuid.New()
	late := uuid.New()
	assert.NoError(t, s.Schedule(context.Background(), early, clock.Now().Add(10*time.Minute)))
	assert.NoError(t, s.Schedule(context.Background(), late, clock.Now().Add(time.Hour)))

	// Nothing is due yet.
	s.Sweep(context.Background())
	assert.Empty(t, fired)

	clock.Advance(15 * time.Minute)
	s.Sweep(context.Background())
	assert.Equal(t, []uuid.UUID{early}, fired)

	clock.Advance(time.Hour)
	s.Sweep(context.Background())
	assert.Equal(t, []uuid.UUID{early, late}, fired)

	for _, job := range jobs.jobs {
		assert.True(t, job.Processed)
		assert.NotNil(t, job.ProcessedAt)
	}
}

func TestSchedulerFiresJobsMissedWhileDown(t *testing.T) {
	s, _, clock := newTestScheduler()

	fired := 0
	s.SetHandler(func(ctx context.Context, attemptID uuid.UUID) error {
		fired++
		return nil
	})

	// A deadline that passed long ago still fires on the next sweep.
	assert.NoError(t, s.Schedule(context.Background(), uuid.New(), clock.Now().Add(-2*time.Hour)))
	s.Sweep(context.Background())
	assert.Equal(t, 1, fired)
}

func TestSchedulerRetriesFailedJobs(t *testing.T) {
	s, jobs, clock := newTestScheduler()

	calls := 0
	s.SetHandler(func(ctx context.Context, attemptID uuid.UUID) error {
		calls++
		if calls == 1 {
			return errors.New("database unavailable")
		}
		return nil
	})

	assert.NoError(t, s.Schedule(context.Background(), uuid.New(), clock.Now()))

	s.Sweep(context.Background())
	assert.Equal(t, 1, calls)
	assert.False(t, jobs.jobs[0].Processed)

	s.Sweep(context.Background())
	assert.Equal(t, 2, calls)
	assert.True(t, jobs.jobs[0].Processed)
}

func TestSchedulerJobsFireExactlyOnce(t *testing.T) {
	s, _, clock := newTestScheduler()

	fired := 0
	s.SetHandler(func(ctx context.Context, attemptID uuid.UUID) error {
		fired++
		return nil
	})

	assert.NoError(t, s.Schedule(context.Background(), uuid.New(), clock.Now()))

	s.Sweep(context.Background())
	s.Sweep(context.Background())
	s.Sweep(context.Background())
	assert.Equal(t, 1, fired)
}

func TestSchedulerPayloadRoundTrip(t *testing.T) {
	s, jobs, clock := newTestScheduler()

	attemptID := uuid.New()
	assert.NoError(t, s.Schedule(context.Background(), attemptID, clock.Now()))

	// The stored payload carries the action arguments.
	assert.Equal(t, models.JobAutoSubmit, jobs.jobs[0].Kind)
	assert.Contains(t, string(jobs.jobs[0].Payload), attemptID.String())

	var fired uuid.UUID
	s.SetHandler(func(ctx context.Context, id uuid.UUID) error {
		fired = id
		return nil
	})
	s.Sweep(context.Background())
	assert.Equal(t, attemptID, fired)
}

func TestSchedulerRetiresPoisonJobs(t *testing.T) {
	s, jobs, clock := newTestScheduler()

	fired := 0
	s.SetHandler(func(ctx context.Context, attemptID uuid.UUID) error {
		fired++
		return nil
	})

	jobs.jobs = append(jobs.jobs,
		&models.ScheduledJob{
			ID:      uuid.New(),
			Kind:    models.JobAutoSubmit,
			FireAt:  clock.Now(),
			Payload: []byte("{broken"),
		},
		&models.ScheduledJob{
			ID:      uuid.New(),
			Kind:    models.JobKind("reminder"),
			FireAt:  clock.Now(),
			Payload: []byte(`{}`),
		},
	)

	// Jobs that can never decode are retired, not resweeped forever.
	s.Sweep(context.Background())
	assert.Zero(t, fired)
	for _, job := range jobs.jobs {
		assert.True(t, job.Processed)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s, _, clock := newTestScheduler()

	var mu sync.Mutex
	fired := 0
	s.SetHandler(func(ctx context.Context, attemptID uuid.UUID) error {
		mu.Lock()
		defer mu.Unlock()
		fired++
		return nil
	})

	assert.NoError(t, s.Schedule(context.Background(), uuid.New(), clock.Now().Add(-time.Minute)))

	// The initial sweep on start picks up the overdue job without
	// waiting for the first tick.
	s.Start()
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	// Stop is idempotent.
	s.Stop()
}
