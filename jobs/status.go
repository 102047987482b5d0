package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/articlegen/articlegen/internal/shared"
)

// State is the lifecycle stage of a bulk job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// DefaultStatusTTL keeps finished job records readable for a day.
const DefaultStatusTTL = 24 * time.Hour

const statusKeyPrefix = "articlegen:bulk_job:"

// Job is the status record of an asynchronous bulk generation.
type Job struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	State      State     `json:"state"`
	Total      int       `json:"total"`
	Generated  int       `json:"generated"`
	ArticleIDs []int64   `json:"article_ids"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StatusStore persists job records in Redis.
type StatusStore struct {
	client redis.Cmdable
	ttl    time.Duration
	now    func() time.Time
}

// NewStatusStore builds a store whose records expire after ttl.
func NewStatusStore(client redis.Cmdable, ttl time.Duration) *StatusStore {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &StatusStore{client: client, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// Create records a queued job for userID.
func (s *StatusStore) Create(ctx context.Context, userID string, total int) (*Job, error) {
	now := s.now()
	job := &Job{
		ID:         uuid.NewString(),
		UserID:     userID,
		State:      StateQueued,
		Total:      total,
		ArticleIDs: []int64{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Get loads a job. Unknown or expired ids return shared.ErrNotFound.
func (s *StatusStore) Get(ctx context.Context, id string) (*Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, shared.ErrNotFound
	}
	raw, err := s.client.Get(ctx, statusKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("jobs: load status %s: %w", id, err)
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("jobs: decode status %s: %w", id, err)
	}
	return &job, nil
}

// Update applies mutate to the stored job and saves it. The read and write
// are not atomic; only the worker owning the job may call it.
func (s *StatusStore) Update(ctx context.Context, id string, mutate func(*Job)) (*Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	mutate(job)
	job.UpdatedAt = s.now()
	if err := s.save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *StatusStore) save(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("jobs: encode status %s: %w", job.ID, err)
	}
	if err := s.client.Set(ctx, statusKeyPrefix+job.ID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("jobs: save status %s: %w", job.ID, err)
	}
	return nil
}
