package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/articlegen/articlegen/internal/articles"
	jobmetrics "github.com/articlegen/articlegen/internal/jobs"
	"github.com/articlegen/articlegen/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// BulkRunner executes a bulk generation workflow.
type BulkRunner interface {
	BulkGenerate(ctx context.Context, req articles.BulkRequest, requester shared.Identity, progress articles.ProgressFunc) (*articles.BulkResult, error)
}

// BulkGenerateJob processes TaskBulkGenerate tasks.
type BulkGenerateJob struct {
	Runner  BulkRunner
	Store   *StatusStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewBulkGenerateJob wires dependencies for the bulk handler.
func NewBulkGenerateJob(runner BulkRunner, store *StatusStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *BulkGenerateJob {
	return &BulkGenerateJob{Runner: runner, Store: store, Logger: logger, Metrics: metrics}
}

// Handle runs one queued batch and keeps its status record current.
func (j *BulkGenerateJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Runner == nil || j.Store == nil {
		return errors.New("bulk generate: handler not configured")
	}
	var payload BulkGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskBulkGenerate)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("job_id", payload.JobID), slog.String("user_id", payload.UserID))
	if _, err := j.Store.Update(ctx, payload.JobID, func(job *Job) {
		job.State = StateRunning
	}); err != nil {
		resultErr = err
		logger.Error("mark job running", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	logger.Info("starting bulk generation job", slog.Int("titles", len(payload.Titles)))

	progress := func(article articles.Article, done, total int) {
		if _, err := j.Store.Update(ctx, payload.JobID, func(job *Job) {
			job.Generated = done
			job.ArticleIDs = append(job.ArticleIDs, article.ID)
		}); err != nil {
			logger.Warn("record job progress", slog.Int64("article_id", article.ID), slog.Any("error", err))
		}
	}

	requester := shared.Identity{ID: payload.UserID, Email: payload.Email}
	result, err := j.Runner.BulkGenerate(ctx, articles.BulkRequest{Titles: payload.Titles, Details: payload.Details}, requester, progress)
	generated := 0
	if result != nil {
		generated = result.Count
	}
	j.metrics().AddGenerated(TaskBulkGenerate, generated)

	final := func(job *Job) {
		job.Generated = generated
		if err != nil {
			job.State = StateFailed
			job.Error = shared.UserSafeMessage(err)
			return
		}
		job.State = StateCompleted
	}
	if _, updErr := j.Store.Update(context.WithoutCancel(ctx), payload.JobID, final); updErr != nil {
		logger.Error("record job result", slog.Any("error", updErr))
	}

	if err != nil {
		resultErr = err
		logger.Error("bulk generation job failed", slog.Int("generated", generated), slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	logger.Info("completed bulk generation job", slog.Int("generated", generated))
	return nil
}

func (j *BulkGenerateJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBulkGenerate))
	}
	return slog.Default().With(slog.String("job", TaskBulkGenerate))
}

func (j *BulkGenerateJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
