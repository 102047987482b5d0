package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/articlegen/articlegen/internal/articles"
	"github.com/articlegen/articlegen/internal/platform/httpx"
	"github.com/articlegen/articlegen/internal/shared"
)

// TitleNormalizer validates a title batch before it is queued.
type TitleNormalizer interface {
	NormalizeTitles(titles []string) ([]string, error)
}

// Enqueuer submits bulk batches to the queue.
type Enqueuer interface {
	EnqueueBulkGenerate(ctx context.Context, payload BulkGeneratePayload) (*asynq.TaskInfo, error)
}

// BulkJobsHandler exposes the asynchronous bulk generation endpoints.
type BulkJobsHandler struct {
	titles    TitleNormalizer
	store     *StatusStore
	queue     Enqueuer
	logger    *slog.Logger
	validator *validator.Validate
	limit     func(http.Handler) http.Handler
}

// NewBulkJobsHandler builds a BulkJobsHandler.
func NewBulkJobsHandler(titles TitleNormalizer, store *StatusStore, queue Enqueuer, logger *slog.Logger) *BulkJobsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkJobsHandler{titles: titles, store: store, queue: queue, logger: logger, validator: httpx.NewValidator()}
}

// LimitCreate applies mw to job submission only. Status reads stay unlimited.
func (h *BulkJobsHandler) LimitCreate(mw func(http.Handler) http.Handler) *BulkJobsHandler {
	h.limit = mw
	return h
}

// MountRoutes registers job routes. Callers must authenticate the group.
func (h *BulkJobsHandler) MountRoutes(r chi.Router) {
	if h.limit != nil {
		r.With(h.limit).Post("/", h.handleCreate)
	} else {
		r.Post("/", h.handleCreate)
	}
	r.Get("/{id}", h.handleGet)
}

type createdJob struct {
	JobID string `json:"job_id"`
	State State  `json:"state"`
}

func (h *BulkJobsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "access token required")
		return
	}
	req, err := articles.DecodeBulkRequest(r, h.validator)
	if err != nil {
		httpx.RespondError(w, h.logger, err, "")
		return
	}
	titles, err := h.titles.NormalizeTitles(req.Titles)
	if err != nil {
		httpx.RespondError(w, h.logger, err, "")
		return
	}

	job, err := h.store.Create(r.Context(), identity.ID, len(titles))
	if err != nil {
		httpx.RespondError(w, h.logger, err, "Failed to queue bulk generation")
		return
	}
	payload := BulkGeneratePayload{
		JobID:   job.ID,
		UserID:  identity.ID,
		Email:   identity.Email,
		Titles:  titles,
		Details: req.Details,
	}
	if _, err := h.queue.EnqueueBulkGenerate(r.Context(), payload); err != nil {
		if _, updErr := h.store.Update(r.Context(), job.ID, func(j *Job) {
			j.State = StateFailed
			j.Error = "could not be queued"
		}); updErr != nil {
			h.logger.Warn("mark unqueued job failed", slog.String("job_id", job.ID), slog.Any("error", updErr))
		}
		httpx.RespondError(w, h.logger, err, "Failed to queue bulk generation")
		return
	}
	h.logger.Info("bulk generation queued", slog.String("job_id", job.ID), slog.Int("titles", len(titles)))
	httpx.JSON(w, http.StatusAccepted, createdJob{JobID: job.ID, State: job.State})
}

func (h *BulkJobsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "access token required")
		return
	}
	job, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err == nil && job.UserID != identity.ID {
		err = shared.ErrNotFound
	}
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, "job not found")
			return
		}
		httpx.RespondError(w, h.logger, err, "Failed to load job")
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}
