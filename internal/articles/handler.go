package articles

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/articlegen/articlegen/internal/platform/httpx"
	"github.com/articlegen/articlegen/internal/shared"
)

// HandlerConfig carries the middlewares guarding article routes.
type HandlerConfig struct {
	RequireAuth   func(http.Handler) http.Handler
	GenerateLimit func(http.Handler) http.Handler
	// Timeout wraps every route except the synchronous bulk run.
	Timeout func(http.Handler) http.Handler
}

// Handler exposes article endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	cfg       HandlerConfig
	validator *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequireAuth == nil {
		cfg.RequireAuth = passthrough
	}
	if cfg.GenerateLimit == nil {
		cfg.GenerateLimit = passthrough
	}
	if cfg.Timeout == nil {
		cfg.Timeout = passthrough
	}
	return &Handler{logger: logger, service: service, cfg: cfg, validator: httpx.NewValidator()}
}

// MountRoutes registers article routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.cfg.Timeout)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.cfg.RequireAuth)
		r.With(h.cfg.Timeout).Get("/user/me", h.handleListMine)
		r.With(h.cfg.Timeout).Delete("/{id}", h.handleDelete)
		r.Group(func(r chi.Router) {
			r.Use(h.cfg.GenerateLimit)
			r.With(h.cfg.Timeout).Post("/generate", h.handleGenerate)
			r.Post("/bulk-generate", h.handleBulkGenerate)
		})
	})
}

type generateRequest struct {
	Title   string `json:"title" validate:"required"`
	Details string `json:"details" validate:"omitempty,max=2000"`
}

type bulkGenerateRequest struct {
	Titles  []string `json:"titles" validate:"required,min=1"`
	Details string   `json:"details" validate:"omitempty,max=2000"`
}

// DecodeBulkRequest reads and validates a bulk generation body.
func DecodeBulkRequest(r *http.Request, v *validator.Validate) (BulkRequest, error) {
	var req bulkGenerateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return BulkRequest{}, shared.Validation("invalid request body")
	}
	if len(req.Titles) == 0 {
		return BulkRequest{}, shared.Validation("titles must be a non-empty array")
	}
	if err := httpx.Validate(v, req); err != nil {
		return BulkRequest{}, err
	}
	return BulkRequest{Titles: req.Titles, Details: req.Details}, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err, "Failed to fetch articles")
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusNotFound, "article not found")
		return
	}
	article, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err, "Failed to fetch article")
		return
	}
	httpx.JSON(w, http.StatusOK, article)
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListByUser(r.Context(), identity)
	if err != nil {
		httpx.RespondError(w, h.logger, err, "Failed to fetch user articles")
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, h.logger, err, "")
		return
	}
	article, err := h.service.Generate(r.Context(), req.Title, req.Details, identity)
	if err != nil {
		httpx.RespondError(w, h.logger, err, "Failed to generate article")
		return
	}
	httpx.JSON(w, http.StatusOK, article)
}

func (h *Handler) handleBulkGenerate(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	req, err := DecodeBulkRequest(r, h.validator)
	if err != nil {
		httpx.RespondError(w, h.logger, err, "")
		return
	}
	// A client disconnect must not abandon a half-finished batch.
	ctx := context.WithoutCancel(r.Context())
	result, err := h.service.BulkGenerate(ctx, req, identity, nil)
	if err != nil {
		if result != nil && result.Count > 0 {
			h.logger.Warn("bulk generation partially persisted", slog.Int("generated", result.Count))
		}
		httpx.RespondError(w, h.logger, err, "Failed to generate articles")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid article id")
		return
	}
	if err := h.service.Delete(r.Context(), id, identity); err != nil {
		httpx.RespondError(w, h.logger, err, "Failed to delete article")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Article deleted successfully"})
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (shared.Identity, bool) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "access token required")
	}
	return identity, ok
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, strconv.ErrSyntax
	}
	return id, nil
}

func passthrough(next http.Handler) http.Handler { return next }
