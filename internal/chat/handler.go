// Package chat serves the message echo endpoint.
package chat

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/articlegen/articlegen/internal/platform/httpx"
)

// Handler echoes chat messages.
type Handler struct {
	now func() time.Time
}

// NewHandler builds a Handler.
func NewHandler() *Handler {
	return &Handler{now: func() time.Time { return time.Now().UTC() }}
}

// MountRoutes registers chat routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleMessage)
}

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		httpx.Error(w, http.StatusBadRequest, "Message is required")
		return
	}
	httpx.JSON(w, http.StatusOK, messageResponse{
		Response:  "Echo: " + req.Message,
		Timestamp: h.now(),
	})
}
