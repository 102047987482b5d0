package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/articlegen/articlegen/internal/shared"
)

// StatusFor maps a domain error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrInvalidCredentials),
		errors.Is(err, shared.ErrUnauthorized),
		errors.Is(err, shared.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes the error response for err. Server side failures are
// logged with the fallback message replacing the generic one when provided.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	status := StatusFor(err)
	if status < http.StatusInternalServerError {
		Error(w, status, shared.UserSafeMessage(err))
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("request failed", slog.Any("error", err))
	if fallback == "" {
		fallback = http.StatusText(status)
	}
	Error(w, status, fallback)
}
