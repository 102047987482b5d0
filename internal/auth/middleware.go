package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/articlegen/articlegen/internal/platform/httpx"
	"github.com/articlegen/articlegen/internal/shared"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (shared.Identity, error)
}

// Middleware gates protected routes on a valid bearer token.
type Middleware struct {
	tokens TokenVerifier
	logger *slog.Logger
}

// NewMiddleware constructs the bearer token gate.
func NewMiddleware(tokens TokenVerifier, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{tokens: tokens, logger: logger}
}

// Require rejects requests without a valid token and stores the resolved
// identity in the request context otherwise.
func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "access token required")
			return
		}
		identity, err := m.tokens.Verify(token)
		if err != nil {
			m.logger.Debug("reject bearer token", slog.String("path", r.URL.Path), slog.Any("error", err))
			httpx.Error(w, http.StatusUnauthorized, shared.ErrInvalidToken.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), identity)))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
