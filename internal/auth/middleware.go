package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/redmonkez12/go-todo-api/internal/httputil"
	"github.com/redmonkez12/go-todo-api/internal/logging"
	"github.com/redmonkez12/go-todo-api/internal/user"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	UserContextKey ContextKey = "user"
)

// Middleware handles authentication for protected routes
type Middleware struct {
	tokenService TokenService
	userRepo     *user.Repository
}

func NewMiddleware(tokenService TokenService, userRepo *user.Repository) *Middleware {
	return &Middleware{tokenService: tokenService, userRepo: userRepo}
}

// RequireAuth resolves the bearer token to an active user and stores it in
// the request context. Every verification failure gets the same 401 body.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.GetLoggerFromContext(r.Context())

		token, ok := bearerToken(r)
		if !ok {
			unauthorized(w, "not authenticated", httputil.CodeMissingAuth)
			return
		}

		claims, err := m.tokenService.Verify(token)
		if err != nil {
			logger.Debug("token rejected", "reason", err.Error())
			unauthorized(w, "could not validate credentials", httputil.CodeInvalidToken)
			return
		}

		current, err := m.userRepo.GetByEmail(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				logger.Debug("token subject has no account")
				unauthorized(w, "could not validate credentials", httputil.CodeInvalidToken)
				return
			}
			logger.Error("failed to load authenticated user", "error", err.Error())
			httputil.RespondInternalError(w)
			return
		}

		if !current.IsActive {
			logger.Warn("inactive user rejected", "user_id", current.ID)
			httputil.RespondErrorWithCode(w, "inactive user", httputil.CodeInactiveUser, http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, current)
		ctx = logging.WithContext(ctx, logger.WithFields(map[string]any{"user_id": current.ID}))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, message, code string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	httputil.RespondErrorWithCode(w, message, code, http.StatusUnauthorized)
}

// UserFromContext returns the user stored by RequireAuth
func UserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*user.User)
	return u, ok
}
