package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/go-todo-api/internal/httputil"
	"github.com/redmonkez12/go-todo-api/internal/user"
)

func protected(t *testing.T, env *testEnv) http.Handler {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		require.True(t, ok)
		httputil.RespondJSON(w, u, http.StatusOK)
	})
	return NewMiddleware(env.tokens, env.users).RequireAuth(next)
}

func callProtected(t *testing.T, env *testEnv, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	protected(t, env).ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestRequireAuth_Success(t *testing.T) {
	env := newTestEnv(t)
	registered := env.register(t, "alice@example.com", "alice", "password1")
	token, err := env.tokens.Issue("alice@example.com", time.Minute)
	require.NoError(t, err)

	rec := callProtected(t, env, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)

	var got user.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, registered.ID, got.ID)
	assert.Equal(t, "alice", got.Username)
	assert.NotContains(t, rec.Body.String(), "password")

	// Scheme is case-insensitive
	rec = callProtected(t, env, "bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth_MissingToken(t *testing.T) {
	env := newTestEnv(t)

	for _, header := range []string{"", "Basic dXNlcjpwYXNz", "Bearer", "Bearer   "} {
		rec := callProtected(t, env, header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		assert.Equal(t, httputil.CodeMissingAuth, decodeError(t, rec).Code)
	}
}

func TestRequireAuth_InvalidTokensShareOneResponse(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "alice", "password1")

	expired, err := env.tokens.Issue("alice@example.com", time.Minute)
	require.NoError(t, err)
	ghost, err := env.tokens.Issue("ghost@example.com", time.Minute)
	require.NoError(t, err)

	var bodies []string
	for _, token := range []string{"not-a-token", ghost, expired} {
		if token == expired {
			env.tokens.now = func() time.Time { return time.Now().Add(time.Hour) }
		}
		rec := callProtected(t, env, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		bodies = append(bodies, rec.Body.String())
	}

	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, bodies[0], bodies[2])
	assert.Contains(t, bodies[0], httputil.CodeInvalidToken)
}

func TestRequireAuth_InactiveUser(t *testing.T) {
	env := newTestEnv(t)
	registered := env.register(t, "alice@example.com", "alice", "password1")
	require.NoError(t, env.users.SetActive(context.Background(), registered.ID, false))

	token, err := env.tokens.Issue("alice@example.com", time.Minute)
	require.NoError(t, err)

	rec := callProtected(t, env, "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, httputil.CodeInactiveUser, decodeError(t, rec).Code)
}

func TestUserFromContext_Empty(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)
}
