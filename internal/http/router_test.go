package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/go-todo-api/internal/auth"
	"github.com/redmonkez12/go-todo-api/internal/config"
	"github.com/redmonkez12/go-todo-api/internal/database/dbtest"
	httpServer "github.com/redmonkez12/go-todo-api/internal/http"
	"github.com/redmonkez12/go-todo-api/internal/logging"
	"github.com/redmonkez12/go-todo-api/internal/ratelimit"
	"github.com/redmonkez12/go-todo-api/internal/todo"
	"github.com/redmonkez12/go-todo-api/internal/user"
)

type capturedCode struct {
	email string
	code  string
}

type captureSender chan capturedCode

func (c captureSender) SendPasswordResetOTP(_ context.Context, toEmail, code string) error {
	c <- capturedCode{email: toEmail, code: code}
	return nil
}

type testServer struct {
	handler http.Handler
	mail    captureSender
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Env: "prod", TrustedOrigins: []string{"http://localhost:3000"}},
	}
	db := dbtest.New(t)
	logger := logging.Discard()

	tokens, err := auth.NewJWTService([]byte("0123456789abcdef0123456789abcdef"), "HS256", 30*time.Minute)
	require.NoError(t, err)

	mail := make(captureSender, 10)
	users := user.NewRepository(db)
	otps := auth.NewOTPRepository(db, 15*time.Minute)
	limiter := ratelimit.NewLimiter(nil, ratelimit.Options{})

	authService := auth.NewService(db, users, otps, tokens, mail, limiter, logger, auth.Options{
		AccessTokenDuration: 30 * time.Minute,
		BcryptCost:          4,
		EmailSendTimeout:    time.Second,
	})

	router := httpServer.NewRouter(cfg, db, httpServer.Handlers{
		Auth:           auth.NewHandler(authService, limiter),
		AuthMiddleware: auth.NewMiddleware(tokens, users),
		Todo:           todo.NewHandler(todo.NewService(db, todo.NewRepository(db))),
	}, logger)

	return &testServer{handler: router, mail: mail}
}

func (s *testServer) do(t *testing.T, method, target, token, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) json(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, method, target, token, "application/json", body)
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	form := url.Values{"username": {email}, "password": {password}}
	rec := s.do(t, http.MethodPost, "/users/login", "", "application/x-www-form-urlencoded", form.Encode())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var token auth.AccessToken
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&token))
	return token.AccessToken
}

func (s *testServer) signUp(t *testing.T, email, username, password string) string {
	t.Helper()
	rec := s.json(t, http.MethodPost, "/users/register", "",
		`{"email":"`+email+`","username":"`+username+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return s.login(t, email, password)
}

func TestRouter_RootAndHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var root httpServer.RootResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&root))
	assert.Equal(t, "/todos", root.Endpoints["todos"])
	assert.Equal(t, "/users", root.Endpoints["users"])

	rec = s.do(t, http.MethodGet, "/health", "", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"api is running"}`, rec.Body.String())

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestRouter_SwaggerOnlyInDevelopment(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/swagger/index.html", "", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/todos", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_UserLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "alice@example.com", "alice", "password1")

	rec := s.do(t, http.MethodGet, "/users/me", token, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var me user.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	assert.Equal(t, "alice@example.com", me.Email)
	assert.True(t, me.IsActive)

	rec = s.do(t, http.MethodGet, "/users/me", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = s.do(t, http.MethodGet, "/users/me", "garbage", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_TodoFlow(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp(t, "alice@example.com", "alice", "password1")
	bob := s.signUp(t, "bob@example.com", "bob", "password1")

	rec := s.json(t, http.MethodPost, "/todos/", alice, `{"title":"Write report"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created todo.Task
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	// Trailing slash and bare path reach the same handler
	for _, target := range []string{"/todos", "/todos/"} {
		rec = s.do(t, http.MethodGet, target, alice, "", "")
		require.Equal(t, http.StatusOK, rec.Code, target)
		var tasks []todo.Task
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&tasks))
		require.Len(t, tasks, 1)
		assert.Equal(t, created.ID, tasks[0].ID)
	}

	path := "/todos/" + strconv.FormatInt(created.ID, 10)

	rec = s.do(t, http.MethodPut, path+"/toggle", alice, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var toggled todo.Task
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&toggled))
	assert.True(t, toggled.Completed)

	rec = s.do(t, http.MethodGet, path, alice, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stored todo.Task
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stored))
	assert.True(t, stored.Completed)

	rec = s.do(t, http.MethodGet, path, bob, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/todos", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodDelete, path, alice, "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, path, alice, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_PasswordReset(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice@example.com", "alice", "password1")

	rec := s.json(t, http.MethodPost, "/users/forgot-password", "", `{"email":"alice@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var sent capturedCode
	select {
	case sent = <-s.mail:
	case <-time.After(2 * time.Second):
		t.Fatal("no reset email sent")
	}
	assert.Equal(t, "alice@example.com", sent.email)

	rec = s.json(t, http.MethodPost, "/users/verify-otp", "", `{"email":"alice@example.com","otp":"`+sent.code+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.json(t, http.MethodPost, "/users/reset-password", "",
		`{"email":"alice@example.com","otp":"`+sent.code+`","new_password":"fresh-password"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	s.login(t, "alice@example.com", "fresh-password")
}
