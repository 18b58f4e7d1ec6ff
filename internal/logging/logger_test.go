package logging

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true)

	log.WithFields(map[string]any{"user_id": 7, "email": "a@x.com"}).Info("hello", "k", "v")

	out := buf.String()
	for _, want := range []string{"level=INFO", "msg=hello", "user_id=7", "email=a@x.com", "k=v"} {
		assert.Contains(t, out, want)
	}
}

func TestLogger_ProductionIsJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	log.Debug("hidden")
	log.Info("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
}

func TestGetLoggerFromContext_Fallback(t *testing.T) {
	require.NotNil(t, GetLoggerFromContext(context.Background()))

	l := Discard()
	assert.Same(t, l, GetLoggerFromContext(WithContext(context.Background(), l)))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true)

	var seen *Logger
	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetLoggerFromContext(r.Context())
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nope"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/todos/9", nil))

	require.NotNil(t, seen)
	assert.NotSame(t, fallback, seen)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	assert.Contains(t, last, "level=WARN")
	assert.Contains(t, last, "status=404")
	assert.Contains(t, last, "bytes=4")
	assert.Contains(t, last, "path=/todos/9")
}
