package slogx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPMiddlewareLogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(With(r.Context(), "user_id", "u1")).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/state", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var inside, done map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &inside))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &done))

	require.Equal(t, "u1", inside["user_id"])
	require.Equal(t, "req-1", inside["req_id"])
	require.Equal(t, "http_request", done["msg"])
	require.EqualValues(t, http.StatusTeapot, done["status"])
	require.Equal(t, "/v1/auth/state", done["path"])
}

func TestHTTPMiddlewareGeneratesRequestID(t *testing.T) {
	h := HTTPMiddleware(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, rec.Header().Get(RequestIDHeader), 26)
}

func TestFromContextDefault(t *testing.T) {
	require.Equal(t, slog.Default(), FromContext(context.Background()))
}
