package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLoggingAssignsRequestID(t *testing.T) {
	var logs bytes.Buffer
	var seen string

	h := Logging(jsonLogger(&logs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/progress", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, seen, entry["request_id"])
	assert.Equal(t, float64(http.StatusCreated), entry["status"])
	assert.Equal(t, float64(5), entry["size"])
}

func TestLoggingKeepsIncomingRequestID(t *testing.T) {
	var logs bytes.Buffer
	h := Logging(jsonLogger(&logs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "upstream-1", rr.Header().Get(RequestIDHeader))
}

func TestLoggingLevelFollowsStatus(t *testing.T) {
	for status, level := range map[int]string{
		http.StatusOK:                  "INFO",
		http.StatusConflict:            "WARN",
		http.StatusInternalServerError: "ERROR",
	} {
		var logs bytes.Buffer
		h := Logging(jsonLogger(&logs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
		assert.Equal(t, level, entry["level"], "status %d", status)
	}
}

func TestRecoveryCallsPanicHandler(t *testing.T) {
	var logs bytes.Buffer
	var recovered any

	h := Recovery(jsonLogger(&logs), func(w http.ResponseWriter, r *http.Request, err any) {
		recovered = err
		w.WriteHeader(http.StatusTeapot)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "boom", recovered)
	assert.Contains(t, logs.String(), "panic recovered")
}
