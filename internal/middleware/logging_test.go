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

func TestSecureLogger_RedactsSensitiveQuery(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	h := SecureLogger(log, nil)(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/api/security/csrf?token=abc123", nil)
	serve(h, withUser(req, 42))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http_request", entry["msg"])
	assert.Equal(t, "/api/security/csrf?[REDACTED]", entry["path"])
	assert.EqualValues(t, 200, entry["status"])
	assert.EqualValues(t, 42, entry["user_id"])
	assert.NotContains(t, buf.String(), "abc123")
}

func TestSecureLogger_ServerErrorsLoggedAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	serve(SecureLogger(log, nil)(failing), httptest.NewRequest(http.MethodGet, "/health?verbose=1", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "/health?verbose=1", entry["path"])
}
