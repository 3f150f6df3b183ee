package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/palompy/gatekeeper/internal/auth"
	"github.com/palompy/gatekeeper/internal/models"
	pkghttp "github.com/palompy/gatekeeper/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds an authenticated user to the request context
func WithAuthContext(req *http.Request, userID int64) *http.Request {
	user := &models.AuthenticatedUser{UserID: userID, Token: "test-token"}
	return req.WithContext(context.WithValue(req.Context(), auth.UserContextKey, user))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), target), "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockTwoFactorService implements TwoFactorService for testing
type MockTwoFactorService struct {
	RequestSetupFunc func(ctx context.Context, userID int64) (*models.TwoFactorSetup, error)
	EnableFunc       func(ctx context.Context, userID int64, token string) error
	VerifyFunc       func(ctx context.Context, userID int64, token string) (bool, error)
}

func (m *MockTwoFactorService) RequestSetup(ctx context.Context, userID int64) (*models.TwoFactorSetup, error) {
	if m.RequestSetupFunc != nil {
		return m.RequestSetupFunc(ctx, userID)
	}
	return nil, models.ErrInternalServer
}

func (m *MockTwoFactorService) Enable(ctx context.Context, userID int64, token string) error {
	if m.EnableFunc != nil {
		return m.EnableFunc(ctx, userID, token)
	}
	return nil
}

func (m *MockTwoFactorService) Verify(ctx context.Context, userID int64, token string) (bool, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, userID, token)
	}
	return false, nil
}
