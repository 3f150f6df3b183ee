package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palompy/gatekeeper/internal/auth"
	"github.com/palompy/gatekeeper/internal/models"
	pkghttp "github.com/palompy/gatekeeper/pkg/http"
)

func newTestHandler(svc TwoFactorService) (*SecurityHandler, *auth.CSRFTokenStore) {
	store := auth.NewCSRFTokenStore(15 * time.Minute)
	return NewSecurityHandler(svc, store, testLogger()), store
}

// ============================================================================
// IssueCSRF
// ============================================================================

func TestIssueCSRF_Success(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	h, store := newTestHandler(&MockTwoFactorService{})
	store.SetClock(func() time.Time { return now })

	req := httptest.NewRequest(http.MethodGet, "/api/security/csrf", nil)
	req.Header.Set(pkghttp.HeaderSessionID, "sess-1")
	w := httptest.NewRecorder()

	h.IssueCSRF(w, req)

	var resp CSRFTokenResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Len(t, resp.Token, 64)
	assert.Equal(t, resp.Token, w.Header().Get(pkghttp.HeaderCSRFToken))
	assert.Equal(t, now.Add(15*time.Minute).UnixMilli(), resp.ExpiresAt)

	assert.NoError(t, store.Require("sess-1", resp.Token))
}

func TestIssueCSRF_MissingSession(t *testing.T) {
	h, store := newTestHandler(&MockTwoFactorService{})

	w := httptest.NewRecorder()
	h.IssueCSRF(w, httptest.NewRequest(http.MethodGet, "/api/security/csrf", nil))

	AssertErrorResponse(t, w, http.StatusBadRequest, "missing_session")
	assert.Equal(t, 0, store.Len())
}

// ============================================================================
// SetupTwoFactor
// ============================================================================

func TestSetupTwoFactor(t *testing.T) {
	tests := []struct {
		name       string
		setupFunc  func(ctx context.Context, userID int64) (*models.TwoFactorSetup, error)
		wantStatus int
		wantError  string
	}{
		{
			name: "returns setup payload",
			setupFunc: func(ctx context.Context, userID int64) (*models.TwoFactorSetup, error) {
				assert.Equal(t, int64(7), userID)
				return &models.TwoFactorSetup{
					Secret:        "JBSWY3DPEHPK3PXP",
					OTPAuthURL:    "otpauth://totp/palompy%3A7?secret=JBSWY3DPEHPK3PXP",
					RecoveryCodes: []string{"0a1b2c3d"},
				}, nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "already enabled",
			setupFunc: func(ctx context.Context, userID int64) (*models.TwoFactorSetup, error) {
				return nil, models.ErrMFAAlreadyEnabled
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "two_factor_enabled",
		},
		{
			name: "internal failure is generic",
			setupFunc: func(ctx context.Context, userID int64) (*models.TwoFactorSetup, error) {
				return nil, fmt.Errorf("boom: %w", models.ErrDecryptionFailed)
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(&MockTwoFactorService{RequestSetupFunc: tt.setupFunc})
			req := WithAuthContext(httptest.NewRequest(http.MethodPost, "/api/security/2fa/setup", nil), 7)
			w := httptest.NewRecorder()

			h.SetupTwoFactor(w, req)

			if tt.wantError != "" {
				AssertErrorResponse(t, w, tt.wantStatus, tt.wantError)
				assert.NotContains(t, w.Body.String(), "boom")
				return
			}

			var resp models.TwoFactorSetup
			AssertJSONResponse(t, w, tt.wantStatus, &resp)
			assert.Equal(t, "JBSWY3DPEHPK3PXP", resp.Secret)
			assert.Equal(t, []string{"0a1b2c3d"}, resp.RecoveryCodes)
			assert.Contains(t, w.Body.String(), `"otpauthUrl"`)
		})
	}
}

func TestSetupTwoFactor_Unauthenticated(t *testing.T) {
	h, _ := newTestHandler(&MockTwoFactorService{})
	w := httptest.NewRecorder()

	h.SetupTwoFactor(w, httptest.NewRequest(http.MethodPost, "/api/security/2fa/setup", nil))

	AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}

// ============================================================================
// EnableTwoFactor
// ============================================================================

func TestEnableTwoFactor(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		enableErr  error
		wantStatus int
		wantError  string
	}{
		{"enabled", map[string]string{"token": "123456"}, nil, http.StatusOK, ""},
		{"missing token", map[string]string{}, nil, http.StatusBadRequest, "validation_failed"},
		{"too short", map[string]string{"token": "12345"}, nil, http.StatusBadRequest, "validation_failed"},
		{"too long", map[string]string{"token": "1234567890123"}, nil, http.StatusBadRequest, "validation_failed"},
		{"token not a string", map[string]int{"token": 123456}, nil, http.StatusBadRequest, "bad_request"},
		{"wrong code", map[string]string{"token": "000000"}, models.ErrMFAInvalidCode, http.StatusBadRequest, "invalid_code"},
		{"setup not requested", map[string]string{"token": "000000"}, models.ErrMFASetupRequired, http.StatusBadRequest, "two_factor_setup_required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h, _ := newTestHandler(&MockTwoFactorService{
				EnableFunc: func(ctx context.Context, userID int64, token string) error {
					called = true
					return tt.enableErr
				},
			})
			req := WithAuthContext(NewTestRequest(t, http.MethodPost, "/api/security/2fa/enable", tt.body), 7)
			w := httptest.NewRecorder()

			h.EnableTwoFactor(w, req)

			if tt.wantError != "" {
				AssertErrorResponse(t, w, tt.wantStatus, tt.wantError)
				return
			}
			assert.True(t, called)
			AssertJSONResponse(t, w, tt.wantStatus, nil)
			assert.JSONEq(t, `{"enabled":true}`, w.Body.String())
		})
	}
}

func TestEnableTwoFactor_EmptyBody(t *testing.T) {
	h, _ := newTestHandler(&MockTwoFactorService{})
	req := WithAuthContext(httptest.NewRequest(http.MethodPost, "/api/security/2fa/enable", strings.NewReader("")), 7)
	w := httptest.NewRecorder()

	h.EnableTwoFactor(w, req)

	AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

// ============================================================================
// VerifyTwoFactor
// ============================================================================

func TestVerifyTwoFactor(t *testing.T) {
	h, _ := newTestHandler(&MockTwoFactorService{
		VerifyFunc: func(ctx context.Context, userID int64, token string) (bool, error) {
			return token == "deadbeef", nil
		},
	})

	for token, want := range map[string]bool{"deadbeef": true, "cafef00d": false} {
		req := WithAuthContext(NewTestRequest(t, http.MethodPost, "/api/security/2fa/verify", map[string]string{"token": token}), 7)
		w := httptest.NewRecorder()

		h.VerifyTwoFactor(w, req)

		var resp verifyResponse
		AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.Equal(t, want, resp.Valid, token)
	}
}

func TestVerifyTwoFactor_ServiceError(t *testing.T) {
	h, _ := newTestHandler(&MockTwoFactorService{
		VerifyFunc: func(ctx context.Context, userID int64, token string) (bool, error) {
			return false, models.ErrInternalServer
		},
	})
	req := WithAuthContext(NewTestRequest(t, http.MethodPost, "/api/security/2fa/verify", map[string]string{"token": "123456"}), 7)
	w := httptest.NewRecorder()

	h.VerifyTwoFactor(w, req)

	AssertErrorResponse(t, w, http.StatusInternalServerError, "internal_error")
}

// ============================================================================
// ValidateRequest
// ============================================================================

func TestValidateRequest_ReportsJSONFieldNames(t *testing.T) {
	err := ValidateRequest(&TwoFactorTokenRequest{Token: "1"})
	require.Error(t, err)

	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	require.Len(t, ve.Fields, 1)
	assert.Equal(t, "token", ve.Fields[0].Field)
	assert.Equal(t, "must have a minimum of 6 characters", ve.Fields[0].Message)
}
