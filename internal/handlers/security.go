package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/palompy/gatekeeper/internal/auth"
	"github.com/palompy/gatekeeper/internal/models"
	pkghttp "github.com/palompy/gatekeeper/pkg/http"
)

// TwoFactorService is the two-factor flow used by SecurityHandler
type TwoFactorService interface {
	RequestSetup(ctx context.Context, userID int64) (*models.TwoFactorSetup, error)
	Enable(ctx context.Context, userID int64, token string) error
	Verify(ctx context.Context, userID int64, token string) (bool, error)
}

// TwoFactorTokenRequest is the body of the enable and verify endpoints
type TwoFactorTokenRequest struct {
	Token string `json:"token" validate:"required,min=6,max=12"`
}

// CSRFTokenResponse is returned by GET /api/security/csrf
type CSRFTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"` // unix milliseconds
}

type enableResponse struct {
	Enabled bool `json:"enabled"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

// SecurityHandler serves the CSRF and two-factor endpoints
type SecurityHandler struct {
	twoFactor TwoFactorService
	csrf      *auth.CSRFTokenStore
	logger    *slog.Logger
}

// NewSecurityHandler creates a new security handler
func NewSecurityHandler(twoFactor TwoFactorService, csrf *auth.CSRFTokenStore, logger *slog.Logger) *SecurityHandler {
	return &SecurityHandler{
		twoFactor: twoFactor,
		csrf:      csrf,
		logger:    logger,
	}
}

// IssueCSRF handles GET /api/security/csrf
func (h *SecurityHandler) IssueCSRF(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrf.Issue(pkghttp.SessionID(r))
	if err != nil {
		pkghttp.WriteErrorFrom(w, err)
		return
	}

	w.Header().Set(pkghttp.HeaderCSRFToken, token.Token)
	pkghttp.WriteJSON(w, http.StatusOK, CSRFTokenResponse{
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt.UnixMilli(),
	})
}

// SetupTwoFactor handles POST /api/security/2fa/setup
func (h *SecurityHandler) SetupTwoFactor(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteErrorFrom(w, models.ErrMissingCredentials)
		return
	}

	setup, err := h.twoFactor.RequestSetup(r.Context(), user.UserID)
	if err != nil {
		h.writeServiceError(w, user.UserID, "two-factor setup failed", err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, setup)
}

// EnableTwoFactor handles POST /api/security/2fa/enable
func (h *SecurityHandler) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteErrorFrom(w, models.ErrMissingCredentials)
		return
	}

	var req TwoFactorTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	if err := h.twoFactor.Enable(r.Context(), user.UserID, req.Token); err != nil {
		h.writeServiceError(w, user.UserID, "two-factor enable failed", err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, enableResponse{Enabled: true})
}

// VerifyTwoFactor handles POST /api/security/2fa/verify
func (h *SecurityHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteErrorFrom(w, models.ErrMissingCredentials)
		return
	}

	var req TwoFactorTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	valid, err := h.twoFactor.Verify(r.Context(), user.UserID, req.Token)
	if err != nil {
		h.writeServiceError(w, user.UserID, "two-factor verification failed", err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, verifyResponse{Valid: valid})
}

// writeServiceError logs unexpected failures; client errors are only rendered
func (h *SecurityHandler) writeServiceError(w http.ResponseWriter, userID int64, msg string, err error) {
	if pkghttp.StatusFor(err).Status >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Int64("user_id", userID), slog.Any("error", err))
	}
	pkghttp.WriteErrorFrom(w, err)
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "validation_failed", "Invalid request", ve.Error())
		return
	}
	pkghttp.WriteBadRequest(w, "Invalid request body")
}
