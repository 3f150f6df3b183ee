package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/palompy/gatekeeper/internal/auth"
	"github.com/palompy/gatekeeper/internal/models"
	"github.com/palompy/gatekeeper/pkg/logger"
)

// TwoFactorRepository persists per-user two-factor settings
type TwoFactorRepository interface {
	// Get returns models.ErrNotFound when the user has no row
	Get(ctx context.Context, userID int64) (*models.TwoFactorSettings, error)
	Upsert(ctx context.Context, settings *models.TwoFactorSettings) error
	// RemoveRecoveryCode deletes code atomically; false means it was already gone
	RemoveRecoveryCode(ctx context.Context, userID int64, code string) (bool, error)
}

// MFAService drives the two-factor lifecycle: no secret -> pending setup -> enabled.
// There is no disable or rotation path.
type MFAService struct {
	repo   TwoFactorRepository
	cipher *auth.SecretCipher
	totp   *auth.TOTPEngine
	codes  *auth.RecoveryCodeSet
	audit  *logger.AuditLogger
	logger *slog.Logger
}

// NewMFAService creates a new MFA service
func NewMFAService(
	repo TwoFactorRepository,
	cipher *auth.SecretCipher,
	totp *auth.TOTPEngine,
	codes *auth.RecoveryCodeSet,
	audit *logger.AuditLogger,
	logger *slog.Logger,
) *MFAService {
	return &MFAService{
		repo:   repo,
		cipher: cipher,
		totp:   totp,
		codes:  codes,
		audit:  audit,
		logger: logger,
	}
}

// RequestSetup issues (or re-issues) the pending secret and recovery codes.
// A pending secret and existing codes are reused so repeated calls are stable.
func (s *MFAService) RequestSetup(ctx context.Context, userID int64) (*models.TwoFactorSetup, error) {
	settings, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings.Enabled {
		return nil, models.ErrMFAAlreadyEnabled
	}

	var secret string
	if settings.HasSecret() {
		secret, err = s.decryptSecret(userID, settings.EncryptedSecret)
		if err != nil {
			return nil, err
		}
	} else {
		secret, err = s.totp.GenerateSecret()
		if err != nil {
			s.logger.Error("failed to generate TOTP secret", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		settings.EncryptedSecret, err = s.cipher.Encrypt(secret)
		if err != nil {
			s.logger.Error("failed to encrypt TOTP secret", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}

	if len(settings.RecoveryCodes) == 0 {
		settings.RecoveryCodes, err = s.codes.Generate()
		if err != nil {
			s.logger.Error("failed to generate recovery codes", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}

	settings.Enabled = false
	if err := s.repo.Upsert(ctx, settings); err != nil {
		s.logger.Error("failed to store two-factor settings", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	label := s.totp.Issuer() + ":" + strconv.FormatInt(userID, 10)
	otpURL := s.totp.ProvisioningURL(label, secret)

	setup := &models.TwoFactorSetup{
		Secret:        secret,
		OTPAuthURL:    otpURL,
		RecoveryCodes: settings.RecoveryCodes,
	}
	if qr, err := s.totp.QRCodeDataURL(otpURL); err != nil {
		s.logger.Warn("failed to render QR code", slog.Any("error", err))
	} else {
		setup.QRCode = qr
	}

	s.audit.LogTwoFactorChange(ctx, logger.EventTwoFactorSetup, strconv.FormatInt(userID, 10), true, "")
	s.logger.Info("two-factor setup requested", slog.Int64("user_id", userID))

	return setup, nil
}

// Enable confirms the pending secret with a current code and turns two-factor on
func (s *MFAService) Enable(ctx context.Context, userID int64, token string) error {
	settings, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if !settings.HasSecret() {
		return models.ErrMFASetupRequired
	}

	secret, err := s.decryptSecret(userID, settings.EncryptedSecret)
	if err != nil {
		return err
	}

	if !s.totp.Validate(secret, token) {
		s.audit.LogTwoFactorChange(ctx, logger.EventTwoFactorEnable, strconv.FormatInt(userID, 10), false, "invalid code")
		return models.ErrMFAInvalidCode
	}

	if len(settings.RecoveryCodes) == 0 {
		settings.RecoveryCodes, err = s.codes.Generate()
		if err != nil {
			s.logger.Error("failed to generate recovery codes", slog.Any("error", err))
			return models.ErrInternalServer
		}
	}

	settings.Enabled = true
	if err := s.repo.Upsert(ctx, settings); err != nil {
		s.logger.Error("failed to enable two-factor", slog.Int64("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.LogTwoFactorChange(ctx, logger.EventTwoFactorEnable, strconv.FormatInt(userID, 10), true, "")
	s.logger.Info("two-factor enabled", slog.Int64("user_id", userID))
	return nil
}

// Verify checks a second factor. Users without two-factor enabled always pass.
// A TOTP code is tried first, then a recovery code, which is consumed on success.
func (s *MFAService) Verify(ctx context.Context, userID int64, token string) (bool, error) {
	settings, err := s.load(ctx, userID)
	if err != nil {
		return false, err
	}
	if !settings.Enabled {
		return true, nil
	}

	secret, err := s.decryptSecret(userID, settings.EncryptedSecret)
	if err != nil {
		return false, err
	}

	if s.totp.Validate(secret, token) {
		return true, nil
	}

	uid := strconv.FormatInt(userID, 10)
	if code, _, ok := s.codes.Consume(settings.RecoveryCodes, token); ok {
		removed, err := s.repo.RemoveRecoveryCode(ctx, userID, code)
		if err != nil {
			s.logger.Error("failed to consume recovery code", slog.Int64("user_id", userID), slog.Any("error", err))
			return false, models.ErrInternalServer
		}
		// a concurrent request may have spent it first
		if removed {
			s.audit.LogSecurityEvent(ctx, logger.AuditEvent{
				EventType: logger.EventRecoveryCodeUsed,
				UserID:    uid,
				Success:   true,
				Metadata:  map[string]string{"remaining": strconv.Itoa(len(settings.RecoveryCodes) - 1)},
			})
			return true, nil
		}
	}

	s.audit.LogTwoFactorChange(ctx, logger.EventTwoFactorVerify, uid, false, "invalid code")
	return false, nil
}

// load returns the stored settings, or an empty row for users who never started setup
func (s *MFAService) load(ctx context.Context, userID int64) (*models.TwoFactorSettings, error) {
	settings, err := s.repo.Get(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return &models.TwoFactorSettings{UserID: userID}, nil
	}
	if err != nil {
		s.logger.Error("failed to load two-factor settings", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return settings, nil
}

func (s *MFAService) decryptSecret(userID int64, blob string) (string, error) {
	secret, err := s.cipher.Decrypt(blob)
	if err != nil {
		s.logger.Error("failed to decrypt TOTP secret", slog.Int64("user_id", userID), slog.Any("error", err))
		return "", models.ErrInternalServer
	}
	return secret, nil
}
