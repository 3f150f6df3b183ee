package models

import "time"

// TwoFactorSettings is the persisted two-factor row for a user.
// EncryptedSecret only ever holds the SecretCipher blob, never the base32 secret.
type TwoFactorSettings struct {
	UserID          int64
	EncryptedSecret string
	Enabled         bool
	RecoveryCodes   []string
	UpdatedAt       time.Time
}

// HasSecret reports whether a setup has been requested for the user
func (s *TwoFactorSettings) HasSecret() bool {
	return s != nil && s.EncryptedSecret != ""
}

// TwoFactorSetup is returned once, when the user requests setup.
// It is the only place the plaintext secret and recovery codes leave the service.
type TwoFactorSetup struct {
	Secret        string   `json:"secret"`
	OTPAuthURL    string   `json:"otpauthUrl"`
	RecoveryCodes []string `json:"recoveryCodes"`
	QRCode        string   `json:"qrCode,omitempty"`
}

// CSRFToken is an issued anti-forgery token
type CSRFToken struct {
	Token     string
	ExpiresAt time.Time
}
