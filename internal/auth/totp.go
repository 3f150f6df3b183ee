package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	totpPeriod     = 30 * time.Second
	totpSkew       = 1
	totpDigits     = 6
	totpSecretSize = 20 // 160 bits
	qrCodeSize     = 256
)

// TOTPEngine implements RFC 6238 codes: 30 s step, 6 digits, HMAC-SHA1,
// accepting the previous, current and next step.
type TOTPEngine struct {
	issuer string
	now    func() time.Time
}

// NewTOTPEngine creates a TOTPEngine that labels provisioning URLs with issuer
func NewTOTPEngine(issuer string) *TOTPEngine {
	return &TOTPEngine{
		issuer: issuer,
		now:    time.Now,
	}
}

// SetClock overrides the time source (tests)
func (e *TOTPEngine) SetClock(now func() time.Time) {
	e.now = now
}

// Issuer returns the configured issuer
func (e *TOTPEngine) Issuer() string {
	return e.issuer
}

// GenerateSecret returns a new random 160-bit secret, base32 encoded
func (e *TOTPEngine) GenerateSecret() (string, error) {
	buf := make([]byte, totpSecretSize)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}
	return Base32Encode(buf), nil
}

// GenerateCode returns the 6-digit code for the step containing t
func (e *TOTPEngine) GenerateCode(secret string, t time.Time) (string, error) {
	return e.codeForStep(secret, uint64(t.Unix())/uint64(totpPeriod/time.Second))
}

func (e *TOTPEngine) codeForStep(secret string, step uint64) (string, error) {
	// re-encode so lowercase or spaced secrets from authenticator apps decode the same way
	normalized := Base32Encode(Base32Decode(secret))
	code, err := hotp.GenerateCodeCustom(normalized, step, hotp.ValidateOpts{
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP code: %w", err)
	}
	return code, nil
}

// Validate checks code against the current time
func (e *TOTPEngine) Validate(secret, code string) bool {
	return e.ValidateAt(secret, code, e.now())
}

// ValidateAt checks code against steps T-1, T, T+1 for time t.
// Whitespace in code is ignored; anything other than 6 digits is rejected.
func (e *TOTPEngine) ValidateAt(secret, code string, t time.Time) bool {
	code = stripSpaces(code)
	if len(code) != totpDigits || !isDigits(code) {
		return false
	}

	step := t.Unix() / int64(totpPeriod/time.Second)
	matched := 0
	for offset := int64(-totpSkew); offset <= totpSkew; offset++ {
		s := step + offset
		if s < 0 {
			continue
		}
		expected, err := e.codeForStep(secret, uint64(s))
		if err != nil {
			return false
		}
		matched |= subtle.ConstantTimeCompare([]byte(expected), []byte(code))
	}
	return matched == 1
}

// ProvisioningURL builds the otpauth:// URI understood by authenticator apps
func (e *TOTPEngine) ProvisioningURL(label, secret string) string {
	return fmt.Sprintf("otpauth://totp/%s?secret=%s&issuer=%s&digits=%d",
		encodeURIComponent(label),
		Base32Encode(Base32Decode(secret)),
		encodeURIComponent(e.issuer),
		totpDigits,
	)
}

// QRCodeDataURL renders the provisioning URL as a PNG data URL
func (e *TOTPEngine) QRCodeDataURL(provisioningURL string) (string, error) {
	png, err := qrcode.Encode(provisioningURL, qrcode.Medium, qrCodeSize)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
