package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/palompy/gatekeeper/internal/models"
)

// SignOptions controls optional registered claims added by Sign
type SignOptions struct {
	ExpiresIn time.Duration // adds exp = iat + ExpiresIn (rounded up to whole seconds) when > 0
	Subject   string        // adds sub when non-empty
}

// TokenCodec signs and verifies compact HS256 tokens with a shared secret
type TokenCodec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenCodec creates a TokenCodec for the given secret
func NewTokenCodec(secret string) *TokenCodec {
	tc := &TokenCodec{
		secret: []byte(secret),
		now:    time.Now,
	}
	tc.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return tc.now() }),
	)
	return tc
}

// SetClock overrides the time source (tests)
func (tc *TokenCodec) SetClock(now func() time.Time) {
	tc.now = now
}

// Sign merges iat (and optionally exp/sub) into claims and returns header.payload.signature
func (tc *TokenCodec) Sign(claims map[string]any, opts SignOptions) (string, error) {
	issuedAt := tc.now().Unix()

	payload := make(jwt.MapClaims, len(claims)+3)
	for k, v := range claims {
		payload[k] = v
	}
	payload["iat"] = issuedAt
	if opts.ExpiresIn > 0 {
		payload["exp"] = issuedAt + int64((opts.ExpiresIn+time.Second-1)/time.Second)
	}
	if opts.Subject != "" {
		payload["sub"] = opts.Subject
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(tc.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify checks the signature before looking at any claim, then enforces exp.
// Only the first three dot-separated segments are considered.
func (tc *TokenCodec) Verify(token string) (jwt.MapClaims, error) {
	segments := strings.Split(token, ".")
	if len(segments) < 3 || segments[0] == "" || segments[1] == "" || segments[2] == "" {
		return nil, models.ErrMalformedToken
	}

	signingString := segments[0] + "." + segments[1]
	expected, err := tc.signature(signingString)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(segments[2])) != 1 {
		return nil, models.ErrInvalidSignature
	}

	claims := jwt.MapClaims{}
	_, err = tc.parser.ParseWithClaims(signingString+"."+segments[2], claims, func(*jwt.Token) (interface{}, error) {
		return tc.secret, nil
	})
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, models.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, models.ErrInvalidSignature
	default:
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedToken, err)
	}
}

// signature returns the base64url HMAC-SHA256 of signingString
func (tc *TokenCodec) signature(signingString string) (string, error) {
	sig, err := jwt.SigningMethodHS256.Sign(signingString, tc.secret)
	if err != nil {
		return "", fmt.Errorf("failed to compute signature: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(sig), nil
}
