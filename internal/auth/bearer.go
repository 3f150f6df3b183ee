package auth

import (
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/palompy/gatekeeper/internal/models"
)

const bearerPrefix = "Bearer "

// BearerAuthenticator turns an Authorization header into an AuthenticatedUser
type BearerAuthenticator struct {
	codec *TokenCodec
}

// NewBearerAuthenticator creates a BearerAuthenticator backed by codec
func NewBearerAuthenticator(codec *TokenCodec) *BearerAuthenticator {
	return &BearerAuthenticator{codec: codec}
}

// Authenticate validates the bearer token in h.
// A missing or non-Bearer header yields models.ErrMissingCredentials; every
// other failure is models.ErrAuthenticationFailed wrapping the cause.
func (a *BearerAuthenticator) Authenticate(h http.Header) (*models.AuthenticatedUser, error) {
	header := authorizationHeader(h)
	if header == "" || !strings.HasPrefix(header, bearerPrefix) {
		return nil, models.ErrMissingCredentials
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return nil, models.ErrMissingCredentials
	}

	claims, err := a.codec.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrAuthenticationFailed, err)
	}

	user, err := normalizeClaims(claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrAuthenticationFailed, err)
	}
	user.Token = token
	return user, nil
}

// authorizationHeader does a case-insensitive lookup, including for header
// maps built by hand with non-canonical keys
func authorizationHeader(h http.Header) string {
	if v := h.Get("Authorization"); v != "" {
		return v
	}
	for k, values := range h {
		if strings.EqualFold(k, "Authorization") && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

func normalizeClaims(raw map[string]any) (*models.AuthenticatedUser, error) {
	var claims models.APIClaims
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &claims,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(numericClaims(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidCredentials, err)
	}

	userID := claims.UserID
	if userID == nil {
		userID = claims.Subject
	}
	if userID == nil {
		return nil, fmt.Errorf("%w: no user id", models.ErrInvalidCredentials)
	}
	id, ok := toID(*userID)
	if !ok {
		return nil, fmt.Errorf("%w: user id is not an integer", models.ErrInvalidCredentials)
	}

	user := &models.AuthenticatedUser{
		UserID: id,
		Roles:  rolesClaim(raw["roles"]),
	}

	// zero means "no subscription"
	if claims.SubscriptionID != nil && *claims.SubscriptionID != 0 {
		sub, ok := toID(*claims.SubscriptionID)
		if !ok {
			return nil, fmt.Errorf("%w: subscription id is not an integer", models.ErrInvalidCredentials)
		}
		user.SubscriptionID = &sub
	}

	return user, nil
}

// numericClaims keeps only the claims decoded into APIClaims, dropping JSON nulls
func numericClaims(raw map[string]any) map[string]any {
	out := make(map[string]any, 3)
	for _, key := range []string{"userId", "sub", "subscriptionId"} {
		if v, ok := raw[key]; ok && v != nil {
			out[key] = v
		}
	}
	return out
}

func toID(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// rolesClaim accepts a list or a single string. Non-string list elements are stringified.
func rolesClaim(v any) []string {
	switch roles := v.(type) {
	case string:
		return []string{roles}
	case []string:
		return roles
	case []any:
		out := make([]string, 0, len(roles))
		for _, r := range roles {
			switch role := r.(type) {
			case nil:
			case string:
				out = append(out, role)
			default:
				out = append(out, fmt.Sprint(role))
			}
		}
		return out
	default:
		return []string{}
	}
}
