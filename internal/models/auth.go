package models

// APIClaims holds the numeric identity claims of a bearer token payload,
// weakly decoded (numbers or numeric strings).
// UserID falls back to Subject when the userId claim is absent.
type APIClaims struct {
	UserID         *float64 `mapstructure:"userId"`
	Subject        *float64 `mapstructure:"sub"`
	SubscriptionID *float64 `mapstructure:"subscriptionId"`
}

// AuthenticatedUser is the identity projected from a verified bearer token
type AuthenticatedUser struct {
	Token          string
	UserID         int64
	SubscriptionID *int64
	Roles          []string
}

