package auth

import "errors"

var (
	ErrMissingSecret   = errors.New("auth: signing secret is required")
	ErrMissingToken    = errors.New("auth: missing bearer token")
	ErrInvalidToken    = errors.New("auth: invalid token")
	ErrExpiredToken    = errors.New("auth: token expired")
	ErrInvalidClaims   = errors.New("auth: token claims are incomplete")
	ErrTenantMismatch  = errors.New("auth: token was issued for another tenant")
	ErrNoTenantScope   = errors.New("auth: request has no tenant scope")
	ErrUnauthenticated = errors.New("auth: request is not authenticated")
)
