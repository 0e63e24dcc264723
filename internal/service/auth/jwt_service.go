// Package auth issues and validates the service tokens that guard the HTTP
// API. Callers are other services (the webhook front end, operators' CLIs),
// identified by the token subject.
package auth

import (
	"context"
	"time"
)

// TokenType is the type claim carried by every service token.
const TokenType = "service"

// JWTService defines operations for managing service tokens.
type JWTService interface {
	// GenerateToken creates a signed token for the named caller.
	GenerateToken(ctx context.Context, subject string) (string, error)

	// ValidateToken validates the token and returns its claims, or one of
	// ErrInvalidToken, ErrExpiredToken, ErrTokenNotYetValid, ErrWrongTokenType.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the validated content of a service token.
type Claims struct {
	// Subject names the calling service.
	Subject string `json:"sub,omitempty"`

	// TokenType is always TokenType for tokens this package accepts.
	TokenType string `json:"type,omitempty"`

	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
