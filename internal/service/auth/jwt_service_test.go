package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/tasklink/internal/config"
)

const testSecret = "test-secret-that-is-long-enough-for-testing"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewJWTService_RejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short", TokenLifetimeMinutes: 60})
	assert.Error(t, err)

	svc, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret, TokenLifetimeMinutes: 60})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newHMACService(testSecret, time.Hour, fixedClock(fixedTime))

	token, err := svc.GenerateToken(context.Background(), "webhook-gateway")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "webhook-gateway", claims.Subject)
	assert.Equal(t, TokenType, claims.TokenType)
	assert.Equal(t, fixedTime.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, fixedTime.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)

	_, err = svc.GenerateToken(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptySubject)
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer := newHMACService(testSecret, time.Hour, fixedClock(fixedTime))
	token, err := issuer.GenerateToken(context.Background(), "ops-cli")
	require.NoError(t, err)

	wrongType := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtCustomClaims{
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops-cli",
			ExpiresAt: jwt.NewNumericDate(fixedTime.Add(time.Hour)),
		},
	})
	wrongTypeToken, err := wrongType.SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name      string
		validator *hmacJWTService
		token     string
		wantErr   error
	}{
		{
			name:      "valid token",
			validator: issuer,
			token:     token,
		},
		{
			name:      "expired token",
			validator: newHMACService(testSecret, time.Hour, fixedClock(fixedTime.Add(2*time.Hour))),
			token:     token,
			wantErr:   ErrExpiredToken,
		},
		{
			name:      "not yet valid",
			validator: newHMACService(testSecret, time.Hour, fixedClock(fixedTime.Add(-time.Hour))),
			token:     token,
			wantErr:   ErrTokenNotYetValid,
		},
		{
			name:      "wrong secret",
			validator: newHMACService("wrong-secret-that-is-long-enough-for-testing", time.Hour, fixedClock(fixedTime)),
			token:     token,
			wantErr:   ErrInvalidToken,
		},
		{
			name:      "malformed",
			validator: issuer,
			token:     "not.a.jwt",
			wantErr:   ErrInvalidToken,
		},
		{
			name:      "empty",
			validator: issuer,
			token:     "",
			wantErr:   ErrMissingToken,
		},
		{
			name:      "wrong token type",
			validator: issuer,
			token:     wrongTypeToken,
			wantErr:   ErrWrongTokenType,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			claims, err := tt.validator.ValidateToken(context.Background(), tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ops-cli", claims.Subject)
		})
	}
}

func TestValidateToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	svc := newHMACService(testSecret, time.Hour, time.Now)
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwtCustomClaims{
		TokenType:        TokenType,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "x", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
