package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrmsprobe/wrmsprobe/internal/auth"
)

func newService(key, issuer, audience string) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: key,
		Issuer:     issuer,
		Audience:   audience,
	})
}

func TestJWTService_IssueAndValidate(t *testing.T) {
	svc := newService("test-secret-key-for-testing-only", "wrmsprobe", "wrmsprobe-api")

	token, expiresAt, err := svc.IssueToken("ops-alice", auth.ScopeRead, auth.ScopeRun)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(auth.DefaultTokenTTL), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops-alice", claims.Operator())
	assert.Equal(t, "wrmsprobe", claims.Issuer)
	assert.True(t, claims.HasScope(auth.ScopeRun))
	assert.True(t, claims.HasScope(auth.ScopeRead))
	assert.NotEmpty(t, claims.ID)
}

func TestJWTService_DefaultScope(t *testing.T) {
	svc := newService("k", "wrmsprobe", "wrmsprobe-api")

	token, _, err := svc.IssueToken("dashboard")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, []string{auth.ScopeRead}, claims.Scopes)
	assert.False(t, claims.HasScope(auth.ScopeRun))
}

func TestJWTService_IssueErrors(t *testing.T) {
	_, _, err := newService("", "i", "a").IssueToken("ops")
	assert.ErrorIs(t, err, auth.ErrNoSigningKey)

	_, _, err = newService("k", "i", "a").IssueToken("")
	assert.ErrorIs(t, err, auth.ErrInvalidSubject)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := newService("test-secret-key-for-testing-only", "wrmsprobe", "wrmsprobe-api")

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestJWTService_Mismatch(t *testing.T) {
	token, _, err := newService("key-one", "wrmsprobe", "wrmsprobe-api").IssueToken("ops")
	require.NoError(t, err)

	tests := []struct {
		name string
		svc  *auth.JWTService
	}{
		{"wrong signing key", newService("key-two", "wrmsprobe", "wrmsprobe-api")},
		{"wrong issuer", newService("key-one", "someone-else", "wrmsprobe-api")},
		{"wrong audience", newService("key-one", "wrmsprobe", "other-api")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.ValidateToken(token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestJWTService_Expired(t *testing.T) {
	key := []byte("test-key")
	past := time.Now().Add(-2 * time.Hour)
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "wrmsprobe",
			Subject:   "ops",
			Audience:  jwt.ClaimStrings{"wrmsprobe-api"},
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
		},
		Scopes: []string{auth.ScopeRead},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)

	_, err = newService(string(key), "wrmsprobe", "wrmsprobe-api").ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestJWTService_CustomTTL(t *testing.T) {
	svc := auth.NewJWTService(auth.JWTConfig{SigningKey: "k", Issuer: "i", Audience: "a", TTL: 5 * time.Minute})

	_, expiresAt, err := svc.IssueToken("ops")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, 5*time.Second)
}
