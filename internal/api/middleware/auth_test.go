package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrmsprobe/wrmsprobe/internal/api/middleware"
	"github.com/wrmsprobe/wrmsprobe/internal/auth"
)

func testTokens() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "wrmsprobe",
		Audience:   "wrmsprobe-api",
	})
}

func issue(t *testing.T, scopes ...string) string {
	t.Helper()
	token, _, err := testTokens().IssueToken("ops-test", scopes...)
	require.NoError(t, err)
	return token
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuth_MissingAuthorizationHeader(t *testing.T) {
	handler := middleware.Auth(testTokens())(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/v1/sites", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authorization header")
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
}

func TestAuth_InvalidAuthorizationFormat(t *testing.T) {
	handler := middleware.Auth(testTokens())(okHandler)

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "token123"},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"bearer no space", "bearertoken123"},
		{"empty bearer", "Bearer "},
		{"just bearer", "Bearer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/sites", http.NoBody)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	handler := middleware.Auth(testTokens())(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/v1/sites", http.NoBody)
	req.Header.Set("Authorization", "Bearer invalid.jwt.token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid operator token")
}

func TestAuth_TokenFromOtherKey(t *testing.T) {
	other := auth.NewJWTService(auth.JWTConfig{SigningKey: "other", Issuer: "wrmsprobe", Audience: "wrmsprobe-api"})
	token, _, err := other.IssueToken("ops-test")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/sites", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	middleware.Auth(testTokens())(okHandler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_ValidToken(t *testing.T) {
	token := issue(t, auth.ScopeRead)

	var operator string
	var claims *auth.Claims
	handler := middleware.Auth(testTokens())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator = middleware.GetOperator(r.Context())
		claims = middleware.GetClaims(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/sites", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops-test", operator)
	require.NotNil(t, claims)
	assert.True(t, claims.HasScope(auth.ScopeRead))
}

func TestAuth_CaseInsensitiveBearer(t *testing.T) {
	token := issue(t)
	handler := middleware.Auth(testTokens())(okHandler)

	for _, prefix := range []string{"Bearer ", "bearer ", "BEARER "} {
		t.Run(prefix, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/sites", http.NoBody)
			req.Header.Set("Authorization", prefix+token)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestRequireScope(t *testing.T) {
	handler := middleware.Auth(testTokens())(middleware.RequireScope(auth.ScopeRun)(okHandler))

	tests := []struct {
		name   string
		scopes []string
		want   int
	}{
		{"read only", []string{auth.ScopeRead}, http.StatusForbidden},
		{"run", []string{auth.ScopeRun}, http.StatusOK},
		{"read and run", []string{auth.ScopeRead, auth.ScopeRun}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/sweeps", http.NoBody)
			req.Header.Set("Authorization", "Bearer "+issue(t, tt.scopes...))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireScope_WithoutAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/sweeps", http.NoBody)
	rec := httptest.NewRecorder()

	middleware.RequireScope(auth.ScopeRun)(okHandler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetOperator_NoAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/sites", http.NoBody)
	assert.Empty(t, middleware.GetOperator(req.Context()))
	assert.Nil(t, middleware.GetClaims(req.Context()))
}
