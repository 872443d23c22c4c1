package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrmsprobe/wrmsprobe/internal/api/models"
)

func TestProblem_Write(t *testing.T) {
	p := models.NewNotFound("req_test123", "unknown site shop")
	p.Instance = "/v1/sites/shop/runs"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	assert.Equal(t, models.ProblemTypeNotFound, result.Type)
	assert.Equal(t, "Not found", result.Title)
	assert.Equal(t, "unknown site shop", result.Detail)
	assert.Equal(t, "/v1/sites/shop/runs", result.Instance)
	assert.Equal(t, "req_test123", result.TraceID)
}

func TestProblem_WriteOmitsEmptyFields(t *testing.T) {
	w := httptest.NewRecorder()
	models.NewProblem(models.ProblemTypeTLSRequired, "TLS required", http.StatusForbidden, "").Write(w)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("X-Request-Id"))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "detail")
	assert.NotContains(t, raw, "instance")
	assert.Contains(t, raw, "traceId")
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name    string
		problem *models.Problem
		typ     string
		status  int
	}{
		{"unauthorized", models.NewUnauthorized("req_1", "d"), models.ProblemTypeUnauthorized, http.StatusUnauthorized},
		{"forbidden", models.NewForbidden("req_1", "d"), models.ProblemTypeForbidden, http.StatusForbidden},
		{"not found", models.NewNotFound("req_1", "d"), models.ProblemTypeNotFound, http.StatusNotFound},
		{"method not allowed", models.NewMethodNotAllowed("req_1", "d"), models.ProblemTypeMethodNotAllowed, http.StatusMethodNotAllowed},
		{"conflict", models.NewConflict("req_1", "d"), models.ProblemTypeConflict, http.StatusConflict},
		{"too many requests", models.NewTooManyRequests("req_1", "d"), models.ProblemTypeTooManyRequests, http.StatusTooManyRequests},
		{"internal", models.NewInternalError("req_1", "d"), models.ProblemTypeInternal, http.StatusInternalServerError},
		{"unavailable", models.NewServiceUnavailable("req_1", "d"), models.ProblemTypeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.problem.Type)
			assert.NotEmpty(t, tt.problem.Title)
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, "d", tt.problem.Detail)
			assert.Equal(t, "req_1", tt.problem.TraceID)
		})
	}
}
