package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC7807 error body, served as application/problem+json.
// TraceID carries the request ID so clients can quote it when reporting.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	TraceID  string `json:"traceId"`
}

// Problem type URIs.
const (
	ProblemTypeUnauthorized     = "urn:wrmsprobe:problem:unauthorized"
	ProblemTypeForbidden        = "urn:wrmsprobe:problem:forbidden"
	ProblemTypeNotFound         = "urn:wrmsprobe:problem:not-found"
	ProblemTypeMethodNotAllowed = "urn:wrmsprobe:problem:method-not-allowed"
	ProblemTypeConflict         = "urn:wrmsprobe:problem:conflict"
	ProblemTypeTooManyRequests  = "urn:wrmsprobe:problem:too-many-requests"
	ProblemTypeInternal         = "urn:wrmsprobe:problem:internal-error"
	ProblemTypeUnavailable      = "urn:wrmsprobe:problem:service-unavailable"
	ProblemTypeTLSRequired      = "urn:wrmsprobe:problem:tls-required"
)

// NewProblem builds a Problem without a detail message.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{Type: problemType, Title: title, Status: status, TraceID: traceID}
}

// Write sends p with its status code. The trace ID is echoed in X-Request-Id.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func detailed(problemType, title string, status int, traceID, detail string) *Problem {
	p := NewProblem(problemType, title, status, traceID)
	p.Detail = detail
	return p
}

func NewUnauthorized(traceID, detail string) *Problem {
	return detailed(ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized, traceID, detail)
}

func NewForbidden(traceID, detail string) *Problem {
	return detailed(ProblemTypeForbidden, "Forbidden", http.StatusForbidden, traceID, detail)
}

// NewNotFound covers both unknown routes and unknown site names.
func NewNotFound(traceID, detail string) *Problem {
	return detailed(ProblemTypeNotFound, "Not found", http.StatusNotFound, traceID, detail)
}

// NewMethodNotAllowed is served by the router for known paths.
func NewMethodNotAllowed(traceID, detail string) *Problem {
	return detailed(ProblemTypeMethodNotAllowed, "Method not allowed", http.StatusMethodNotAllowed, traceID, detail)
}

// NewConflict reports work that is already in flight.
func NewConflict(traceID, detail string) *Problem {
	return detailed(ProblemTypeConflict, "Conflict", http.StatusConflict, traceID, detail)
}

func NewTooManyRequests(traceID, detail string) *Problem {
	return detailed(ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests, traceID, detail)
}

func NewInternalError(traceID, detail string) *Problem {
	return detailed(ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, traceID, detail)
}

// NewServiceUnavailable reports that nothing is configured to serve the request.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return detailed(ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable, traceID, detail)
}
