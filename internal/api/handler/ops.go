// Package handler provides HTTP handlers for the status API.
package handler

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/wrmsprobe/wrmsprobe/internal/api/models"
	"github.com/wrmsprobe/wrmsprobe/internal/api/response"
	"github.com/wrmsprobe/wrmsprobe/internal/provider/resilience"
	"github.com/wrmsprobe/wrmsprobe/internal/worker"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	sweep     *worker.SweepJob
	registry  *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler. sweep and registry may be nil.
func NewOpsHandler(version, buildTime string, sweep *worker.SweepJob, registry *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		sweep:     sweep,
		registry:  registry,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. The service is ready once a
// sweep job with at least one site is wired in.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.sweep == nil || len(h.sweep.Sites()) == 0 {
		response.ServiceUnavailable(w, r, "no sites configured")
		return
	}
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"sites":   len(h.sweep.Sites()),
			"checked": h.sweep.Store().Len(),
		},
	})
}

// SystemStatus handles GET /v1/ops/status - sweep activity and the breaker
// state of every site.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Sites:  []models.CircuitStatus{},
	}

	if h.sweep != nil {
		stats := h.sweep.GetStats()
		status.Sweep = models.SweepStatus{
			TotalSweeps:     stats.TotalSweeps,
			SiteRuns:        stats.SiteRuns,
			HealthyRuns:     stats.HealthyRuns,
			UnhealthyRuns:   stats.UnhealthyRuns,
			PublishFailures: stats.PublishFailures,
			LastSweepAt:     models.NewTimestamp(stats.LastSweepAt),
			InProgress:      h.sweep.Running(),
		}
		if stats.TotalSweeps > 0 {
			status.Sweep.LastSweepDuration = stats.LastSweepDuration.String()
		}
	}

	if h.registry != nil {
		for _, health := range h.registry.GetAllHealth() {
			cs := circuitStatus(health)
			status.Sites = append(status.Sites, cs)
			status.Status = worst(status.Status, cs.Status)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func circuitStatus(health *resilience.SiteHealth) models.CircuitStatus {
	cs := models.CircuitStatus{
		Site:    health.Name,
		Status:  breakerStatus(health.CircuitState),
		Circuit: health.CircuitState.String(),
	}
	if health.LastSuccessAt != nil {
		cs.LastSuccessAt = models.NewTimestamp(*health.LastSuccessAt)
	}
	if health.LastFailureAt != nil {
		cs.LastFailureAt = models.NewTimestamp(*health.LastFailureAt)
	}
	if health.LastError != "" {
		msg := health.LastError
		cs.Message = &msg
	}
	return cs
}

func breakerStatus(state gobreaker.State) models.HealthStatus {
	switch state {
	case gobreaker.StateOpen:
		return models.HealthStatusFail
	case gobreaker.StateHalfOpen:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	rank := map[models.HealthStatus]int{
		models.HealthStatusOK:       0,
		models.HealthStatusDegraded: 1,
		models.HealthStatusFail:     2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
