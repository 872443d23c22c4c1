package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/wrmsprobe/wrmsprobe/internal/api/middleware"
	"github.com/wrmsprobe/wrmsprobe/internal/api/models"
	"github.com/wrmsprobe/wrmsprobe/internal/api/response"
	"github.com/wrmsprobe/wrmsprobe/internal/provider/resilience"
	"github.com/wrmsprobe/wrmsprobe/internal/worker"
	"github.com/wrmsprobe/wrmsprobe/internal/wrms"
)

// SitesHandler serves the latest results per site and triggers runs.
type SitesHandler struct {
	sweep    *worker.SweepJob
	registry *resilience.Registry
	logger   zerolog.Logger
}

// NewSitesHandler creates a new SitesHandler. registry may be nil.
func NewSitesHandler(sweep *worker.SweepJob, registry *resilience.Registry, logger zerolog.Logger) *SitesHandler {
	return &SitesHandler{
		sweep:    sweep,
		registry: registry,
		logger:   logger,
	}
}

// ListSites handles GET /v1/sites.
func (h *SitesHandler) ListSites(w http.ResponseWriter, r *http.Request) {
	names := h.sweep.Sites()
	list := models.SiteList{
		Items: make([]models.SiteSummary, 0, len(names)),
		Total: len(names),
	}
	for _, name := range names {
		list.Items = append(list.Items, h.summary(name))
	}
	response.JSON(w, r, http.StatusOK, list)
}

// GetSite handles GET /v1/sites/{site} and returns the latest result set.
func (h *SitesHandler) GetSite(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "site")
	if _, ok := h.sweep.Client(name); !ok {
		response.NotFound(w, r, "unknown site "+name)
		return
	}

	rs, ok := h.sweep.Store().Latest(name)
	if !ok {
		response.NotFound(w, r, "site "+name+" has not been checked yet")
		return
	}
	response.JSON(w, r, http.StatusOK, rs)
}

// RunSite handles POST /v1/sites/{site}/runs. The run is synchronous and
// the new result set is returned.
func (h *SitesHandler) RunSite(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "site")

	h.logger.Info().
		Str("site", name).
		Str("operator", middleware.GetOperator(r.Context())).
		Msg("run requested")

	rs, err := h.sweep.RunSite(r.Context(), name)
	if err != nil {
		if errors.Is(err, worker.ErrUnknownSite) {
			response.NotFound(w, r, "unknown site "+name)
			return
		}
		response.InternalError(w, r, "run failed")
		return
	}
	response.Created(w, r, "/v1/sites/"+name, rs)
}

// StartSweep handles POST /v1/sweeps. The sweep runs in the background and
// outlives the request.
func (h *SitesHandler) StartSweep(w http.ResponseWriter, r *http.Request) {
	operator := middleware.GetOperator(r.Context())

	started := time.Now()
	if _, err := h.sweep.Start(context.WithoutCancel(r.Context())); err != nil {
		if errors.Is(err, worker.ErrSweepInProgress) {
			response.Conflict(w, r, "a sweep is already in progress")
			return
		}
		response.InternalError(w, r, "could not start sweep")
		return
	}

	h.logger.Info().Str("operator", operator).Msg("sweep started")

	response.Accepted(w, r, "/v1/ops/status", models.SweepAccepted{
		Sites:     h.sweep.Sites(),
		StartedAt: models.Timestamp(started),
	})
}

func (h *SitesHandler) summary(name string) models.SiteSummary {
	s := models.SiteSummary{Name: name, Status: models.HealthStatusUnknown}
	if client, ok := h.sweep.Client(name); ok {
		s.BaseURL = client.BaseURL()
	}

	if h.registry != nil {
		if health := h.registry.GetHealth(name); health != nil {
			s.Circuit = health.CircuitState.String()
		}
	}

	rs, ok := h.sweep.Store().Latest(name)
	if !ok {
		return s
	}

	runID := rs.RunID
	s.LastRunID = &runID
	s.LastRunAt = models.NewTimestamp(rs.FinishedAt)
	s.Passed = rs.Passed
	s.Failed = rs.Failed
	s.Status = resultStatus(rs)
	for _, f := range rs.Failures() {
		s.FailedProbes = append(s.FailedProbes, f.Name)
	}
	return s
}

func resultStatus(rs *wrms.ResultSet) models.HealthStatus {
	if rs.OK() {
		return models.HealthStatusOK
	}
	if result, ok := rs.Result(wrms.ProbeConnectivity); ok && !result.Passed {
		return models.HealthStatusFail
	}
	return models.HealthStatusDegraded
}
