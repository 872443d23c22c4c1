package wrms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// RunAll executes every probe once, in ProbeNames order, and returns the
// collected results. A probe that panics is recorded as an internal failure;
// the remaining probes still run.
func (c *Client) RunAll(ctx context.Context) *ResultSet {
	ctx, span := c.tracer.Start(ctx, "wrms.run")
	defer span.End()

	rs := &ResultSet{
		RunID:     uuid.New().String(),
		Site:      c.cfg.Name,
		BaseURL:   c.cfg.BaseURL,
		StartedAt: time.Now().UTC(),
		Results:   make([]ProbeResult, 0, len(probeOrder)),
	}
	span.SetAttributes(
		attribute.String("site.name", rs.Site),
		attribute.String("run.id", rs.RunID),
	)

	c.logger.Info().Str("run_id", rs.RunID).Msg("starting probe run")

	for _, name := range probeOrder {
		rs.add(c.runProbe(ctx, name))
	}

	rs.FinishedAt = time.Now().UTC()
	span.SetAttributes(
		attribute.Int("run.passed", rs.Passed),
		attribute.Int("run.failed", rs.Failed),
	)
	c.metrics.RecordRun(ctx, rs.Site, rs.Passed, rs.Failed)

	c.logger.Info().
		Str("run_id", rs.RunID).
		Int("passed", rs.Passed).
		Int("failed", rs.Failed).
		Dur("duration", rs.Duration()).
		Msg("probe run completed")

	return rs
}

// runProbe dispatches one probe by name, converting a panic into a failed
// result.
func (c *Client) runProbe(ctx context.Context, name string) (result ProbeResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error().
				Str("probe", name).
				Interface("panic", rec).
				Msg("probe panicked")
			result = ProbeResult{
				Name:     name,
				Err:      fmt.Errorf("probe %s panicked: %v", name, rec),
				Duration: time.Since(start),
			}
		}
	}()

	switch name {
	case ProbeConnectivity:
		return c.ProbeConnectivity(ctx)
	case ProbeAuthentication:
		return c.ProbeAuthentication(ctx)
	case ProbeDataShape:
		return c.ProbeDataShape(ctx)
	case ProbeEndpoints:
		return c.ProbeEndpoints(ctx)
	case ProbeNotFound:
		return c.ProbeNotFound(ctx)
	case ProbeRateLimit:
		return c.ProbeRateLimit(ctx, c.cfg.RateLimitRequests)
	default:
		return ProbeResult{Name: name, Err: fmt.Errorf("unknown probe %q", name)}
	}
}

// Run builds a client from cfg and executes RunAll. The only error returned
// is a *ConfigError; probe failures are reported in the ResultSet.
func Run(ctx context.Context, cfg ClientConfig) (*ResultSet, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return c.RunAll(ctx), nil
}

func jsonBody(b []byte) bool {
	return len(b) > 0 && json.Valid(b)
}
