package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const probeMeterName = "github.com/wrmsprobe/wrmsprobe/internal/wrms"

// ProbeMetrics holds the instruments recorded for every probe.
type ProbeMetrics struct {
	duration metric.Float64Histogram
	results  metric.Int64Counter
	runs     metric.Int64Counter
}

// NewProbeMetrics creates probe instruments on the global meter provider.
func NewProbeMetrics() (*ProbeMetrics, error) {
	meter := otel.Meter(probeMeterName)

	duration, err := meter.Float64Histogram(
		"wrms.probe.duration",
		metric.WithDescription("Duration of a single probe in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	results, err := meter.Int64Counter(
		"wrms.probe.results",
		metric.WithDescription("Probe outcomes by site, probe and error kind"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, err
	}

	runs, err := meter.Int64Counter(
		"wrms.run.total",
		metric.WithDescription("Completed probe runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProbeMetrics{duration: duration, results: results, runs: runs}, nil
}

// RecordProbe records one probe outcome. A nil receiver is a no-op.
func (m *ProbeMetrics) RecordProbe(ctx context.Context, site, probe string, passed bool, kind string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("site.name", site),
		attribute.String("probe.name", probe),
		attribute.Bool("probe.passed", passed),
		attribute.String("error.kind", kind),
	)
	// Detached context so a cancelled run still gets recorded.
	ctx = context.WithoutCancel(ctx)
	m.duration.Record(ctx, d.Seconds(), attrs)
	m.results.Add(ctx, 1, attrs)
}

// RecordRun records a completed run. A nil receiver is a no-op.
func (m *ProbeMetrics) RecordRun(ctx context.Context, site string, passed, failed int) {
	if m == nil {
		return
	}
	m.runs.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String("site.name", site),
		attribute.Bool("run.ok", failed == 0),
		attribute.Int("run.passed", passed),
	))
}
