package wrms

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Probe names.
const (
	ProbeConnectivity   = "connectivity"
	ProbeAuthentication = "authentication"
	ProbeDataShape      = "data-shape"
	ProbeEndpoints      = "endpoints"
	ProbeNotFound       = "not-found"
	ProbeRateLimit      = "rate-limit"
)

// InvalidAPIKey is sent by the authentication probe and must be rejected.
const InvalidAPIKey = "wrong-key"

// probeOrder is the order RunAll executes probes in. The rate-limit probe
// runs last so throttling cannot leak into other probes.
var probeOrder = []string{
	ProbeConnectivity,
	ProbeAuthentication,
	ProbeDataShape,
	ProbeEndpoints,
	ProbeNotFound,
	ProbeRateLimit,
}

// ProbeNames returns the probe names in run order.
func ProbeNames() []string {
	names := make([]string, len(probeOrder))
	copy(names, probeOrder)
	return names
}

// observe wraps a probe body with tracing, timing, logging and metrics.
func (c *Client) observe(ctx context.Context, name string, fn func(ctx context.Context) (any, error)) ProbeResult {
	ctx, span := c.tracer.Start(ctx, "wrms.probe "+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("site.name", c.cfg.Name),
			attribute.String("probe.name", name),
		),
	)
	defer span.End()

	start := time.Now()
	detail, err := fn(ctx)
	result := ProbeResult{
		Name:     name,
		Passed:   err == nil,
		Detail:   detail,
		Err:      err,
		Duration: time.Since(start),
	}

	span.SetAttributes(attribute.Bool("probe.passed", result.Passed))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(result.Kind()))
		c.logger.Warn().
			Err(err).
			Str("probe", name).
			Str("kind", string(result.Kind())).
			Dur("duration", result.Duration).
			Msg("probe failed")
	} else {
		c.logger.Debug().
			Str("probe", name).
			Dur("duration", result.Duration).
			Msg("probe passed")
	}

	c.metrics.RecordProbe(ctx, c.cfg.Name, name, result.Passed, string(result.Kind()), result.Duration)
	return result
}

// ProbeConnectivity fetches the status resource and passes when it answers
// 200 with a JSON object.
func (c *Client) ProbeConnectivity(ctx context.Context) ProbeResult {
	return c.observe(ctx, ProbeConnectivity, func(ctx context.Context) (any, error) {
		r, err := c.get(ctx, ResourceStatus, c.cfg.APIKey)
		if err != nil {
			return nil, err
		}
		if r.StatusCode != http.StatusOK {
			return nil, &ProtocolError{StatusCode: r.StatusCode, Reason: "status endpoint did not answer 200"}
		}
		obj, err := decodeObject(r)
		if err != nil {
			return nil, err
		}
		return obj, nil
	})
}

// ProbeAuthentication sends one request with the configured key, which must
// succeed, and one with InvalidAPIKey, which must be rejected with 401/403.
func (c *Client) ProbeAuthentication(ctx context.Context) ProbeResult {
	return c.observe(ctx, ProbeAuthentication, func(ctx context.Context) (any, error) {
		detail := AuthDetail{}

		valid, validErr := c.get(ctx, ResourceStatus, c.cfg.APIKey)
		if valid != nil {
			detail.ValidKeyStatus = valid.StatusCode
			if obj, err := decodeObject(valid); err == nil {
				if s, ok := obj["site_url"].(string); ok {
					detail.SiteURL = s
				}
			}
		}

		invalid, invalidErr := c.get(ctx, ResourceStatus, InvalidAPIKey)
		if invalid != nil {
			detail.InvalidKeyStatus = invalid.StatusCode
		}

		switch {
		case validErr != nil:
			return detail, validErr
		case valid.StatusCode != http.StatusOK:
			return detail, &ProtocolError{StatusCode: valid.StatusCode, Reason: "configured key was rejected"}
		case invalidErr != nil:
			return detail, invalidErr
		case invalid.StatusCode != http.StatusUnauthorized && invalid.StatusCode != http.StatusForbidden:
			return detail, &ProtocolError{
				StatusCode: invalid.StatusCode,
				Reason:     "request with an invalid key must answer 401 or 403",
				Err:        ErrKeyNotEnforced,
			}
		}
		return detail, nil
	})
}

// ProbeRateLimit fires n concurrent status requests and waits for all of
// them. It passes when every request succeeded (no throttling configured)
// or when at least one was throttled with 429.
func (c *Client) ProbeRateLimit(ctx context.Context, n int) ProbeResult {
	if n < 1 {
		n = 1
	}

	return c.observe(ctx, ProbeRateLimit, func(ctx context.Context) (any, error) {
		statuses := make([]int, n)
		errs := make([]error, n)

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				r, err := c.get(ctx, ResourceStatus, c.cfg.APIKey)
				if err != nil {
					errs[i] = err
					return
				}
				statuses[i] = r.StatusCode
			}(i)
		}
		wg.Wait()

		detail := RateLimitDetail{Requested: n}
		var firstErr error
		for i := 0; i < n; i++ {
			switch {
			case errs[i] != nil:
				detail.Failed++
				detail.Errors = append(detail.Errors, errs[i].Error())
				if firstErr == nil {
					firstErr = errs[i]
				}
			case statuses[i] == http.StatusOK:
				detail.Successful++
			case statuses[i] == http.StatusTooManyRequests:
				detail.RateLimited++
			default:
				detail.Failed++
				detail.Errors = append(detail.Errors, fmt.Sprintf("unexpected status %d", statuses[i]))
				if firstErr == nil {
					firstErr = &ProtocolError{StatusCode: statuses[i], Reason: "unexpected status under load"}
				}
			}
		}

		if detail.Successful == n || detail.Throttled() {
			return detail, nil
		}
		if firstErr == nil {
			firstErr = &ProtocolError{Reason: "no request succeeded and none was throttled"}
		}
		return detail, firstErr
	})
}

// ProbeDataShape fetches the status resource and checks that every field is
// present and not null. With no fields the configured RequiredFields are used.
func (c *Client) ProbeDataShape(ctx context.Context, fields ...string) ProbeResult {
	required := c.cfg.RequiredFields
	if len(fields) > 0 {
		required = dedupe(fields)
	}

	return c.observe(ctx, ProbeDataShape, func(ctx context.Context) (any, error) {
		detail := DataShapeDetail{Required: required}

		r, err := c.get(ctx, ResourceStatus, c.cfg.APIKey)
		if err != nil {
			return detail, err
		}
		if r.StatusCode != http.StatusOK {
			return detail, &ProtocolError{StatusCode: r.StatusCode, Reason: "status endpoint did not answer 200"}
		}
		obj, err := decodeObject(r)
		if err != nil {
			return detail, err
		}

		for _, f := range required {
			if v, ok := obj[f]; !ok || v == nil {
				detail.Missing = append(detail.Missing, f)
			}
		}
		if len(detail.Missing) > 0 {
			return detail, &SchemaError{Missing: detail.Missing}
		}
		return detail, nil
	})
}

// ProbeEndpoints checks that the health, plugins and updates resources each
// answer 200 with a JSON body.
func (c *Client) ProbeEndpoints(ctx context.Context) ProbeResult {
	return c.observe(ctx, ProbeEndpoints, func(ctx context.Context) (any, error) {
		detail := EndpointsDetail{}
		var firstErr error

		for _, resource := range []string{ResourceHealth, ResourcePlugins, ResourceUpdates} {
			r, err := c.get(ctx, resource, c.cfg.APIKey)
			if err != nil {
				detail[resource] = 0
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			detail[resource] = r.StatusCode

			if r.StatusCode != http.StatusOK {
				if firstErr == nil {
					firstErr = &ProtocolError{StatusCode: r.StatusCode, Reason: resource + " did not answer 200"}
				}
				continue
			}
			if !jsonBody(r.Body) {
				if firstErr == nil {
					firstErr = &ProtocolError{StatusCode: r.StatusCode, Reason: resource + " body is not JSON"}
				}
			}
		}
		return detail, firstErr
	})
}

// ProbeNotFound requests a resource that cannot exist and passes only on 404.
func (c *Client) ProbeNotFound(ctx context.Context) ProbeResult {
	return c.observe(ctx, ProbeNotFound, func(ctx context.Context) (any, error) {
		detail := NotFoundDetail{Path: c.notFoundPath()}

		r, err := c.get(ctx, resourceMissing, c.cfg.APIKey)
		if err != nil {
			return detail, err
		}
		detail.StatusCode = r.StatusCode
		if r.StatusCode != http.StatusNotFound {
			return detail, &ProtocolError{StatusCode: r.StatusCode, Reason: "unknown resource must answer 404"}
		}
		return detail, nil
	})
}

func (c *Client) notFoundPath() string {
	u, err := url.Parse(c.endpoint(resourceMissing))
	if err != nil {
		return ""
	}
	return u.Path
}
