package wrms

import (
	"encoding/json"
	"time"
)

// ProbeResult is the outcome of one probe. Detail holds structured data
// describing what was observed; Err is set when the probe failed.
type ProbeResult struct {
	Name     string
	Passed   bool
	Detail   any
	Err      error
	Duration time.Duration
}

// Kind classifies the failure, or KindNone for a passed probe.
func (r ProbeResult) Kind() ErrorKind {
	return Kind(r.Err)
}

type probeResultJSON struct {
	Name       string    `json:"name"`
	Passed     bool      `json:"passed"`
	Detail     any       `json:"detail,omitempty"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// MarshalJSON flattens Err into its message and kind.
func (r ProbeResult) MarshalJSON() ([]byte, error) {
	out := probeResultJSON{
		Name:       r.Name,
		Passed:     r.Passed,
		Detail:     r.Detail,
		ErrorKind:  r.Kind(),
		DurationMS: r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// ResultSet is the ordered outcome of one run against one site.
type ResultSet struct {
	RunID      string        `json:"run_id"`
	Site       string        `json:"site"`
	BaseURL    string        `json:"base_url"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Results    []ProbeResult `json:"results"`
	Passed     int           `json:"passed"`
	Failed     int           `json:"failed"`
}

// add appends r and updates the aggregate counts.
func (rs *ResultSet) add(r ProbeResult) {
	rs.Results = append(rs.Results, r)
	if r.Passed {
		rs.Passed++
	} else {
		rs.Failed++
	}
}

// OK reports whether every probe passed.
func (rs *ResultSet) OK() bool {
	return rs.Failed == 0 && len(rs.Results) > 0
}

// Total returns the number of probes in the set.
func (rs *ResultSet) Total() int {
	return len(rs.Results)
}

// Duration returns the wall time of the run.
func (rs *ResultSet) Duration() time.Duration {
	return rs.FinishedAt.Sub(rs.StartedAt)
}

// Result returns the result of the named probe.
func (rs *ResultSet) Result(name string) (ProbeResult, bool) {
	for _, r := range rs.Results {
		if r.Name == name {
			return r, true
		}
	}
	return ProbeResult{}, false
}

// Failures returns the failed results in run order.
func (rs *ResultSet) Failures() []ProbeResult {
	var failed []ProbeResult
	for _, r := range rs.Results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// AuthDetail is recorded by the authentication probe.
type AuthDetail struct {
	ValidKeyStatus   int    `json:"valid_key_status"`
	InvalidKeyStatus int    `json:"invalid_key_status"`
	SiteURL          string `json:"site_url,omitempty"`
}

// RateLimitDetail is recorded by the rate-limit probe.
type RateLimitDetail struct {
	Requested   int      `json:"requested"`
	Successful  int      `json:"successful"`
	RateLimited int      `json:"rate_limited"`
	Failed      int      `json:"failed"`
	Errors      []string `json:"errors,omitempty"`
}

// Throttled reports whether the site throttled at least one request.
func (d RateLimitDetail) Throttled() bool {
	return d.RateLimited > 0
}

// DataShapeDetail is recorded by the data-shape probe.
type DataShapeDetail struct {
	Required []string `json:"required"`
	Missing  []string `json:"missing,omitempty"`
}

// NotFoundDetail is recorded by the not-found probe.
type NotFoundDetail struct {
	Path       string `json:"path"`
	StatusCode int    `json:"status_code"`
}

// EndpointsDetail maps each secondary resource to the status it answered
// with; zero means the request never completed.
type EndpointsDetail map[string]int
