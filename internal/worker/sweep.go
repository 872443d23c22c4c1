package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/wrmsprobe/wrmsprobe/internal/provider/resilience"
	"github.com/wrmsprobe/wrmsprobe/internal/telemetry"
	"github.com/wrmsprobe/wrmsprobe/internal/wrms"
)

var (
	// ErrUnknownSite is returned when a site name is not configured.
	ErrUnknownSite = errors.New("unknown site")

	// ErrSweepInProgress is returned by Start while another sweep runs.
	ErrSweepInProgress = errors.New("sweep already in progress")
)

// ResultPublisher sends finished result sets elsewhere.
type ResultPublisher interface {
	Publish(ctx context.Context, rs *wrms.ResultSet) error
}

// SweepJob probes every configured site with bounded concurrency.
type SweepJob struct {
	config    SweepConfig
	logger    zerolog.Logger
	store     *Store
	publisher ResultPublisher

	// clients are built once so breaker state carries across sweeps.
	clients map[string]*wrms.Client
	order   []string

	stats  *SweepStats
	active atomic.Int32
}

// SweepStats tracks sweep job statistics.
type SweepStats struct {
	mu sync.RWMutex

	TotalSweeps     int64
	SiteRuns        int64
	HealthyRuns     int64
	UnhealthyRuns   int64
	PublishFailures int64

	LastSweepAt       time.Time
	LastSweepDuration time.Duration
	TotalDuration     time.Duration
}

// SweepJobConfig holds configuration for creating a SweepJob.
type SweepJobConfig struct {
	Config    SweepConfig
	Logger    zerolog.Logger
	Registry  *resilience.Registry
	Metrics   *telemetry.ProbeMetrics
	Store     *Store
	Publisher ResultPublisher
}

// NewSweepJob creates a sweep job. It fails with a *wrms.ConfigError if any
// site is misconfigured, or if two sites share a name.
func NewSweepJob(cfg SweepJobConfig) (*SweepJob, error) {
	config := cfg.Config.withDefaults()

	store := cfg.Store
	if store == nil {
		store = NewStore()
	}

	j := &SweepJob{
		config:    config,
		logger:    cfg.Logger,
		store:     store,
		publisher: cfg.Publisher,
		clients:   make(map[string]*wrms.Client, len(config.Sites)),
		stats:     &SweepStats{},
	}

	for _, site := range config.Sites {
		site.Registry = cfg.Registry
		site.Metrics = cfg.Metrics
		site.Logger = cfg.Logger

		client, err := wrms.NewClient(site)
		if err != nil {
			return nil, err
		}
		if _, dup := j.clients[client.Name()]; dup {
			return nil, &wrms.ConfigError{Field: "name", Reason: fmt.Sprintf("duplicate site %q", client.Name())}
		}
		j.clients[client.Name()] = client
		j.order = append(j.order, client.Name())
	}

	return j, nil
}

// Sites returns the configured site names in report order.
func (j *SweepJob) Sites() []string {
	out := make([]string, len(j.order))
	copy(out, j.order)
	return out
}

// Client returns the client for a configured site.
func (j *SweepJob) Client(name string) (*wrms.Client, bool) {
	c, ok := j.clients[name]
	return c, ok
}

// Store returns the store results are written to.
func (j *SweepJob) Store() *Store {
	return j.store
}

// SweepResult contains the result of one sweep.
type SweepResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	TotalSites int
	Healthy    int
	Unhealthy  int

	// Results are in report order. A site skipped because the sweep was
	// cancelled has no entry.
	Results []*wrms.ResultSet
	Errors  []SweepError
}

// SweepError records a failure that is not a probe failure, such as a
// result that could not be published.
type SweepError struct {
	Site  string
	Error string
}

// Run probes every configured site and waits for the sweep to finish.
func (j *SweepJob) Run(ctx context.Context) *SweepResult {
	j.active.Add(1)
	defer j.active.Add(-1)
	return j.sweep(ctx)
}

// Start begins a sweep in the background unless one is already running.
// The channel receives the result once the sweep finishes.
func (j *SweepJob) Start(ctx context.Context) (<-chan *SweepResult, error) {
	if !j.active.CompareAndSwap(0, 1) {
		return nil, ErrSweepInProgress
	}

	done := make(chan *SweepResult, 1)
	go func() {
		result := j.sweep(ctx)
		j.active.Add(-1)
		done <- result
		close(done)
	}()
	return done, nil
}

// Running reports whether a sweep is in progress.
func (j *SweepJob) Running() bool {
	return j.active.Load() > 0
}

func (j *SweepJob) sweep(ctx context.Context) *SweepResult {
	startTime := time.Now()
	result := &SweepResult{
		StartTime:  startTime,
		TotalSites: len(j.order),
	}

	j.logger.Info().
		Int("total_sites", result.TotalSites).
		Int("concurrency", j.config.Concurrency).
		Msg("starting sweep")

	sites := make(chan int, len(j.order))
	outcomes := make([]siteOutcome, len(j.order))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.sweepWorker(ctx, sites, outcomes)
		}()
	}

	for i := range j.order {
		sites <- i
	}
	close(sites)
	wg.Wait()

	for _, o := range outcomes {
		if o.rs == nil {
			continue
		}
		result.Results = append(result.Results, o.rs)
		if o.rs.OK() {
			result.Healthy++
		} else {
			result.Unhealthy++
		}
		if o.publishErr != nil {
			result.Errors = append(result.Errors, SweepError{Site: o.rs.Site, Error: o.publishErr.Error()})
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateStats(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("healthy", result.Healthy).
		Int("unhealthy", result.Unhealthy).
		Int("errors", len(result.Errors)).
		Msg("sweep completed")

	return result
}

type siteOutcome struct {
	rs         *wrms.ResultSet
	publishErr error
}

func (j *SweepJob) sweepWorker(ctx context.Context, sites <-chan int, outcomes []siteOutcome) {
	for i := range sites {
		select {
		case <-ctx.Done():
			return
		default:
			rs, err := j.runSite(ctx, j.clients[j.order[i]])
			outcomes[i] = siteOutcome{rs: rs, publishErr: err}
		}
	}
}

// RunSite probes one site by name outside of a sweep.
func (j *SweepJob) RunSite(ctx context.Context, name string) (*wrms.ResultSet, error) {
	client, ok := j.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSite, name)
	}

	rs, err := j.runSite(ctx, client)
	if err != nil {
		j.logger.Warn().Err(err).Str("site", name).Msg("failed to publish result")
	}
	j.updateStats(&SweepResult{Results: []*wrms.ResultSet{rs}, Errors: publishErrors(rs, err)})
	return rs, nil
}

// runSite runs every probe against one site, stores the result and
// publishes it. The returned error is a publish failure only.
func (j *SweepJob) runSite(ctx context.Context, client *wrms.Client) (*wrms.ResultSet, error) {
	siteCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	rs := client.RunAll(siteCtx)
	j.store.Put(rs)

	if j.publisher == nil {
		return rs, nil
	}
	if err := j.publisher.Publish(ctx, rs); err != nil {
		return rs, fmt.Errorf("publishing %s result: %w", rs.Site, err)
	}
	return rs, nil
}

func publishErrors(rs *wrms.ResultSet, err error) []SweepError {
	if err == nil {
		return nil
	}
	return []SweepError{{Site: rs.Site, Error: err.Error()}}
}

func (j *SweepJob) updateStats(result *SweepResult) {
	j.stats.mu.Lock()
	defer j.stats.mu.Unlock()

	for _, rs := range result.Results {
		j.stats.SiteRuns++
		if rs.OK() {
			j.stats.HealthyRuns++
		} else {
			j.stats.UnhealthyRuns++
		}
	}
	j.stats.PublishFailures += int64(len(result.Errors))

	// Single-site runs carry no timing.
	if !result.StartTime.IsZero() {
		j.stats.TotalSweeps++
		j.stats.LastSweepAt = result.EndTime
		j.stats.LastSweepDuration = result.Duration
		j.stats.TotalDuration += result.Duration
	}
}

// GetStats returns a copy of the current statistics.
func (j *SweepJob) GetStats() SweepStats {
	j.stats.mu.RLock()
	defer j.stats.mu.RUnlock()

	return SweepStats{
		TotalSweeps:       j.stats.TotalSweeps,
		SiteRuns:          j.stats.SiteRuns,
		HealthyRuns:       j.stats.HealthyRuns,
		UnhealthyRuns:     j.stats.UnhealthyRuns,
		PublishFailures:   j.stats.PublishFailures,
		LastSweepAt:       j.stats.LastSweepAt,
		LastSweepDuration: j.stats.LastSweepDuration,
		TotalDuration:     j.stats.TotalDuration,
	}
}

// StatsSnapshot returns the current statistics as a map.
func (j *SweepJob) StatsSnapshot() map[string]interface{} {
	s := j.GetStats()
	return map[string]interface{}{
		"total_sweeps":        s.TotalSweeps,
		"site_runs":           s.SiteRuns,
		"healthy_runs":        s.HealthyRuns,
		"unhealthy_runs":      s.UnhealthyRuns,
		"publish_failures":    s.PublishFailures,
		"last_sweep_at":       s.LastSweepAt,
		"last_sweep_duration": s.LastSweepDuration.String(),
		"total_duration":      s.TotalDuration.String(),
	}
}

// Schedule runs a sweep immediately and then every interval until ctx is
// cancelled.
func (j *SweepJob) Schedule(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
