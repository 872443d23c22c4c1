// Package worker runs probe sweeps across a fleet of WordPress sites.
package worker

import (
	"time"

	"github.com/wrmsprobe/wrmsprobe/internal/wrms"
)

// SweepConfig holds configuration for a fleet sweep.
type SweepConfig struct {
	// Sites are the sites to probe, in report order.
	Sites []wrms.ClientConfig

	// Concurrency is the number of sites probed at once.
	// Default: 3
	Concurrency int

	// Timeout bounds one site's full probe run.
	// Default: 5 minutes
	Timeout time.Duration
}

// DefaultSweepConfig returns the default sweep configuration with no sites.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Concurrency: 3,
		Timeout:     5 * time.Minute,
	}
}

func (c SweepConfig) withDefaults() SweepConfig {
	d := DefaultSweepConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// TotalSites returns the number of configured sites.
func (c SweepConfig) TotalSites() int {
	return len(c.Sites)
}
