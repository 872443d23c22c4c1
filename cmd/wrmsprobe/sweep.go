package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wrmsprobe/wrmsprobe/internal/provider/resilience"
	"github.com/wrmsprobe/wrmsprobe/internal/worker"
	"github.com/wrmsprobe/wrmsprobe/internal/wrms"
)

func newSweepCmd(opts *options) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "sweep [site...]",
		Short: "Run every probe against the configured sites",
		Long: `Probe every site in the config file, or only the named ones, with
bounded concurrency and print one report per site followed by a summary.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			var sites []wrms.ClientConfig
			if len(args) == 0 {
				for _, site := range cfg.Sites {
					sites = append(sites, cfg.ClientConfig(site))
				}
			}
			for _, name := range args {
				site, ok := cfg.Site(name)
				if !ok {
					return fmt.Errorf("unknown site %q", name)
				}
				sites = append(sites, cfg.ClientConfig(site))
			}
			if len(sites) == 0 {
				return errors.New("no sites configured")
			}

			sweepCfg := worker.SweepConfig{
				Sites:       sites,
				Concurrency: cfg.Sweep.Concurrency,
				Timeout:     cfg.Sweep.Timeout,
			}
			if concurrency > 0 {
				sweepCfg.Concurrency = concurrency
			}

			job, err := worker.NewSweepJob(worker.SweepJobConfig{
				Config:   sweepCfg,
				Logger:   opts.log,
				Registry: resilience.NewRegistry(),
			})
			if err != nil {
				return err
			}

			result := job.Run(cmd.Context())
			if err := opts.render(result.Results...); err != nil {
				return err
			}
			if len(result.Results) < result.TotalSites {
				return fmt.Errorf("sweep interrupted after %d of %d sites: %w",
					len(result.Results), result.TotalSites, cmd.Context().Err())
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "sites probed at once (default from config)")
	return cmd
}
