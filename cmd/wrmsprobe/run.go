package main

import (
	"github.com/spf13/cobra"

	"github.com/wrmsprobe/wrmsprobe/internal/wrms"
)

func newRunCmd(opts *options) *cobra.Command {
	var (
		site     siteFlags
		fields   []string
		requests int
	)

	cmd := &cobra.Command{
		Use:   "run [site]",
		Short: "Run every probe against one site",
		Long: `Run connectivity, authentication, data-shape, endpoints, not-found and
rate-limit probes against one site and print the report.

The site is either given ad hoc with --url and --key, or named from the
config file. The exit code is 1 when any probe fails.`,
		Example: `  wrmsprobe run --url https://example.com --key abc123
  wrmsprobe run shop --config sites.yaml -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := site.clientConfig(opts, args)
			if err != nil {
				return err
			}
			if len(fields) > 0 {
				cc.RequiredFields = fields
			}
			if requests > 0 {
				cc.RateLimitRequests = requests
			}

			rs, err := wrms.Run(cmd.Context(), cc)
			if err != nil {
				return err
			}
			return opts.render(rs)
		},
	}

	site.register(cmd)
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "status fields the data-shape probe requires")
	cmd.Flags().IntVar(&requests, "requests", 0, "concurrent requests sent by the rate-limit probe (default 5)")
	return cmd
}
