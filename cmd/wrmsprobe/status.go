package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/wrmsprobe/wrmsprobe/internal/provider/resilience"
	"github.com/wrmsprobe/wrmsprobe/internal/report"
	"github.com/wrmsprobe/wrmsprobe/internal/wrms"
)

// siteResources is what the status command fetches from a site.
type siteResources struct {
	Site    string             `json:"site"`
	Status  *wrms.SiteStatus   `json:"status"`
	Health  *wrms.HealthReport `json:"health"`
	Plugins []wrms.Plugin      `json:"plugins"`
	Updates *wrms.Updates      `json:"updates"`
}

func newStatusCmd(opts *options) *cobra.Command {
	var (
		site    siteFlags
		retries uint64
	)

	cmd := &cobra.Command{
		Use:   "status [site]",
		Short: "Show a site's status, health, plugins and pending updates",
		Long: `Fetch the status, health, plugins and updates resources from one site.
Unlike probes, these requests are retried with backoff on transient errors.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := site.clientConfig(opts, args)
			if err != nil {
				return err
			}

			name := cc.Name
			if name == "" {
				name = cc.BaseURL
			}
			httpCfg := resilience.DefaultClientConfig(name)
			httpCfg.MaxRetries = retries
			if cc.Timeout > 0 {
				httpCfg.Timeout = cc.Timeout
			}
			cc.HTTPClient = resilience.NewClient(httpCfg)

			client, err := wrms.NewClient(cc)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			res := siteResources{Site: client.Name()}
			if res.Status, err = client.Status(ctx); err != nil {
				return err
			}
			if res.Health, err = client.Health(ctx); err != nil {
				return err
			}
			if res.Plugins, err = client.Plugins(ctx); err != nil {
				return err
			}
			if res.Updates, err = client.Updates(ctx); err != nil {
				return err
			}

			if strings.EqualFold(opts.format, report.FormatJSON) {
				enc := json.NewEncoder(opts.out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			_, err = fmt.Fprintln(opts.out, renderResources(res))
			return err
		},
	}

	site.register(cmd)
	cmd.Flags().Uint64Var(&retries, "retries", 3, "retries per request on transient errors")
	return cmd
}

func renderResources(res siteResources) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle(res.Site)
	t.AppendHeader(table.Row{"Item", "Value"})

	t.AppendRows([]table.Row{
		{"WordPress", res.Status.WordPressVersion},
		{"PHP", res.Status.PHPVersion},
		{"Site URL", res.Status.SiteURL},
		{"Plugin", res.Status.PluginVersion},
		{"Health", res.Health.Status},
	})

	checks := make([]string, 0, len(res.Health.Checks))
	for name, check := range res.Health.Checks {
		checks = append(checks, name+"="+check.Status)
	}
	if len(checks) > 0 {
		sort.Strings(checks)
		t.AppendRow(table.Row{"Checks", strings.Join(checks, ", ")})
	}

	active := 0
	for _, p := range res.Plugins {
		if p.Active {
			active++
		}
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"Plugins", fmt.Sprintf("%d installed, %d active", len(res.Plugins), active)})

	pending := 0
	if res.Updates != nil {
		pending = res.Updates.Pending()
		if res.Updates.Core != nil {
			t.AppendRow(table.Row{"Core update", res.Updates.Core.CurrentVersion + " -> " + res.Updates.Core.NewVersion})
		}
		for _, u := range res.Updates.Plugins {
			t.AppendRow(table.Row{"Plugin update", u.Name + " " + u.CurrentVersion + " -> " + u.NewVersion})
		}
		for _, u := range res.Updates.Themes {
			t.AppendRow(table.Row{"Theme update", u.Name + " " + u.CurrentVersion + " -> " + u.NewVersion})
		}
	}
	t.AppendFooter(table.Row{"Pending updates", pending})

	return t.Render()
}
