package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wrmsprobe/wrmsprobe/internal/wrms"
)

// siteFlags select a single site, either ad hoc with --url or by name from
// the config file. Flags given alongside a named site override its config.
type siteFlags struct {
	url       string
	key       string
	header    string
	namespace string
	timeout   time.Duration
}

func (f *siteFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", "", "site base URL, e.g. https://example.com")
	cmd.Flags().StringVar(&f.key, "key", "", "plugin API key (default $WRMS_API_KEY)")
	cmd.Flags().StringVar(&f.header, "header", "", "API key header: "+wrms.HeaderAPIKey+" or "+wrms.HeaderAPIKeyAlias)
	cmd.Flags().StringVar(&f.namespace, "namespace", "", "REST namespace (default wrms)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "per-request timeout (default 30s)")
}

func (f *siteFlags) clientConfig(opts *options, args []string) (wrms.ClientConfig, error) {
	var cc wrms.ClientConfig

	switch {
	case f.url != "":
		if len(args) > 0 {
			cc.Name = args[0]
		}
		cc.BaseURL = f.url
		cc.APIKey = os.Getenv("WRMS_API_KEY")

	case len(args) == 1:
		cfg, err := opts.loadConfig()
		if err != nil {
			return cc, err
		}
		site, ok := cfg.Site(args[0])
		if !ok {
			return cc, fmt.Errorf("unknown site %q", args[0])
		}
		cc = cfg.ClientConfig(site)

	default:
		return cc, errors.New("either --url or a configured site name is required")
	}

	if f.key != "" {
		cc.APIKey = f.key
	}
	if f.header != "" {
		cc.HeaderName = f.header
	}
	if f.namespace != "" {
		cc.Namespace = f.namespace
	}
	if f.timeout > 0 {
		cc.Timeout = f.timeout
	}
	cc.Logger = opts.log
	return cc, nil
}
