// Package main provides the wrmsprobe command-line tool. It runs the probe
// suite against WRMS sites, fetches site resources and mints operator tokens
// for the status API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wrmsprobe/wrmsprobe/internal/config"
	"github.com/wrmsprobe/wrmsprobe/internal/logging"
	"github.com/wrmsprobe/wrmsprobe/internal/report"
	"github.com/wrmsprobe/wrmsprobe/internal/wrms"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// errProbesFailed is returned when every command step worked but at least
// one probe failed. It maps to exit code 1; other errors map to 2.
var errProbesFailed = errors.New("one or more probes failed")

// options are shared by every subcommand.
type options struct {
	configPath string
	format     string
	logLevel   string
	color      bool

	out io.Writer
	log zerolog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	switch {
	case err == nil:
	case errors.Is(err, errProbesFailed):
		os.Exit(1)
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &options{out: out}

	cmd := &cobra.Command{
		Use:           "wrmsprobe",
		Short:         "Verify WordPress sites running the remote management plugin",
		Version:       Version + " (built " + BuildTime + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.log = logging.New(logging.Options{
				Level:  opts.logLevel,
				Format: "console",
				Output: errOut,
			})
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.Path(""),
		"config file with the site list (default $CONFIG_PATH)")
	cmd.PersistentFlags().StringVarP(&opts.format, "format", "o", report.FormatTable,
		"output format: table or json")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")
	cmd.PersistentFlags().BoolVar(&opts.color, "color", false, "color verdicts in table output")

	cmd.AddCommand(
		newRunCmd(opts),
		newSweepCmd(opts),
		newStatusCmd(opts),
		newTokenCmd(opts),
	)
	return cmd
}

func (o *options) loadConfig() (*config.Config, error) {
	return config.Load(o.configPath)
}

// render writes sets in the selected format and returns errProbesFailed if
// any set has a failed probe.
func (o *options) render(sets ...*wrms.ResultSet) error {
	renderer, err := report.New(o.format)
	if err != nil {
		return err
	}
	if t, ok := renderer.(*report.TableRenderer); ok {
		t.Color = o.color
	}
	if err := renderer.Render(o.out, sets...); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}

	for _, rs := range sets {
		if rs != nil && !rs.OK() {
			return errProbesFailed
		}
	}
	return nil
}
