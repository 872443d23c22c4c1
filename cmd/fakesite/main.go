// Package main serves a fake WRMS site for trying the probes locally.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wrmsprobe/wrmsprobe/internal/fakesite"
	"github.com/wrmsprobe/wrmsprobe/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		addr     string
		logLevel string
		cfg      fakesite.Config
	)

	cmd := &cobra.Command{
		Use:   "fakesite",
		Short: "Serve a fake WordPress site running the remote management plugin",
		Example: `  fakesite --key abc123 --omit php_version --rate-limit 3
  wrmsprobe run --url http://localhost:8081 --key abc123`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.APIKey == "" && !cfg.SkipAuth {
				return errors.New("--key is required unless --skip-auth is set")
			}

			log := logging.New(logging.Options{
				Service: "fakesite",
				Level:   logLevel,
				Format:  "console",
			})

			site := fakesite.New(cfg)
			server := &http.Server{
				Addr:              addr,
				Handler:           site,
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().
					Str("addr", addr).
					Str("namespace", cfg.Namespace).
					Strs("omit", cfg.OmitFields).
					Int("rate_limit", cfg.RateLimit).
					Msg("fake site listening")
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-cmd.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutting down: %w", err)
			}
			log.Info().Int64("hits", site.Hits()).Msg("fake site stopped")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":8081", "listen address")
	f.StringVar(&logLevel, "log-level", "info", "log level")
	f.StringVar(&cfg.APIKey, "key", os.Getenv("WRMS_API_KEY"), "API key the site accepts")
	f.StringVar(&cfg.Namespace, "namespace", "wrms", "REST namespace")
	f.IntVar(&cfg.BadKeyStatus, "bad-key-status", http.StatusForbidden, "status returned for a wrong key")
	f.BoolVar(&cfg.SkipAuth, "skip-auth", false, "accept every request regardless of key")
	f.IntVar(&cfg.RateLimit, "rate-limit", 0, "requests allowed per window across all clients (0 disables)")
	f.DurationVar(&cfg.RateWindow, "rate-window", time.Minute, "rate limit window")
	f.DurationVar(&cfg.Latency, "latency", 0, "delay added to every response")
	f.StringSliceVar(&cfg.OmitFields, "omit", nil, "status fields to leave out")
	return cmd
}
