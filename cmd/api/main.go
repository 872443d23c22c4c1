// Package main provides the entrypoint for the wrmsprobe status API. It runs
// periodic sweeps over the configured sites and serves their latest results.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/wrmsprobe/wrmsprobe/internal/api"
	"github.com/wrmsprobe/wrmsprobe/internal/api/middleware"
	"github.com/wrmsprobe/wrmsprobe/internal/auth"
	"github.com/wrmsprobe/wrmsprobe/internal/config"
	"github.com/wrmsprobe/wrmsprobe/internal/logging"
	"github.com/wrmsprobe/wrmsprobe/internal/provider/resilience"
	"github.com/wrmsprobe/wrmsprobe/internal/telemetry"
	"github.com/wrmsprobe/wrmsprobe/internal/worker"
	"github.com/wrmsprobe/wrmsprobe/internal/wrms"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load(config.Path("config.yaml"))
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("failed to load configuration")
	}

	serviceName := cfg.Service.Name + "-api"
	log := logging.New(logging.Options{
		Service: serviceName,
		Version: Version,
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
	})

	log.Info().
		Str("build_time", BuildTime).
		Int("sites", len(cfg.Sites)).
		Msg("starting wrmsprobe API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Service.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		MetricInterval: cfg.Telemetry.Interval,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics(nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize HTTP metrics")
	}
	probeMetrics, err := telemetry.NewProbeMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize probe metrics")
	}

	// Results are optionally fanned out to Pub/Sub subscribers.
	var publisher worker.ResultPublisher
	if cfg.PubSub.Enabled() && cfg.PubSub.ResultsTopic != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub client")
		}
		defer client.Close()

		p := worker.NewPubSubPublisher(client, cfg.PubSub.ResultsTopic, log)
		defer p.Stop()
		publisher = p

		log.Info().
			Str("project", cfg.PubSub.ProjectID).
			Str("topic", cfg.PubSub.ResultsTopic).
			Msg("publishing results to pubsub")
	}

	registry := resilience.NewRegistry()
	sites := make([]wrms.ClientConfig, 0, len(cfg.Sites))
	for _, site := range cfg.Sites {
		sites = append(sites, cfg.ClientConfig(site))
	}

	sweep, err := worker.NewSweepJob(worker.SweepJobConfig{
		Config: worker.SweepConfig{
			Sites:       sites,
			Concurrency: cfg.Sweep.Concurrency,
			Timeout:     cfg.Sweep.Timeout,
		},
		Logger:    log,
		Registry:  registry,
		Metrics:   probeMetrics,
		Publisher: publisher,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create sweep job")
	}

	if cfg.Auth.SigningKey == "" {
		cfg.Auth.SigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	tokens := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.Auth.SigningKey,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		TTL:        cfg.Auth.TokenTTL,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:    Version,
		BuildTime:  BuildTime,
		Logger:     log,
		Metrics:    httpMetrics,
		RequireTLS: cfg.Service.RequireTLS,
		Tokens:     tokens,
		Sweep:      sweep,
		Registry:   registry,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Service.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Synchronous site runs can take a full probe cycle.
		WriteTimeout: cfg.Sweep.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if len(cfg.Sites) > 0 {
		go sweep.Schedule(ctx, cfg.Sweep.Interval)
		log.Info().
			Dur("interval", cfg.Sweep.Interval).
			Int("concurrency", cfg.Sweep.Concurrency).
			Msg("sweep scheduler started")
	} else {
		log.Warn().Msg("no sites configured - sweeps disabled")
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().
		Interface("stats", sweep.StatsSnapshot()).
		Msg("server stopped")
}
