// Package main provides the entrypoint for the wrmsprobe worker. The worker
// receives sweep and site_check jobs from Pub/Sub and publishes every result
// set to the results topic.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/wrmsprobe/wrmsprobe/internal/config"
	"github.com/wrmsprobe/wrmsprobe/internal/logging"
	"github.com/wrmsprobe/wrmsprobe/internal/provider/resilience"
	"github.com/wrmsprobe/wrmsprobe/internal/telemetry"
	"github.com/wrmsprobe/wrmsprobe/internal/worker"
	"github.com/wrmsprobe/wrmsprobe/internal/wrms"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load(config.Path("config.yaml"))
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("failed to load configuration")
	}

	serviceName := cfg.Service.Name + "-worker"
	log := logging.New(logging.Options{
		Service: serviceName,
		Version: Version,
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
	})

	log.Info().
		Str("build_time", BuildTime).
		Int("sites", len(cfg.Sites)).
		Msg("starting wrmsprobe worker")

	if !cfg.PubSub.Enabled() || cfg.PubSub.Subscription == "" {
		log.Fatal().Msg("pubsub.project_id and pubsub.subscription are required")
	}

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

	probeMetrics, err := telemetry.NewProbeMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize probe metrics")
	}

	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub client")
	}
	defer client.Close()

	var publisher worker.ResultPublisher
	if cfg.PubSub.ResultsTopic != "" {
		p := worker.NewPubSubPublisher(client, cfg.PubSub.ResultsTopic, log)
		defer p.Stop()
		publisher = p
	}

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
		Registry:  resilience.NewRegistry(),
		Metrics:   probeMetrics,
		Publisher: publisher,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create sweep job")
	}

	handler := worker.NewPubSubHandler(worker.PubSubConfig{
		Client:           client,
		SubscriptionName: cfg.PubSub.Subscription,
		MaxOutstanding:   cfg.PubSub.MaxOutstanding,
		Dispatcher:       worker.NewDispatcher(sweep, log),
		Logger:           log,
	})

	// Worker also exposes a health endpoint for Cloud Run
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"sweeps":  sweep.StatsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:              ":" + cfg.Service.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Receive blocks until ctx is cancelled or the subscription fails.
	if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("pubsub handler stopped")
	}

	log.Info().Msg("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().
		Interface("stats", sweep.StatsSnapshot()).
		Msg("worker stopped")
}
