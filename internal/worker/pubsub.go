package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the jobs subscription.
const (
	JobSweep     = "sweep"
	JobSiteCheck = "site_check"
)

// ErrUnknownJob is returned for a job type the worker does not handle.
var ErrUnknownJob = errors.New("unknown job type")

// JobMessage is the body of a job message.
type JobMessage struct {
	JobType string `json:"job_type"`

	// Site names the site for site_check jobs.
	Site string `json:"site,omitempty"`
}

// Dispatcher executes decoded job messages against a sweep job.
type Dispatcher struct {
	sweep  *SweepJob
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher for sweep.
func NewDispatcher(sweep *SweepJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{sweep: sweep, logger: logger}
}

// Handle decodes data and runs the job it describes. Probe failures are not
// job failures; only bad messages, unknown sites and publish errors are.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) error {
	var job JobMessage
	if err := json.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("parsing job message: %w", err)
	}

	switch job.JobType {
	case JobSweep:
		result := d.sweep.Run(ctx)
		if len(result.Errors) > 0 {
			return fmt.Errorf("sweep finished with %d errors: %s", len(result.Errors), result.Errors[0].Error)
		}
		return nil

	case JobSiteCheck:
		if job.Site == "" {
			return fmt.Errorf("%w: site_check without site", ErrUnknownSite)
		}
		rs, err := d.sweep.RunSite(ctx, job.Site)
		if err != nil {
			return err
		}
		d.logger.Info().
			Str("site", rs.Site).
			Int("passed", rs.Passed).
			Int("failed", rs.Failed).
			Msg("site check completed")
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, job.JobType)
	}
}

// PubSubHandler receives job messages from a Pub/Sub subscription.
type PubSubHandler struct {
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	// Client is owned by the caller.
	Client           *pubsub.Client
	SubscriptionName string
	MaxOutstanding   int
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(cfg PubSubConfig) *PubSubHandler {
	subscriber := cfg.Client.Subscriber(cfg.SubscriptionName)

	maxOutstanding := cfg.MaxOutstanding
	if maxOutstanding <= 0 {
		maxOutstanding = 1
	}
	// Sweeps are long; keep the lease alive while one runs.
	subscriber.ReceiveSettings.MaxOutstandingMessages = maxOutstanding
	subscriber.ReceiveSettings.MaxExtension = 30 * time.Minute

	return &PubSubHandler{
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}
}

// Start processes messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.dispatcher.Handle(ctx, msg.Data)
	switch {
	case err == nil:
		logger.Info().Dur("duration", time.Since(startTime)).Msg("job completed successfully")
		msg.Ack()
	case errors.Is(err, ErrUnknownJob), errors.Is(err, ErrUnknownSite):
		// Redelivery cannot fix these.
		logger.Warn().Err(err).Msg("dropping job")
		msg.Ack()
	default:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	}
}
