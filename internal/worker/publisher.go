package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/wrmsprobe/wrmsprobe/internal/wrms"
)

// PubSubPublisher publishes result sets as JSON to a Pub/Sub topic.
type PubSubPublisher struct {
	publisher *pubsub.Publisher
	topic     string
	logger    zerolog.Logger
}

// NewPubSubPublisher creates a publisher for topic on client. The caller
// owns client; call Stop before closing it.
func NewPubSubPublisher(client *pubsub.Client, topic string, logger zerolog.Logger) *PubSubPublisher {
	return &PubSubPublisher{
		publisher: client.Publisher(topic),
		topic:     topic,
		logger:    logger,
	}
}

// Publish sends rs and waits for the server to accept it. Attributes carry
// the site, run ID and verdict so subscribers can filter without decoding.
func (p *PubSubPublisher) Publish(ctx context.Context, rs *wrms.ResultSet) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("encoding result set: %w", err)
	}

	res := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"site":   rs.Site,
			"run_id": rs.RunID,
			"ok":     strconv.FormatBool(rs.OK()),
			"failed": strconv.Itoa(rs.Failed),
		},
	})

	id, err := res.Get(ctx)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", p.topic, err)
	}

	p.logger.Debug().
		Str("message_id", id).
		Str("site", rs.Site).
		Str("run_id", rs.RunID).
		Msg("published result set")
	return nil
}

// Stop flushes pending messages.
func (p *PubSubPublisher) Stop() {
	p.publisher.Stop()
}
