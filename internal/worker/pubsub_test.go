package worker_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/wrmsprobe/wrmsprobe/internal/worker"
	"github.com/wrmsprobe/wrmsprobe/internal/wrms"
)

const project = "wrmsprobe-test"

func newPubSub(t *testing.T) (*pstest.Server, *pubsub.Client) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	client, err := pubsub.NewClient(ctx, project, option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return srv, client
}

func createTopic(t *testing.T, client *pubsub.Client, topic string) string {
	t.Helper()
	name := "projects/" + project + "/topics/" + topic
	_, err := client.TopicAdminClient.CreateTopic(context.Background(), &pubsubpb.Topic{Name: name})
	require.NoError(t, err)
	return name
}

func newDispatcher(t *testing.T) (*worker.Dispatcher, *worker.SweepJob) {
	t.Helper()
	job, err := worker.NewSweepJob(worker.SweepJobConfig{
		Config: worker.SweepConfig{Sites: fleet(t)},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return worker.NewDispatcher(job, zerolog.Nop()), job
}

func TestDispatcher_Sweep(t *testing.T) {
	d, job := newDispatcher(t)

	err := d.Handle(context.Background(), []byte(`{"job_type":"sweep"}`))
	require.NoError(t, err)

	assert.Equal(t, 3, job.Store().Len())
	assert.Equal(t, int64(1), job.GetStats().TotalSweeps)
}

func TestDispatcher_SiteCheck(t *testing.T) {
	d, job := newDispatcher(t)

	err := d.Handle(context.Background(), []byte(`{"job_type":"site_check","site":"broken-schema"}`))
	require.NoError(t, err)

	rs, ok := job.Store().Latest("broken-schema")
	require.True(t, ok)
	assert.False(t, rs.OK())
	assert.Equal(t, 1, job.Store().Len())
}

func TestDispatcher_Errors(t *testing.T) {
	d, _ := newDispatcher(t)

	tests := []struct {
		name   string
		data   string
		target error
	}{
		{"unknown job", `{"job_type":"provider_refresh"}`, worker.ErrUnknownJob},
		{"unknown site", `{"job_type":"site_check","site":"nope"}`, worker.ErrUnknownSite},
		{"site check without site", `{"job_type":"site_check"}`, worker.ErrUnknownSite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Handle(context.Background(), []byte(tt.data))
			assert.ErrorIs(t, err, tt.target)
		})
	}

	err := d.Handle(context.Background(), []byte(`not json`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, worker.ErrUnknownJob)
}

func TestPubSubPublisher_Publish(t *testing.T) {
	srv, client := newPubSub(t)
	createTopic(t, client, "results")

	pub := worker.NewPubSubPublisher(client, "results", zerolog.Nop())
	defer pub.Stop()

	rs := &wrms.ResultSet{
		RunID:   "run-1",
		Site:    "shop",
		Results: []wrms.ProbeResult{{Name: wrms.ProbeConnectivity, Passed: true}},
		Passed:  1,
	}
	require.NoError(t, pub.Publish(context.Background(), rs))

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "shop", msgs[0].Attributes["site"])
	assert.Equal(t, "run-1", msgs[0].Attributes["run_id"])
	assert.Equal(t, "true", msgs[0].Attributes["ok"])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &decoded))
	assert.Equal(t, "shop", decoded["site"])
}

func TestPubSubPublisher_MissingTopic(t *testing.T) {
	_, client := newPubSub(t)

	pub := worker.NewPubSubPublisher(client, "absent", zerolog.Nop())
	defer pub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := pub.Publish(ctx, &wrms.ResultSet{Site: "shop"})
	assert.Error(t, err)
}

func TestPubSubHandler_ReceivesJobs(t *testing.T) {
	srv, client := newPubSub(t)
	topic := createTopic(t, client, "jobs")
	_, err := client.SubscriptionAdminClient.CreateSubscription(context.Background(), &pubsubpb.Subscription{
		Name:  "projects/" + project + "/subscriptions/jobs-sub",
		Topic: topic,
	})
	require.NoError(t, err)

	dispatcher, job := newDispatcher(t)
	handler := worker.NewPubSubHandler(worker.PubSubConfig{
		Client:           client,
		SubscriptionName: "jobs-sub",
		Dispatcher:       dispatcher,
		Logger:           zerolog.Nop(),
	})

	okID := srv.Publish(topic, []byte(`{"job_type":"site_check","site":"healthy"}`), nil)
	unknownID := srv.Publish(topic, []byte(`{"job_type":"reindex"}`), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- handler.Start(ctx) }()

	require.Eventually(t, func() bool {
		return srv.Message(okID).Acks > 0 && srv.Message(unknownID).Acks > 0
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	_, ok := job.Store().Latest("healthy")
	assert.True(t, ok)
}
