package progress

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-mail-relay-go/internal/model"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	return client, srv
}

func TestRedisSink_PublishesOnKeyedChannel(t *testing.T) {
	client, _ := newTestRedis(t)
	sink := NewRedisSink(client)

	sub := client.Subscribe(context.Background(), channelName("user-1", "acct-1"))
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	frame := Frame{ExecutionID: "exec-1", Stage: StageFetching, Progress: 25, Counters: model.Counters{TotalEmailsCount: 10}}
	require.NoError(t, sink.Publish(context.Background(), "user-1", "acct-1", frame))

	msg := <-sub.Channel()
	var got Frame
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, frame, got)
}

func TestNoopSink_NeverErrors(t *testing.T) {
	var sink Sink = NoopSink{}
	assert.NoError(t, sink.Publish(context.Background(), "u", "a", Frame{}))
}

func TestReporter_DropsNonIncreasingProgress(t *testing.T) {
	client, _ := newTestRedis(t)
	reporter := NewReporter(NewRedisSink(client))

	sub := client.Subscribe(context.Background(), channelName("u", "a"))
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	require.NoError(t, reporter.Report(context.Background(), "u", "a", Frame{ExecutionID: "e1", Progress: 50}))
	<-sub.Channel()

	require.NoError(t, reporter.Report(context.Background(), "u", "a", Frame{ExecutionID: "e1", Progress: 30}))

	select {
	case msg := <-sub.Channel():
		t.Fatalf("expected no publish for non-increasing progress, got %v", msg)
	default:
	}
}

func TestReporter_ForgetResetsHighWaterMark(t *testing.T) {
	client, _ := newTestRedis(t)
	reporter := NewReporter(NewRedisSink(client))

	sub := client.Subscribe(context.Background(), channelName("u", "a"))
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	require.NoError(t, reporter.Report(context.Background(), "u", "a", Frame{ExecutionID: "e1", Progress: 80}))
	<-sub.Channel()

	reporter.Forget("e1")

	require.NoError(t, reporter.Report(context.Background(), "u", "a", Frame{ExecutionID: "e1", Progress: 10}))
	<-sub.Channel()
}

func TestReporter_DefaultsToNoopWhenSinkNil(t *testing.T) {
	reporter := NewReporter(nil)
	assert.NoError(t, reporter.Report(context.Background(), "u", "a", Frame{ExecutionID: "e1", Progress: 10}))
}
