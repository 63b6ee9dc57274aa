package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := NewClient(context.Background(), "leonardo-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	return client, srv
}

func TestPublishDeliversJSON(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, srv := newTestClient(t)
	_, err := client.CreateTopic(ctx, "product.fetched")
	require.NoError(t, err)

	pub := New(client, "product.fetched")
	t.Cleanup(func() { _ = pub.Close() })

	id, err := pub.Publish(ctx, "", map[string]string{"url": "https://www.leonardo.vn/ao-thun", "outcome": "success"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "application/json", msgs[0].Attributes["content-type"])
	var got map[string]string
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "success", got["outcome"])
}

func TestPublishUnknownTopicFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, _ := newTestClient(t)
	pub := New(client, "")
	t.Cleanup(func() { _ = pub.Close() })

	_, err := pub.Publish(ctx, "missing", "payload")
	require.Error(t, err)

	_, err = pub.Publish(ctx, "", "payload")
	require.ErrorContains(t, err, "topic is not configured")
}

func TestPublishRejectsUnmarshalablePayload(t *testing.T) {
	t.Parallel()

	pub := New(&pubsub.Client{}, "topic")
	_, err := pub.Publish(context.Background(), "", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
}

func TestPublishWithoutClient(t *testing.T) {
	t.Parallel()

	pub := New(nil, "topic")
	_, err := pub.Publish(context.Background(), "", "x")
	require.Error(t, err)
	require.NoError(t, pub.Close())
}
