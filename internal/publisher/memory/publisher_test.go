package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "product.fetched", map[string]string{"outcome": "success"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "other", "payload")
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "product.fetched", msgs[0].Topic)
	assert.Equal(t, "memory-2", msgs[1].ID)

	msgs[0].Topic = "modified"
	assert.Equal(t, "product.fetched", pub.Messages()[0].Topic)

	assert.Equal(t, []any{"payload"}, pub.ByTopic("other"))
	assert.Empty(t, pub.ByTopic("none"))
}

func TestPublisherHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Publish(ctx, "t", "x")
	require.ErrorIs(t, err, context.Canceled)
}
