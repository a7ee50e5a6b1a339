package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/queue"
)

func TestQueuePublishPullAck(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, false, true)

	ctx := context.Background()
	cfg := createTestQueueConfig("queue-test-basic")

	source, err := queue.NewStreamSource(ctx, infra.RedisClient, cfg, createTestLogger())
	require.NoError(t, err)

	publisher := queue.NewStreamPublisher(infra.RedisClient, cfg.Stream)
	require.NoError(t, publisher.Publish(ctx, []byte(`{"feedback_id":"fdbk-q1","comment":"hello"}`)))

	handles, err := source.Pull(ctx, 10)
	require.NoError(t, err)
	require.Len(t, handles, 1)
	assert.JSONEq(t, `{"feedback_id":"fdbk-q1","comment":"hello"}`, string(handles[0].Payload))
	assert.NotEmpty(t, handles[0].Token)

	require.NoError(t, source.Ack(ctx, handles[0].Token))

	// Acked messages are gone for good.
	handles, err = source.Pull(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, handles)
}

func TestQueueAckIsIdempotent(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, false, true)

	ctx := context.Background()
	cfg := createTestQueueConfig("queue-test-ack")

	source, err := queue.NewStreamSource(ctx, infra.RedisClient, cfg, createTestLogger())
	require.NoError(t, err)

	publisher := queue.NewStreamPublisher(infra.RedisClient, cfg.Stream)
	require.NoError(t, publisher.Publish(ctx, []byte(`{"feedback_id":"fdbk-q2","comment":"once"}`)))

	handles, err := source.Pull(ctx, 10)
	require.NoError(t, err)
	require.Len(t, handles, 1)

	require.NoError(t, source.Ack(ctx, handles[0].Token))
	require.NoError(t, source.Ack(ctx, handles[0].Token), "second ack of the same token is a no-op")
}

func TestQueueReleaseRedeliversImmediately(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, false, true)

	ctx := context.Background()
	cfg := createTestQueueConfig("queue-test-release")

	source, err := queue.NewStreamSource(ctx, infra.RedisClient, cfg, createTestLogger())
	require.NoError(t, err)

	publisher := queue.NewStreamPublisher(infra.RedisClient, cfg.Stream)
	require.NoError(t, publisher.Publish(ctx, []byte(`{"feedback_id":"fdbk-q3","comment":"retry me"}`)))

	handles, err := source.Pull(ctx, 10)
	require.NoError(t, err)
	require.Len(t, handles, 1)
	originalToken := handles[0].Token

	require.NoError(t, source.Release(ctx, originalToken))

	// The released message is available again without waiting out the lease.
	handles, err = source.Pull(ctx, 10)
	require.NoError(t, err)
	require.Len(t, handles, 1)
	assert.JSONEq(t, `{"feedback_id":"fdbk-q3","comment":"retry me"}`, string(handles[0].Payload))
	assert.NotEqual(t, originalToken, handles[0].Token, "redelivery carries a fresh token")
}

func TestQueuePullHonorsBatchSize(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, false, true)

	ctx := context.Background()
	cfg := createTestQueueConfig("queue-test-batch")

	source, err := queue.NewStreamSource(ctx, infra.RedisClient, cfg, createTestLogger())
	require.NoError(t, err)

	publisher := queue.NewStreamPublisher(infra.RedisClient, cfg.Stream)
	for i := 0; i < 15; i++ {
		require.NoError(t, publisher.Publish(ctx, []byte(`{"feedback_id":"fdbk-batch","comment":"n"}`)))
	}

	handles, err := source.Pull(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, handles, 10)

	handles, err = source.Pull(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, handles, 5)
}
