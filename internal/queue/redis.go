package queue

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pulse/internal/config"
	"pulse/internal/constants"
	"pulse/internal/logger"
)

// StreamSource implements MessageSource on a Redis Stream consumer group.
// The stream entry ID doubles as the ack token. A delivery that is neither
// acked nor released stays in the group's pending list; once its idle time
// passes the lease timeout, the next Pull reclaims it via XAUTOCLAIM.
type StreamSource struct {
	client   *redis.Client
	cfg      config.QueueConfig
	consumer string
	logger   logger.Logger
}

func NewStreamSource(ctx context.Context, client *redis.Client, cfg config.QueueConfig, log logger.Logger) (*StreamSource, error) {
	consumer := cfg.Consumer
	if consumer == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "consumer"
		}
		consumer = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}

	s := &StreamSource{
		client:   client,
		cfg:      cfg,
		consumer: consumer,
		logger:   log,
	}

	if err := s.ensureGroup(ctx); err != nil {
		return nil, err
	}

	log.InfowCtx(ctx, "Message source ready",
		"stream", cfg.Stream,
		"group", cfg.Group,
		"consumer", consumer,
	)
	return s, nil
}

func (s *StreamSource) ensureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.cfg.Stream, s.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Pull first reclaims deliveries whose lease expired, then reads new entries.
// It may return fewer handles than requested, including none.
func (s *StreamSource) Pull(ctx context.Context, max int) ([]Handle, error) {
	handles := make([]Handle, 0, max)

	claimed, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.cfg.Stream,
		Group:    s.cfg.Group,
		Consumer: s.consumer,
		MinIdle:  s.cfg.LeaseTimeout,
		Start:    "0-0",
		Count:    int64(max),
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to reclaim pending entries: %w", err)
	}
	for _, m := range claimed {
		handles = append(handles, toHandle(m))
	}

	if len(handles) >= max {
		return handles, nil
	}

	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.consumer,
		Streams:  []string{s.cfg.Stream, ">"},
		Count:    int64(max - len(handles)),
		Block:    s.cfg.BlockTimeout,
	}).Result()
	if err == redis.Nil {
		return handles, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		for _, m := range stream.Messages {
			handles = append(handles, toHandle(m))
		}
	}

	return handles, nil
}

// Ack is idempotent from the caller's perspective: acking an already-acked or
// expired token is a no-op.
func (s *StreamSource) Ack(ctx context.Context, token string) error {
	acked, err := s.client.XAck(ctx, s.cfg.Stream, s.cfg.Group, token).Result()
	if err != nil {
		return fmt.Errorf("failed to ack %s: %w", token, err)
	}

	if acked == 0 {
		s.logger.DebugwCtx(ctx, "Token already acknowledged or reassigned",
			"token", token,
		)
		return nil
	}

	// Acked entries are done for every consumer; trim them from the stream.
	if err := s.client.XDel(ctx, s.cfg.Stream, token).Err(); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to trim acknowledged entry",
			"token", token,
			"error", err,
		)
	}

	return nil
}

// Release re-enqueues a copy of the entry at the stream tail and retires the
// old delivery, so redelivery happens on the next Pull instead of after the
// lease timeout. If the copy cannot be written, the original stays pending
// and the lease reclaim path redelivers it later.
func (s *StreamSource) Release(ctx context.Context, token string) error {
	entries, err := s.client.XRangeN(ctx, s.cfg.Stream, token, token, 1).Result()
	if err != nil {
		return fmt.Errorf("failed to load entry %s for release: %w", token, err)
	}

	if len(entries) == 0 {
		s.logger.DebugwCtx(ctx, "Released token no longer in stream",
			"token", token,
		)
		return nil
	}

	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.cfg.Stream,
		Values: entries[0].Values,
	}).Err(); err != nil {
		return fmt.Errorf("failed to re-enqueue %s: %w", token, err)
	}

	if err := s.client.XAck(ctx, s.cfg.Stream, s.cfg.Group, token).Err(); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to retire released delivery",
			"token", token,
			"error", err,
		)
		return nil
	}

	if err := s.client.XDel(ctx, s.cfg.Stream, token).Err(); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to trim released entry",
			"token", token,
			"error", err,
		)
	}

	return nil
}

func toHandle(m redis.XMessage) Handle {
	payload, _ := m.Values[constants.PayloadField].(string)
	return Handle{
		Payload: []byte(payload),
		Token:   m.ID,
	}
}

// StreamPublisher implements Publisher by appending entries to the stream the
// consumer group reads.
type StreamPublisher struct {
	client *redis.Client
	stream string
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
	}
}

func (p *StreamPublisher) Publish(ctx context.Context, payload []byte) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{constants.PayloadField: payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}
	return nil
}
