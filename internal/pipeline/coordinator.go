package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"pulse/internal/feedback"
	"pulse/internal/logger"
	"pulse/internal/queue"
	apperrors "pulse/pkg/errors"
	"pulse/pkg/logging"
	"pulse/pkg/metrics"
	"pulse/pkg/retry"
)

// Enricher computes an analytical result for a comment. By contract it never
// fails: any internal error is folded into a safe fallback value.
type Enricher interface {
	Analyze(ctx context.Context, comment string) feedback.EnrichmentResult
}

// RawStore persists the unmodified event, idempotently keyed by feedback_id.
type RawStore interface {
	Upsert(ctx context.Context, event *feedback.Event, receivedAt time.Time) error
}

// EnrichedStore appends the analytical record. No dedup key is enforced.
type EnrichedStore interface {
	Append(ctx context.Context, feedbackID string, result feedback.EnrichmentResult, analyzedAt time.Time) error
}

type Config struct {
	Workers      int
	BatchSize    int
	IdleInterval time.Duration
	Backoff      retry.Policy
}

// Stages a message can fail at; each failure releases the message for
// redelivery.
const (
	stageParse         = "parse"
	stageRawStore      = "raw_store"
	stageEnrichedStore = "enriched_store"
	stageDispatch      = "dispatch"
	stagePanic         = "panic"
)

// Coordinator pulls batches from the message source and drives each handle
// through parse, raw write, enrichment, enriched write, ack. Any storage or
// parse failure short-circuits the chain and releases the handle; enrichment
// never fails. Handles are processed on a bounded worker pool with no shared
// per-message state.
type Coordinator struct {
	source   queue.MessageSource
	raw      RawStore
	enricher Enricher
	enriched EnrichedStore
	cfg      Config
	logger   logger.Logger
}

func NewCoordinator(source queue.MessageSource, raw RawStore, enricher Enricher, enriched EnrichedStore, cfg Config, log logger.Logger) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = time.Second
	}

	return &Coordinator{
		source:   source,
		raw:      raw,
		enricher: enricher,
		enriched: enriched,
		cfg:      cfg,
		logger:   log,
	}
}

// Run pulls batches until the context is cancelled. Cancellation is honored
// between pulls only: handles already dispatched run their full state machine
// and Run waits for them before returning.
func (c *Coordinator) Run(ctx context.Context) error {
	pool, err := ants.NewPool(c.cfg.Workers)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	defer wg.Wait()

	b := retry.NewBackoff(c.cfg.Backoff)

	c.logger.InfowCtx(ctx, "Pipeline started",
		"workers", c.cfg.Workers,
		"batch_size", c.cfg.BatchSize,
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfowCtx(ctx, "Pipeline stopping, waiting for in-flight messages")
			return ctx.Err()
		default:
		}

		handles, err := c.source.Pull(ctx, c.cfg.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			metrics.PipelinePullErrorsTotal.Inc()
			delay := b.NextBackOff()
			c.logger.ErrorwCtx(ctx, "Failed to pull batch",
				"error", err,
				"retry_in", delay,
			)
			retry.Wait(ctx, delay)
			continue
		}
		b.Reset()
		metrics.PipelinePullBatchSize.Observe(float64(len(handles)))

		if len(handles) == 0 {
			retry.Wait(ctx, c.cfg.IdleInterval)
			continue
		}

		for _, h := range handles {
			handle := h
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				c.process(ctx, handle)
			}); err != nil {
				wg.Done()
				c.logger.ErrorwCtx(ctx, "Failed to dispatch message to worker",
					"error", err,
				)
				c.releaseMessage(ctx, handle, stageDispatch)
			}
		}
	}
}

// process runs the full per-message state machine synchronously. It uses a
// detached context so a shutdown begun mid-message never abandons the message
// between its raw and enriched writes.
func (c *Coordinator) process(parent context.Context, h queue.Handle) {
	ctx := logging.WithMessageID(context.WithoutCancel(parent), h.Token)

	start := time.Now()
	status := "released"
	defer func() {
		metrics.PipelineProcessingDuration.WithLabelValues(status).Observe(float64(time.Since(start).Milliseconds()))
	}()

	defer func() {
		if r := recover(); r != nil {
			err := apperrors.RecoverPanic(r)
			c.logger.ErrorwCtx(ctx, "Panic recovered while processing message",
				"error", err,
			)
			c.releaseMessage(ctx, h, stagePanic)
		}
	}()

	event, err := feedback.DecodeEvent(h.Payload)
	if err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to parse message payload",
			"error", apperrors.Wrap(err, apperrors.ErrParse),
		)
		c.releaseMessage(ctx, h, stageParse)
		return
	}

	ctx = logging.WithFeedbackID(ctx, event.FeedbackID)
	c.logger.InfowCtx(ctx, "Processing feedback")

	// Raw durability is a precondition for enrichment, not a parallel step.
	if err := c.raw.Upsert(ctx, event, time.Now().UTC()); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to store raw feedback",
			"error", err,
		)
		c.releaseMessage(ctx, h, stageRawStore)
		return
	}

	result := c.enricher.Analyze(ctx, event.Comment)

	if err := c.enriched.Append(ctx, event.FeedbackID, result, time.Now().UTC()); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to store enriched feedback",
			"error", err,
		)
		c.releaseMessage(ctx, h, stageEnrichedStore)
		return
	}

	if err := c.source.Ack(ctx, h.Token); err != nil {
		// Both writes are durable; the lease reclaim will redeliver and the
		// replay is tolerated (idempotent raw upsert, duplicate enriched row).
		c.logger.ErrorwCtx(ctx, "Failed to acknowledge message",
			"error", err,
		)
		status = "ack_failed"
		metrics.PipelineMessagesTotal.WithLabelValues("ack_failed").Inc()
		return
	}

	status = "acked"
	metrics.PipelineMessagesTotal.WithLabelValues("acked").Inc()
	c.logger.InfowCtx(ctx, "Feedback processed",
		"sentiment", result.Sentiment,
		"topics", result.Topics,
	)
}

func (c *Coordinator) releaseMessage(ctx context.Context, h queue.Handle, stage string) {
	metrics.PipelineMessagesTotal.WithLabelValues("released").Inc()
	metrics.PipelineReleasedTotal.WithLabelValues(stage).Inc()

	if err := c.source.Release(ctx, h.Token); err != nil {
		// Redelivery still happens once the lease expires.
		c.logger.ErrorwCtx(ctx, "Failed to release message",
			"error", err,
			"stage", stage,
		)
	}
}
