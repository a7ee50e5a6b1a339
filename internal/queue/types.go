package queue

import (
	"context"
)

// Handle is one delivery attempt of a queued event. Token is the only
// capability to acknowledge or release that attempt; it is opaque to callers.
type Handle struct {
	Payload []byte
	Token   string
}

// MessageSource is a pull-based, at-least-once delivery queue. Every pulled
// handle may be a duplicate of a previously seen event; callers must tolerate
// redelivery. Acknowledging or releasing a token twice, or after its lease
// expired, must not fail the caller.
type MessageSource interface {
	// Pull returns up to max handles, possibly zero.
	Pull(ctx context.Context, max int) ([]Handle, error)

	// Ack marks the delivery as permanently done and suppresses redelivery.
	Ack(ctx context.Context, token string) error

	// Release makes the event eligible for immediate redelivery as a new
	// handle.
	Release(ctx context.Context, token string) error
}

// Publisher enqueues an event payload for delivery.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}
