package notifier

import "context"

// Sink delivers operational messages to staff-facing channels.
// Delivery is best effort and must never block domain writes.
type Sink interface {
	Send(ctx context.Context, text string) error
}

// NopSink discards every message. Used when no channel is configured.
type NopSink struct{}

func (NopSink) Send(context.Context, string) error { return nil }
