package service

import (
	"context"
)

// EventPublisher is the slice of the SSE broker the session services need.
// Satisfied by *sse.Broker; tests substitute a no-op.
type EventPublisher interface {
	PublishJSON(ctx context.Context, sessionID, eventType string, payload any) error
}

type noopPublisher struct{}

func (noopPublisher) PublishJSON(context.Context, string, string, any) error { return nil }

// NopPublisher returns a publisher that discards all events.
func NopPublisher() EventPublisher { return noopPublisher{} }
