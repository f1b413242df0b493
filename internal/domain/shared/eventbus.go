package shared

import "context"

// EventHandler processes a published domain event
type EventHandler func(ctx context.Context, event DomainEvent) error

// EventPublisher publishes domain events to interested subscribers
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
}

// EventBus is a publisher that also supports subscription by event type
type EventBus interface {
	EventPublisher
	Subscribe(eventType string, handler EventHandler)
}
