package events

import "context"

// Publisher is the interface for publishing message-received events.
type Publisher interface {
	PublishReceived(ctx context.Context, event *MessageReceivedEvent) error
}

// NoOpPublisher is a Publisher that does nothing (for running without a
// COMMS broker).
type NoOpPublisher struct{}

// PublishReceived is a no-op.
func (p *NoOpPublisher) PublishReceived(_ context.Context, _ *MessageReceivedEvent) error {
	return nil
}

// CallbackPublisher is a Publisher that calls a callback function (for
// testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *MessageReceivedEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *MessageReceivedEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishReceived calls the callback.
func (p *CallbackPublisher) PublishReceived(ctx context.Context, event *MessageReceivedEvent) error {
	return p.callback(ctx, event)
}
