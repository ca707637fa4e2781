package driven

import "context"

// Notifier delivers a text message to a subscriber handle.
// Delivery is best-effort and at-least-once.
type Notifier interface {
	Notify(ctx context.Context, handle, text string) error
}

// Channel is one delivery transport, selected by handle scheme ("tg", "email").
type Channel interface {
	Scheme() string
	Send(ctx context.Context, address, text string) error
}
