package realtime

import "context"

// Bus carries envelopes between instances so every instance delivers to the
// connections it holds.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(ctx context.Context) (<-chan Envelope, error)
	Close() error
}
