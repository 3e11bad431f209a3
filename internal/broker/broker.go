// Package broker fans realtime deliveries out to every server instance.
// Each instance subscribes once and delivers envelopes to its local rooms.
package broker

import (
	"context"
	"encoding/json"
)

// Envelope addresses one frame to one room. Exclude names a session that
// must not receive it (the sender of a chat message).
type Envelope struct {
	Room    string          `json:"room"`
	Exclude string          `json:"exclude,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type Handler func(Envelope)

type Broker interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe registers h and returns once the subscription is live.
	Subscribe(ctx context.Context, h Handler) error
	Close() error
}
