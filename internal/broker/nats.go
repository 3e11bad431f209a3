package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATS fans out over a single subject.
type NATS struct {
	nc      *nats.Conn
	subject string
}

func NewNATS(url, subject string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("society"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Str("module", "broker").Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("module", "broker").Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	log.Info().Str("module", "broker").Str("url", url).Str("subject", subject).Msg("nats broker connected")
	return &NATS{nc: nc, subject: subject}, nil
}

func (n *NATS) Publish(_ context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return n.nc.Publish(n.subject, data)
}

func (n *NATS) Subscribe(_ context.Context, h Handler) error {
	_, err := n.nc.Subscribe(n.subject, func(m *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(m.Data, &env); err != nil {
			log.Error().Err(err).Str("module", "broker").Msg("bad envelope from nats")
			return
		}
		h(env)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	return n.nc.Flush()
}

func (n *NATS) Close() error {
	return n.nc.Drain()
}
