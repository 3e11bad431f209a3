package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Redis fans out over a single pub/sub channel.
type Redis struct {
	client  *redis.Client
	channel string

	mu   sync.Mutex
	subs []*redis.PubSub
}

func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info().Str("module", "broker").Str("addr", opts.Addr).Str("channel", opts.Channel).Msg("redis broker connected")
	return &Redis{client: client, channel: opts.Channel}, nil
}

func (r *Redis) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

func (r *Redis) Subscribe(ctx context.Context, h Handler) error {
	ps := r.client.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	r.mu.Lock()
	r.subs = append(r.subs, ps)
	r.mu.Unlock()

	go func() {
		for msg := range ps.Channel() {
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Error().Err(err).Str("module", "broker").Msg("bad envelope from redis")
				continue
			}
			h(env)
		}
		log.Info().Str("module", "broker").Msg("redis subscription closed")
	}()
	return nil
}

func (r *Redis) Close() error {
	r.mu.Lock()
	for _, ps := range r.subs {
		_ = ps.Close()
	}
	r.subs = nil
	r.mu.Unlock()
	return r.client.Close()
}
