package broker

import (
	"context"
	"fmt"

	"github.com/dkeye/society/internal/config"
)

// Open builds the broker selected by cfg.Kind.
func Open(ctx context.Context, cfg config.BrokerConfig) (Broker, error) {
	switch cfg.Kind {
	case "", "local":
		return NewLocal(), nil
	case "redis":
		return NewRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.Channel,
		})
	case "nats":
		return NewNATS(cfg.NATSURL, cfg.Channel)
	}
	return nil, fmt.Errorf("unsupported broker %q", cfg.Kind)
}
