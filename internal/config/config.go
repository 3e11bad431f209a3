package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode        string        `mapstructure:"mode"`
	Port        int           `mapstructure:"port"`
	Secret      string        `mapstructure:"secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	ReadLimit   int64         `mapstructure:"read_limit"`
	PingPeriod  time.Duration `mapstructure:"ping_period"`
	SendBuffer  int           `mapstructure:"send_buffer"`
	CORSOrigins []string      `mapstructure:"cors_origins"`

	Database DatabaseConfig `mapstructure:"database"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type BrokerConfig struct {
	Kind          string `mapstructure:"kind"`
	Channel       string `mapstructure:"channel"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	NATSURL       string `mapstructure:"nats_url"`
}

type ChatConfig struct {
	JoinLimit    int           `mapstructure:"join_limit"`
	JoinInterval time.Duration `mapstructure:"join_interval"`
}

// AdminConfig seeds the first administrator on startup. An empty email
// disables seeding.
type AdminConfig struct {
	Society  string `mapstructure:"society"`
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// Load reads config/config.<CONFIG_ENV>.yaml (env defaults to "dev"). A
// missing file is not an error: defaults and SOCIETY_* variables apply.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("society")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("db", cfg.Database.Driver).
		Str("broker", cfg.Broker.Kind).
		Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "society.db")

	v.SetDefault("broker.kind", "local")
	v.SetDefault("broker.channel", "society.deliveries")
	v.SetDefault("broker.redis_addr", "localhost:6379")
	v.SetDefault("broker.redis_password", "")
	v.SetDefault("broker.redis_db", 0)
	v.SetDefault("broker.nats_url", "nats://localhost:4222")

	v.SetDefault("chat.join_limit", 10)
	v.SetDefault("chat.join_interval", "1m")

	v.SetDefault("admin.society", "default")
	v.SetDefault("admin.name", "Administrador")
	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")
}

func (c *Config) Validate() error {
	if c.Secret == "" {
		return errors.New("config: secret must be set")
	}
	switch c.Database.Driver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	switch c.Broker.Kind {
	case "local", "redis", "nats":
	default:
		return fmt.Errorf("config: unsupported broker %q", c.Broker.Kind)
	}
	if c.PingPeriod <= 0 {
		return errors.New("config: ping_period must be positive")
	}
	if c.SendBuffer <= 0 {
		return errors.New("config: send_buffer must be positive")
	}
	if c.Chat.JoinLimit <= 0 {
		return errors.New("config: chat.join_limit must be positive")
	}
	if c.Chat.JoinInterval <= 0 {
		return errors.New("config: chat.join_interval must be positive")
	}
	if c.Admin.Email != "" && c.Admin.Password == "" {
		return errors.New("config: admin.password must be set with admin.email")
	}
	return nil
}
