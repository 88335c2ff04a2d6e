package config

import (
	"fmt"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTP struct {
		Port int `env:"HTTP_PORT"`
	}

	Storage struct {
		// "postgres" for the durable store, "memory" for the volatile
		// in-process store (test/demo only, no durability guarantees).
		Backend string `env:"STORAGE_BACKEND"`
	}

	Database Database
	Rabbit   Rabbit

	Orders struct {
		// StrictItems makes order creation fail when a cart references an
		// unknown SKU instead of silently dropping the line.
		StrictItems bool   `env:"ORDERS_STRICT_ITEMS"`
		DeliveryFee string `env:"ORDERS_DELIVERY_FEE"`
	}

	Stream struct {
		TickMillis       int `env:"STREAM_TICK_MS"`
		LifetimeSeconds  int `env:"STREAM_LIFETIME_S"`
		HeartbeatSeconds int `env:"STREAM_HEARTBEAT_S"`
		SnapshotLimit    int `env:"STREAM_SNAPSHOT_LIMIT"`
	}

	Push struct {
		TimeoutSeconds int `env:"PUSH_TIMEOUT_S"`
	}
}

type Database struct {
	Host     string `env:"DB_HOST"`
	Port     int    `env:"DB_PORT"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME"`
	SSLMode  string `env:"DB_SSLMODE"`
	MaxConns int    `env:"DB_MAX_CONNS"`
}

type Rabbit struct {
	Host     string `env:"RABBITMQ_HOST"`
	Port     int    `env:"RABBITMQ_PORT"`
	User     string `env:"RABBITMQ_USER"`
	Password string `env:"RABBITMQ_PASSWORD"`
	VHost    string `env:"RABBITMQ_VHOST"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config from environment: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 3000
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "postgres"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.Rabbit.Port == 0 {
		c.Rabbit.Port = 5672
	}
	if c.Rabbit.VHost == "" {
		c.Rabbit.VHost = "/"
	}
	if c.Orders.DeliveryFee == "" {
		c.Orders.DeliveryFee = "8.00"
	}
	if c.Stream.TickMillis == 0 {
		c.Stream.TickMillis = 2000
	}
	if c.Stream.LifetimeSeconds == 0 {
		c.Stream.LifetimeSeconds = 300
	}
	if c.Stream.HeartbeatSeconds == 0 {
		c.Stream.HeartbeatSeconds = 15
	}
	if c.Stream.SnapshotLimit == 0 {
		c.Stream.SnapshotLimit = 100
	}
	if c.Push.TimeoutSeconds == 0 {
		c.Push.TimeoutSeconds = 5
	}
}
