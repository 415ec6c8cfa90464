package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Storage StorageConfig `mapstructure:"storage"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Sinks   SinksConfig   `mapstructure:"sinks"`
	Dedup   DedupConfig   `mapstructure:"dedup"`
	DLQ     DLQConfig     `mapstructure:"dlq"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StorageConfig struct {
	// Backend selects the correlation store: memory, redis or postgres.
	Backend   string         `mapstructure:"backend"`
	Retention time.Duration  `mapstructure:"retention"`
	Redis     RedisConfig    `mapstructure:"redis"`
	Postgres  PostgresConfig `mapstructure:"postgres"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type PostgresConfig struct {
	DSN            string `mapstructure:"dsn"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

type GatewayConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SinksConfig configures the downstream consumers. Each sink is
// independently optional: missing credentials disable that sink only.
type SinksConfig struct {
	Timeout      time.Duration          `mapstructure:"timeout"`
	Notification NotificationSinkConfig `mapstructure:"notification"`
	Attribution  AttributionSinkConfig  `mapstructure:"attribution"`
	AdConversion AdConversionSinkConfig `mapstructure:"adconversion"`
}

type NotificationSinkConfig struct {
	URL string `mapstructure:"url"`
}

type AttributionSinkConfig struct {
	URL      string `mapstructure:"url"`
	APIToken string `mapstructure:"api_token"`
}

type AdConversionSinkConfig struct {
	URL         string `mapstructure:"url"`
	PixelID     string `mapstructure:"pixel_id"`
	AccessToken string `mapstructure:"access_token"`
}

type DedupConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type DLQConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	NatsURL string `mapstructure:"nats_url"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.retention", "2160h") // 90 days
	v.SetDefault("storage.redis.url", "redis://localhost:6379/0")
	v.SetDefault("storage.postgres.migrations_path", "migrations")
	v.SetDefault("gateway.url", "https://api.realtechdev.com.br")
	v.SetDefault("gateway.timeout", "10s")
	v.SetDefault("sinks.timeout", "5s")
	v.SetDefault("sinks.adconversion.url", "https://graph.facebook.com/v18.0")
	v.SetDefault("dedup.enabled", true)
	v.SetDefault("dedup.ttl", "24h")
	v.SetDefault("dlq.enabled", false)
	v.SetDefault("dlq.nats_url", "nats://localhost:4222")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pixrelay")
	}

	// Environment variables override
	v.SetEnvPrefix("PIXRELAY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
