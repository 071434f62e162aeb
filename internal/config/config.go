package config

import (
	"fmt"
	"net/url"

	pkgconfig "github.com/avelora/storefront/pkg/config"
)

// Config holds all configuration for the checkout coordinator.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"CHECKOUT_HTTP_PORT" envDefault:"8006"`

	// Commerce gateway (checkout create/cancel, settlement status, cart)
	GatewayBaseURL string `env:"GATEWAY_BASE_URL" envDefault:"http://localhost:8080/api"`

	// Countdown tick cadence in milliseconds
	CountdownTickMS int `env:"COUNTDOWN_TICK_MS" envDefault:"500"`

	// Redis (cart snapshot cache)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// HTTP client
	HTTPTimeoutSeconds int `env:"HTTP_CLIENT_TIMEOUT_SECONDS" envDefault:"15"`
	HTTPMaxRetries     int `env:"HTTP_CLIENT_MAX_RETRIES" envDefault:"3"`

	// Circuit breaker for gateway calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load checkout config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.GatewayBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("GATEWAY_BASE_URL must be an absolute URL, got %q", c.GatewayBaseURL)
	}
	if c.CountdownTickMS <= 0 {
		return fmt.Errorf("COUNTDOWN_TICK_MS must be positive, got %d", c.CountdownTickMS)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("CHECKOUT_HTTP_PORT must be a valid port, got %d", c.HTTPPort)
	}
	return nil
}
