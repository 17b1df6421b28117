package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	CouponsStatic   = "static"
	CouponsPostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (WELLO_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (WELLO_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Storage       string `default:"postgres" usage:"Storage backend: postgres or memory"`
	ImageBaseURL  string `default:"" usage:"Base URL for product images" flag:"image-base-url"`
	SessionPepper string `usage:"HMAC pepper for session token hashing (WELLO_SESSION_PEPPER)" flag:"session-pepper"`
	Sessions      SessionsConfig
	Coupons       CouponsConfig
	Notify        NotifyConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// SessionsConfig controls in-memory session eviction.
type SessionsConfig struct {
	IdleTimeout   time.Duration `default:"30m" usage:"Drop cart and checkout of sessions idle this long" flag:"session-idle-timeout"`
	EvictInterval time.Duration `default:"1m"  usage:"Idle session sweep interval" flag:"session-evict-interval"`
}

// CouponsConfig selects the coupon rule table.
type CouponsConfig struct {
	Source string `default:"static" usage:"Coupon rules: static (built-in) or postgres"`
}

// NotifyConfig lists the order notification sinks. Empty values disable
// the corresponding sink.
type NotifyConfig struct {
	RecorderURL  string        `usage:"Order recorder webhook URL" flag:"notify-recorder-url"`
	MailURL      string        `usage:"Order email relay URL" flag:"notify-mail-url"`
	KafkaBrokers string        `usage:"Comma-separated Kafka brokers for order events" flag:"notify-kafka-brokers"`
	KafkaTopic   string        `default:"wello.orders" usage:"Kafka topic for order events" flag:"notify-kafka-topic"`
	Phone        string        `usage:"Shop phone number for chat handoff links" flag:"notify-phone"`
	Timeout      time.Duration `default:"10s" usage:"Per-sink delivery timeout" flag:"notify-timeout"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML
// config files, then applies platform defaults and validates it.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "WELLO",
		Files:     []string{"config.yaml", "/etc/wello/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided DATABASE_URL and PORT to the
// WELLO_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set WELLO_DATABASE_URL or DATABASE_URL")
		}
		// Token hashes are persisted and must stay verifiable across restarts.
		if c.SessionPepper == "" {
			return errors.New("session pepper is required with postgres storage: set WELLO_SESSION_PEPPER")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage %q", c.Storage)
	}

	switch c.Coupons.Source {
	case CouponsStatic:
	case CouponsPostgres:
		if c.Storage != StoragePostgres {
			return errors.New("postgres coupon source requires postgres storage")
		}
	default:
		return errors.Errorf("unknown coupon source %q", c.Coupons.Source)
	}
	return nil
}
