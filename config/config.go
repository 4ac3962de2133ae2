package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	extErrors "github.com/pkg/errors"
)

// Environment is the type for defining the running environment
type Environment string

// define constants
const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// Config holds everything the processes read from the environment. It is loaded
// once at startup and passed to components by value.
type Config struct {
	Environment Environment `env:"API_ENV" envDefault:"development"`
	ListenAddr  string      `env:"LISTEN_ADDR" envDefault:":8080"`
	SiteURL     string      `env:"SITE_URL"`
	CORSOrigins []string    `env:"CORS_ORIGINS" envSeparator:","`

	PostgresURI string `env:"POSTGRES_URI,required"`

	StripeSecretKey     string        `env:"STRIPE_SECRET_KEY,required"`
	StripeWebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET,required"`
	StripePriceMonthly  string        `env:"STRIPE_PRICE_MONTHLY,required"`
	StripePriceAnnual   string        `env:"STRIPE_PRICE_ANNUAL,required"`
	WebhookTolerance    time.Duration `env:"WEBHOOK_TOLERANCE" envDefault:"300s"`

	// AuthJWTSecret is the HS256 secret of the hosted auth service. Authenticated
	// routes are disabled when it is empty.
	AuthJWTSecret string `env:"AUTH_JWT_SECRET"`

	RedisURI string `env:"REDIS_URI"`
	RedisPW  string `env:"REDIS_PW"`
	AMQPURI  string `env:"AMQP_URI"`

	SentryDSN string `env:"SENTRY_DSN"`
}

// DotFile returns the .env file matching the API_ENV of the current process
func DotFile() string {
	if Environment(os.Getenv("API_ENV")) == EnvProduction {
		return ".env.production"
	}
	return ".env.development"
}

// Load reads dotFile (if it exists) into the process environment, then parses
// and validates the Config.
func Load(dotFile string) (Config, error) {
	if err := godotenv.Load(dotFile); err != nil && !os.IsNotExist(err) {
		return Config{}, extErrors.Wrap(err, "Cannot load configurations from .env")
	}
	return Parse(env.Options{})
}

// Parse builds a Config from the environment described by opts
func Parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, extErrors.Wrap(err, "Cannot parse configurations")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that the env tags cannot express
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("Unknown API_ENV %q", c.Environment)
	}
	if !strings.HasPrefix(c.StripeWebhookSecret, "whsec_") {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET does not look like a webhook signing secret")
	}
	if c.StripePriceMonthly == c.StripePriceAnnual {
		return fmt.Errorf("STRIPE_PRICE_MONTHLY and STRIPE_PRICE_ANNUAL must differ")
	}
	if c.WebhookTolerance <= 0 {
		return fmt.Errorf("WEBHOOK_TOLERANCE must be positive")
	}
	if c.SiteURL != "" {
		u, err := url.Parse(c.SiteURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("SITE_URL must be an absolute URL")
		}
		c.SiteURL = strings.TrimSuffix(c.SiteURL, "/")
	}
	if c.AuthJWTSecret != "" && len(c.AuthJWTSecret) < 16 {
		return fmt.Errorf("jwt signing key must be at least 16 characters")
	}
	return nil
}

// Production reports whether the process runs with production settings
func (c Config) Production() bool {
	return c.Environment == EnvProduction
}

// WorkerConfig is the subset of settings cmd/worker needs
type WorkerConfig struct {
	Environment Environment `env:"API_ENV" envDefault:"development"`
	AMQPURI     string      `env:"AMQP_URI,required"`
	SentryDSN   string      `env:"SENTRY_DSN"`
}

// LoadWorker is Load for cmd/worker
func LoadWorker(dotFile string) (WorkerConfig, error) {
	if err := godotenv.Load(dotFile); err != nil && !os.IsNotExist(err) {
		return WorkerConfig{}, extErrors.Wrap(err, "Cannot load configurations from .env")
	}
	return ParseWorker(env.Options{})
}

// ParseWorker builds a WorkerConfig from the environment described by opts
func ParseWorker(opts env.Options) (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return WorkerConfig{}, extErrors.Wrap(err, "Cannot parse configurations")
	}
	switch cfg.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return WorkerConfig{}, fmt.Errorf("Unknown API_ENV %q", cfg.Environment)
	}
	return cfg, nil
}
