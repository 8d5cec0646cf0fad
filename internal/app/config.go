package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/dormdash/internal/storage/s3"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (DORMDASH_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (DORMDASH_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `usage:"Redis URL for sessions; sessions stay in memory when empty (DORMDASH_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	Session     SessionConfig
	Checkout    CheckoutConfig
	Auth        AuthConfig
	Rating      RatingConfig
	Upload      UploadConfig
	S3          s3.Config
	Gemini      GeminiConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// SessionConfig controls bearer tokens and session expiry.
type SessionConfig struct {
	Secret        string        `usage:"HMAC secret for signing session tokens" flag:"session-secret"`
	TTL           time.Duration `default:"24h" usage:"Session lifetime"`
	SweepInterval time.Duration `default:"5m" usage:"Expired in-memory session sweep interval"`
}

// CheckoutConfig controls order pricing.
type CheckoutConfig struct {
	TaxRate string `default:"0.05" usage:"Tax rate applied to the cart subtotal"`
}

// AuthConfig controls password hashing.
type AuthConfig struct {
	BcryptCost int `default:"10" usage:"bcrypt cost for password hashes"`
}

// RatingConfig controls the optimistic rating update.
type RatingConfig struct {
	MaxAttempts int `default:"5" usage:"Attempts before a contended rating fails"`
}

// UploadConfig limits vendor image uploads.
type UploadConfig struct {
	MaxBytes int64 `default:"5242880" usage:"Maximum image upload size in bytes"`
}

// GeminiConfig configures the food assistant. The assistant is disabled
// without an API key.
type GeminiConfig struct {
	APIKey          string        `usage:"Gemini API key" flag:"gemini-api-key"`
	Model           string        `default:"gemini-1.5-flash" usage:"Gemini model name"`
	BaseURL         string        `usage:"Gemini API base URL override"`
	Timeout         time.Duration `default:"30s" usage:"Gemini request timeout"`
	Temperature     float64       `default:"0.7" usage:"Sampling temperature"`
	MaxOutputTokens int           `default:"1024" usage:"Maximum tokens per answer"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers. Origins also
// restrict WebSocket upgrades.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "DORMDASH",
		Files:     []string{"config.yaml", "/etc/dormdash/config.yaml"},
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

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set DORMDASH_DATABASE_URL or DATABASE_URL")
	}
	if c.Session.Secret == "" {
		return errors.New("session secret is required: set DORMDASH_SESSION_SECRET")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	rate, err := c.Checkout.Rate()
	if err != nil {
		return err
	}
	if rate.IsNegative() {
		return errors.New("tax rate must not be negative")
	}
	return nil
}

// Rate parses TaxRate.
func (c CheckoutConfig) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse tax rate %q", c.TaxRate)
	}
	return rate, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL, REDIS_URL and PORT
// to the application's DORMDASH_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
