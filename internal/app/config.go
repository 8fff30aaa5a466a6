package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the storefront configuration, loadable from environment
// variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr       string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	BackendURL string `usage:"Storefront backend base URL (STOREFRONT_BACKEND_URL or BACKEND_URL)" flag:"backend-url"`
	Storage    StorageConfig
	Backend    BackendConfig
	Checkout   CheckoutConfig
	Pricing    PricingConfig
	Cart       CartConfig
	Devices    DevicesConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	Graceful   GracefulConfig
}

// StorageConfig selects where device carts and receipts are kept.
type StorageConfig struct {
	Driver string `default:"sqlite" usage:"Storage driver: sqlite or postgres"`
	DSN    string `default:"storefront.db" usage:"SQLite path or PostgreSQL URL (DATABASE_URL for postgres)"`
}

// BackendConfig tunes calls to the storefront backend.
type BackendConfig struct {
	Timeout time.Duration `default:"10s" usage:"Timeout for a single backend call"`
}

// CheckoutConfig controls checkout sessions.
type CheckoutConfig struct {
	Window time.Duration `default:"15m" usage:"Payment window of a checkout session"`
}

// PricingConfig selects the delivery fee table.
type PricingConfig struct {
	FeeTable string `default:"simple" usage:"Delivery fee table: simple or tiered" flag:"fee-table"`
}

// CartConfig controls cart reconciliation.
type CartConfig struct {
	MergePolicy string `default:"replace" usage:"Cart merge on sign-in: replace or keep-guest" flag:"merge-policy"`
}

// DevicesConfig controls the in-memory device registry.
type DevicesConfig struct {
	IdleTTL time.Duration `default:"30m" usage:"Evict devices idle for this long" flag:"device-idle-ttl"`
}

// RateLimitConfig controls the per-device token bucket limiter.
type RateLimitConfig struct {
	RPS   float64 `default:"10" usage:"Sustained requests per second per device"`
	Burst int     `default:"40" usage:"Request burst per device"`
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

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		Files: []string{"config.yaml", "/etc/storefront/config.yaml"},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	ac.EnvPrefix = "STOREFRONT"
	ac.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}

	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings the storefront cannot start with.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return errors.New("backend URL is required: set STOREFRONT_BACKEND_URL or BACKEND_URL")
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		return errors.New("storage DSN is required")
	}
	if c.Checkout.Window <= 0 {
		return errors.New("checkout window must be positive")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit RPS and burst must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like PORT, BACKEND_URL and DATABASE_URL onto the
// STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.BackendURL == "" {
		c.BackendURL = os.Getenv("BACKEND_URL")
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "storefront.db" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.Storage.DSN = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
