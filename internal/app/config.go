package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete gateway configuration, loadable from environment
// variables (GATEWAY_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (GATEWAY_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	JWTSecret    string `usage:"HS256 signing secret for bearer tokens (GATEWAY_JWT_SECRET)" flag:"jwt-secret"`
	ProjectScope string `default:"engram" usage:"Tenant label requests must address via X-Project-Scope" flag:"project-scope"`
	StoreTimeout time.Duration `default:"5s" usage:"Per-request timeout for credential and organization store calls" flag:"store-timeout"`
	CORS         CORSConfig
	RateLimit    RateLimitConfig
	Prefilter    PrefilterConfig
	Graceful     GracefulConfig
}

// CORSConfig controls the origin allowlist. Development origins are always
// allowed in addition to this list.
type CORSConfig struct {
	Origins []string `usage:"Additional allowed CORS origins"`
}

// RateLimitConfig controls the counter store housekeeping. The per-plan
// quotas themselves are fixed in the plan package.
type RateLimitConfig struct {
	CleanupInterval time.Duration `default:"2m" usage:"Eviction interval for expired rate-limit counters" flag:"ratelimit-cleanup"`
}

// PrefilterConfig sizes the API-key Bloom prefilter.
type PrefilterConfig struct {
	Capacity uint `default:"100000" usage:"Expected number of active API keys" flag:"prefilter-capacity"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "GATEWAY",
		Files:     []string{"config.yaml", "/etc/engram/gateway.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set GATEWAY_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT onto the
// GATEWAY_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.JWTSecret == "" {
		if v := os.Getenv("JWT_SECRET"); v != "" {
			c.JWTSecret = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
