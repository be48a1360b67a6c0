// Package config loads environment-variable-driven configuration structs for
// the ac and gc binaries, per the environment variable contract.
package config

import (
	"encoding/base64"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Shared holds configuration common to both binaries.
type Shared struct {
	DatabaseURL         string   `env:"DATABASE_URL,required"`
	BindAddress         string   `env:"BIND_ADDRESS" envDefault:"0.0.0.0:8080"`
	OTLPEndpoint        string   `env:"OTLP_ENDPOINT"`
	LogLevel            string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat           string   `env:"LOG_FORMAT" envDefault:"json"`
	RedisURL            string   `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	CORSAllowedOrigins  []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	MigrationsDir       string   `env:"MIGRATIONS_GLOBAL_DIR" envDefault:"migrations/global"`
	JWTClockSkewSeconds int      `env:"JWT_CLOCK_SKEW_SECONDS" envDefault:"60"`
	DrainSeconds        int      `env:"DRAIN_SECONDS" envDefault:"30"`
}

// ACConfig is the Authentication Controller's configuration.
type ACConfig struct {
	Shared
	MasterKeyB64 string `env:"AC_MASTER_KEY,required"`

	// masterKey is the decoded 32-byte AES-256 key, populated by LoadAC.
	masterKey []byte
}

// MasterKey returns the decoded 32-byte master key.
func (c *ACConfig) MasterKey() []byte { return c.masterKey }

// LoadAC reads Authentication Controller configuration from the environment.
// It fails fast if AC_MASTER_KEY is missing or does not decode to 32 bytes.
func LoadAC() (*ACConfig, error) {
	cfg := &ACConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing AC config from env: %w", err)
	}

	key, err := base64.StdEncoding.DecodeString(cfg.MasterKeyB64)
	if err != nil {
		return nil, fmt.Errorf("AC_MASTER_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("AC_MASTER_KEY must decode to 32 bytes, got %d", len(key))
	}
	cfg.masterKey = key

	return cfg, nil
}

// GCConfig is the Global Controller's configuration.
type GCConfig struct {
	Shared
	ACJWKSURL                     string `env:"AC_JWKS_URL,required"`
	ACBaseURL                     string `env:"AC_BASE_URL,required"`
	ACTokenURL                    string `env:"AC_TOKEN_URL,required"`
	ClientID                      string `env:"GC_CLIENT_ID,required"`
	ClientSecret                  string `env:"GC_CLIENT_SECRET,required"`
	Scope                         string `env:"GC_TOKEN_SCOPE" envDefault:"internal:mint-tokens"`
	Region                        string `env:"GC_REGION" envDefault:"default"`
	MCStalenessThresholdSeconds   int    `env:"MC_STALENESS_THRESHOLD_SECONDS" envDefault:"15"`
	HealthSweepIntervalSeconds    int    `env:"HEALTH_SWEEP_INTERVAL_SECONDS" envDefault:"5"`
	AssignmentInactivityMinutes   int    `env:"ASSIGNMENT_INACTIVITY_MINUTES" envDefault:"60"`
	AssignmentRetentionHours      int    `env:"ASSIGNMENT_RETENTION_HOURS" envDefault:"24"`
	AssignmentCleanupIntervalSecs int    `env:"ASSIGNMENT_CLEANUP_INTERVAL_SECONDS" envDefault:"60"`
	GuestTokenRateLimitPerMinute  int    `env:"GUEST_TOKEN_RATE_LIMIT_PER_MINUTE" envDefault:"5"`
}

// LoadGC reads Global Controller configuration from the environment.
func LoadGC() (*GCConfig, error) {
	cfg := &GCConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing GC config from env: %w", err)
	}
	return cfg, nil
}
