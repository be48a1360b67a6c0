package config

import (
	"encoding/base64"
	"os"
	"testing"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadACDefaults(t *testing.T) {
	clearEnv(t, "DATABASE_URL", "AC_MASTER_KEY", "BIND_ADDRESS", "JWT_CLOCK_SKEW_SECONDS")
	t.Setenv("DATABASE_URL", "postgres://localhost/ac?sslmode=disable")
	t.Setenv("AC_MASTER_KEY", base64.StdEncoding.EncodeToString(make([]byte, 32)))

	cfg, err := LoadAC()
	if err != nil {
		t.Fatalf("LoadAC() error: %v", err)
	}

	if cfg.BindAddress != "0.0.0.0:8080" {
		t.Errorf("BindAddress = %q, want default", cfg.BindAddress)
	}
	if cfg.JWTClockSkewSeconds != 60 {
		t.Errorf("JWTClockSkewSeconds = %d, want 60", cfg.JWTClockSkewSeconds)
	}
	if len(cfg.MasterKey()) != 32 {
		t.Errorf("MasterKey() length = %d, want 32", len(cfg.MasterKey()))
	}
}

func TestLoadACRejectsMissingMasterKey(t *testing.T) {
	clearEnv(t, "DATABASE_URL", "AC_MASTER_KEY")
	t.Setenv("DATABASE_URL", "postgres://localhost/ac?sslmode=disable")

	if _, err := LoadAC(); err == nil {
		t.Fatal("LoadAC() with no AC_MASTER_KEY: expected error, got nil")
	}
}

func TestLoadACRejectsShortMasterKey(t *testing.T) {
	clearEnv(t, "DATABASE_URL", "AC_MASTER_KEY")
	t.Setenv("DATABASE_URL", "postgres://localhost/ac?sslmode=disable")
	t.Setenv("AC_MASTER_KEY", base64.StdEncoding.EncodeToString(make([]byte, 16)))

	if _, err := LoadAC(); err == nil {
		t.Fatal("LoadAC() with a 16-byte master key: expected error, got nil")
	}
}

func TestLoadGCDefaults(t *testing.T) {
	clearEnv(t, "DATABASE_URL", "AC_JWKS_URL", "AC_BASE_URL", "AC_TOKEN_URL", "GC_CLIENT_ID", "GC_CLIENT_SECRET")
	t.Setenv("DATABASE_URL", "postgres://localhost/gc?sslmode=disable")
	t.Setenv("AC_JWKS_URL", "http://ac.internal/.well-known/jwks.json")
	t.Setenv("AC_BASE_URL", "http://ac.internal")
	t.Setenv("AC_TOKEN_URL", "http://ac.internal/api/v1/auth/service/token")
	t.Setenv("GC_CLIENT_ID", "gc-client")
	t.Setenv("GC_CLIENT_SECRET", "secret")

	cfg, err := LoadGC()
	if err != nil {
		t.Fatalf("LoadGC() error: %v", err)
	}

	if cfg.Region != "default" {
		t.Errorf("Region = %q, want default", cfg.Region)
	}
	if cfg.MCStalenessThresholdSeconds != 15 {
		t.Errorf("MCStalenessThresholdSeconds = %d, want 15", cfg.MCStalenessThresholdSeconds)
	}
}

func TestLoadGCRequiresClientID(t *testing.T) {
	clearEnv(t, "DATABASE_URL", "AC_JWKS_URL", "AC_BASE_URL", "AC_TOKEN_URL", "GC_CLIENT_ID", "GC_CLIENT_SECRET")
	t.Setenv("DATABASE_URL", "postgres://localhost/gc?sslmode=disable")
	t.Setenv("AC_JWKS_URL", "http://ac.internal/.well-known/jwks.json")
	t.Setenv("AC_BASE_URL", "http://ac.internal")
	t.Setenv("AC_TOKEN_URL", "http://ac.internal/api/v1/auth/service/token")
	t.Setenv("GC_CLIENT_SECRET", "secret")

	if _, err := LoadGC(); err == nil {
		t.Fatal("LoadGC() with no GC_CLIENT_ID: expected error, got nil")
	}
}
