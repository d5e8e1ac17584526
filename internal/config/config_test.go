package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.GRPCAddr() != "0.0.0.0:50051" {
		t.Fatalf("addrs = %q %q", cfg.HTTPAddr, cfg.GRPCAddr())
	}
	if cfg.ShutdownTimeout != 10*time.Second || cfg.OutboxPollInterval != 2*time.Second {
		t.Fatalf("durations = %v %v", cfg.ShutdownTimeout, cfg.OutboxPollInterval)
	}
	if cfg.RedisAddr != "" || cfg.KafkaBrokers != "" || cfg.BreakMinutes != 0 {
		t.Fatalf("optional integrations should default off: %+v", cfg)
	}
	if cfg.Location != time.UTC {
		t.Fatalf("location = %v, want UTC", cfg.Location)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AGENDOAI_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("AGENDOAI_BOOKING_BREAK_MINUTES", "10")
	t.Setenv("AGENDOAI_HTTP_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("AGENDOAI_REDIS_CATALOG_TTL", "90s")
	t.Setenv("AGENDOAI_HTTP_TRUSTED_PROXIES", "10.0.0.0/8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.GRPCAddr() != "127.0.0.1:6000" {
		t.Fatalf("grpc addr = %q", cfg.GRPCAddr())
	}
	if cfg.BreakMinutes != 10 || cfg.KafkaBrokers != "k1:9092,k2:9092" || cfg.RedisCatalogTTL != 90*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("cors = %v", cfg.CORSOrigins)
	}
	if len(cfg.TrustedProxies) != 1 || cfg.TrustedProxies[0] != "10.0.0.0/8" {
		t.Fatalf("trusted proxies = %v", cfg.TrustedProxies)
	}
}

func TestLoad_InvalidValuesFail(t *testing.T) {
	tests := map[string]string{
		"AGENDOAI_SHUTDOWN_TIMEOUT":      "soon",
		"AGENDOAI_OTEL_SAMPLE_RATIO":     "2",
		"AGENDOAI_BOOKING_BREAK_MINUTES": "-5",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("Load accepted %s=%s", key, val)
			}
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("AGENDOAI_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("AGENDOAI_LOG_LEVEL") })

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q, want debug", cfg.LogLevel)
	}
}
