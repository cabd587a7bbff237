// Package config loads the gateway's environment configuration, following
// the same getEnv/getEnvDuration convention as the identity service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

type Config struct {
	Env         string
	ServiceName string
	Port        string

	NatsURL     string
	NatsUser    string
	NatsPass    string
	NatsSubject string

	VisionHost string
	VisionPort string

	RateLimitBudget int
	RateLimitWindow time.Duration

	CORSOrigins []string

	// TrustedProxies lists the reverse-proxy IPs allowed to set
	// X-Forwarded-For for admission's SourceAddr; empty means none are
	// trusted and RemoteAddr is always used.
	TrustedProxies []string

	OtelEndpoint string
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:         getEnv("ENV", "local"),
		ServiceName: getEnv("SERVICE_NAME", "aegis-gateway"),
		Port:        getEnv("PORT", "8080"),

		NatsURL:     getEnv("BROKER_URL", nats.DefaultURL),
		NatsUser:    getEnv("BROKER_USER", ""),
		NatsPass:    getEnv("BROKER_PASS", ""),
		NatsSubject: getEnv("BROKER_SUBJECT", "identity.rpc"),

		VisionHost: getEnv("VISION_HOST", "localhost"),
		VisionPort: getEnv("VISION_PORT", "50051"),

		RateLimitBudget: getEnvInt("RATE_LIMIT_BUDGET", 3),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Hour),

		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),

		TrustedProxies: getEnvList("TRUSTED_PROXIES", nil),

		OtelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	if cfg.Env == "production" {
		if cfg.NatsUser == "" {
			return nil, fmt.Errorf("BROKER_USER must be set in production")
		}
	}

	return cfg, nil
}

func (c *Config) VisionAddr() string {
	return fmt.Sprintf("%s:%s", c.VisionHost, c.VisionPort)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
