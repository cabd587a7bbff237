package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds every knob the identity service reads from its environment,
// grouped the way spec §6 enumerates them.
type Config struct {
	Env         string // e.g. "local", "dev", "production"
	ServiceName string
	NatsURL     string
	NatsUser    string
	NatsPass    string
	NatsQueue   string
	BrokerTLS   BrokerTLSConfig

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTSecret     string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration

	RedisHost     string
	RedisPort     string
	RedisPassword string

	MailHost    string
	MailPort    string
	MailUser    string
	MailPass    string
	VerifyURL   string // URL_HOST:URL_PORT prefix the verification link is built against
	VerifyTTL   time.Duration
	OtelEndpoint string
}

// BrokerTLSConfig carries the AMQP-shaped TLS knobs spec §6 enumerates for
// the broker, applied to the NATS connection per SPEC_FULL.md §C.1.
type BrokerTLSConfig struct {
	CertPath   string
	KeyPath    string
	Passphrase string
	CAPath     string
}

// Enabled reports whether a client certificate was configured.
func (b BrokerTLSConfig) Enabled() bool {
	return b.CertPath != "" && b.KeyPath != ""
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:         getEnv("ENV", "local"),
		ServiceName: getEnv("SERVICE_NAME", "identity-service"),
		NatsURL:     getEnv("HOST", "nats://localhost:4222"),
		NatsUser:    getEnv("USER", ""),
		NatsPass:    getEnv("PASS", ""),
		NatsQueue:   getEnv("QUEUE", "identity.rpc"),
		BrokerTLS: BrokerTLSConfig{
			CertPath:   getEnv("CERT_PATH", ""),
			KeyPath:    getEnv("KEY_PATH", ""),
			Passphrase: getEnv("PASSPHRASE", ""),
			CAPath:     getEnv("CA_PATH", ""),
		},

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USERNAME", "identity"),
		DBPassword: getEnv("DB_PASSWORD", "identity"),
		DBName:     getEnv("DB_NAME", "identity_db"),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		AccessExpiry:  getEnvDuration("ACCESS_TOKEN_TTL", 12*time.Hour),
		RefreshExpiry: getEnvDuration("REFRESH_TOKEN_TTL", 24*time.Hour),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		MailHost:  getEnv("MAIL_HOST", "localhost"),
		MailPort:  getEnv("MAIL_PORT", "1025"),
		MailUser:  getEnv("MAIL_USER", ""),
		MailPass:  getEnv("MAIL_PASS", ""),
		VerifyURL: fmt.Sprintf("%s:%s", getEnv("URL_HOST", "localhost"), getEnv("URL_PORT", "8080")),
		VerifyTTL: getEnvDuration("VERIFICATION_KEY_TTL", 30*time.Minute),

		OtelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	if cfg.Env == "production" {
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		if !cfg.BrokerTLS.Enabled() {
			return nil, fmt.Errorf("CERT_PATH/KEY_PATH are required in production (broker TLS downgrade must be explicit)")
		}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "local-development-secret-do-not-use-in-production"
	}

	return cfg, nil
}

// DSN builds the Postgres connection string pgxpool expects.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// RedisAddr builds the host:port go-redis expects.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
