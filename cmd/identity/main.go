package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/wrenhollow/aegis/internal/identity/adapters/primary/broker"
	"github.com/wrenhollow/aegis/internal/identity/adapters/secondary/cache"
	"github.com/wrenhollow/aegis/internal/identity/adapters/secondary/eventbroker"
	"github.com/wrenhollow/aegis/internal/identity/adapters/secondary/mail"
	"github.com/wrenhollow/aegis/internal/identity/adapters/secondary/repository"
	"github.com/wrenhollow/aegis/internal/identity/adapters/secondary/security"
	"github.com/wrenhollow/aegis/internal/identity/config"
	"github.com/wrenhollow/aegis/internal/identity/core/services"
	"github.com/wrenhollow/aegis/internal/platform/logging"
	"github.com/wrenhollow/aegis/internal/platform/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	logging.Init(cfg.ServiceName, cfg.Env)
	slog.Info("starting identity service", "queue", cfg.NatsQueue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.ServiceName, cfg.Env, cfg.OtelEndpoint)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				slog.Error("shutting down tracer", "error", err)
			}
		}()
	}

	dbConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		slog.Error("unable to parse db config", "error", err)
		os.Exit(1)
	}
	dbConfig.ConnConfig.Tracer = otelpgx.NewTracer()

	dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		slog.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		slog.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected")

	nc, err := connectBroker(cfg)
	if err != nil {
		slog.Error("failed to connect to broker", "error", err)
		os.Exit(1)
	}
	defer nc.Close()
	slog.Info("broker connected", "tls", cfg.BrokerTLS.Enabled())

	events, err := eventbroker.NewNatsBroker(ctx, nc)
	if err != nil {
		slog.Error("failed to init event stream", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
	})
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		slog.Error("redis ping failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.Info("redis connected")

	tokenCache := cache.NewRedisCache(redisClient)
	hasher := security.NewArgon2Hasher(nil)
	codec := security.NewJWTCodec(cfg.JWTSecret, cfg.AccessExpiry, cfg.RefreshExpiry)
	mailer := mail.NewDispatcher(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPass, cfg.VerifyURL)
	repo := repository.NewPostgresRepo(dbPool)

	identityService := services.NewIdentityService(repo, tokenCache, hasher, codec, mailer, events, cfg.RefreshExpiry, cfg.VerifyTTL)

	rpcServer := broker.NewServer(nc, cfg.NatsQueue, cfg.NatsQueue, identityService)
	if err := rpcServer.Start(); err != nil {
		slog.Error("failed to start rpc server", "error", err)
		os.Exit(1)
	}
	slog.Info("identity rpc server listening", "subject", cfg.NatsQueue)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit
	slog.Info("signal received, shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		_ = rpcServer.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("rpc server drained")
	case <-shutdownCtx.Done():
		slog.Warn("shutdown timeout reached")
	}

	slog.Info("identity service stopped")
}

// connectBroker dials NATS with TLS built from the AMQP-shaped cert knobs
// spec §6 enumerates, per SPEC_FULL.md §C.1: unconditional in production,
// explicitly logged when omitted elsewhere.
func connectBroker(cfg *config.Config) (*nats.Conn, error) {
	opts := []nats.Option{}
	if cfg.NatsUser != "" {
		opts = append(opts, nats.UserInfo(cfg.NatsUser, cfg.NatsPass))
	}

	if cfg.BrokerTLS.Enabled() {
		tlsConfig, err := loadBrokerTLS(cfg.BrokerTLS)
		if err != nil {
			return nil, fmt.Errorf("load broker tls: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	} else {
		slog.Warn("broker TLS not configured; connecting in plaintext (non-production only)")
	}

	return nats.Connect(cfg.NatsURL, opts...)
}

func loadBrokerTLS(tc config.BrokerTLSConfig) (*tls.Config, error) {
	certPEM, err := os.ReadFile(tc.CertPath)
	if err != nil {
		return nil, fmt.Errorf("read client cert: %w", err)
	}
	keyPEM, err := os.ReadFile(tc.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("read client key: %w", err)
	}
	if tc.Passphrase != "" {
		keyPEM, err = decryptPrivateKey(keyPEM, tc.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("decrypt client key: %w", err)
		}
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("load client cert/key: %w", err)
	}

	tlsConfig := &tls.Config{Certificates: []tls.Certificate{cert}}

	if tc.CAPath != "" {
		caCert, err := os.ReadFile(tc.CAPath)
		if err != nil {
			return nil, fmt.Errorf("read ca cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("parse ca cert: %s", tc.CAPath)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

// decryptPrivateKey handles a PEM-encrypted client key (the PASSPHRASE
// knob in spec §6's broker env vars). x509.DecryptPEMBlock is deprecated
// upstream but remains the only stdlib path for this legacy PEM format;
// encrypted keys are rare enough in modern deployments that reaching for a
// third-party PKCS#8 library for this one knob isn't warranted.
func decryptPrivateKey(keyPEM []byte, passphrase string) ([]byte, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in client key")
	}
	if !x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck // legacy PEM encryption, no replacement in stdlib
		return keyPEM, nil
	}

	der, err := x509.DecryptPEMBlock(block, []byte(passphrase)) //nolint:staticcheck
	if err != nil {
		return nil, err
	}

	return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
}
