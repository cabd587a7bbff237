package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/wrenhollow/aegis/genproto/visionpb"
	"github.com/wrenhollow/aegis/internal/gateway/admission"
	"github.com/wrenhollow/aegis/internal/gateway/config"
	"github.com/wrenhollow/aegis/internal/gateway/identityclient"
	transporthttp "github.com/wrenhollow/aegis/internal/gateway/transport/http"
	visionclient "github.com/wrenhollow/aegis/internal/gateway/transport/vision"
	"github.com/wrenhollow/aegis/internal/platform/logging"
	"github.com/wrenhollow/aegis/internal/platform/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	logging.Init(cfg.ServiceName, cfg.Env)
	slog.Info("starting gateway", "port", cfg.Port)

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

	natsOpts := []nats.Option{}
	if cfg.NatsUser != "" {
		natsOpts = append(natsOpts, nats.UserInfo(cfg.NatsUser, cfg.NatsPass))
	}
	nc, err := nats.Connect(cfg.NatsURL, natsOpts...)
	if err != nil {
		slog.Error("failed to connect to broker", "error", err)
		os.Exit(1)
	}
	defer nc.Close()
	slog.Info("broker connected", "subject", cfg.NatsSubject)

	visionConn := mustConnectGrpc(cfg.VisionAddr(), "vision")
	defer visionConn.Close()

	identity := identityclient.NewClient(nc, cfg.NatsSubject)
	vision := visionclient.New(visionpb.NewClient(visionConn))
	guard := admission.New(identity, cfg.RateLimitBudget, cfg.RateLimitWindow, cfg.TrustedProxies)

	router := transporthttp.NewRouter(identity, vision, guard)

	var handler http.Handler = router.Handler()
	handler = cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"token", "Content-Type", "baggage", "sentry-trace"},
		AllowCredentials: true,
	}).Handler(handler)
	handler = otelhttp.NewHandler(handler, "gateway", otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
		return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)
	}))

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	go func() {
		slog.Info("gateway listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit
	slog.Info("signal received, shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("gateway stopped")
}

func mustConnectGrpc(addr, serviceName string) *grpc.ClientConn {
	conn, err := grpc.NewClient(
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		slog.Error("failed to connect to backend", "service", serviceName, "addr", addr, "error", err)
		os.Exit(1)
	}
	return conn
}
