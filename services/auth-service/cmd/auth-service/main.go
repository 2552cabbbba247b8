package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/timely/libs/authrpc"
	"github.com/md-rashed-zaman/timely/libs/config"
	"github.com/md-rashed-zaman/timely/libs/db"
	"github.com/md-rashed-zaman/timely/libs/grpcx"
	"github.com/md-rashed-zaman/timely/libs/httpx"
	"github.com/md-rashed-zaman/timely/libs/kafkax"
	otelx "github.com/md-rashed-zaman/timely/libs/otel"
	"github.com/md-rashed-zaman/timely/libs/redisx"
	"github.com/md-rashed-zaman/timely/libs/registry"
	"github.com/md-rashed-zaman/timely/libs/runtime"
	"github.com/md-rashed-zaman/timely/services/auth-service/internal/audit"
	"github.com/md-rashed-zaman/timely/services/auth-service/internal/handlers"
	"github.com/md-rashed-zaman/timely/services/auth-service/internal/outbox"
	"github.com/md-rashed-zaman/timely/services/auth-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "auth-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	secret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.OpenWithConfig(ctx, dbURL, db.PoolConfig{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 1)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	brokers := config.String("KAFKA_BROKERS", "")
	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}

	outboxRepo := outbox.NewRepository(pool)
	userRepo := storage.NewUserRepository(pool, outboxRepo)
	revokedRepo := storage.NewRevokedTokenRepository(pool)
	auditRepo := audit.NewRepository(pool, outboxRepo)

	producer := kafkax.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, producer, logger, outbox.PublisherConfig{
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
		Retention: config.Duration("OUTBOX_RETENTION", 7*24*time.Hour),
	})
	go outboxPublisher.Run(ctx)
	go purgeRevoked(ctx, revokedRepo, logger, config.Duration("REVOKED_PURGE_INTERVAL", time.Hour))

	if rdb := redisx.FromEnv(); rdb != nil {
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})
		reg := registry.New(rdb, config.String("REGISTRY_PREFIX", "registry"), config.Duration("REGISTRY_TTL", 15*time.Second))
		go reg.Run(ctx, registry.SelfInstance(service, port, config.String("ADVERTISE_URL", "")), logger)
	}

	authHandler := handlers.NewAuthHandler(userRepo, revokedRepo, auditRepo, handlers.Config{
		Secret:   secret,
		TokenTTL: config.Duration("ACCESS_TOKEN_TTL", time.Hour),
		AdminKey: config.String("ADMIN_KEY", ""),
	}, logger)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.HandleFunc("/api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("/api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("/api/v1/auth/logout", authHandler.Logout)
	mux.HandleFunc("/api/v1/auth/me", authHandler.Me)
	mux.HandleFunc("/api/v1/auth/verify", authHandler.Verify)
	mux.HandleFunc("/api/v1/auth/audit", authHandler.Audit)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	handler = otelhttp.NewHandler(handler, "auth")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpcx.NewServer(logger)
	authrpc.Register(grpcServer, authHandler.Verifier())
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()
	_ = runtime.RunHTTP(ctx, srv, logger)
	grpcServer.GracefulStop()
	logger.Info("grpc server stopped")
}

func purgeRevoked(ctx context.Context, repo *storage.RevokedTokenRepository, logger *slog.Logger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.PurgeExpired(ctx, time.Now().UTC())
			if err != nil {
				logger.Error("revoked token purge failed", "err", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired revocations", "count", n)
			}
		}
	}
}
