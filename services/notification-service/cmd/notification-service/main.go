package main

import (
	"context"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/timely/libs/config"
	"github.com/md-rashed-zaman/timely/libs/db"
	"github.com/md-rashed-zaman/timely/libs/httpx"
	"github.com/md-rashed-zaman/timely/libs/kafkax"
	otelx "github.com/md-rashed-zaman/timely/libs/otel"
	"github.com/md-rashed-zaman/timely/libs/redisx"
	"github.com/md-rashed-zaman/timely/libs/registry"
	"github.com/md-rashed-zaman/timely/libs/runtime"
	"github.com/md-rashed-zaman/timely/services/notification-service/internal/consumer"
	"github.com/md-rashed-zaman/timely/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/timely/services/notification-service/internal/handlers"
	"github.com/md-rashed-zaman/timely/services/notification-service/internal/inbox"
	"github.com/md-rashed-zaman/timely/services/notification-service/internal/messages"
	"github.com/md-rashed-zaman/timely/services/notification-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)

	emailSender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@timely.local"),
	)
	dispatcher := messages.NewDispatcher(emailSender, notificationsRepo, logger, config.String("NOTIFICATION_FAIL_SUFFIX", ""))

	if len(kafkax.SplitBrokers(brokers)) == 0 {
		logger.Warn("kafka consumer disabled (no kafka brokers configured)")
	} else {
		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
			Topics:  dispatcher.Topics(),
			Retries: config.Int("CONSUMER_RETRIES", 3),
			Backoff: config.Duration("CONSUMER_BACKOFF", time.Second),
		}, dispatcher.Handle)
		go eventConsumer.Run(ctx)
	}

	if rdb := redisx.FromEnv(); rdb != nil {
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})
		reg := registry.New(rdb, config.String("REGISTRY_PREFIX", "registry"), config.Duration("REGISTRY_TTL", 15*time.Second))
		go reg.Run(ctx, registry.SelfInstance(service, port, config.String("ADVERTISE_URL", "")), logger)
	}

	notificationsHandler := handlers.NewNotificationsHandler(notificationsRepo, logger)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.HandleFunc("/api/v1/notifications", notificationsHandler.List)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	_ = runtime.RunHTTP(ctx, srv, logger)
}
