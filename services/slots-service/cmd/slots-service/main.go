package main

import (
	"context"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/timely/libs/config"
	"github.com/md-rashed-zaman/timely/libs/httpx"
	"github.com/md-rashed-zaman/timely/libs/itemstore"
	"github.com/md-rashed-zaman/timely/libs/lockx"
	otelx "github.com/md-rashed-zaman/timely/libs/otel"
	"github.com/md-rashed-zaman/timely/libs/redisx"
	"github.com/md-rashed-zaman/timely/libs/registry"
	"github.com/md-rashed-zaman/timely/libs/runtime"
	"github.com/md-rashed-zaman/timely/services/slots-service/internal/calendar"
	"github.com/md-rashed-zaman/timely/services/slots-service/internal/handlers"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "slots-service")
	port, err := config.Port("PORT", "8082")
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

	stores, err := itemstore.Open(ctx, itemstore.OpenConfig{
		Backend:  config.String("ITEMSTORE", "mongo"),
		MongoURI: config.String("MONGO_URI", "mongodb://mongo:27017"),
		Database: config.String("MONGO_DB", "timely"),
	})
	if err != nil {
		logger.Error("item store init failed", "err", err)
		panic(err)
	}
	defer stores.Close()

	checks := []runtime.ReadyCheck{{Name: "itemstore", Check: stores.Ready}}

	rdb := redisx.FromEnv()
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})

		reg := registry.New(rdb, config.String("REGISTRY_PREFIX", "registry"), config.Duration("REGISTRY_TTL", 15*time.Second))
		go reg.Run(ctx, registry.SelfInstance(service, port, config.String("ADVERTISE_URL", "")), logger)
	} else {
		logger.Warn("REDIS_ADDR not set; service registry disabled")
	}
	locker, err := lockx.Open(rdb, stores.Shared, lockx.RedisConfig{
		Prefix: config.String("LOCK_PREFIX", "timely:owner"),
		TTL:    config.Duration("LOCK_TTL", 10*time.Second),
		Wait:   config.Duration("LOCK_WAIT", 5*time.Second),
	})
	if err != nil {
		logger.Error("owner locks unavailable", "err", err)
		panic(err)
	}

	slotsHandler := handlers.NewSlotsHandler(calendar.NewService(stores.Slots, stores.Reservations, locker, logger), logger)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.HandleFunc("/api/v1/slots", slotsHandler.Slots)
	mux.HandleFunc("/api/v1/slots/{slot_id}", slotsHandler.Slot)
	mux.HandleFunc("/api/v1/slots.ics", slotsHandler.SlotsICS)
	mux.HandleFunc("/api/v1/free-slots", slotsHandler.FreeSlots)
	mux.HandleFunc("/api/v1/free-slots.ics", slotsHandler.FreeSlotsICS)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "slots")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	_ = runtime.RunHTTP(ctx, srv, logger)
}
