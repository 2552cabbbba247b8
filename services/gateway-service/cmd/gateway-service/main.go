package main

import (
	"context"
	"embed"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/timely/libs/auth"
	"github.com/md-rashed-zaman/timely/libs/authrpc"
	"github.com/md-rashed-zaman/timely/libs/config"
	"github.com/md-rashed-zaman/timely/libs/grpcx"
	"github.com/md-rashed-zaman/timely/libs/httpx"
	otelx "github.com/md-rashed-zaman/timely/libs/otel"
	"github.com/md-rashed-zaman/timely/libs/redisx"
	"github.com/md-rashed-zaman/timely/libs/registry"
	"github.com/md-rashed-zaman/timely/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

//go:embed assets/gateway.v1.yaml
var openAPISpec embed.FS

func main() {
	service := config.String("SERVICE_NAME", "gateway-service")
	port, err := config.Port("PORT", "8080")
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

	static := staticUpstreams(map[string]string{
		authService:         config.String("AUTH_URL", "http://auth-service:8081"),
		slotsService:        config.String("SLOTS_URL", "http://slots-service:8082"),
		bookingService:      config.String("BOOKING_URL", "http://booking-service:8083"),
		notificationService: config.String("NOTIFICATION_URL", "http://notification-service:8085"),
	})

	var checks []runtime.ReadyCheck
	var resolver registry.Resolver = static
	rdb := redisx.FromEnv()
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		reg := registry.New(rdb, config.String("REGISTRY_PREFIX", "registry"), config.Duration("REGISTRY_TTL", 15*time.Second))
		resolver = registry.NewRedisResolver(reg, static, logger)
		checks = append(checks, runtime.ReadyCheck{Name: "registry", Check: reg.ReadyCheck()})
	}

	verifier, closeVerifier := buildVerifier(ctx, logger)
	defer closeVerifier()

	mux := runtime.NewBaseMuxWithReady(checks...)
	registerRoutes(mux, resolver, verifier, logger)

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	var rateLimitMW httpx.Middleware
	if rdb != nil {
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   config.List("CORS_ALLOWED_METHODS", "GET,POST,DELETE,OPTIONS"),
			AllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id"),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           config.Duration("CORS_MAX_AGE", 10*time.Minute),
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 10*time.Second)),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "gateway")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	_ = runtime.RunHTTP(ctx, srv, logger)
}

// buildVerifier returns the gRPC verifier backed by auth-service (VERIFIER=grpc, the default) or an
// in-process HS256 check (VERIFIER=local). The local check cannot see revocations.
func buildVerifier(ctx context.Context, logger *slog.Logger) (auth.Verifier, func()) {
	local := func() (auth.Verifier, func()) {
		return auth.NewLocalVerifier(config.String("JWT_SECRET", "dev-secret"), nil), func() {}
	}
	if strings.EqualFold(config.String("VERIFIER", "grpc"), "local") {
		logger.Info("token verification: local")
		return local()
	}

	addr := config.String("AUTH_GRPC_ADDR", "auth-service:9081")
	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: config.Duration("AUTH_GRPC_DIAL_TIMEOUT", 3*time.Second)})
	if err != nil {
		logger.Error("auth grpc dial failed; falling back to local verification", "err", err, "addr", addr)
		return local()
	}
	logger.Info("token verification: grpc", "addr", addr)
	return authrpc.NewClient(conn), func() { _ = conn.Close() }
}
