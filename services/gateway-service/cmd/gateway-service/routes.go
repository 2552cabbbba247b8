package main

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/md-rashed-zaman/timely/libs/auth"
	"github.com/md-rashed-zaman/timely/libs/registry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	authService         = "auth-service"
	slotsService        = "slots-service"
	bookingService      = "booking-service"
	notificationService = "notification-service"
)

func registerRoutes(mux *http.ServeMux, resolver registry.Resolver, verifier auth.Verifier, logger *slog.Logger) {
	transport := otelhttp.NewTransport(http.DefaultTransport)
	authProxy := newServiceProxy(authService, resolver, transport, logger)
	slotsProxy := newServiceProxy(slotsService, resolver, transport, logger)
	bookingProxy := newServiceProxy(bookingService, resolver, transport, logger)
	notificationProxy := newServiceProxy(notificationService, resolver, transport, logger)

	registerProxy(mux, "/api/v1/auth", authProxy)
	registerProxy(mux, "/api/v1/slots", requireAuth(slotsProxy, verifier, logger))
	mux.Handle("/api/v1/slots.ics", requireAuth(slotsProxy, verifier, logger))
	registerProxy(mux, "/api/v1/free-slots", requireAuth(slotsProxy, verifier, logger))
	mux.Handle("/api/v1/free-slots.ics", requireAuth(slotsProxy, verifier, logger))
	registerProxy(mux, "/api/v1/bookings", requireAuth(bookingProxy, verifier, logger))
	mux.Handle("/api/v1/notifications", requireAuth(notificationProxy, verifier, logger))

	mux.HandleFunc("/openapi", func(w http.ResponseWriter, _ *http.Request) {
		data, err := openAPISpec.ReadFile("assets/gateway.v1.yaml")
		if err != nil {
			http.Error(w, "openapi not available", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix, handler)
		mux.Handle(prefix+"/", handler)
		return
	}
	mux.Handle(prefix, handler)
}

// serviceProxy resolves an upstream instance per request so that new and departed
// registrations take effect without a restart.
type serviceProxy struct {
	service   string
	resolver  registry.Resolver
	transport http.RoundTripper
	logger    *slog.Logger
}

func newServiceProxy(service string, resolver registry.Resolver, transport http.RoundTripper, logger *slog.Logger) *serviceProxy {
	return &serviceProxy{service: service, resolver: resolver, transport: transport, logger: logger}
}

func (p *serviceProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target, err := p.resolver.Resolve(r.Context(), p.service)
	if err != nil {
		if !errors.Is(err, registry.ErrNoInstances) {
			p.logger.Error("upstream resolve failed", "err", err, "service", p.service)
		}
		http.Error(w, p.service+" unavailable", http.StatusServiceUnavailable)
		return
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = p.transport
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		p.logger.Warn("upstream request failed", "err", err, "service", p.service, "upstream", target.Host)
		http.Error(w, p.service+" unavailable", http.StatusBadGateway)
	}
	proxy.ServeHTTP(w, r)
}

// requireAuth verifies the bearer token and replaces any client supplied identity headers
// with the verified identity.
func requireAuth(next http.Handler, verifier auth.Verifier, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r)
		if !ok {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}
		id, err := verifier.Verify(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			logger.Error("token verification failed", "err", err)
			http.Error(w, "auth unavailable", http.StatusServiceUnavailable)
			return
		}
		auth.SetIdentityHeaders(r.Header, id)
		next.ServeHTTP(w, r)
	})
}

func staticUpstreams(raw map[string]string) registry.Static {
	out := registry.Static{}
	for service, addr := range raw {
		u, err := url.Parse(strings.TrimSpace(addr))
		if err != nil || u.Host == "" {
			continue
		}
		out[service] = u
	}
	return out
}
