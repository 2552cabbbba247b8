// Package registry is a small Redis-backed service registry with TTL heartbeats.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNoInstances = errors.New("no healthy instances")

type Instance struct {
	ID      string
	Service string
	// Addr is a base URL, e.g. http://10.0.0.7:8082.
	Addr string
}

type Registry struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func New(rdb *redis.Client, prefix string, ttl time.Duration) *Registry {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "registry"
	}
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Registry{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *Registry) key(service, id string) string {
	return r.prefix + ":" + service + ":" + id
}

func (r *Registry) Register(ctx context.Context, inst Instance) error {
	return r.rdb.Set(ctx, r.key(inst.Service, inst.ID), inst.Addr, r.ttl).Err()
}

func (r *Registry) Deregister(ctx context.Context, inst Instance) error {
	return r.rdb.Del(ctx, r.key(inst.Service, inst.ID)).Err()
}

// Run keeps inst registered until ctx is done, then deregisters it.
func (r *Registry) Run(ctx context.Context, inst Instance, logger *slog.Logger) {
	if err := r.Register(ctx, inst); err != nil {
		logger.Warn("service registration failed", "err", err, "service", inst.Service)
	}
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			dctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := r.Deregister(dctx, inst); err != nil {
				logger.Warn("service deregistration failed", "err", err, "service", inst.Service)
			}
			cancel()
			return
		case <-ticker.C:
			if err := r.Register(ctx, inst); err != nil && ctx.Err() == nil {
				logger.Warn("service heartbeat failed", "err", err, "service", inst.Service)
			}
		}
	}
}

// Instances lists the live instances of service. Expired keys are already gone.
func (r *Registry) Instances(ctx context.Context, service string) ([]Instance, error) {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, r.prefix+":"+service+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Instance, 0, len(keys))
	for i, v := range vals {
		addr, ok := v.(string)
		if !ok || addr == "" {
			continue
		}
		out = append(out, Instance{
			ID:      strings.TrimPrefix(keys[i], r.prefix+":"+service+":"),
			Service: service,
			Addr:    addr,
		})
	}
	return out, nil
}

func (r *Registry) ReadyCheck() func(context.Context) error {
	return func(ctx context.Context) error {
		return r.rdb.Ping(ctx).Err()
	}
}

// Resolver picks a base URL for a service.
type Resolver interface {
	Resolve(ctx context.Context, service string) (*url.URL, error)
}

// Static resolves from fixed configuration.
type Static map[string]*url.URL

func (s Static) Resolve(_ context.Context, service string) (*url.URL, error) {
	u, ok := s[service]
	if !ok || u == nil {
		return nil, ErrNoInstances
	}
	return u, nil
}

// RedisResolver picks a random registered instance and falls back to Static when none is live
// or Redis is unreachable.
type RedisResolver struct {
	reg      *Registry
	fallback Static
	logger   *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRedisResolver(reg *Registry, fallback Static, logger *slog.Logger) *RedisResolver {
	return &RedisResolver{
		reg:      reg,
		fallback: fallback,
		logger:   logger,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *RedisResolver) Resolve(ctx context.Context, service string) (*url.URL, error) {
	instances, err := r.reg.Instances(ctx, service)
	if err != nil {
		r.logger.Warn("registry lookup failed; using static address", "err", err, "service", service)
		return r.fallback.Resolve(ctx, service)
	}
	for len(instances) > 0 {
		i := r.pick(len(instances))
		u, err := url.Parse(instances[i].Addr)
		if err == nil && u.Host != "" {
			return u, nil
		}
		r.logger.Warn("ignoring malformed registry address", "service", service, "addr", instances[i].Addr)
		instances = append(instances[:i], instances[i+1:]...)
	}
	return r.fallback.Resolve(ctx, service)
}

func (r *RedisResolver) pick(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Intn(n)
}

// SelfInstance describes the running process. advertise overrides the derived http://<hostname>:<port>.
func SelfInstance(service, port, advertise string) Instance {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	addr := strings.TrimSpace(advertise)
	if addr == "" {
		addr = "http://" + host + ":" + port
	}
	return Instance{ID: host + "-" + port, Service: service, Addr: addr}
}
