package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/jllopis/actionhub/pkg/audit"
	"github.com/jllopis/actionhub/pkg/config"
	"github.com/jllopis/actionhub/pkg/dispatch"
	"github.com/jllopis/actionhub/pkg/executor"
	"github.com/jllopis/actionhub/pkg/generate"
	"github.com/jllopis/actionhub/pkg/health"
	"github.com/jllopis/actionhub/pkg/ratelimit"
	"github.com/jllopis/actionhub/pkg/registry"
	"github.com/jllopis/actionhub/pkg/schema"
	"github.com/jllopis/actionhub/pkg/telemetry"
)

// app holds the configuration and the lazily built components shared by
// the commands.
type app struct {
	cfg    *config.Config
	flags  globalFlags
	out    io.Writer
	logger *slog.Logger

	schemas *schema.Compiler
	reg     *registry.Registry
	metrics *telemetry.DispatchMetrics
	limiter ratelimit.Limiter
	audit   audit.Store
	health  *health.Provider

	closers []func() error
}

func newApp(cfg *config.Config, flags globalFlags, out io.Writer) *app {
	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return &app{cfg: cfg, flags: flags, out: out, logger: logger}
}

// Close releases backends opened by the commands. It is safe to call twice.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
	a.closers = nil
}

func (a *app) sources() registry.Sources {
	return registry.Sources{
		ReposPath:   a.cfg.Registry.ReposPath,
		ActionsPath: a.cfg.Registry.ActionsPath,
	}
}

func (a *app) compiler() *schema.Compiler {
	if a.schemas == nil {
		a.schemas = schema.NewCompiler(a.cfg.Registry.SchemasDir,
			schema.WithLogger(a.logger),
			schema.WithMetrics(a.metrics),
		)
	}
	return a.schemas
}

func (a *app) registry(ctx context.Context) (*registry.Registry, error) {
	if a.reg != nil {
		return a.reg, nil
	}
	l := registry.NewLoader(a.sources(),
		registry.WithValidator(a.compiler()),
		registry.WithLoaderLogger(a.logger),
	)
	reg, err := l.Load(ctx)
	if err != nil {
		return nil, NewRegistryError(err)
	}
	a.reg = reg
	return reg, nil
}

func (a *app) initTelemetry(ctx context.Context) error {
	shutdown, err := telemetry.InitWithConfig(ctx, a.cfg.Telemetry.ServiceName, version, telemetry.Config{
		Exporter:     a.cfg.Telemetry.Exporter,
		OTLPEndpoint: a.cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: a.cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { return shutdown(context.Background()) })

	metrics, err := telemetry.NewDispatchMetrics()
	if err != nil {
		return err
	}
	a.metrics = metrics
	return nil
}

func (a *app) rateLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	if a.limiter != nil {
		return a.limiter, nil
	}
	switch a.cfg.RateLimit.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		a.limiter = ratelimit.NewMemoryLimiter()
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.RateLimit.Redis.Addr,
			Password: a.cfg.RateLimit.Redis.Password,
			DB:       a.cfg.RateLimit.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		limiter := ratelimit.NewRedisLimiter(client)
		if err := limiter.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connect to redis %s: %w", a.cfg.RateLimit.Redis.Addr, err)
		}
		a.limiter = limiter
		a.healthProvider().Register("ratelimit", health.PingChecker(limiter))
	default:
		return nil, fmt.Errorf("unknown ratelimit backend %q", a.cfg.RateLimit.Backend)
	}
	return a.limiter, nil
}

func (a *app) auditStore(ctx context.Context) (audit.Store, error) {
	if a.audit != nil {
		return a.audit, nil
	}
	switch a.cfg.Audit.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		a.audit = audit.NewMemoryStore()
	case "sqlite":
		store, err := audit.OpenSQLite(ctx, a.cfg.Audit.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		a.audit = store
		a.healthProvider().Register("audit", health.PingChecker(store))
	default:
		return nil, fmt.Errorf("unknown audit backend %q", a.cfg.Audit.Backend)
	}
	return a.audit, nil
}

func (a *app) healthProvider() *health.Provider {
	if a.health == nil {
		a.health = health.NewProvider(0)
	}
	return a.health
}

// dispatcher builds the full dispatch pipeline from configuration.
func (a *app) dispatcher(ctx context.Context) (*dispatch.Dispatcher, error) {
	reg, err := a.registry(ctx)
	if err != nil {
		return nil, err
	}
	router, err := executor.FromConfig(a.cfg.Gateway, a.logger)
	if err != nil {
		return nil, NewConfigError(err, a.flags.ConfigPath)
	}
	a.closers = append(a.closers, router.Close)
	limiter, err := a.rateLimiter(ctx)
	if err != nil {
		return nil, err
	}
	store, err := a.auditStore(ctx)
	if err != nil {
		return nil, err
	}

	timeout := a.cfg.Gateway.DispatchTimeout
	if a.flags.Timeout > 0 {
		timeout = a.flags.Timeout
	}
	opts := []dispatch.Option{
		dispatch.WithLogger(a.logger),
		dispatch.WithMetrics(a.metrics),
		dispatch.WithTimeout(timeout),
	}
	if limiter != nil {
		opts = append(opts, dispatch.WithLimiter(limiter))
	}
	if store != nil {
		opts = append(opts, dispatch.WithAuditStore(store))
	}

	hp := a.healthProvider()
	hp.Register("registry", health.RegistryChecker(reg))
	hp.Register("executors", health.ExecutorChecker(router))

	return dispatch.New(reg, a.compiler(), router, opts...), nil
}

func (a *app) openAPIOptions() generate.OpenAPIOptions {
	o := a.cfg.OpenAPI
	opts := generate.OpenAPIOptions{
		Title:       o.Title,
		Version:     o.Version,
		Description: o.Description,
	}
	if o.Contact.Name != "" || o.Contact.Email != "" || o.Contact.URL != "" {
		opts.Contact = &generate.Contact{Name: o.Contact.Name, Email: o.Contact.Email, URL: o.Contact.URL}
	}
	for _, s := range o.Servers {
		opts.Servers = append(opts.Servers, generate.Server{URL: s.URL, Description: s.Description})
	}
	return opts
}
