// Package gateway assembles the middleware pipeline and runs the HTTP
// listeners: the main data-path server and the admin server carrying
// metrics and probes.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/melisa-sener/tuition-payment-api/internal/auth/token"
	"github.com/melisa-sener/tuition-payment-api/internal/config"
	"github.com/melisa-sener/tuition-payment-api/internal/health"
	"github.com/melisa-sener/tuition-payment-api/internal/middleware"
	"github.com/melisa-sener/tuition-payment-api/internal/observability"
	"github.com/melisa-sener/tuition-payment-api/internal/proxy"
	"github.com/melisa-sener/tuition-payment-api/internal/ratelimit"
	"github.com/melisa-sener/tuition-payment-api/internal/router"
)

// State represents the gateway state.
type State int32

const (
	// StateStopped indicates the gateway is stopped.
	StateStopped State = iota
	// StateStarting indicates the gateway is starting.
	StateStarting
	// StateRunning indicates the gateway is running.
	StateRunning
	// StateStopping indicates the gateway is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Gateway wires config, pipeline, limiter and forwarder into running
// HTTP servers.
type Gateway struct {
	config  *config.Config
	logger  observability.Logger
	metrics *observability.Metrics
	checker *health.Checker

	table      *router.Table
	tokens     *token.Service
	limiter    ratelimit.Limiter
	forwarder  *proxy.Forwarder
	handler    http.Handler
	stageNames []string

	server      *http.Server
	adminServer *http.Server

	state     atomic.Int32
	startTime time.Time
	errCh     chan error
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger for the gateway.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMetrics sets the metrics registry for the gateway.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = metrics
	}
}

// WithRoutes overrides the default route table.
func WithRoutes(table *router.Table) Option {
	return func(g *Gateway) {
		g.table = table
	}
}

// New creates a gateway from the configuration. The pipeline, rate
// limiter and upstream forwarder are built here; nothing listens until
// Start.
func New(cfg *config.Config, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}

	g := &Gateway{
		config: cfg,
		logger: observability.NopLogger(),
		errCh:  make(chan error, 2),
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.metrics == nil {
		g.metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}
	g.metrics.SetBuildInfo(Version, Commit, BuildTime)

	if g.table == nil {
		table, err := router.New(router.DefaultRoutes())
		if err != nil {
			return nil, fmt.Errorf("build route table: %w", err)
		}
		g.table = table
	}

	tokens, err := token.NewService(
		cfg.Auth.JWTSecret,
		cfg.Auth.TokenTTL.Duration(),
		token.WithIssuer(cfg.Auth.Issuer),
		token.WithLogger(g.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("build token service: %w", err)
	}
	g.tokens = tokens

	limiter, err := ratelimit.NewFromConfig(cfg.RateLimit, g.logger,
		ratelimit.WithStoreRegisterer(g.metrics.Registry()))
	if err != nil {
		return nil, fmt.Errorf("build rate limiter: %w", err)
	}
	g.limiter = limiter

	forwarder, err := proxy.NewForwarder(cfg.Upstream,
		proxy.WithLogger(g.logger),
		proxy.WithMetrics(g.metrics),
	)
	if err != nil {
		_ = limiter.Close()
		return nil, fmt.Errorf("build upstream forwarder: %w", err)
	}
	g.forwarder = forwarder

	g.checker = health.NewChecker(Version)
	g.handler = g.buildPipeline()

	g.state.Store(int32(StateStopped))

	return g, nil
}

// buildPipeline assembles the middleware stages around the upstream
// forwarder. Order matters: the request logger sits above recovery so
// a panic still produces a single log record with status 500, and
// rate limiting runs before auth so rejected floods never pay the
// token verification cost.
func (g *Gateway) buildPipeline() http.Handler {
	extractor := middleware.NewClientIPExtractor(g.config.RateLimit.TrustedProxies)

	pipeline := middleware.NewPipeline(
		middleware.Stage{Name: "requestid", Wrap: middleware.RequestID()},
		middleware.Stage{Name: "metrics", Wrap: middleware.Metrics(g.metrics, g.table)},
		middleware.Stage{Name: "logging", Wrap: middleware.RequestLog(g.logger, extractor)},
		middleware.Stage{Name: "recovery", Wrap: middleware.Recovery(g.logger)},
		middleware.Stage{Name: "ratelimit", Wrap: middleware.RateLimit(g.limiter, extractor, g.logger, g.metrics)},
		middleware.Stage{Name: "auth", Wrap: middleware.AuthGuard(g.table, g.tokens, g.logger, g.metrics)},
		middleware.Stage{Name: "circuitbreaker", Wrap: middleware.CircuitBreakerFromConfig(
			g.config.Upstream.CircuitBreaker,
			g.logger,
			middleware.WithCircuitBreakerStateCallback(g.metrics.SetCircuitBreakerState),
		)},
	)

	g.stageNames = pipeline.Names()
	g.logger.Debug("pipeline assembled",
		observability.Any("stages", g.stageNames),
	)

	return pipeline.Then(g.forwarder)
}

// StageNames returns the assembled pipeline stage names, outermost
// first.
func (g *Gateway) StageNames() []string {
	return g.stageNames
}

// Handler returns the assembled data-path handler. Useful for tests
// driving the full pipeline without listeners.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// State returns the current gateway state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// Start starts the HTTP listeners and returns once they are serving.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return errors.New("gateway is not in stopped state")
	}

	g.server = &http.Server{
		Addr:         g.config.Server.ListenAddress,
		Handler:      g.handler,
		ReadTimeout:  g.config.Server.ReadTimeout.Duration(),
		WriteTimeout: g.config.Server.WriteTimeout.Duration(),
		IdleTimeout:  g.config.Server.IdleTimeout.Duration(),
	}

	go func() {
		g.logger.Info("gateway listening",
			observability.String("address", g.config.Server.ListenAddress),
			observability.String("upstream", g.config.Upstream.URL),
		)
		if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.errCh <- fmt.Errorf("gateway server: %w", err)
		}
	}()

	if g.config.Metrics.Enabled {
		g.adminServer = &http.Server{
			Addr:        g.config.Metrics.ListenAddress,
			Handler:     g.adminHandler(),
			ReadTimeout: 10 * time.Second,
		}

		go func() {
			g.logger.Info("admin listening",
				observability.String("address", g.config.Metrics.ListenAddress),
			)
			if err := g.adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				g.errCh <- fmt.Errorf("admin server: %w", err)
			}
		}()
	}

	g.startTime = time.Now()
	g.state.Store(int32(StateRunning))

	return nil
}

// Errors reports listener failures after Start.
func (g *Gateway) Errors() <-chan error {
	return g.errCh
}

// adminHandler serves metrics and probe endpoints.
func (g *Gateway) adminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", g.metrics.Handler())
	mux.HandleFunc("/health", g.checker.HealthHandler())
	mux.HandleFunc("/live", g.checker.HealthHandler())
	mux.HandleFunc("/ready", g.checker.ReadinessHandler())
	return mux
}

// Stop drains in-flight requests and shuts the listeners down. The
// shutdown deadline comes from server.shutdownTimeout unless the
// caller's context carries an earlier one.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return errors.New("gateway is not running")
	}

	g.logger.Info("stopping gateway")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Server.ShutdownTimeout.Duration())
		defer cancel()
	}

	var errs []error

	if g.server != nil {
		if err := g.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown gateway server: %w", err))
		}
	}

	if g.adminServer != nil {
		if err := g.adminServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown admin server: %w", err))
		}
	}

	if err := g.limiter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close rate limiter: %w", err))
	}

	g.state.Store(int32(StateStopped))

	g.logger.Info("gateway stopped",
		observability.Duration("uptime", time.Since(g.startTime)),
	)

	return errors.Join(errs...)
}
