package router

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/infrastructure/config"
	"github.com/erp/marketsync/internal/infrastructure/logger"
	"github.com/erp/marketsync/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// SystemRoutes serves the unversioned probe endpoints.
type SystemRoutes interface {
	Health(c *gin.Context)
	GetSystemInfo(c *gin.Context)
}

// rateLimiterIdleTTL bounds how long an idle client's bucket is kept.
const rateLimiterIdleTTL = 10 * time.Minute

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a RouteRegistrar to be registered on Setup
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup mounts every registrar under /api/<version>
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// ----------------------------------------------------------------------------
// Engine
// ----------------------------------------------------------------------------

// EngineOptions carries the collaborators of the HTTP engine.
type EngineOptions struct {
	HTTP           config.HTTPConfig
	ServiceName    string
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider // nil disables request tracing
	Meter          metric.Meter         // nil disables HTTP metrics
	System         SystemRoutes
}

// NewEngine builds the gin engine with the standard middleware chain and
// the /health and /system/info probes. API routes are added through Router.
func NewEngine(opts EngineOptions) (*gin.Engine, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(opts.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("set trusted proxies: %w", err)
	}

	httpMetrics, err := middleware.HTTPMetrics(opts.Meter)
	if err != nil {
		return nil, fmt.Errorf("create http metrics: %w", err)
	}

	tracing := middleware.DefaultTracingConfig()
	tracing.Enabled = opts.TracerProvider != nil
	tracing.TracerProvider = opts.TracerProvider
	if opts.ServiceName != "" {
		tracing.ServiceName = opts.ServiceName
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Tracing(tracing),
		middleware.SpanEnricher(),
		logger.GinMiddleware(opts.Logger, "/health"),
		logger.Recovery(opts.Logger),
		cors.New(corsConfig(opts.HTTP)),
		middleware.Secure(),
		httpMetrics,
	)
	if opts.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(opts.HTTP.MaxBodySize))
	}
	if opts.HTTP.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(opts.HTTP.RateLimit, opts.HTTP.RateBurst, rateLimiterIdleTTL)
		engine.Use(middleware.RateLimit(limiter))
	}

	if opts.System != nil {
		engine.GET("/health", opts.System.Health)
		engine.GET("/system/info", opts.System.GetSystemInfo)
	}

	return engine, nil
}

func corsConfig(cfg config.HTTPConfig) cors.Config {
	cc := cors.DefaultConfig()
	if len(cfg.CORSAllowMethods) > 0 {
		cc.AllowMethods = cfg.CORSAllowMethods
	}
	if len(cfg.CORSAllowHeaders) > 0 {
		cc.AllowHeaders = cfg.CORSAllowHeaders
	} else {
		cc.AddAllowHeaders(middleware.RequestIDHeader)
	}
	cc.ExposeHeaders = []string{middleware.RequestIDHeader, "Retry-After"}
	if len(cfg.CORSAllowOrigins) == 0 {
		cc.AllowAllOrigins = true
		return cc
	}
	for _, origin := range cfg.CORSAllowOrigins {
		if origin == "*" {
			cc.AllowAllOrigins = true
			return cc
		}
	}
	cc.AllowOrigins = cfg.CORSAllowOrigins
	return cc
}
