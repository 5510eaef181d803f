package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/todotask/internal/http/handlers"
	"github.com/geocoder89/todotask/internal/http/middlewares"
	"github.com/geocoder89/todotask/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

// Accounts is the service surface the routes use.
type Accounts interface {
	handlers.Accounts
	middlewares.Authenticator
}

type RouterConfig struct {
	ServiceName    string
	AllowedHosts   []string
	CORSOrigins    []string
	RequestTimeout time.Duration
}

type RouterDeps struct {
	Log      *slog.Logger
	Accounts Accounts
	// Checks are pinged by /readyz, keyed by dependency name.
	Checks   map[string]handlers.Pinger
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg RouterConfig, deps RouterDeps) *gin.Engine {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())

	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.ProcessTime())
	r.Use(middlewares.TrustedHost(cfg.AllowedHosts))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))

	// health
	h := handlers.NewHealthHandler(log, deps.Checks)
	r.GET("/health", h.Health)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// auth
	authHandler := handlers.NewAuthHandler(deps.Accounts, log, cfg.RequestTimeout)
	authMiddleware := middlewares.NewAuthMiddleware(deps.Accounts)

	authGroup := r.Group("/auth")
	authGroup.Use(middlewares.RequireJSON(), middlewares.MaxBodyBytes(maxBodyBytes))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/me", authMiddleware.RequireAuth(), authHandler.Me)
	}

	return r
}
