package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/todotask/internal/auth"
	"github.com/geocoder89/todotask/internal/cache"
	"github.com/geocoder89/todotask/internal/config"
	"github.com/geocoder89/todotask/internal/db"
	httpx "github.com/geocoder89/todotask/internal/http"
	"github.com/geocoder89/todotask/internal/http/handlers"
	"github.com/geocoder89/todotask/internal/observability"
	"github.com/geocoder89/todotask/internal/repo/postgres"
	"github.com/geocoder89/todotask/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	// a missing .env is fine, real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env, cfg.DebugMode)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracer, err := observability.InitTracer(context.Background(), cfg.ServiceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(cfg.DBURL, cfg.DBMaxConns)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	if cfg.DBAutoMigrate {
		ctx, cancel := config.WithTimeout(30 * time.Second)
		err := db.Migrate(ctx, pool)
		cancel()

		if err != nil {
			log.Error("db migrate failed", "err", err)
			os.Exit(1)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	tokens, err := auth.NewManager(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		log.Error("token manager init failed", "err", err)
		os.Exit(1)
	}

	checks := map[string]handlers.Pinger{}

	var redisClient *redis.Client
	var decorate postgres.StoreDecorator

	switch cfg.UserCache {
	case config.CacheMemory:
		decorate = cache.Decorator(cache.NewMemoryUsers(cfg.UserCacheTTL), log)
	case config.CacheRedis:
		redisClient = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		decorate = cache.Decorator(cache.NewRedisUsers(redisClient, "todotask:", cfg.UserCacheTTL), log)
		checks["redis"] = cache.RedisPinger{Client: redisClient}
	}

	uow := postgres.NewUnitOfWork(pool, prom, decorate)
	checks["postgres"] = uow

	accounts := service.NewAccounts(uow, tokens,
		service.WithLogger(log),
		service.WithHashMetrics(prom),
	)

	{
		ctx, cancel := config.WithTimeout(10 * time.Second)
		err := db.EnsureSeedUser(ctx, accounts, cfg, log)
		cancel()

		if err != nil {
			log.Error("seed user failed", "err", err)
			os.Exit(1)
		}
	}

	router := httpx.NewRouter(httpx.RouterConfig{
		ServiceName:    cfg.ServiceName,
		AllowedHosts:   cfg.AllowedHosts,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
	}, httpx.RouterDeps{
		Log:      log,
		Accounts: accounts,
		Checks:   checks,
		Prom:     prom,
		Gatherer: reg,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "user_cache", cfg.UserCache)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		pool.Close()

		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				log.Warn("redis close failed", "err", err)
			}
		}

		if err := shutdownTracer(ctx); err != nil {
			log.Warn("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
