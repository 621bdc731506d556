package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_cart/order-lifecycle/internal/cache"
	"github.com/fjod/go_cart/order-lifecycle/internal/client"
	"github.com/fjod/go_cart/order-lifecycle/internal/config"
	h "github.com/fjod/go_cart/order-lifecycle/internal/http"
	"github.com/fjod/go_cart/order-lifecycle/internal/logger"
	"github.com/fjod/go_cart/order-lifecycle/internal/metrics"
	"github.com/fjod/go_cart/order-lifecycle/internal/publisher"
	"github.com/fjod/go_cart/order-lifecycle/internal/repository"
	"github.com/fjod/go_cart/order-lifecycle/internal/review"
	"github.com/fjod/go_cart/order-lifecycle/internal/service"
	"github.com/fjod/go_cart/order-lifecycle/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.LogLevel, cfg.LogPretty)
	zlog.Logger = log

	ctx := context.Background()

	// Redis cache for order details
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("redis ping succeeded")

	// Outbox storage
	creds := &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsPath,
	}
	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer repo.Close()
	if err := repo.RunMigrations(creds); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("database ready")

	backend := client.New(client.Config{
		BaseURL:            cfg.BackendURL,
		Timeout:            cfg.BackendTimeout,
		BreakerFailures:    cfg.BackendBreakerFailure,
		BreakerOpenTimeout: cfg.BackendBreakerOpen,
	}, log)
	reader := service.NewOrderReader(backend, cache.NewRedisCache(redisClient, cfg.CacheTTL), log)

	// store is set before the server starts serving /metrics
	var store *session.Store
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	srvMetrics := metrics.NewServerMetrics(registry, func() int {
		if store == nil {
			return 0
		}
		return store.Len()
	})

	statuses := service.NewStatusService(reader, backend, repo, srvMetrics, log)
	store = session.NewStore(reader.Fresh(), backend, review.Options{
		RefetchDelay:   cfg.RefetchDelay,
		RefetchTimeout: cfg.RefetchTimeout,
		Logger:         log,
		Observer:       srvMetrics,
	}, cfg.SessionIdleTTL, cfg.SessionCleanupInterval)

	// Outbox poller publishes status changes to kafka
	pollerCtx, stopPoller := context.WithCancel(ctx)
	poller := publisher.NewOutboxPoller(repo, publisher.NewKafkaWriter(cfg.Brokers()...), cfg.OutboxTick, log)
	var pollerWG sync.WaitGroup
	pollerWG.Add(1)
	go func() {
		defer pollerWG.Done()
		poller.Run(pollerCtx)
	}()

	router := h.NewRouter(h.RouterConfig{
		Logger:             log,
		Metrics:            srvMetrics,
		Admin:              h.NewAdminOrdersHandler(statuses, cfg.RequestTimeout),
		Reviews:            h.NewReviewSessionHandler(store, cfg.RequestTimeout),
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("order lifecycle service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	store.Shutdown()
	stopPoller()
	pollerWG.Wait()
	poller.Close()

	log.Info().Msg("server exited")
}
