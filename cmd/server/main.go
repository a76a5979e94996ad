package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"fx-history-service/internal/adapter/cache"
	httpRouter "fx-history-service/internal/adapter/http"
	"fx-history-service/internal/adapter/repository"
	"fx-history-service/internal/adapter/storage"
	"fx-history-service/internal/config"
	"fx-history-service/internal/domain/ports"
	"fx-history-service/internal/metrics"
	"fx-history-service/internal/service"
	"fx-history-service/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(os.Getenv("LOG_LEVEL")).Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting historical exchange rate service", "log_level", cfg.LogLevel)

	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.Warn("Failed to close resource", "error", err)
			}
		}
	}()

	cacheStore, cacheHealth, err := newCacheStore(ctx, cfg.Cache, log)
	if err != nil {
		log.Error("Failed to create cache", "error", err)
		os.Exit(1)
	}
	if c, ok := cacheStore.(io.Closer); ok {
		closers = append(closers, c)
	}

	rateStore, storeHealth, err := newRateStore(ctx, cfg.Store, log)
	if err != nil {
		log.Error("Failed to create rate store", "error", err)
		os.Exit(1)
	}
	if c, ok := rateStore.(io.Closer); ok {
		closers = append(closers, c)
	}

	rateCache := cache.NewRateCache(cacheStore, cfg.Cache.TTL, cfg.Cache.Timeout, log, appMetrics)
	engine := service.NewTriangulationEngine(rateStore, cfg.Store.Timeout, log, appMetrics)
	historyService := service.NewHistoricalRateService(rateCache, engine, log, appMetrics)

	provider := repository.NewExchangeAPI(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout, log)
	ingestor := service.NewIngestor(provider, rateStore, service.IngestorConfig{
		MaxAttempts: cfg.Ingest.MaxAttempts,
		RetryDelay:  cfg.Ingest.RetryDelay,
		Currencies:  cfg.Ingest.Currencies,
	}, log, appMetrics)

	handler := httpRouter.NewHandler(historyService, ingestor, log)
	router := httpRouter.NewRouter(handler, log, appMetrics, prometheus.DefaultGatherer)
	if cacheHealth != nil {
		router.AddHealthCheck("cache", func(r *http.Request) error { return cacheHealth(r.Context()) })
	}
	if storeHealth != nil {
		router.AddHealthCheck("store", func(r *http.Request) error { return storeHealth(r.Context()) })
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	scheduler, err := scheduleIngestion(ctx, cfg.Ingest.Schedule, ingestor, log)
	if err != nil {
		log.Error("Failed to schedule ingestion", "error", err)
		os.Exit(1)
	}

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	cronDone := scheduler.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	select {
	case <-cronDone.Done():
	case <-shutdownCtx.Done():
		log.Warn("Ingestion still running at shutdown")
	}

	log.Info("Server exited")
}

type healthFunc func(ctx context.Context) error

func newCacheStore(ctx context.Context, cfg config.CacheConfig, log *logger.Logger) (ports.CacheStore, healthFunc, error) {
	if cfg.Backend == config.BackendRedis {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		redisStore, err := cache.NewRedisStore(dialCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err == nil {
			log.Info("Using Redis cache", "addr", cfg.RedisAddr, "ttl", cfg.TTL)
			return redisStore, redisStore.Health, nil
		}
		log.Warn("Redis unavailable, falling back to in-memory cache", "addr", cfg.RedisAddr, "error", err)
	}

	memoryStore, err := cache.NewMemoryStore(cfg.MemoryMaxCost)
	if err != nil {
		return nil, nil, err
	}
	log.Info("Using in-memory cache", "max_cost", cfg.MemoryMaxCost, "ttl", cfg.TTL)
	return memoryStore, nil, nil
}

func newRateStore(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (ports.RateStore, healthFunc, error) {
	if cfg.Backend == config.BackendMemory {
		log.Warn("Using in-memory rate store, history is lost on restart")
		return storage.NewMemoryStore(), nil, nil
	}

	openCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	db, err := storage.OpenPostgres(openCtx, cfg.DSN, cfg.MaxOpenConns)
	if err != nil {
		return nil, nil, err
	}

	if cfg.AutoMigrate {
		if _, err := db.ExecContext(openCtx, storage.TableCreate); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to create rates table: %w", err)
		}
	}

	log.Info("Using Postgres rate store", "max_open_conns", cfg.MaxOpenConns)
	pgStore := storage.NewPostgresStore(db)
	return pgStore, pgStore.Health, nil
}

// scheduleIngestion runs one ingestion right away and then on schedule.
// Overlapping runs are skipped.
func scheduleIngestion(ctx context.Context, schedule string, ingestor ports.RateIngestor, log *logger.Logger) (*cron.Cron, error) {
	cl := cronLogger{log: log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	run := func() {
		if err := ingestor.Run(ctx); err != nil {
			log.Error("Scheduled ingestion failed", "error", err)
		}
	}

	id, err := c.AddFunc(schedule, run)
	if err != nil {
		return nil, err
	}
	c.Start()

	// Same wrapped job, so the startup run and the first tick never overlap.
	go c.Entry(id).WrappedJob.Run()

	log.Info("Ingestion scheduled", "schedule", schedule)
	return c, nil
}

type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
