package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-scheduler/internal/config"
	"github.com/jwalitptl/clinic-scheduler/internal/email"
	"github.com/jwalitptl/clinic-scheduler/internal/handler/health"
	prommw "github.com/jwalitptl/clinic-scheduler/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-scheduler/internal/middleware"
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/cached"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/postgres"
	"github.com/jwalitptl/clinic-scheduler/internal/service/medical"
	"github.com/jwalitptl/clinic-scheduler/internal/service/notification"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/messaging"
	"github.com/jwalitptl/clinic-scheduler/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
	"github.com/jwalitptl/clinic-scheduler/pkg/worker"
)

const metricsNamespace = "clinic_worker"

func newHealthServer(port int, checks map[string]health.Check) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	httpMetrics := prommw.New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer, metricsNamespace)
	engine.Use(middleware.Recovery(), httpMetrics.Middleware())

	health.NewHandler(checks).RegisterRoutes(engine)
	engine.GET("/metrics", httpMetrics.Handler())

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     cfg.Redis.PoolSize,
	}, appLogger.Zerolog())
	if err != nil {
		appLogger.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer, metricsNamespace)

	store := postgres.NewStore(db)
	outboxRepo := store.Outbox()
	profiles := cached.NewProfileRepository(store.Profiles(), cfg.Cache.ProfileTTL, cfg.Cache.CleanupInterval)

	cascade := medical.NewService(profiles, store.MedicalRecords(), appLogger.With(map[string]interface{}{"component": "cascade"}), appMetrics)
	notifier := notification.NewService(
		profiles,
		email.NewService(cfg.SMTP, appLogger),
		appLogger.With(map[string]interface{}{"component": "notifications"}),
		appMetrics,
	)

	processor := worker.NewOutboxProcessor(
		outboxRepo,
		messaging.NewChannelPublisher(broker, cfg.Redis.ChannelPrefix),
		worker.OutboxProcessorConfig{
			BatchSize:      cfg.Outbox.BatchSize,
			PollInterval:   cfg.Outbox.PollInterval,
			Lease:          cfg.Outbox.Lease,
			MaxAttempts:    cfg.Outbox.MaxAttempts,
			InitialBackoff: cfg.Outbox.InitialBackoff,
			MaxBackoff:     cfg.Outbox.MaxBackoff,
		},
		appLogger.With(map[string]interface{}{"component": "outbox"}),
		appMetrics,
	)
	processor.Register(model.EventAppointmentCompleted, cascade.HandleCompleted)
	processor.Register(model.EventAppointmentRescheduleRequested, notifier.HandleRescheduleRequested)
	processor.Register(model.EventAppointmentCancelled, notifier.HandleCancelled)

	cleanup := worker.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.Retention, cfg.Outbox.CleanupEvery, appLogger)

	srv := newHealthServer(cfg.Server.HealthPort, map[string]health.Check{
		"database": db.PingContext,
		"redis":    broker.Ping,
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error(err, "health server failed")
			stop()
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()

	appLogger.Info("worker started", "health_addr", srv.Addr)
	<-ctx.Done()
	appLogger.Info("shutting down worker")

	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "health server forced to shutdown")
	}

	appLogger.Info("worker exited")
}
