package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-scheduler/internal/config"
	appointmentHandler "github.com/jwalitptl/clinic-scheduler/internal/handler/appointment"
	"github.com/jwalitptl/clinic-scheduler/internal/handler/health"
	prommw "github.com/jwalitptl/clinic-scheduler/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-scheduler/internal/middleware"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/cached"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/postgres"
	"github.com/jwalitptl/clinic-scheduler/internal/router"
	appointmentService "github.com/jwalitptl/clinic-scheduler/internal/service/appointment"
	"github.com/jwalitptl/clinic-scheduler/internal/service/medical"
	"github.com/jwalitptl/clinic-scheduler/pkg/auth"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
	"github.com/jwalitptl/clinic-scheduler/pkg/validator"
)

const metricsNamespace = "clinic"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if err := validator.Setup(); err != nil {
		appLogger.Fatal(err, "failed to register validators")
	}

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
	profiles := cached.NewProfileRepository(store.Profiles(), cfg.Cache.ProfileTTL, cfg.Cache.CleanupInterval)

	cascade := medical.NewService(profiles, store.MedicalRecords(), appLogger.With(map[string]interface{}{"component": "cascade"}), appMetrics)
	appointmentSvc := appointmentService.NewService(
		store,
		store.Appointments(),
		profiles,
		cascade,
		appLogger.With(map[string]interface{}{"component": "appointments"}),
		appMetrics,
	)

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)

	healthHandler := health.NewHandler(map[string]health.Check{
		"database": db.PingContext,
		"redis":    broker.Ping,
	})

	r := router.NewRouter(
		router.RouterConfig{
			Mode:           cfg.Server.Mode,
			RateLimit:      rate.Limit(cfg.RateLimit.RPS),
			RateBurst:      cfg.RateLimit.Burst,
			BodyLimit:      cfg.Server.BodyLimit,
			RequestTimeout: cfg.Server.WriteTimeout,
			CORSConfig:     middleware.DefaultCORSConfig(),
		},
		middleware.NewAuthMiddleware(jwtSvc),
		prommw.New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer, metricsNamespace),
		healthHandler,
		appointmentHandler.NewHandler(appointmentSvc),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error(err, "server failed")
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "server forced to shutdown")
		os.Exit(1)
	}

	appLogger.Info("server exited")
}
