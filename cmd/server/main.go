// Package main runs the dojo backend: the REST API, the websocket hub and
// the background workers for hints and reward settlement.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	app "github.com/defidojo/dojo-backend/internal/app"
	"github.com/defidojo/dojo-backend/internal/app/httpapi"
	"github.com/defidojo/dojo-backend/internal/app/storage/postgres"
	"github.com/defidojo/dojo-backend/internal/config"
	"github.com/defidojo/dojo-backend/internal/metrics"
	"github.com/defidojo/dojo-backend/internal/middleware"
	"github.com/defidojo/dojo-backend/internal/session"
	"github.com/defidojo/dojo-backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("server").WithError(err).Error("load configuration")
		os.Exit(1)
	}

	log, err := logger.New("server", logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		logger.NewDefault("server").WithError(err).Error("configure logging")
		os.Exit(1)
	}

	stores := app.Stores{}
	if cfg.Database.DSN != "" {
		db, err := postgres.Connect(cfg.Database.DSN)
		if err != nil {
			log.WithError(err).Error("connect database")
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.Migrate(db); err != nil {
			log.WithError(err).Error("migrate database")
			os.Exit(1)
		}
		store := postgres.New(db)
		stores = app.Stores{Users: store, Instances: store, HintJobs: store, Rewards: store}
		log.Info("using postgres storage")
	} else {
		log.Warn("DATABASE_DSN not set; using in-memory storage")
	}

	var nonces session.NonceStore
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		nonces = session.NewRedisNonceStore(client)
		log.Info("using redis nonce store")
	}

	auth := middleware.NewAuth(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, log)
	m := metrics.New()

	application, err := app.New(cfg, stores, app.Deps{Nonces: nonces, Tokens: auth, Metrics: m}, log)
	if err != nil {
		log.WithError(err).Error("build application")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start application")
		os.Exit(1)
	}

	rateLimiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, log)
	rateLimiter.StartCleanup(10 * time.Minute)
	defer rateLimiter.Stop()

	api := httpapi.NewHandler(application, auth, rateLimiter)

	mux := http.NewServeMux()
	mux.Handle("/ws", application.Hub.Handler(auth.VerifyToken))
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/", middleware.CORS(nil)(middleware.Metrics(m)(api)))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("http server listening")
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		log.WithError(err).Error("http server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application shutdown incomplete")
	}
	log.Info("stopped")
}
