package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oggyb/muzz-discovery/internal/app"
	"github.com/oggyb/muzz-discovery/internal/cache"
	"github.com/oggyb/muzz-discovery/internal/config"
	"github.com/oggyb/muzz-discovery/internal/db"
	"github.com/oggyb/muzz-discovery/internal/delivery"
	"github.com/oggyb/muzz-discovery/internal/logger"
	"github.com/oggyb/muzz-discovery/internal/server"
	"github.com/oggyb/muzz-discovery/internal/service/discovery"
)

func main() {
	_ = godotenv.Load()
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L() // slog.Logger pointer

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	defer redisCache.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = redisCache.Ping(pingCtx)
	cancel()
	if err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	publisher := delivery.NewRedisPublisher(redisCache.Client, cfg.Delivery.Channel)

	// Inject logger into app context
	appCtx := app.New(cfg, database, redisCache, publisher, log)

	registrars := []server.Registrar{
		discovery.NewRegistrar(appCtx),
	}

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	if cfg.Metrics.Addr != "" {
		metricsSrv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("serving metrics", "addr", cfg.Metrics.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "err", err)
			}
		}()
		defer metricsSrv.Shutdown(context.Background())
	}

	addr := cfg.GRPC.Host + ":" + cfg.GRPC.Port
	log.Info("starting gRPC server", "addr", addr)

	if err := server.StartGRPCServer(ctx, cfg, log, registrars...); err != nil {
		log.Error("failed to start gRPC server", "err", err)
	}
	log.Info("service stopped")
}
