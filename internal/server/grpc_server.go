package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/oggyb/muzz-discovery/internal/config"
)

const shutdownTimeout = 10 * time.Second

// GRPCServer bundles the gRPC server with its health service.
type GRPCServer struct {
	*grpc.Server
	health *health.Server
	log    *slog.Logger
}

// NewGRPCServer builds a gRPC server with recovery, logging, timeout and
// metrics interceptors and registers all provided services.
func NewGRPCServer(cfg *config.Config, log *slog.Logger, registrars ...Registrar) *GRPCServer {
	if log == nil {
		log = slog.Default()
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			Recover(log),
			UnaryLogging(log),
			WithTimeout(cfg.GRPC.Timeout),
			grpc_prometheus.UnaryServerInterceptor,
		),
		grpc.ChainStreamInterceptor(
			grpc_prometheus.StreamServerInterceptor,
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	// register all services
	for _, r := range registrars {
		r.Register(grpcServer)
	}

	// enable reflection for easier debugging with grpcurl
	if cfg.App.ENV != "production" {
		reflection.Register(grpcServer)
	}

	grpc_prometheus.Register(grpcServer)

	return &GRPCServer{Server: grpcServer, health: hs, log: log}
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
// Calls still running after the shutdown timeout are cut off.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		if err := s.Server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	}

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("grpc stopped")
	case <-time.After(shutdownTimeout):
		s.log.Warn("grpc force stop")
		s.Stop()
	}
	return nil
}

// StartGRPCServer listens on the configured address and serves until ctx is done.
func StartGRPCServer(ctx context.Context, cfg *config.Config, log *slog.Logger, registrars ...Registrar) error {
	addr := fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return NewGRPCServer(cfg, log, registrars...).Serve(ctx, lis)
}
