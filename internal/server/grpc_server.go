package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/config"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/logger"
	_ "github.com/IdrisKulubi/strath-mobile-sub004/internal/utils/jsoncodec"
)

// NewGRPCServer builds a gRPC server with the interceptor chain and the
// standard health service, then registers all provided services.
//
// Interceptor order: panic recovery, request logger, metrics, session auth.
func NewGRPCServer(auth Authenticator, registrars ...Registrar) (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(),
			RequestLoggerInterceptor(),
			MetricsInterceptor(),
			AuthInterceptor(auth),
		),
	)

	// register all services
	for _, r := range registrars {
		r.Register(grpcServer)
	}

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	for name := range grpcServer.GetServiceInfo() {
		hs.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}
	return grpcServer, hs
}

// StartGRPCServer listens on the configured address and serves until ctx
// is done, then drains in-flight calls.
func StartGRPCServer(ctx context.Context, cfg *config.Config, grpcServer *grpc.Server, hs *health.Server) error {
	addr := fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return Serve(ctx, lis, grpcServer, hs)
}

// Serve runs grpcServer on lis until ctx is done.
func Serve(ctx context.Context, lis net.Listener, grpcServer *grpc.Server, hs *health.Server) error {
	go func() {
		<-ctx.Done()
		if hs != nil {
			hs.Shutdown()
		}
		grpcServer.GracefulStop()
	}()

	logger.Info("gRPC server listening", "addr", lis.Addr().String())
	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
