package server

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/logger"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/metrics"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/session"
)

// HeaderRequestID is echoed back on every response.
const HeaderRequestID = "x-request-id"

// publicPrefixes are methods served without a session.
var publicPrefixes = []string{"/grpc.health.v1.Health/"}

// Authenticator resolves the caller; *session.Resolver satisfies it.
type Authenticator interface {
	Resolve(ctx context.Context) (session.Session, bool)
}

// RecoveryInterceptor turns a handler panic into codes.Internal.
func RecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.FromContext(ctx).Error("panic in handler", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// RequestLoggerInterceptor attaches a request-scoped logger carrying the
// request id and method, and logs each call's outcome.
func RequestLoggerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(HeaderRequestID); len(v) > 0 {
				requestID = v[0]
			}
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(HeaderRequestID, requestID))

		log := logger.With("request_id", requestID, "method", info.FullMethod)
		ctx = logger.NewContext(ctx, log)

		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug("rpc finished", "code", status.Code(err).String(), "duration", time.Since(start))
		return resp, err
	}
}

// MetricsInterceptor records handler latency by method and status code.
func MetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		metrics.RPCDuration.WithLabelValues(info.FullMethod, status.Code(err).String()).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// AuthInterceptor resolves the session and refuses calls without one.
// The viewer id is then available through session.UserID(ctx).
func AuthInterceptor(auth Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		for _, p := range publicPrefixes {
			if strings.HasPrefix(info.FullMethod, p) {
				return handler(ctx, req)
			}
		}

		sess, ok := auth.Resolve(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		}
		ctx = session.NewContext(ctx, sess)
		ctx = logger.NewContext(ctx, logger.FromContext(ctx).With("user_id", sess.UserID))
		return handler(ctx, req)
	}
}
