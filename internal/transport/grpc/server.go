package transportgrpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcinterceptors "github.com/arklim/social-platform-accounts/internal/transport/grpc/interceptors"
)

const (
	defaultProbeInterval = 15 * time.Second
	probeTimeout         = 5 * time.Second
)

// ReadinessCheck verifies one backing dependency is reachable.
type ReadinessCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// ServerDependencies configures the gRPC surface: the standard health service
// driven by dependency probes, instrumented with metrics and tracing.
type ServerDependencies struct {
	Logger        *zap.Logger
	Metrics       *grpcinterceptors.GRPCMetrics
	Tracing       *grpcinterceptors.ServerTracing
	Checks        []ReadinessCheck
	ProbeInterval time.Duration
}

// Server wraps grpc.Server together with the health service it reports on.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	checks     []ReadinessCheck
	interval   time.Duration
	logger     *zap.Logger
}

// NewServer builds the server and registers health and reflection services.
// The health status starts as SERVING and flips when WatchReadiness observes
// a failing dependency.
func NewServer(deps ServerDependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := make([]grpc.ServerOption, 0, 2)
	if deps.Metrics != nil {
		opts = append(opts, grpc.ChainUnaryInterceptor(deps.Metrics.UnaryServerInterceptor()))
	}
	if handler := deps.Tracing.Handler(); handler != nil {
		opts = append(opts, grpc.StatsHandler(handler))
	}

	grpcServer := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	// Reflection lets grpcurl and platform tooling discover the surface.
	reflection.Register(grpcServer)

	interval := deps.ProbeInterval
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	return &Server{
		grpcServer: grpcServer,
		health:     healthServer,
		checks:     deps.Checks,
		interval:   interval,
		logger:     logger,
	}
}

// GRPCServer exposes the underlying server for Serve/GracefulStop.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// WatchReadiness probes the configured dependencies on a fixed interval and
// keeps the health service in step. It blocks until ctx is done, then marks
// the server NOT_SERVING so balancers drain it before shutdown.
func (s *Server) WatchReadiness(ctx context.Context) {
	if len(s.checks) == 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

func (s *Server) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	status := grpc_health_v1.HealthCheckResponse_SERVING
	for _, check := range s.checks {
		if check.Probe == nil {
			continue
		}
		if err := check.Probe(probeCtx); err != nil {
			s.logger.Warn("grpc readiness probe failed",
				zap.String("dependency", check.Name),
				zap.Error(err))
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
}
