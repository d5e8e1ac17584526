package grpc

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/Rauan19/agendoai-sub000/internal/health"
)

type Checker interface {
	Run(ctx context.Context) health.Report
	Names() []string
}

// NewServer builds the gRPC server with tracing, the interceptor chain, the
// health service and, when booking is non-nil, the booking service.
func NewServer(checks Checker, booking BookingRPC, log *slog.Logger, requestTimeout time.Duration) *grpc.Server {
	if log == nil {
		log = slog.Default()
	}
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			UnaryServerRequestIDInterceptor(),
			UnaryServerLoggingInterceptor(log),
			DefaultRequestTimeoutInterceptor(requestTimeout),
			UnaryServerErrorInterceptor(),
		),
	)
	healthpb.RegisterHealthServer(s, NewHealthServer(checks, log))
	if booking != nil {
		s.RegisterService(&BookingServiceDesc, booking)
	}
	return s
}

// HealthServer answers grpc.health.v1 from the readiness checks. The empty
// service name is the whole process; a check name asks about that check.
type HealthServer struct {
	healthpb.UnimplementedHealthServer

	checks Checker
	log    *slog.Logger
}

func NewHealthServer(checks Checker, log *slog.Logger) *HealthServer {
	if log == nil {
		log = slog.Default()
	}
	return &HealthServer{
		checks: checks,
		log:    log.With(slog.String("component", "grpc.health")),
	}
}

func (s *HealthServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	service := req.GetService()
	if service != "" && !s.known(service) {
		return nil, status.Error(codes.NotFound, "unknown service")
	}

	rep := s.checks.Run(ctx)
	serving := rep.OK
	if service != "" {
		for _, r := range rep.Checks {
			if r.Name == service {
				serving = r.OK
			}
		}
	}
	if !serving {
		s.log.WarnContext(ctx, "health check not serving", slog.String("service", service), slog.Any("checks", rep.Checks))
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

func (s *HealthServer) known(name string) bool {
	for _, n := range s.checks.Names() {
		if n == name {
			return true
		}
	}
	return false
}
