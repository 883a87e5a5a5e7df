package rpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
	"github.com/GriffinCanCode/adscan/internal/trace"
)

// Readiness reports whether the detector has finished initializing.
type Readiness interface {
	Ready() bool
}

// Server wraps a grpc.Server exposing grpc.health.v1.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	ready  Readiness
	clock  clockwork.Clock
}

type Option func(*Server)

// WithClock sets the clock WatchReady polls on.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// New builds the server with every service NOT_SERVING.
func New(ready Readiness, opts ...Option) *Server {
	s := &Server{
		grpc: grpc.NewServer(
			grpc.ChainUnaryInterceptor(trace.UnaryServerInterceptor()),
			grpc.ChainStreamInterceptor(trace.StreamServerInterceptor()),
			grpc.KeepaliveParams(keepalive.ServerParameters{
				Time:    DefaultKeepaliveTime,
				Timeout: DefaultKeepaliveTimeout,
			}),
		),
		health: health.NewServer(),
		ready:  ready,
		clock:  clockwork.NewRealClock(),
	}
	for _, o := range opts {
		o(s)
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *Server) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Refresh copies the detector's readiness into the health status and
// returns it.
func (s *Server) Refresh() bool {
	if s.ready.Ready() {
		s.set(healthpb.HealthCheckResponse_SERVING)
		return true
	}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return false
}

// WatchReady polls readiness every interval until the detector is ready or
// ctx ends.
func (s *Server) WatchReady(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultReadyInterval
	}
	if s.Refresh() {
		slog.Info("detector serving")
		return
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if s.Refresh() {
				slog.Info("detector serving")
				return
			}
		}
	}
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpc.Serve(lis); err != nil {
		return apperrors.Wrap(err, apperrors.Unavailable, "grpc serve")
	}
	return nil
}

// Stop marks everything NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
