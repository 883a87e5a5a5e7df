// Package grpcclient probes the adscan gRPC health service
package grpcclient

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
	"github.com/GriffinCanCode/adscan/internal/resilience"
	"github.com/GriffinCanCode/adscan/internal/trace"
)

// Client checks a detector's health over gRPC
type Client struct {
	conn    *grpc.ClientConn
	health  healthpb.HealthClient
	breaker *resilience.Breaker
	service string
}

// New creates a client for addr. Extra options are appended to the defaults.
func New(addr, service string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    DefaultKeepaliveTime,
			Timeout: DefaultKeepaliveTimeout,
		}),
		grpc.WithChainUnaryInterceptor(trace.UnaryClientInterceptor()),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ConfigInvalid, "create grpc client").WithMetadata("addr", addr)
	}
	return &Client{
		conn:    conn,
		health:  healthpb.NewHealthClient(conn),
		breaker: resilience.New("grpc-health", resilience.DefaultConfig()),
		service: service,
	}, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Check returns the serving status of the service.
func (c *Client) Check(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	return resilience.ExecuteWithResult(c.breaker, func() (healthpb.HealthCheckResponse_ServingStatus, error) {
		ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
		defer cancel()

		resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: c.service})
		if err != nil {
			return healthpb.HealthCheckResponse_UNKNOWN, fromStatus(err)
		}
		return resp.GetStatus(), nil
	})
}

// WaitReady polls Check every interval until the service is SERVING or ctx
// ends. Transport errors are retried.
func (c *Client) WaitReady(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultHealthCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := trace.Logger(ctx)
	for {
		st, err := c.Check(ctx)
		if err == nil && st == healthpb.HealthCheckResponse_SERVING {
			return nil
		}
		log.Debug("detector not ready", "status", st.String(), "error", err)

		select {
		case <-ctx.Done():
			return apperrors.Wrap(ctx.Err(), apperrors.Timeout, "detector not ready")
		case <-ticker.C:
		}
	}
}

func fromStatus(err error) error {
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.NotFound:
		return apperrors.Wrap(err, apperrors.NotFound, "unknown health service")
	case codes.DeadlineExceeded:
		return apperrors.Wrap(err, apperrors.Timeout, "health check timed out")
	case codes.Canceled:
		return apperrors.Wrap(err, apperrors.Cancelled, "health check cancelled")
	default:
		return apperrors.Wrap(err, apperrors.Unavailable, "health check failed")
	}
}
