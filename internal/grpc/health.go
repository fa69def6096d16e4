package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sort"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Pinger is anything the health server can probe: the order database,
// the cart store, the audit store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

const defaultCheckInterval = 10 * time.Second

// HealthServer exposes grpc.health.v1.Health. Every dependency is reported
// as its own service name; the empty name is SERVING only while all of
// them answer.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	deps     map[string]Pinger
	interval time.Duration
	timeout  time.Duration
}

func NewHealthServer(deps map[string]Pinger, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &HealthServer{
		server:   srv,
		health:   hs,
		deps:     deps,
		interval: interval,
		timeout:  2 * time.Second,
	}
}

// Check pings every dependency once and publishes the result. The returned
// map holds only the failures.
func (s *HealthServer) Check(ctx context.Context) map[string]error {
	failed := make(map[string]error)
	for _, name := range s.names() {
		pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.deps[name].Ping(pingCtx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			failed[name] = err
			status = healthpb.HealthCheckResponse_NOT_SERVING
			slog.WarnContext(ctx, "dependency unhealthy", "dependency", name, "error", err)
		}
		s.health.SetServingStatus(name, status)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if len(failed) > 0 {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", overall)
	return failed
}

// Serve runs the gRPC server on lis and refreshes statuses until ctx is
// cancelled, then stops gracefully.
func (s *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	s.Check(ctx)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gRPC health server listening", "addr", lis.Addr().String())
		errCh <- s.server.Serve(lis)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			s.server.GracefulStop()
			if err := <-errCh; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		case err := <-errCh:
			return err
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

func (s *HealthServer) names() []string {
	names := make([]string, 0, len(s.deps))
	for name := range s.deps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
