// Package healthcheck publishes dependency health over the standard gRPC
// health protocol.
package healthcheck

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Checker probes one dependency and returns an error when it is unusable.
type Checker func(ctx context.Context) error

// Server reports SERVING for the overall service ("") only while every
// registered checker passes. Each checker is also exposed under its own name.
type Server struct {
	health   *health.Server
	checks   map[string]Checker
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates a health server. Until the first Probe every service reports
// NOT_SERVING.
func New(checks map[string]Checker, interval time.Duration, logger *zap.Logger) *Server {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	s := &Server{
		health:   health.NewServer(),
		checks:   checks,
		interval: interval,
		timeout:  interval / 2,
		logger:   logger.Named("healthcheck"),
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for name := range checks {
		s.health.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return s
}

// Register attaches the health service to g.
func (s *Server) Register(g *grpc.Server) {
	healthpb.RegisterHealthServer(g, s.health)
}

// Probe runs every checker once and updates the published statuses. It
// reports whether all checks passed.
func (s *Server) Probe(ctx context.Context) bool {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.checks[name](checkCtx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			healthy = false
			status = healthpb.HealthCheckResponse_NOT_SERVING
			s.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
		}
		s.health.SetServingStatus(name, status)
	}

	if healthy {
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	} else {
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return healthy
}

// Run probes immediately and then on every interval until ctx is done, after
// which all services report NOT_SERVING.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}
