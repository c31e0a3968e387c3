package healthcheck

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startServer(t *testing.T, s *Server) healthpb.HealthClient {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	g := grpc.NewServer()
	s.Register(g)
	go func() { _ = g.Serve(listener) }()
	t.Cleanup(g.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func status(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestServerStartsNotServing(t *testing.T) {
	s := New(map[string]Checker{"gallery": func(context.Context) error { return nil }}, time.Second, zap.NewNop())
	client := startServer(t, s)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, "gallery"))
}

func TestProbeReflectsFailingCheck(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	checks := map[string]Checker{
		"gallery": func(context.Context) error { return nil },
		"cache": func(context.Context) error {
			if failing.Load() {
				return errors.New("redis unreachable")
			}
			return nil
		},
	}
	s := New(checks, time.Second, zap.NewNop())
	client := startServer(t, s)

	assert.False(t, s.Probe(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, "gallery"))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, "cache"))

	failing.Store(false)
	assert.True(t, s.Probe(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, "cache"))
}

func TestRunProbesUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	s := New(map[string]Checker{"gallery": func(context.Context) error {
		calls.Add(1)
		return nil
	}}, 10*time.Millisecond, zap.NewNop())
	client := startServer(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, ""))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, ""))
}
