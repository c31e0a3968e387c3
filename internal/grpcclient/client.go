package grpcclient

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Faissen/signatures-recognition/internal/logging"
)

// HealthClient queries the gRPC health endpoint of a running identification
// service.
type HealthClient struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
	logger *zap.Logger
}

// DialHealth connects to addr and blocks until the connection is ready or
// five seconds pass.
func DialHealth(ctx context.Context, addr string, logger *zap.Logger) (*HealthClient, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_health", "", err)
		logger.Error("failed to dial identification service", zap.Error(wrapped), zap.String("addr", addr))
		return nil, wrapped
	}
	return &HealthClient{conn: conn, client: healthpb.NewHealthClient(conn), logger: logger}, nil
}

// Check returns the serving status of service. The empty name is the overall
// server status.
func (h *HealthClient) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.check_health", "", err)
		h.logger.Error("health check call failed", zap.Error(wrapped), zap.String("service", service))
		return healthpb.HealthCheckResponse_UNKNOWN, wrapped
	}
	return resp.GetStatus(), nil
}

// Close releases the connection.
func (h *HealthClient) Close() error {
	return h.conn.Close()
}
