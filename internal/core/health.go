package core

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/matheus3301/nchat/internal/bus"
	"github.com/matheus3301/nchat/internal/profile"
	"github.com/matheus3301/nchat/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ChannelService is the health service name that reports SERVING while the
// push channel is open. The empty service name reports process liveness.
const ChannelService = "nchat.channel"

// HealthServer exposes the gRPC health protocol on the profile's Unix socket
// so nchatctl can probe a running nchat.
type HealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	socketPath string
	machine    *status.Machine
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewHealthServer creates a gRPC server bound to the profile's Unix domain
// socket. The channel service tracks machine.
func NewHealthServer(p Params, b *bus.Bus, machine *status.Machine, logger *zap.Logger) (*HealthServer, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = profile.SocketPath(p.ProfileName)
	}

	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ChannelService, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	ctx, cancel := context.WithCancel(context.Background())
	s := &HealthServer{
		ctx:        ctx,
		cancel:     cancel,
		grpcServer: srv,
		health:     hs,
		listener:   listener,
		socketPath: socketPath,
		machine:    machine,
		logger:     logger,
	}
	events, unsub := b.Subscribe(bus.ChannelStatusChanged, 16)
	go s.follow(events, unsub)
	return s, nil
}

// Start serves health checks. Blocks until stopped.
func (s *HealthServer) Start() error {
	s.logger.Info("health server starting", zap.String("socket", s.socketPath))
	return s.grpcServer.Serve(s.listener)
}

// follow re-reads the machine on every status event. Events only wake it up;
// the bus may drop some, so their payloads are not trusted.
func (s *HealthServer) follow(events <-chan bus.Event, unsub func()) {
	defer unsub()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-events:
			if s.machine != nil {
				s.SetChannelState(s.machine.Current())
			}
		}
	}
}

// SetChannelState maps a channel state onto the health status.
func (s *HealthServer) SetChannelState(st status.State) {
	serving := healthpb.HealthCheckResponse_NOT_SERVING
	if st == status.Open {
		serving = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ChannelService, serving)
}

// Stop performs a graceful shutdown and removes the socket file.
func (s *HealthServer) Stop(_ context.Context) {
	s.logger.Info("health server stopping")
	s.cancel()
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	_ = os.Remove(s.socketPath)
}

// Probe asks the nchat running for socketPath about its push channel.
func Probe(ctx context.Context, socketPath string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient("unix://"+socketPath, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("connect %s: %w", socketPath, err)
	}
	defer func() { _ = conn.Close() }()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ChannelService})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check: %w", err)
	}
	return resp.Status, nil
}
