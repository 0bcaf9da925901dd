// Package health exposes the standard gRPC health service for putd.
//
// The serving status follows the storage root: a background loop runs the
// store healthcheck every interval and flips the status between SERVING and
// NOT_SERVING. Orchestrators probe it with grpc_health_probe or any client of
// grpc.health.v1.Health.
package health

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/marmos91/putd/internal/logger"
	"github.com/marmos91/putd/pkg/metrics"
	"github.com/marmos91/putd/pkg/store"
)

// ServiceName is the service reported alongside the overall ("") status.
const ServiceName = "putd.Put"

// Config configures the health server.
type Config struct {
	// BindAddress is the interface to listen on. Empty means all interfaces.
	BindAddress string

	// Port to listen on. 0 picks a free port.
	Port int

	// CheckInterval is the time between store healthchecks.
	// Defaults to 10 seconds.
	CheckInterval time.Duration
}

// Server serves grpc.health.v1.Health and server reflection.
type Server struct {
	config  Config
	store   store.Store
	metrics metrics.PutMetrics

	grpcServer *grpc.Server
	health     *health.Server

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
	stopOnce sync.Once
}

// New creates a health server watching st. m may be nil.
func New(config Config, st store.Store, m metrics.PutMetrics) *Server {
	if config.CheckInterval <= 0 {
		config.CheckInterval = 10 * time.Second
	}
	if m == nil {
		m = metrics.NewNoopPutMetrics()
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(logRequests))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	reflection.Register(grpcServer)

	// Nothing is known until the first check.
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{
		config:     config,
		store:      st,
		metrics:    m,
		grpcServer: grpcServer,
		health:     hs,
		ready:      make(chan struct{}),
	}
}

func logRequests(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		logger.Debug("health: %s failed: %v", info.FullMethod, err)
	}
	return resp, err
}

// Start listens, runs the check loop and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.BindAddress, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("health server failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.Check(ctx)
	close(s.ready)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.checkLoop(loopCtx)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Health server listening on %s", ln.Addr())
		errChan <- s.grpcServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.Stop()
		return nil
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	}
}

func (s *Server) checkLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Check runs one store healthcheck, updates the serving status and, when the
// store can report it, the storage usage gauges.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	checkCtx, cancel := context.WithTimeout(ctx, s.config.CheckInterval)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.store.Healthcheck(checkCtx); err != nil {
		logger.Warn("Storage healthcheck failed: %v", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)

	if reporter, ok := s.store.(store.StatsReporter); ok {
		if stats, err := reporter.Stats(checkCtx); err == nil {
			s.metrics.SetStorageUsage(stats.FileCount, stats.UsedBytes)
		}
	}
	return status
}

// Stop marks every service NOT_SERVING and stops the gRPC server.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		logger.Info("Health server stopped")
	})
}

// Ready is closed once the server is listening and the first check ran.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
