// Package put implements the PUT file-transfer protocol adapter.
//
// Clients open a persistent TCP connection and issue LIST, PUT <name> <size>
// and QUIT commands. Every connection is served by its own goroutine; the
// storage root is the only state shared between them.
package put

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/putd/internal/logger"
	"github.com/marmos91/putd/internal/ratelimiter"
	"github.com/marmos91/putd/pkg/diag"
	"github.com/marmos91/putd/pkg/journal"
	"github.com/marmos91/putd/pkg/metrics"
	"github.com/marmos91/putd/pkg/store"
)

// ErrNoStore is returned by Serve when SetStore was never called.
var ErrNoStore = errors.New("put adapter: no store configured")

// PutAdapter implements the PUT protocol server.
//
// It manages the TCP listener, accepts connections, and coordinates graceful
// shutdown. Each accepted connection is handled by a PutConnection in its own
// goroutine.
//
// Shutdown closes the listener, cancels the context shared by every
// connection (which interrupts blocked reads and aborts in-flight uploads,
// removing their partial entries) and waits up to ShutdownTimeout before
// force-closing whatever is left.
type PutAdapter struct {
	// config holds the server configuration (ports, timeouts, limits)
	config PutConfig

	// listener is the TCP listener for accepting PUT connections.
	// Closed during shutdown to stop accepting new connections.
	listener   net.Listener
	listenerMu sync.RWMutex

	// listenerReady is closed once the listener is bound.
	listenerReady chan struct{}

	// store is the storage root shared by all connections.
	store store.Store

	// metrics records protocol activity (optional, may be no-op).
	metrics metrics.PutMetrics

	// journal receives one record per upload (optional, may be no-op).
	journal journal.Sink

	// sampler reads TCP_INFO per payload chunk when enabled.
	sampler diag.Sampler

	// limiter throttles commands across all connections (nil-safe).
	limiter *ratelimiter.Limiter

	// activeConns tracks all currently active connections for graceful shutdown.
	activeConns sync.WaitGroup

	// trackMu orders activeConns.Add against shutdown; closing is set once
	// shutdown begins and no connection is tracked afterwards.
	trackMu sync.Mutex
	closing bool

	// shutdownOnce ensures shutdown is only initiated once.
	shutdownOnce sync.Once

	// shutdown signals that graceful shutdown has been initiated.
	shutdown chan struct{}

	// connCount tracks the current number of active connections.
	connCount atomic.Int32

	// connSemaphore limits the number of concurrent connections if MaxConnections > 0.
	// Nil if MaxConnections is 0 (unlimited).
	connSemaphore chan struct{}

	// shutdownCtx is passed to every connection and cancelled on shutdown.
	shutdownCtx context.Context

	// cancelRequests cancels shutdownCtx.
	cancelRequests context.CancelFunc

	// activeConnections maps remote address to net.Conn for force-closing.
	activeConnections sync.Map
}

// New creates a new PutAdapter with the specified configuration.
//
// The adapter is not started until Serve() is called. A store must be
// injected with SetStore first.
//
// putMetrics may be nil, in which case a no-op implementation is used.
//
// Panics if config validation fails.
func New(config PutConfig, putMetrics metrics.PutMetrics) *PutAdapter {
	config.applyDefaults()

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid PUT config: %v", err))
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("PUT connection limit: %d", config.MaxConnections)
	} else {
		logger.Debug("PUT connection limit: unlimited")
	}

	var limiter *ratelimiter.Limiter
	if config.RateLimit.RequestsPerSecond > 0 {
		limiter = ratelimiter.New(config.RateLimit.RequestsPerSecond, config.RateLimit.Burst)
		logger.Debug("PUT command rate limit: %d/s (burst %d)",
			config.RateLimit.RequestsPerSecond, config.RateLimit.Burst)
	}

	if putMetrics == nil {
		putMetrics = metrics.NewNoopPutMetrics()
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &PutAdapter{
		config:         config,
		listenerReady:  make(chan struct{}),
		metrics:        putMetrics,
		journal:        journal.NoopSink{},
		sampler:        diag.New(config.TCPInfo),
		limiter:        limiter,
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
}

// SetStore injects the storage root.
func (s *PutAdapter) SetStore(st store.Store) {
	s.store = st
	logger.Debug("PUT storage root configured")
}

// SetJournal injects the transfer journal. A nil sink disables journaling.
func (s *PutAdapter) SetJournal(sink journal.Sink) {
	if sink == nil {
		sink = journal.NoopSink{}
	}
	s.journal = sink
}

// SetSampler replaces the TCP_INFO sampler chosen from the configuration.
func (s *PutAdapter) SetSampler(sampler diag.Sampler) {
	if sampler == nil {
		sampler = diag.NoopSampler{}
	}
	s.sampler = sampler
}

// Serve starts the PUT server and blocks until the context is cancelled
// or an error occurs.
//
// Returns nil on graceful shutdown, an error if the listener could not be
// created or the shutdown timeout expired.
func (s *PutAdapter) Serve(ctx context.Context) error {
	if s.store == nil {
		return ErrNoStore
	}

	addr := net.JoinHostPort(s.config.BindAddress, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create PUT listener on %s: %w", addr, err)
	}

	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()
	close(s.listenerReady)

	// Stop() may have run before the listener existed.
	select {
	case <-s.shutdown:
		_ = listener.Close()
		return nil
	default:
	}

	logger.Info("PUT server listening on %s", listener.Addr())
	logger.Debug("PUT config: max_connections=%d buffer_size=%d idle_timeout=%v chunk_timeout=%v write_timeout=%v",
		s.config.MaxConnections, s.config.BufferSize,
		s.config.Timeouts.Idle, s.config.Timeouts.Chunk, s.config.Timeouts.Write)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("PUT shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics(s.shutdownCtx)
	}

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}

			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting PUT connection: %v", err)
				continue
			}
		}

		if !s.trackConn() {
			_ = tcpConn.Close()
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}
			return s.gracefulShutdown()
		}
		s.connCount.Add(1)

		connAddr := tcpConn.RemoteAddr().String()
		s.activeConnections.Store(connAddr, tcpConn)

		s.metrics.RecordConnectionAccepted()
		currentConns := s.connCount.Load()
		s.metrics.SetActiveConnections(currentConns)

		logger.Info("New connection from %s (active: %d)", connAddr, currentConns)

		conn := NewPutConnection(s, tcpConn)
		go func(addr string) {
			defer func() {
				s.activeConnections.Delete(addr)

				s.activeConns.Done()
				s.connCount.Add(-1)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}

				s.metrics.RecordConnectionClosed()
				currentConns := s.connCount.Load()
				s.metrics.SetActiveConnections(currentConns)

				logger.Info("Connection from %s closed (active: %d)", addr, currentConns)
			}()

			conn.Serve(s.shutdownCtx)
		}(connAddr)
	}
}

// trackConn registers an accepted connection with activeConns. It fails once
// shutdown has begun so that no Add races the Wait in gracefulShutdown or
// Stop.
func (s *PutAdapter) trackConn() bool {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()

	if s.closing {
		return false
	}
	s.activeConns.Add(1)
	return true
}

// initiateShutdown closes the listener and cancels every connection context.
// Safe to call multiple times.
func (s *PutAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("PUT shutdown initiated")

		s.trackMu.Lock()
		s.closing = true
		s.trackMu.Unlock()

		close(s.shutdown)

		s.listenerMu.RLock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing PUT listener: %v", err)
			}
		}
		s.listenerMu.RUnlock()

		s.cancelRequests()
		logger.Debug("PUT cancellation signal sent to all connections")
	})
}

// gracefulShutdown waits for active connections up to ShutdownTimeout and
// force-closes the rest.
func (s *PutAdapter) gracefulShutdown() error {
	activeCount := s.connCount.Load()
	logger.Info("PUT graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		activeCount, s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("PUT graceful shutdown complete: all connections closed")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("PUT shutdown timeout exceeded: %d connection(s) still active after %v - forcing closure",
			remaining, s.config.ShutdownTimeout)

		s.forceCloseConnections()

		return fmt.Errorf("PUT shutdown timeout: %d connections force-closed", remaining)
	}
}

// forceCloseConnections closes every tracked TCP connection.
func (s *PutAdapter) forceCloseConnections() {
	closedCount := 0
	s.activeConnections.Range(func(key, value any) bool {
		addr := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection to %s: %v", addr, err)
		} else {
			closedCount++
			s.metrics.RecordConnectionForceClosed()
		}
		return true
	})

	if closedCount > 0 {
		logger.Info("Force-closed %d connection(s)", closedCount)
	}
}

// Stop initiates graceful shutdown and waits for active connections until
// ctx is done. Safe to call concurrently with Serve and more than once.
func (s *PutAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		remaining := s.connCount.Load()
		logger.Warn("PUT shutdown context cancelled: %d connection(s) still active: %v",
			remaining, ctx.Err())
		return ctx.Err()
	}
}

// logMetrics periodically logs the connection count and, when throttling,
// the tokens left in the command bucket.
func (s *PutAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.limiter.Enabled() {
				logger.Info("PUT metrics: active_connections=%d rate_limit_tokens=%.1f",
					s.connCount.Load(), s.limiter.Tokens())
				continue
			}
			logger.Info("PUT metrics: active_connections=%d", s.connCount.Load())
		}
	}
}

// recordTransfer hands rec to the journal. Sink failures are logged only.
func (s *PutAdapter) recordTransfer(ctx context.Context, rec journal.Record) {
	if err := s.journal.RecordTransfer(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("Failed to journal transfer of %s: %v", rec.Filename, err)
	}
}

// GetActiveConnections returns the current number of active connections.
func (s *PutAdapter) GetActiveConnections() int32 {
	return s.connCount.Load()
}

// Ready is closed once the listener is bound.
func (s *PutAdapter) Ready() <-chan struct{} {
	return s.listenerReady
}

// Addr returns the bound listener address, or nil before Serve.
func (s *PutAdapter) Addr() net.Addr {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the bound TCP port, or the configured one before Serve.
func (s *PutAdapter) Port() int {
	if tcpAddr, ok := s.Addr().(*net.TCPAddr); ok {
		return tcpAddr.Port
	}
	return s.config.Port
}

// Protocol returns "PUT".
func (s *PutAdapter) Protocol() string {
	return "PUT"
}
