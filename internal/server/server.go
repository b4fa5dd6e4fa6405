// Package server implements the connection server: a TCP listener
// accepting arbitrarily many concurrent connections, each an
// independent per-connection FSM speaking the line protocol.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/celliott/divvy/internal/handler"
	"github.com/celliott/divvy/internal/logging"
	"github.com/celliott/divvy/internal/metrics"
	"github.com/celliott/divvy/internal/rules"
)

// ErrMaxConnsReached describes a connection refused because the
// configured connection cap was reached. The accept loop does not return
// it: it closes the surplus connection and keeps the listener open.
var ErrMaxConnsReached = errors.New("server: max connections reached")

// Config configures a Server.
type Config struct {
	MaxLineBytes int // 0 selects the default cap of 8192 bytes
	MaxConns     int // 0 = unbounded
}

// Server accepts TCP connections and dispatches each line to a Handler.
//
// Draining is tracked through the same active-connection map Shutdown
// uses to force-close stragglers: there is one bookkeeping structure,
// not a counter mirrored alongside a separate set. acceptLoop adds a
// connection to active before spawning its goroutine; that goroutine
// removes itself on exit. Once draining starts, the last removal (or
// Shutdown itself, if the map is already empty) closes drained.
type Server struct {
	cfg        Config
	listener   net.Listener
	handler    *handler.Handler
	table      *rules.Table
	metrics    metrics.Sink
	logger     logging.Logger
	conns      atomic.Int64
	wg         sync.WaitGroup
	closedOnce sync.Once

	draining   atomic.Bool
	drainOnce  sync.Once
	drained    chan struct{}
	activeMu   sync.Mutex
	active     map[net.Conn]struct{}
}

// New constructs a Server. A nil Metrics/Logger is replaced with a no-op.
func New(cfg Config, h *handler.Handler, table *rules.Table, sink metrics.Sink, logger logging.Logger) *Server {
	if sink == nil {
		sink = metrics.Nop{}
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Server{
		cfg:     cfg,
		handler: h,
		table:   table,
		metrics: sink,
		logger:  logger,
		drained: make(chan struct{}),
		active:  make(map[net.Conn]struct{}),
	}
}

// Addr returns the bound address; valid only after Start succeeds.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds listenAddr and begins accepting connections in the
// background. It returns once the listener is bound.
func (s *Server) Start(listenAddr string) error {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln
	s.logger.Info("listening", map[string]any{"addr": ln.Addr().String()})

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept failed", map[string]any{"error": err.Error()})
			continue
		}

		if s.cfg.MaxConns > 0 && s.conns.Load() >= int64(s.cfg.MaxConns) {
			conn.Close()
			continue
		}
		if !s.admit(conn) {
			conn.Close()
			continue
		}

		s.conns.Add(1)
		s.metrics.Gauge("connections", s.conns.Load())

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.dismiss(conn)
			defer func() {
				s.conns.Add(-1)
				s.metrics.Gauge("connections", s.conns.Load())
			}()
			s.serve(conn)
		}()
	}
}

// admit records conn as active, unless a drain is already underway, in
// which case it refuses the connection instead of serving one Shutdown
// has already decided not to wait for.
func (s *Server) admit(conn net.Conn) bool {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if s.draining.Load() {
		return false
	}
	s.active[conn] = struct{}{}
	return true
}

// dismiss removes conn from the active set. If a drain is underway and
// this was the last active connection, it signals Shutdown's wait.
func (s *Server) dismiss(conn net.Conn) {
	s.activeMu.Lock()
	delete(s.active, conn)
	remaining := len(s.active)
	draining := s.draining.Load()
	s.activeMu.Unlock()
	if draining && remaining == 0 {
		s.signalDrained()
	}
}

func (s *Server) signalDrained() {
	s.drainOnce.Do(func() { close(s.drained) })
}

// Shutdown closes the listener, stops accepting new connections, and
// waits for active connections to drain up to ctx's deadline. Once the
// deadline passes, remaining connections are force-closed.
func (s *Server) Shutdown(ctx context.Context) error {
	var closeErr error
	s.closedOnce.Do(func() {
		if s.listener != nil {
			closeErr = s.listener.Close()
		}
	})

	s.draining.Store(true)
	s.activeMu.Lock()
	remaining := len(s.active)
	s.activeMu.Unlock()
	if remaining == 0 {
		s.signalDrained()
	}

	var waitErr error
	select {
	case <-s.drained:
	case <-ctx.Done():
		waitErr = ctx.Err()
		s.forceCloseAll()
	}

	s.wg.Wait()
	if waitErr != nil {
		return waitErr
	}
	return closeErr
}

func (s *Server) forceCloseAll() {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	for conn := range s.active {
		conn.Close()
	}
}
