package peerpump

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Handler is the interface for handling incoming TCP connections.
type Handler interface {
	// Handle is called in its own goroutine for each accepted connection.
	// It owns conn and should return once ctx is canceled.
	Handle(ctx context.Context, conn net.Conn)
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc func(ctx context.Context, conn net.Conn)

// Handle calls f(ctx, conn).
func (f HandlerFunc) Handle(ctx context.Context, conn net.Conn) {
	f(ctx, conn)
}

// Server accepts TCP connections and dispatches each one to a Handler.
// There is no limit on the number of concurrent connections.
type Server struct {
	listener     net.Listener
	logger       Logger
	drainTimeout time.Duration

	mu          sync.Mutex
	shutdown    bool
	shutdownNow chan struct{} // signals immediate shutdown, bypassing the drain wait
	closeOnce   sync.Once

	handlers sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerDrainTimeoutOption bounds how long Serve waits for running handlers
// after it stops accepting. Default is 0, which waits until every handler
// has returned.
func ServerDrainTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.drainTimeout = timeout
	}
}

// Listen creates a new TCP server bound to addr.
// Returns an error if the address cannot be bound.
func Listen(addr string, opts ...ServerOption) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addr)
	}

	s := &Server{
		listener:    listener,
		logger:      defaultLogger(),
		shutdownNow: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Serve starts accepting connections and dispatching them to the handler.
// It blocks until the context is canceled or an unrecoverable error occurs.
// On return the listener is closed and the context passed to running
// handlers is canceled. Handlers have been waited for (bounded by the drain
// timeout, or cut short by Close).
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.listener.Addr())

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
			return
		}
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = s.listener.Close()
	}()

	err := s.acceptLoop(handlerCtx, handler)
	cancel()
	s.drain()
	return err
}

func (s *Server) acceptLoop(ctx context.Context, handler Handler) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			isShutdown := s.shutdown
			s.mu.Unlock()

			if isShutdown {
				s.logger.Info("server stopped", "addr", s.listener.Addr())
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return ErrServerClosed
			}

			// Check if it's a temporary error
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept error", "error", err)
			return errors.Wrap(err, "accept")
		}

		s.logger.Info("peer connected", "remote_addr", conn.RemoteAddr())
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			handler.Handle(ctx, conn)
		}()
	}
}

// drain waits for running handlers.
func (s *Server) drain() {
	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()

	var timeout <-chan time.Time
	if s.drainTimeout > 0 {
		timer := time.NewTimer(s.drainTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-done:
	case <-timeout:
		s.logger.Warn("drain timeout expired", "timeout", s.drainTimeout)
	case <-s.shutdownNow:
		s.logger.Debug("drain bypassed via Close()")
	}
}

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("server closed")

// Close stops the server by closing the underlying listener.
// A Serve waiting for handlers to drain returns immediately.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		close(s.shutdownNow)
	})

	err := s.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
