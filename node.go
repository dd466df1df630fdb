package peerpump

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoPeers is returned by a sender when no configured address could be reached.
	ErrNoPeers = errors.New("no peer reachable")
	// ErrUnknownPeer is returned by Node.Send for an address without a live queue.
	ErrUnknownPeer = errors.New("unknown peer")
)

// Node is the process-level runtime: it binds or dials according to its
// role and runs a pump plus a generator for every connection.
type Node struct {
	cfg      Config
	logger   Logger
	observer Observer
	registry *Registry

	mu         sync.Mutex
	listenAddr net.Addr
	ready      chan struct{}
	readyOnce  sync.Once
}

// NodeOption configures a Node.
type NodeOption func(*Node)

// NodeLoggerOption sets the logger used by the node and its connections.
func NodeLoggerOption(logger Logger) NodeOption {
	return func(n *Node) {
		n.logger = logger
	}
}

// NodeObserverOption sets the sink for every connection's events.
// Defaults to logging them.
func NodeObserverOption(observer Observer) NodeOption {
	return func(n *Node) {
		n.observer = observer
	}
}

// NewNode validates cfg and returns a node ready to Run.
func NewNode(cfg Config, opts ...NodeOption) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := &Node{
		cfg:      cfg,
		registry: NewRegistry(),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = defaultLogger()
	}
	if n.observer == nil {
		n.observer = NewLogObserver(n.logger)
	}

	return n, nil
}

// Run blocks until ctx is canceled (listener) or until every outbound
// connection has ended (sender). Cancellation is a clean exit and returns nil.
func (n *Node) Run(ctx context.Context) error {
	n.logger.Info("node starting", "role", n.cfg.Role.String(), "addresses", n.cfg.Addresses)

	var err error
	switch n.cfg.Role {
	case Listener:
		err = n.runListener(ctx)
	case Sender:
		err = n.runSender(ctx)
	}

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	n.logger.Info("node stopped", "role", n.cfg.Role.String(), "error", err)
	return err
}

// Ready is closed once the node is accepting (listener) or has started
// dialing (sender).
func (n *Node) Ready() <-chan struct{} {
	return n.ready
}

// ListenAddr returns the bound address of a listener, or nil before Ready.
func (n *Node) ListenAddr() net.Addr {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.listenAddr
}

// Registry returns the sender's address to queue mapping.
func (n *Node) Registry() *Registry {
	return n.registry
}

// Send queues msg for the connection to addr, blocking while its queue is
// full. Only connections made by a sender are addressable.
func (n *Node) Send(ctx context.Context, addr string, msg Message) error {
	q, ok := n.registry.Lookup(addr)
	if !ok {
		return errors.Wrap(ErrUnknownPeer, addr)
	}
	return q.Send(ctx, msg)
}

func (n *Node) markReady(addr net.Addr) {
	n.readyOnce.Do(func() {
		n.mu.Lock()
		n.listenAddr = addr
		n.mu.Unlock()
		close(n.ready)
	})
}

func (n *Node) runListener(ctx context.Context) error {
	server, err := Listen(n.cfg.Addresses[0], ServerLoggerOption(n.logger))
	if err != nil {
		return err
	}
	defer server.Close()

	n.markReady(server.Addr())

	return server.Serve(ctx, HandlerFunc(func(ctx context.Context, conn net.Conn) {
		q := NewQueue(n.cfg.QueueCapacity)
		_ = n.serveConn(ctx, conn, q, n.cfg.ListenerSends)
	}))
}

// runSender connects to every address concurrently. A failure on one
// address never cancels its siblings.
func (n *Node) runSender(ctx context.Context) error {
	n.markReady(nil)

	var (
		group  errgroup.Group
		failed atomic.Int32
	)
	for _, addr := range n.cfg.Addresses {
		group.Go(func() error {
			if err := n.runPeer(ctx, addr); err != nil {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = group.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if int(failed.Load()) == len(n.cfg.Addresses) {
		return ErrNoPeers
	}
	return nil
}

// runPeer owns one outbound address from registration to teardown.
// It reports an error only if the peer could not be reached.
func (n *Node) runPeer(ctx context.Context, addr string) error {
	q := NewQueue(n.cfg.QueueCapacity)
	if err := n.registry.Register(addr, q); err != nil {
		n.logger.Error("register peer failed", "addr", addr, "error", err)
		return err
	}
	defer n.registry.Remove(addr, q)
	defer q.Close()

	conn, err := Dial(ctx, addr, n.cfg.DialTimeout)
	if err != nil {
		n.logger.Error("connect failed", "addr", addr, "error", err)
		n.observer.OnError(addr, err)
		return err
	}

	_ = n.serveConn(ctx, conn, q, true)
	return nil
}

// serveConn runs the pump for conn and, if generate is set, a generator
// feeding q. Both stop when either the connection ends or ctx is canceled.
func (n *Node) serveConn(ctx context.Context, conn net.Conn, q *Queue, generate bool) error {
	c, err := NewConn(conn,
		QueueOption(q),
		MaxFrameSizeOption(n.cfg.MaxFrameSize),
		IdleTimeoutOption(n.cfg.IdleTimeout),
		LoggerOption(n.logger),
		ObserverOption(n.observer),
	)
	if err != nil {
		_ = conn.Close()
		return err
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return c.Run(gctx)
	})
	if generate {
		gen := &Generator{
			Key:      n.cfg.Key,
			Start:    n.cfg.StartValue,
			Step:     n.cfg.Step,
			Interval: n.cfg.Interval,
			Logger:   withAttrs(n.logger, "addr", c.Addr().String(), "conn_id", c.ID()),
		}
		group.Go(func() error {
			return gen.Run(gctx, q)
		})
	}
	return group.Wait()
}
