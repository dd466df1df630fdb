// Package peerpump implements a small peer-to-peer TCP telemetry link.
// Each connection is serviced by a duplex pump: a read loop that splits the
// stream into comma-delimited frames and a write loop that drains a bounded
// outbound queue. Nodes either listen for peers or dial them, and feed every
// connection from a periodic generator.
package peerpump

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Errors returned by connection operations.
var (
	// ErrInvalidConn is returned when no network connection is provided.
	ErrInvalidConn = errors.New("invalid connection")
	// ErrConnectionClosed is returned when the peer closed the stream or the
	// connection was closed locally.
	ErrConnectionClosed = errors.New("connection closed")
)

// Default configuration values.
const (
	// DefaultMaxFrameSize is the default maximum size of a single inbound frame.
	DefaultMaxFrameSize = 4096
	// DefaultIdleTimeout is the default idle timeout.
	DefaultIdleTimeout = 30 * time.Second
)

// Conn is the pump servicing one TCP connection.
// The read half belongs to the read loop and the write half to the write
// loop; producers only ever touch the outbound queue.
type Conn struct {
	rawConn net.Conn
	id      string
	peer    string
	reader  *frameReader
	writer  *bufio.Writer
	queue   *Queue
	logger  Logger

	opts options

	closed atomic.Bool
}

// NewConn creates a new pump around the given connection.
// It applies the provided options and fills in defaults for the rest.
func NewConn(conn net.Conn, opt ...Option) (*Conn, error) {
	if conn == nil {
		return nil, ErrInvalidConn
	}

	var opts options
	for _, o := range opt {
		o(&opts)
	}

	checkOptions(&opts)

	return newConnWithOptions(conn, opts), nil
}

// checkOptions sets default values for connection options.
func checkOptions(opts *options) {
	if opts.bufferSize <= 0 {
		opts.bufferSize = DefaultQueueCapacity
	}

	if opts.maxFrameSize <= 0 {
		opts.maxFrameSize = DefaultMaxFrameSize
	}

	if opts.idleTimeout <= 0 {
		opts.idleTimeout = DefaultIdleTimeout
	}

	if opts.codec == nil {
		opts.codec = TextCodec{}
	}

	if opts.onError == nil {
		opts.onError = DefaultErrorPolicy
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	if opts.observer == nil {
		opts.observer = NewLogObserver(opts.logger)
	}
}

func newConnWithOptions(c net.Conn, opts options) *Conn {
	queue := opts.queue
	if queue == nil {
		queue = NewQueue(opts.bufferSize)
	}

	id := "conn-" + uuid.NewString()
	peer := c.RemoteAddr().String()

	return &Conn{
		rawConn: c,
		id:      id,
		peer:    peer,
		reader:  newFrameReader(c, opts.maxFrameSize),
		writer:  bufio.NewWriter(c),
		queue:   queue,
		logger:  withAttrs(opts.logger, "addr", peer, "conn_id", id),
		opts:    opts,
	}
}

// Run starts the connection's read and write loops.
// It blocks until either loop stops or the context is canceled; the other
// loop is then stopped as well, the socket is closed and the outbound queue
// is closed so that producers feeding it give up.
//
// A clean close by the peer is reported as ErrConnectionClosed.
func (c *Conn) Run(ctx context.Context) error {
	c.logger.Info("connection established")
	c.logger.Debug("connection options",
		"queue_capacity", c.queue.Cap(),
		"max_frame_size", c.opts.maxFrameSize,
		"idle_timeout", c.opts.idleTimeout)

	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		return c.readLoop(child)
	})

	group.Go(func() error {
		return c.writeLoop(child)
	})

	// Unblocks whichever loop is still parked on the socket.
	group.Go(func() error {
		<-child.Done()
		c.closeConn()
		return nil
	})

	err := group.Wait()
	c.closeConn()
	c.queue.Close()

	switch {
	case errors.Is(err, ErrConnectionClosed), errors.Is(err, context.Canceled):
		c.logger.Info("connection closed")
	default:
		c.logger.Info("connection closed with error", "error", err)
		c.opts.observer.OnError(c.peer, err)
	}

	return err
}

// Close closes the connection. Run returns ErrConnectionClosed.
// Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}
	return c.rawConn.Close()
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// Write queues a message without blocking (fire-and-forget).
//
// Returns:
//   - nil: message was successfully queued (not yet sent)
//   - ErrBufferFull: send buffer is full, message was NOT queued
//   - ErrConnectionClosed: connection is closed
//   - ErrInvalidField: the key cannot be framed
func (c *Conn) Write(message Message) error {
	if err := c.precheck(message); err != nil {
		return err
	}
	return c.queueErr(c.queue.TrySend(message))
}

// WriteBlocking queues a message, blocking until there is room in the queue
// or the context is canceled.
func (c *Conn) WriteBlocking(ctx context.Context, message Message) error {
	if err := c.precheck(message); err != nil {
		return err
	}
	return c.queueErr(c.queue.Send(ctx, message))
}

// WriteTimeout queues a message, waiting at most timeout for room.
// ErrBufferFull is returned when the timeout expires.
func (c *Conn) WriteTimeout(message Message, timeout time.Duration) error {
	if err := c.precheck(message); err != nil {
		return err
	}
	return c.queueErr(c.queue.SendTimeout(message, timeout))
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}

// ID returns the identifier used in this connection's log entries.
func (c *Conn) ID() string {
	return c.id
}

// Queue returns the outbound queue drained by the write loop.
func (c *Conn) Queue() *Queue {
	return c.queue
}

// precheck rejects messages for a closed connection or with a key that
// cannot be framed. Other codec failures surface in the write loop, where
// the message is dropped and reported to the observer.
func (c *Conn) precheck(message Message) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	return validateKey(message.Key)
}

func (c *Conn) queueErr(err error) error {
	if errors.Is(err, ErrQueueClosed) {
		return ErrConnectionClosed
	}
	return err
}

// readLoop splits the stream into frames and hands decoded messages to the
// observer. Malformed frames are reported and, unless the error callback
// says otherwise, skipped.
func (c *Conn) readLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_ = c.rawConn.SetReadDeadline(time.Now().Add(c.opts.idleTimeout * 2))

		frame, err := c.reader.next()
		if err != nil {
			if c.idle(ctx, err) {
				continue
			}
			return c.readError(ctx, frame, err)
		}

		message, err := c.opts.codec.Decode(frame)
		if err != nil {
			c.logger.Debug("decode error", "error", err)
			c.opts.observer.OnError(c.peer, err)
			if c.opts.onError(err) == Disconnect {
				return err
			}
			continue
		}

		c.opts.observer.OnReceived(c.peer, message)
	}
}

// idle reports whether err is an expired read deadline on a connection that
// is still open. A quiet peer is not an error; the deadline is re-armed and
// any partial frame is kept.
func (c *Conn) idle(ctx context.Context, err error) bool {
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		return false
	}
	if ctx.Err() != nil || c.closed.Load() {
		return false
	}
	c.logger.Debug("connection idle", "timeout", c.opts.idleTimeout*2)
	return true
}

// readError classifies an error from the frame reader.
func (c *Conn) readError(ctx context.Context, partial []byte, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case c.closed.Load():
		return ErrConnectionClosed
	case err == io.EOF:
		return ErrConnectionClosed
	case err == io.ErrUnexpectedEOF:
		c.logger.Debug("discarding partial frame", "frame", string(partial))
		return ErrConnectionClosed
	case errors.Is(err, ErrFrameTooLarge):
		return errors.Wrapf(err, "limit %d bytes", c.opts.maxFrameSize)
	default:
		return errors.Wrap(err, "read")
	}
}

// writeLoop sends queued messages in FIFO order until the context is
// canceled or a write fails.
func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		message, err := c.queue.Receive(ctx)
		if err != nil {
			return err
		}

		data, err := c.opts.codec.Encode(message)
		if err != nil {
			c.logger.Warn("dropping message", "key", message.Key, "error", err)
			c.opts.observer.OnError(c.peer, err)
			continue
		}

		sent, err := c.write(ctx, data)
		if err != nil {
			return err
		}
		if sent {
			c.opts.observer.OnSent(c.peer, message)
		}
	}
}

// write sends one frame and flushes it. If an error occurs and onError
// returns Continue, the frame is dropped and the writer reset.
func (c *Conn) write(ctx context.Context, data []byte) (bool, error) {
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.opts.idleTimeout * 2))

	_, err := c.writer.Write(data)
	if err == nil {
		err = c.writer.Flush()
	}
	if err == nil {
		return true, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}

	c.logger.Debug("write error", "error", err)
	if c.opts.onError(err) == Disconnect {
		return false, errors.Wrap(err, "write")
	}

	c.writer.Reset(c.rawConn)
	return false, nil
}

// closeConn marks the connection as closed and closes the underlying socket.
func (c *Conn) closeConn() {
	if !c.closed.Swap(true) {
		_ = c.rawConn.Close()
	}
}
