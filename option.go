package peerpump

import (
	"time"

	"github.com/pkg/errors"
)

// ErrorAction defines the action to take when an error occurs.
type ErrorAction int

const (
	// Disconnect closes the connection when an error occurs.
	Disconnect ErrorAction = iota
	// Continue suppresses the error and continues processing.
	Continue
)

// DefaultErrorPolicy skips malformed frames and disconnects on anything else.
func DefaultErrorPolicy(err error) ErrorAction {
	if errors.Is(err, ErrMalformed) {
		return Continue
	}
	return Disconnect
}

// options holds the configuration for a connection.
type options struct {
	codec    Codec
	logger   Logger
	observer Observer
	queue    *Queue

	// onError is called when a decode or write error occurs.
	// Returns Disconnect to close the connection, Continue to suppress the error.
	onError func(error) ErrorAction

	bufferSize   int           // capacity of the outbound queue when none is supplied
	maxFrameSize int           // maximum size of a single inbound frame
	idleTimeout  time.Duration // read/write deadlines are twice this
}

// Option is a function that configures connection options.
type Option func(*options)

// CustomCodecOption returns an Option that sets the message codec.
// TextCodec is used when none is given.
func CustomCodecOption(codec Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// BufferSizeOption returns an Option that sets the capacity of the outbound
// queue. Ignored when QueueOption is also given.
func BufferSizeOption(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// QueueOption returns an Option that makes the connection drain q instead of
// allocating its own queue. This lets producers hold the queue before the
// connection exists.
func QueueOption(q *Queue) Option {
	return func(o *options) {
		o.queue = q
	}
}

// IdleTimeoutOption returns an Option that sets the idle timeout.
// Read and write deadlines are set to twice this value.
func IdleTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = timeout
	}
}

// MaxFrameSizeOption returns an Option that caps the size of an inbound
// frame. A peer exceeding it is disconnected with ErrFrameTooLarge.
func MaxFrameSizeOption(size int) Option {
	return func(o *options) {
		o.maxFrameSize = size
	}
}

// OnErrorOption returns an Option that sets the error callback.
// The callback is invoked when a decode or write error occurs.
// Return Disconnect to close the connection, or Continue to suppress the error.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// ObserverOption returns an Option that sets the event sink.
// If not set, events are logged through the connection's logger.
func ObserverOption(observer Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
