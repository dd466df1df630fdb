package peerpump

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
)

// DefaultDialTimeout bounds a single outbound connection attempt.
const DefaultDialTimeout = 5 * time.Second

// Dial opens a TCP connection to addr, giving up after timeout or when ctx
// is canceled. A non-positive timeout selects DefaultDialTimeout.
func Dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	return conn, nil
}
