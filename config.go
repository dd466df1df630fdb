package peerpump

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrConfig is matched by every configuration error.
var ErrConfig = errors.New("invalid configuration")

// Role selects which half of the bootstrap path a node runs.
type Role int

const (
	// Listener accepts inbound connections on one address.
	Listener Role = iota
	// Sender dials every configured address.
	Sender
)

func (r Role) String() string {
	switch r {
	case Listener:
		return "listener"
	case Sender:
		return "sender"
	default:
		return "unknown"
	}
}

// ParseRole converts "listener" or "sender" into a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "listener":
		return Listener, nil
	case "sender":
		return Sender, nil
	default:
		return 0, errors.Wrapf(ErrConfig, "unknown role %q", s)
	}
}

// Config holds the configuration for a node.
type Config struct {
	Role      Role
	Addresses []string

	// Per-connection settings
	QueueCapacity int
	MaxFrameSize  int
	IdleTimeout   time.Duration
	DialTimeout   time.Duration

	// Generator settings
	Key        string
	StartValue float64
	Step       float64
	Interval   time.Duration

	// ListenerSends starts a generator on accepted connections as well.
	ListenerSends bool
}

// DefaultConfig returns a config with the default tunables and no addresses.
func DefaultConfig(role Role) Config {
	return Config{
		Role:          role,
		QueueCapacity: DefaultQueueCapacity,
		MaxFrameSize:  DefaultMaxFrameSize,
		IdleTimeout:   DefaultIdleTimeout,
		DialTimeout:   DefaultDialTimeout,
		Key:           DefaultKey,
		StartValue:    DefaultStartValue,
		Step:          DefaultStep,
		Interval:      DefaultInterval,
		ListenerSends: true,
	}
}

// Validate checks if the config is valid.
func (c Config) Validate() error {
	for _, addr := range c.Addresses {
		if strings.TrimSpace(addr) == "" {
			return errors.Wrap(ErrConfig, "empty address")
		}
	}

	switch c.Role {
	case Listener:
		if len(c.Addresses) != 1 {
			return errors.Wrapf(ErrConfig, "listener requires exactly one address, got %d", len(c.Addresses))
		}
	case Sender:
		if len(c.Addresses) == 0 {
			return errors.Wrap(ErrConfig, "sender requires at least one address")
		}
		seen := make(map[string]struct{}, len(c.Addresses))
		for _, addr := range c.Addresses {
			if _, ok := seen[addr]; ok {
				return errors.Wrapf(ErrConfig, "duplicate address %s", addr)
			}
			seen[addr] = struct{}{}
		}
	default:
		return errors.Wrapf(ErrConfig, "unknown role %d", int(c.Role))
	}

	if c.QueueCapacity <= 0 {
		return errors.Wrap(ErrConfig, "queue capacity must be positive")
	}
	if c.MaxFrameSize <= 0 {
		return errors.Wrap(ErrConfig, "max frame size must be positive")
	}
	if c.Interval <= 0 {
		return errors.Wrap(ErrConfig, "interval must be positive")
	}
	if c.IdleTimeout <= 0 {
		return errors.Wrap(ErrConfig, "idle timeout must be positive")
	}
	if c.DialTimeout <= 0 {
		return errors.Wrap(ErrConfig, "dial timeout must be positive")
	}
	if err := validateKey(c.Key); err != nil {
		return errors.Wrapf(ErrConfig, "key: %v", err)
	}
	return nil
}
