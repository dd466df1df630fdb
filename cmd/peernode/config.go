package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/Zereker/peerpump"
)

const defaultEnvFile = ".env"

// Environment variables read when the matching flag is not set.
const (
	envRole        = "PEER_ROLE"
	envAddresses   = "PEER_ADDRESSES"
	envInterval    = "PEER_INTERVAL"
	envQueueSize   = "PEER_QUEUE_SIZE"
	envMaxFrame    = "PEER_MAX_FRAME"
	envIdleTimeout = "PEER_IDLE_TIMEOUT"
	envDialTimeout = "PEER_DIAL_TIMEOUT"
	envLogLevel    = "LOG_LEVEL"
	envLogFormat   = "LOG_FORMAT"
)

// settings are the raw flag values.
type settings struct {
	role        string
	addresses   []string
	interval    time.Duration
	queueSize   int
	maxFrame    int
	idleTimeout time.Duration
	dialTimeout time.Duration
	envFile     string
	logLevel    string
	logFormat   string
}

// resolved is the outcome of merging flags, environment and defaults.
type resolved struct {
	config    peerpump.Config
	logLevel  string
	logFormat string
}

// loadEnvFile loads a dotenv file without overriding variables already set.
// A missing file is only an error when it was asked for explicitly.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return errors.Wrapf(err, "env file %s", path)
	}
	return errors.Wrapf(godotenv.Load(path), "env file %s", path)
}

// resolve builds the node config. Flags set on the command line win over the
// environment, which wins over flag defaults.
func resolve(flags *pflag.FlagSet, s settings, lookup func(string) (string, bool)) (resolved, error) {
	env := envReader{flags: flags, lookup: lookup}

	roleName := env.text("role", envRole, s.role)
	role, err := peerpump.ParseRole(roleName)
	if err != nil {
		return resolved{}, err
	}

	cfg := peerpump.DefaultConfig(role)
	cfg.Addresses = env.list("address", envAddresses, s.addresses)
	cfg.Interval = env.duration("interval", envInterval, s.interval)
	cfg.QueueCapacity = env.number("queue-size", envQueueSize, s.queueSize)
	cfg.MaxFrameSize = env.number("max-frame", envMaxFrame, s.maxFrame)
	cfg.IdleTimeout = env.duration("idle-timeout", envIdleTimeout, s.idleTimeout)
	cfg.DialTimeout = env.duration("dial-timeout", envDialTimeout, s.dialTimeout)

	if env.err != nil {
		return resolved{}, env.err
	}
	if err := cfg.Validate(); err != nil {
		return resolved{}, err
	}

	return resolved{
		config:    cfg,
		logLevel:  env.text("log-level", envLogLevel, s.logLevel),
		logFormat: env.text("log-format", envLogFormat, s.logFormat),
	}, nil
}

// envReader returns the flag value when the flag was set and otherwise the
// environment value when present. The first parse error is kept in err.
type envReader struct {
	flags  *pflag.FlagSet
	lookup func(string) (string, bool)
	err    error
}

func (r *envReader) raw(flag, key string) (string, bool) {
	if r.flags.Changed(flag) {
		return "", false
	}
	v, ok := r.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (r *envReader) text(flag, key, def string) string {
	if v, ok := r.raw(flag, key); ok {
		return v
	}
	return def
}

func (r *envReader) list(flag, key string, def []string) []string {
	v, ok := r.raw(flag, key)
	if !ok {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (r *envReader) number(flag, key string, def int) int {
	v, ok := r.raw(flag, key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(errors.Wrapf(peerpump.ErrConfig, "%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (r *envReader) duration(flag, key string, def time.Duration) time.Duration {
	v, ok := r.raw(flag, key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(errors.Wrapf(peerpump.ErrConfig, "%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func (r *envReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}
