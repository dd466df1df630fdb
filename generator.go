package peerpump

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Generator defaults.
const (
	DefaultKey        = "temperature"
	DefaultStartValue = 20.0
	DefaultStep       = 1.0
	DefaultInterval   = 5 * time.Second
)

// Generator produces a synthetic reading on a fixed cadence.
type Generator struct {
	Key      string
	Start    float64
	Step     float64
	Interval time.Duration
	Logger   Logger
}

// NewGenerator returns a Generator emitting DefaultKey readings starting at
// DefaultStartValue every DefaultInterval.
func NewGenerator() *Generator {
	return &Generator{
		Key:      DefaultKey,
		Start:    DefaultStartValue,
		Step:     DefaultStep,
		Interval: DefaultInterval,
	}
}

// Run enqueues the first reading immediately and one more every Interval,
// each Step higher than the last. A full queue blocks the generator.
//
// Run returns nil once the queue's consumer is gone and ctx.Err() when the
// context is canceled.
func (g *Generator) Run(ctx context.Context, q *Queue) error {
	logger := g.Logger
	if logger == nil {
		logger = defaultLogger()
	}
	interval := g.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	value := g.Start
	for {
		msg := Message{Key: g.Key, Value: value}
		if err := q.Send(ctx, msg); err != nil {
			if errors.Is(err, ErrQueueClosed) {
				logger.Debug("generator stopped", "key", g.Key, "reason", err)
				return nil
			}
			return err
		}
		logger.Debug("generated", "key", msg.Key, "value", msg.Value)

		value += g.Step

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
