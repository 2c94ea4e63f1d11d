package output

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"studiocast/internal/core/domain"
	"studiocast/internal/media"
	"studiocast/pkg/circuitbreaker"
	"studiocast/pkg/events"
)

// Connection drives one sink through the destination state machine:
// idle → connecting → live → (error | ended). Error is retry-eligible;
// ended is terminal and forced by an explicit stop.
type Connection struct {
	dest    domain.Destination
	sink    Sink
	breaker *circuitbreaker.CircuitBreaker
	bus     *events.Bus
	logger  *zap.SugaredLogger

	connectTimeout time.Duration

	mu    sync.Mutex
	state domain.ConnectionState
}

func newConnection(dest domain.Destination, sink Sink, connectTimeout time.Duration, bus *events.Bus, logger *zap.SugaredLogger) *Connection {
	return &Connection{
		dest:           dest,
		sink:           sink,
		breaker:        circuitbreaker.New(circuitbreaker.DefaultConfig()),
		bus:            bus,
		logger:         logger,
		connectTimeout: connectTimeout,
		state:          domain.ConnIdle,
	}
}

// State returns the connection state.
func (c *Connection) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Destination returns the destination this connection serves.
func (c *Connection) Destination() domain.Destination { return c.dest }

// transition applies one state-machine step, emitting a state event.
// Illegal steps are rejected so an ended connection can never revive.
func (c *Connection) transition(next domain.ConnectionState) error {
	c.mu.Lock()
	if !c.state.CanTransition(next) {
		cur := c.state
		c.mu.Unlock()
		c.logger.Warnw("illegal connection transition",
			"destination", c.dest.ID, "from", cur, "to", next)
		return domain.ErrInvalidStateChange
	}
	c.state = next
	c.mu.Unlock()

	c.bus.Emit(events.EventDestinationState, string(c.dest.ID), next)
	return nil
}

// Start connects the sink, bounded by the configured timeout. Connection
// failures for this destination never abort others; the caller collects
// the error into a partitioned result.
func (c *Connection) Start(ctx context.Context) error {
	if err := c.transition(domain.ConnConnecting); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	err := c.breaker.Execute(ctx, func() error {
		return c.sink.Connect(ctx)
	})
	if err != nil {
		_ = c.transition(domain.ConnError)
		c.logger.Errorw("destination connect failed",
			"destination", c.dest.ID, "platform", c.dest.Platform, "error", err)
		return err
	}
	return c.transition(domain.ConnLive)
}

// Retry re-attempts a failed connection. Only the error state is eligible.
func (c *Connection) Retry(ctx context.Context) error {
	if c.State() != domain.ConnError {
		return domain.ErrInvalidStateChange
	}
	return c.Start(ctx)
}

// Write forwards one encoded sample when live. A write failure moves the
// connection to error; the caller's health loop decides on failover.
func (c *Connection) Write(s *media.EncodedSample) error {
	if c.State() != domain.ConnLive {
		return domain.ErrConnectionUnhealthy
	}
	if err := c.sink.WriteSample(s); err != nil {
		_ = c.transition(domain.ConnError)
		return err
	}
	return nil
}

// Stop forces the terminal ended state and closes the sink. Safe to call
// repeatedly and on connections that never reached live.
func (c *Connection) Stop() {
	c.mu.Lock()
	if c.state == domain.ConnEnded {
		c.mu.Unlock()
		return
	}
	c.state = domain.ConnEnded
	c.mu.Unlock()

	c.bus.Emit(events.EventDestinationState, string(c.dest.ID), domain.ConnEnded)
	if err := c.sink.Close(); err != nil {
		c.logger.Warnw("sink close failed", "destination", c.dest.ID, "error", err)
	}
}
