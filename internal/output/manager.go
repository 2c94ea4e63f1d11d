package output

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"studiocast/internal/core/domain"
	"studiocast/internal/media"
	apperrors "studiocast/pkg/errors"
	"studiocast/pkg/events"
)

// ManagerConfig bounds connection attempts and tunes degradation
// detection.
type ManagerConfig struct {
	ConnectTimeout time.Duration
	Thresholds     HealthThresholds
}

// entry tracks one destination's primary connection, its pre-established
// backups, and which of them currently carries the output.
type entry struct {
	primary   *Connection
	backups   []*Connection
	active    *Connection
	failovers int
}

// Manager owns every outbound destination connection. Samples broadcast to
// all live destinations; one destination failing never disturbs the rest.
type Manager struct {
	factory SinkFactory
	cfg     ManagerConfig
	bus     *events.Bus
	logger  *zap.SugaredLogger

	mu      sync.Mutex
	entries map[domain.DestinationID]*entry
	order   []domain.DestinationID

	health *healthMonitor
}

// NewManager creates an output manager using factory to build transport
// sinks per destination.
func NewManager(factory SinkFactory, cfg ManagerConfig, bus *events.Bus, logger *zap.SugaredLogger) *Manager {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	m := &Manager{
		factory: factory,
		cfg:     cfg,
		bus:     bus,
		logger:  logger,
		entries: make(map[domain.DestinationID]*entry),
	}
	m.health = newHealthMonitor(cfg.Thresholds, func(id domain.DestinationID, reason domain.FailoverReason) {
		if err := m.Failover(id, reason); err != nil {
			logger.Errorw("failover failed", "destination", id, "reason", reason, "error", err)
		}
	})
	return m
}

// AddDestination registers a pending destination. No connection is opened
// until StartAll.
func (m *Manager) AddDestination(dest domain.Destination) error {
	sink, err := m.factory(dest)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[dest.ID]; exists {
		return apperrors.NewConflictError("destination already registered: " + string(dest.ID))
	}
	conn := newConnection(dest, sink, m.cfg.ConnectTimeout, m.bus, m.logger)
	m.entries[dest.ID] = &entry{primary: conn, active: conn}
	m.order = append(m.order, dest.ID)
	return nil
}

// RemoveDestination stops and forgets a destination and its backups.
func (m *Manager) RemoveDestination(id domain.DestinationID) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return domain.ErrDestinationNotFound
	}
	delete(m.entries, id)
	for i, got := range m.order {
		if got == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	e.primary.Stop()
	for _, b := range e.backups {
		b.Stop()
	}
	return nil
}

// Destinations returns registered destinations in registration order.
func (m *Manager) Destinations() []domain.Destination {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Destination, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.entries[id].primary.Destination())
	}
	return out
}

// StartAll brings every registered destination toward live concurrently
// and partitions the outcome. Partial success is expected: one platform's
// bad credentials must not block the others.
func (m *Manager) StartAll(ctx context.Context) *domain.StartResult {
	m.mu.Lock()
	conns := make(map[domain.DestinationID]*Connection, len(m.entries))
	for id, e := range m.entries {
		conns[id] = e.primary
	}
	m.mu.Unlock()

	result := &domain.StartResult{Failed: make(map[domain.DestinationID]error)}
	var wg sync.WaitGroup
	var resMu sync.Mutex

	for id, conn := range conns {
		wg.Add(1)
		go func(id domain.DestinationID, conn *Connection) {
			defer wg.Done()
			err := conn.Start(ctx)

			resMu.Lock()
			defer resMu.Unlock()
			if err != nil {
				result.Failed[id] = apperrors.NewUpstreamError(
					string(conn.Destination().Platform), err.Error())
				return
			}
			result.Started = append(result.Started, id)
		}(id, conn)
	}
	wg.Wait()
	return result
}

// StopAll tears down every connection and backup. Safe even when some
// never reached live, and safe to call repeatedly.
func (m *Manager) StopAll() {
	m.mu.Lock()
	all := make([]*Connection, 0, len(m.entries)*2)
	for _, e := range m.entries {
		all = append(all, e.primary)
		all = append(all, e.backups...)
	}
	m.mu.Unlock()

	for _, c := range all {
		c.Stop()
	}
}

// AddBackup pre-establishes a backup connection for a live primary, so a
// later failover switches without re-negotiating.
func (m *Manager) AddBackup(ctx context.Context, id domain.DestinationID, dest domain.Destination) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return domain.ErrDestinationNotFound
	}
	if e.primary.State() != domain.ConnLive {
		return apperrors.NewPreconditionError("backup requires a live primary: " + string(id))
	}

	sink, err := m.factory(dest)
	if err != nil {
		return err
	}
	backup := newConnection(dest, sink, m.cfg.ConnectTimeout, m.bus, m.logger)
	if err := backup.Start(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	e.backups = append(e.backups, backup)
	m.mu.Unlock()
	return nil
}

// Failover switches a destination's output to its first live backup. The
// outward stream identity is untouched: only which connection carries the
// samples changes. Emits a reason-coded event and bumps the counter.
func (m *Manager) Failover(id domain.DestinationID, reason domain.FailoverReason) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return domain.ErrDestinationNotFound
	}

	var next *Connection
	idx := -1
	for i, b := range e.backups {
		if b.State() == domain.ConnLive {
			next = b
			idx = i
			break
		}
	}
	if next == nil {
		m.mu.Unlock()
		return domain.ErrNoBackupAvailable
	}

	old := e.active
	e.active = next
	e.backups = append(e.backups[:idx], e.backups[idx+1:]...)
	e.failovers++
	count := e.failovers
	m.mu.Unlock()

	old.Stop()
	m.logger.Warnw("destination failed over",
		"destination", id, "reason", reason, "failover_count", count)
	m.bus.Emit(events.EventFailover, string(id), reason)
	return nil
}

// FailoverCount returns how many times a destination has failed over.
func (m *Manager) FailoverCount(id domain.DestinationID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		return e.failovers
	}
	return 0
}

// ActiveConnection returns the connection currently carrying output for a
// destination.
func (m *Manager) ActiveConnection(id domain.DestinationID) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		return e.active
	}
	return nil
}

// States reports every destination's active-connection state.
func (m *Manager) States() map[domain.DestinationID]domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.DestinationID]domain.ConnectionState, len(m.entries))
	for id, e := range m.entries {
		out[id] = e.active.State()
	}
	return out
}

// Broadcast forwards one encoded sample to every live destination. Write
// errors are contained per destination.
func (m *Manager) Broadcast(s *media.EncodedSample) {
	m.mu.Lock()
	active := make([]*Connection, 0, len(m.entries))
	for _, e := range m.entries {
		active = append(active, e.active)
	}
	m.mu.Unlock()

	for _, c := range active {
		if c.State() != domain.ConnLive {
			continue
		}
		if err := c.Write(s); err != nil {
			m.logger.Warnw("sample write failed",
				"destination", c.Destination().ID, "error", err)
		}
	}
}

// ReportHealth feeds a transport health observation for a destination.
func (m *Manager) ReportHealth(id domain.DestinationID, s HealthSample) {
	m.health.Observe(id, s)
}
