// Package countdown runs per-room countdown timers. A driver ticks once
// per second, persists the remaining value to the shared store, and
// broadcasts a timer update to the room's timer group until expiry.
package countdown

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/memeroyale/realtime/internal/events"
	"github.com/memeroyale/realtime/internal/metrics"
	"github.com/memeroyale/realtime/internal/store"
)

// Broadcaster publishes a frame to every member of a group.
type Broadcaster interface {
	Broadcast(group string, frame []byte) error
}

// Manager owns one driver goroutine per active group countdown.
// Drivers run on the manager's own context: they are fire-and-forget
// relative to the session that requested them and keep ticking after
// that session disconnects.
type Manager struct {
	store     store.Store
	bcast     Broadcaster
	clock     clockwork.Clock
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	base      context.Context
	cancelAll context.CancelFunc

	mu      sync.Mutex
	drivers map[string]*driver
	wg      sync.WaitGroup
}

type driver struct {
	cancel context.CancelFunc
}

// NewManager creates a countdown manager. The clock is injectable so
// tests can drive ticks deterministically.
func NewManager(st store.Store, bcast Broadcaster, clock clockwork.Clock, logger zerolog.Logger, m *metrics.Metrics) *Manager {
	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:     st,
		bcast:     bcast,
		clock:     clock,
		logger:    logger,
		metrics:   m,
		base:      base,
		cancelAll: cancel,
		drivers:   make(map[string]*driver),
	}
}

// Start launches a countdown of the given number of seconds for a
// group. A countdown already running for the same group is cancelled
// first, so every observer sees a single monotonic stream of updates
// rather than two interleaved ones. Start returns immediately; the
// driver runs in the background.
func (m *Manager) Start(group string, seconds int) {
	if seconds <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(m.base)
	d := &driver{cancel: cancel}

	m.mu.Lock()
	if prev, ok := m.drivers[group]; ok {
		prev.cancel()
		m.logger.Info().Str("group", group).Msg("replacing running countdown")
	}
	m.drivers[group] = d
	m.mu.Unlock()

	m.metrics.CountdownsStartedTotal.Inc()
	m.logger.Info().Str("group", group).Int("seconds", seconds).Msg("countdown started")

	m.wg.Add(1)
	go m.run(ctx, d, group, seconds)
}

// Remaining reads the countdown state shared across processes. It
// reports zero and false when no countdown is active for the group.
func (m *Manager) Remaining(ctx context.Context, group string) (int, bool, error) {
	return m.store.Get(ctx, group)
}

// Stop cancels every running driver and waits for them to exit.
func (m *Manager) Stop() {
	m.cancelAll()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, d *driver, group string, seconds int) {
	defer m.wg.Done()

	m.persist(ctx, group, seconds)

	for seconds > 0 {
		select {
		case <-ctx.Done():
			// Replaced or shut down. The store key is left for the
			// successor to overwrite.
			return
		case <-m.clock.After(time.Second):
		}
		// A replacement can land while the tick fires; never let a
		// cancelled driver write over its successor's state.
		if ctx.Err() != nil {
			return
		}

		seconds--
		m.persist(ctx, group, seconds)

		frame, err := events.Encode(events.TimerUpdate{TimeLeft: seconds})
		if err != nil {
			m.logger.Error().Err(err).Str("group", group).Msg("encode timer update")
			continue
		}
		if err := m.bcast.Broadcast(group, frame); err != nil {
			m.logger.Warn().Err(err).Str("group", group).Msg("broadcast timer update")
		}
	}

	if err := m.store.Delete(ctx, group); err != nil {
		m.logger.Warn().Err(err).Str("group", group).Msg("clear countdown state")
	}

	m.mu.Lock()
	if m.drivers[group] == d {
		delete(m.drivers, group)
	}
	m.mu.Unlock()

	m.logger.Info().Str("group", group).Msg("countdown finished")
}

// persist writes the remaining value to the shared store. A store
// outage is recoverable: the tick still broadcasts from memory so
// observers are not stalled.
func (m *Manager) persist(ctx context.Context, group string, seconds int) {
	if err := m.store.Set(ctx, group, seconds); err != nil {
		m.metrics.StoreFailuresTotal.Inc()
		m.logger.Warn().Err(err).Str("group", group).Int("time_left", seconds).Msg("persist countdown state")
	}
}
