// Package netmon tracks remote reachability: it probes the sync endpoint on
// an interval and notifies listeners on online/offline transitions.
package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/Growth-Sheriff/dernekv1-sub001/internal/logging"
)

// State is the monitor's connectivity state. Checking is a transient state
// entered for the duration of a probe; it always resolves to Online or
// Offline and is never reported as the best-known answer.
type State int

const (
	StateOffline State = iota
	StateChecking
	StateOnline
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateChecking:
		return "checking"
	case StateOnline:
		return "online"
	default:
		return "unknown"
	}
}

// Prober performs one bounded reachability check against the remote.
// The API client's health probe satisfies this.
type Prober interface {
	Probe(ctx context.Context) error
}

// TransitionHandler is invoked exactly once per online<->offline edge,
// not once per check.
type TransitionHandler func(online bool)

// Config configures a Monitor.
type Config struct {
	// Interval between background probes. Default one minute.
	Interval time.Duration

	// InitialOnline seeds the state before the first probe corrects it,
	// from whatever immediate signal the platform offers.
	InitialOnline bool
}

// Monitor owns the reachability state machine.
type Monitor struct {
	prober   Prober
	interval time.Duration

	mu       sync.RWMutex
	state    State
	online   bool // last resolved answer; not disturbed while Checking
	handlers []TransitionHandler

	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewMonitor creates a Monitor.
func NewMonitor(prober Prober, cfg Config) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	state := StateOffline
	if cfg.InitialOnline {
		state = StateOnline
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		state:    state,
		online:   cfg.InitialOnline,
		stopCh:   make(chan struct{}),
	}
}

// IsOnline returns the current best-known connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// CurrentState returns the monitor's state, including transient Checking.
func (m *Monitor) CurrentState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// OnTransition registers a handler fired once per connectivity edge.
func (m *Monitor) OnTransition(h func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// Check runs one probe and resolves the state machine to Online or Offline.
// Returns the resolved answer.
func (m *Monitor) Check(ctx context.Context) bool {
	m.mu.Lock()
	m.state = StateChecking
	m.mu.Unlock()

	// The prober bounds its own timeout (default 5s), so a dead network
	// resolves instead of hanging the monitor.
	err := m.prober.Probe(ctx)
	online := err == nil

	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	if online {
		m.state = StateOnline
	} else {
		m.state = StateOffline
	}
	handlers := make([]TransitionHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	if wasOnline != online {
		logging.Info("connectivity changed", map[string]any{
			"online": online,
		})
		for _, h := range handlers {
			h(online)
		}
	}
	return online
}

// Start launches background probing: one immediate check to correct the
// seeded initial state, then one per interval.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.Check(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
}

// Stop halts background probing and waits for the probe loop to exit.
func (m *Monitor) Stop() {
	m.stopped.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
}
