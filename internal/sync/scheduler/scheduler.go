// Package scheduler funnels the three sync trigger sources into the engine:
// the periodic timer, the reachability online transition, and the manual
// trigger. The engine's own guard serializes them, so firing a trigger while
// a cycle runs simply coalesces.
package scheduler

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/Growth-Sheriff/dernekv1-sub001/internal/errors"
	"github.com/Growth-Sheriff/dernekv1-sub001/internal/logging"
	syncpkg "github.com/Growth-Sheriff/dernekv1-sub001/internal/sync"
)

// CycleRunner is the orchestrator surface the scheduler drives.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*syncpkg.CycleReport, error)
	Enabled() bool
}

// Notifier is the reachability surface the scheduler subscribes to.
type Notifier interface {
	OnTransition(h func(online bool))
	IsOnline() bool
}

// Config holds scheduler configuration.
type Config struct {
	// Interval between periodic sync cycles. Default 15 minutes.
	Interval time.Duration

	// CycleTimeout bounds one whole cycle. Default 2 minutes.
	CycleTimeout time.Duration
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Interval:     15 * time.Minute,
		CycleTimeout: 2 * time.Minute,
	}
}

// Scheduler owns the periodic sync loop.
type Scheduler struct {
	engine       CycleRunner
	net          Notifier
	interval     time.Duration
	cycleTimeout time.Duration

	mu        sync.Mutex
	isRunning bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewScheduler creates a Scheduler. The reachability notifier may be nil
// when no transition-triggered syncing is wanted (tests, one-shot CLI use).
func NewScheduler(engine CycleRunner, net Notifier, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = DefaultConfig().CycleTimeout
	}
	return &Scheduler{
		engine:       engine,
		net:          net,
		interval:     cfg.Interval,
		cycleTimeout: cfg.CycleTimeout,
	}
}

// Start launches the periodic loop and hooks the reachability trigger.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if s.net != nil {
		// Coming back online is a trigger of its own: the queue drained the
		// moment connectivity returns instead of waiting out the interval.
		s.net.OnTransition(func(online bool) {
			if !online {
				return
			}
			select {
			case <-stopCh:
				return
			default:
			}
			go s.runOnce(ctx, "reachability")
		})
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				s.runOnce(ctx, "timer")
			}
		}
	}()

	logging.Info("sync scheduler started", map[string]any{
		"interval_seconds": s.interval.Seconds(),
	})
}

// Stop halts the periodic loop. Transition callbacks registered with the
// notifier become no-ops once stopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	logging.Info("sync scheduler stopped")
}

// IsRunning reports whether the periodic loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// SyncNow runs one cycle immediately and returns its report. This is the
// manual trigger; it goes through the same engine guard as the others.
func (s *Scheduler) SyncNow(ctx context.Context) (*syncpkg.CycleReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	defer cancel()
	return s.engine.RunCycle(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context, trigger string) {
	if !s.engine.Enabled() {
		return
	}
	report, err := s.SyncNow(ctx)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrSyncDisabled) {
			return
		}
		logging.Error("scheduled sync cycle failed", err, map[string]any{
			"trigger": trigger,
		})
		return
	}
	if report.Skipped != "" {
		logging.Debug("scheduled sync cycle skipped", map[string]any{
			"trigger": trigger,
			"reason":  report.Skipped,
		})
	}
}
