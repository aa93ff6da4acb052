package sync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apperrors "github.com/Growth-Sheriff/dernekv1-sub001/internal/errors"
	"github.com/Growth-Sheriff/dernekv1-sub001/internal/logging"
	"github.com/Growth-Sheriff/dernekv1-sub001/internal/models"
	"github.com/Growth-Sheriff/dernekv1-sub001/internal/sync/conflict"
)

// ChangeStore is the local store surface the engine drives: the durable
// change log, remote-record apply, and sync metadata.
type ChangeStore interface {
	EnqueueChange(change *models.SyncChange) error
	ListPendingChanges(table models.TableName) ([]models.SyncChange, error)
	MarkChangesSynced(recordIDs []string, cutoff int64) (int, error)
	MarkChangesSyncedByID(changeIDs []string) (int, error)
	CountPending() (int, error)
	Watermark() (int64, error)
	SetWatermark(ts int64) error
	DeviceID() (string, error)
	ApplyRemoteRecords(data map[models.TableName][]json.RawMessage) (int, error)
}

// RemoteClient is the remote sync API surface the engine calls.
type RemoteClient interface {
	TenantID() string
	Push(ctx context.Context, req *models.PushRequest) (*models.PushResponse, error)
	Pull(ctx context.Context, since int64) (*models.PullResponse, error)
	ResolveConflicts(ctx context.Context, resolutions []models.ConflictResolution) error
}

// Reachability supplies the current best-known connectivity state.
type Reachability interface {
	IsOnline() bool
}

// Cycle skip reasons.
const (
	SkipOffline = "offline"
	SkipBusy    = "busy"
)

// CycleReport is the outcome of one sync cycle.
type CycleReport struct {
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Skipped    string      `json:"skipped,omitempty"`
	Push       *PushReport `json:"push,omitempty"`
	Pull       *PullReport `json:"pull,omitempty"`
	PushError  string      `json:"push_error,omitempty"`
	PullError  string      `json:"pull_error,omitempty"`
}

// StateHandler receives sync state snapshots as they change.
type StateHandler func(models.SyncState)

// Engine is the sync orchestrator: it owns the one-cycle-at-a-time guard,
// runs push then pull as a single logical cycle, and publishes state
// snapshots to subscribers. Construct exactly one Engine per process and
// pass references; there is no hidden global instance.
type Engine struct {
	store    ChangeStore
	client   RemoteClient
	net      Reachability
	resolver *conflict.Resolver
	now      func() time.Time

	syncing atomic.Bool
	enabled atomic.Bool

	lastSyncMu sync.RWMutex
	lastSyncAt int64

	subMu      sync.RWMutex
	subscriber map[int]StateHandler
	lastSubID  int

	metrics *engineMetrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the engine's clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithPrometheus registers the engine's metrics with the given registry.
func WithPrometheus(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.metrics = newEngineMetrics(reg) }
}

// NewEngine creates the sync orchestrator with injected dependencies.
func NewEngine(store ChangeStore, client RemoteClient, net Reachability, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:      store,
		client:     client,
		net:        net,
		now:        time.Now,
		subscriber: make(map[int]StateHandler),
	}
	e.enabled.Store(true)
	e.resolver = conflict.NewResolver(store, client)
	e.resolver.SetOnChange(e.publishState)
	for _, opt := range opts {
		opt(e)
	}
	e.resolver.SetClock(e.now)

	watermark, err := store.Watermark()
	if err != nil {
		return nil, err
	}
	e.lastSyncAt = watermark
	return e, nil
}

// Resolver exposes the active conflict set and resolution operation.
func (e *Engine) Resolver() *conflict.Resolver {
	return e.resolver
}

// Configure enables or disables synchronization. While disabled, every
// trigger is rejected until explicitly re-enabled (local-only operation).
func (e *Engine) Configure(enabled bool) {
	if e.enabled.Swap(enabled) != enabled {
		logging.Info("sync configuration changed", map[string]any{"enabled": enabled})
		e.publishState()
	}
}

// Enabled reports whether synchronization is enabled.
func (e *Engine) Enabled() bool {
	return e.enabled.Load()
}

// RunCycle runs one synchronization cycle: push, then pull. Any trigger may
// call it from any goroutine; the is_syncing guard is checked-and-set
// atomically so concurrent triggers coalesce into one cycle instead of
// queueing. Push failure is recorded on the report but does not prevent the
// pull from attempting, so a push problem never starves the client of fresh
// reads. Local storage errors abort the cycle; the pending log keeps every
// unacknowledged change, so aborting mid-cycle is always safe.
func (e *Engine) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !e.enabled.Load() {
		return nil, apperrors.New(apperrors.ErrSyncDisabled, "synchronization is disabled")
	}

	report := &CycleReport{StartedAt: e.now()}

	if !e.syncing.CompareAndSwap(false, true) {
		report.Skipped = SkipBusy
		report.FinishedAt = e.now()
		return report, nil
	}
	defer func() {
		e.syncing.Store(false)
		e.publishState()
	}()

	if !e.net.IsOnline() {
		report.Skipped = SkipOffline
		report.FinishedAt = e.now()
		logging.Debug("sync cycle skipped while offline")
		return report, nil
	}

	e.publishState()

	// The pull must use the pre-cycle watermark, never one the push half
	// already moved.
	since, err := e.store.Watermark()
	if err != nil {
		report.FinishedAt = e.now()
		e.metrics.observeCycle(err)
		return report, err
	}

	pushReport, pushErr := e.push(ctx)
	report.Push = pushReport
	if pushErr != nil {
		report.PushError = pushErr.Error()
		logging.Error("push failed", pushErr)
		if apperrors.Is(pushErr, apperrors.ErrLocalStorage) {
			report.FinishedAt = e.now()
			e.metrics.observeCycle(pushErr)
			return report, pushErr
		}
	}
	e.metrics.addPushed(pushReport.Accepted)
	e.metrics.addConflicts(pushReport.Conflicts)

	pullReport, pullErr := e.pull(ctx, since)
	report.Pull = pullReport
	if pullErr != nil {
		report.PullError = pullErr.Error()
		logging.Error("pull failed", pullErr)
	} else {
		e.lastSyncMu.Lock()
		e.lastSyncAt = pullReport.Watermark
		e.lastSyncMu.Unlock()
		e.metrics.addPulled(pullReport.Records)
	}

	report.FinishedAt = e.now()
	cycleErr := errors.Join(pushErr, pullErr)
	e.metrics.observeCycle(cycleErr)
	return report, cycleErr
}

// State returns a point-in-time snapshot of the synchronization status.
func (e *Engine) State() models.SyncState {
	e.lastSyncMu.RLock()
	lastSync := e.lastSyncAt
	e.lastSyncMu.RUnlock()

	pending, err := e.store.CountPending()
	if err != nil {
		logging.Error("failed to count pending changes", err)
	}
	e.metrics.setPending(pending)

	return models.SyncState{
		IsOnline:     e.net.IsOnline(),
		IsSyncing:    e.syncing.Load(),
		LastSyncAt:   lastSync,
		PendingCount: pending,
	}
}

// Subscribe registers a state handler and returns its subscription id.
// Handlers are invoked whenever the engine's observable state changes;
// the UI layer consumes these instead of polling internals.
func (e *Engine) Subscribe(h StateHandler) int {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.lastSubID++
	e.subscriber[e.lastSubID] = h
	return e.lastSubID
}

// Unsubscribe removes a state handler.
func (e *Engine) Unsubscribe(id int) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	delete(e.subscriber, id)
}

// NotifyStateChanged publishes the current state to subscribers. Exposed so
// collaborators owning a slice of the state (the reachability monitor, the
// UI enqueue path) can fan a change out through the same mechanism.
func (e *Engine) NotifyStateChanged() {
	e.publishState()
}

func (e *Engine) publishState() {
	state := e.State()
	e.subMu.RLock()
	handlers := make([]StateHandler, 0, len(e.subscriber))
	for _, h := range e.subscriber {
		handlers = append(handlers, h)
	}
	e.subMu.RUnlock()
	for _, h := range handlers {
		h(state)
	}
}
