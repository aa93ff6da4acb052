// Package conflict tracks the active set of push-detected conflicts and
// applies client-driven resolutions.
package conflict

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Growth-Sheriff/dernekv1-sub001/internal/errors"
	"github.com/Growth-Sheriff/dernekv1-sub001/internal/logging"
	"github.com/Growth-Sheriff/dernekv1-sub001/internal/models"
)

// ChangeStore is the slice of the local store the resolver needs: re-queueing
// a kept-local payload and discarding a kept-server pending change.
type ChangeStore interface {
	EnqueueChange(change *models.SyncChange) error
	MarkChangesSynced(recordIDs []string, cutoff int64) (int, error)
}

// Reporter reports resolution choices to the remote.
type Reporter interface {
	ResolveConflicts(ctx context.Context, resolutions []models.ConflictResolution) error
}

// Resolver holds the active conflict set. Conflicts are keyed by record id
// and store the payload snapshot taken at detection time: a record can pick
// up new local edits while its conflict is unresolved, and resolution always
// operates on the detection-time snapshot, never on whatever is currently
// queued.
type Resolver struct {
	mu       sync.RWMutex
	active   map[string]models.SyncConflict
	store    ChangeStore
	reporter Reporter
	now      func() time.Time
	onChange func()
}

// NewResolver creates a Resolver.
func NewResolver(store ChangeStore, reporter Reporter) *Resolver {
	return &Resolver{
		active:   make(map[string]models.SyncConflict),
		store:    store,
		reporter: reporter,
		now:      time.Now,
	}
}

// SetClock overrides the resolver's clock. Used by tests.
func (r *Resolver) SetClock(now func() time.Time) {
	r.now = now
}

// SetOnChange registers a callback fired whenever the active set or the
// pending queue changes through the resolver.
func (r *Resolver) SetOnChange(cb func()) {
	r.onChange = cb
}

func (r *Resolver) notify() {
	if r.onChange != nil {
		r.onChange()
	}
}

// Add records a conflict reported by a push response. Re-detection of the
// same record replaces the previous snapshot.
func (r *Resolver) Add(wire models.WireConflict) models.SyncConflict {
	c := models.SyncConflict{
		ID:          uuid.New().String(),
		Table:       wire.Table,
		RecordID:    wire.RecordID,
		LocalValue:  wire.Local,
		RemoteValue: wire.Remote,
		DetectedAt:  r.now().Unix(),
	}

	r.mu.Lock()
	r.active[wire.RecordID] = c
	r.mu.Unlock()

	logging.Warn("sync conflict detected", map[string]any{
		"table":     string(c.Table),
		"record_id": c.RecordID,
	})
	r.notify()
	return c
}

// List returns the active conflicts, oldest detection first.
func (r *Resolver) List() []models.SyncConflict {
	r.mu.RLock()
	conflicts := make([]models.SyncConflict, 0, len(r.active))
	for _, c := range r.active {
		conflicts = append(conflicts, c)
	}
	r.mu.RUnlock()

	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].DetectedAt != conflicts[j].DetectedAt {
			return conflicts[i].DetectedAt < conflicts[j].DetectedAt
		}
		return conflicts[i].RecordID < conflicts[j].RecordID
	})
	return conflicts
}

// Count returns the number of active conflicts.
func (r *Resolver) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// Resolve applies a resolution choice for one record's conflict.
//
// KeepLocal re-queues the detection-time local payload as a fresh pending
// change, so the next push cycle retries it as an explicit override.
// KeepServer discards the record's pending changes up to the detection time;
// the next pull materializes the server's version locally.
//
// The choice is reported to the remote first; if that fails the conflict
// stays active and nothing local is touched, so the user can retry.
func (r *Resolver) Resolve(ctx context.Context, recordID string, choice models.Resolution) error {
	if !choice.Valid() {
		return apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("unknown resolution %q", choice))
	}

	r.mu.RLock()
	c, ok := r.active[recordID]
	r.mu.RUnlock()
	if !ok {
		return apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("no active conflict for record %s", recordID))
	}

	if r.reporter != nil {
		resolution := []models.ConflictResolution{{ConflictID: c.ID, Resolution: choice}}
		if err := r.reporter.ResolveConflicts(ctx, resolution); err != nil {
			return err
		}
	}

	switch choice {
	case models.KeepLocal:
		change := &models.SyncChange{
			Table:          c.Table,
			RecordID:       c.RecordID,
			Action:         models.ActionUpdate,
			Payload:        c.LocalValue,
			LocalUpdatedAt: r.now().Unix(),
		}
		if err := r.store.EnqueueChange(change); err != nil {
			return err
		}
	case models.KeepServer:
		// Discard only up to the detection time: an edit the record picked
		// up while the conflict sat unresolved was not part of this
		// conflict and stays pending.
		if _, err := r.store.MarkChangesSynced([]string{c.RecordID}, c.DetectedAt); err != nil {
			return err
		}
	}

	r.mu.Lock()
	delete(r.active, recordID)
	r.mu.Unlock()

	logging.Info("sync conflict resolved", map[string]any{
		"table":      string(c.Table),
		"record_id":  c.RecordID,
		"resolution": string(choice),
	})
	r.notify()
	return nil
}
