// Package handlers provides the local REST API the desktop and web clients
// drive the sync engine through.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Growth-Sheriff/dernekv1-sub001/internal/db"
	apperrors "github.com/Growth-Sheriff/dernekv1-sub001/internal/errors"
	"github.com/Growth-Sheriff/dernekv1-sub001/internal/models"
	syncpkg "github.com/Growth-Sheriff/dernekv1-sub001/internal/sync"
)

// CycleTrigger is the manual sync trigger surface, served by the scheduler.
type CycleTrigger interface {
	SyncNow(ctx context.Context) (*syncpkg.CycleReport, error)
}

// Broadcaster pushes cycle events to connected UI clients.
type Broadcaster interface {
	BroadcastCycleStarted()
	BroadcastCycleCompleted(pushed, pulled, conflicts int, duration time.Duration)
	BroadcastCycleSkipped(reason string)
	BroadcastCycleFailed(errorCode string)
	BroadcastConflicts(conflicts []models.SyncConflict)
}

// SyncHandler serves the sync engine's client-facing operations.
type SyncHandler struct {
	store   *db.Store
	engine  *syncpkg.Engine
	trigger CycleTrigger
	hub     Broadcaster
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(store *db.Store, engine *syncpkg.Engine, trigger CycleTrigger) *SyncHandler {
	return &SyncHandler{
		store:   store,
		engine:  engine,
		trigger: trigger,
	}
}

// SetBroadcaster wires the WebSocket hub for cycle events.
func (h *SyncHandler) SetBroadcaster(hub Broadcaster) {
	h.hub = hub
}

// Register mounts the handler's routes.
func (h *SyncHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /sync/status", h.Status)
	mux.HandleFunc("POST /sync/now", h.SyncNow)
	mux.HandleFunc("GET /sync/conflicts", h.ListConflicts)
	mux.HandleFunc("POST /sync/conflicts/{recordID}/resolve", h.ResolveConflict)
	mux.HandleFunc("GET /sync/changes", h.ListChanges)
	mux.HandleFunc("POST /sync/changes", h.EnqueueChange)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case apperrors.ErrInvalid, apperrors.ErrValidation:
		status = http.StatusBadRequest
	case apperrors.ErrNotFound:
		status = http.StatusNotFound
	case apperrors.ErrNetwork, apperrors.ErrSyncTimeout:
		status = http.StatusBadGateway
	case apperrors.ErrSyncDisabled:
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]any{
		"error": err.Error(),
		"code":  string(code),
	})
}

// Status handles GET /sync/status: the current SyncState snapshot plus the
// active conflict count.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	state := h.engine.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"is_online":     state.IsOnline,
		"is_syncing":    state.IsSyncing,
		"last_sync_at":  state.LastSyncAt,
		"pending_count": state.PendingCount,
		"conflicts":     h.engine.Resolver().Count(),
		"enabled":       h.engine.Enabled(),
	})
}

// SyncNow handles POST /sync/now: the manual trigger. A cycle already in
// flight coalesces; the response says which.
func (h *SyncHandler) SyncNow(w http.ResponseWriter, r *http.Request) {
	if h.hub != nil {
		h.hub.BroadcastCycleStarted()
	}
	report, err := h.trigger.SyncNow(r.Context())
	if err != nil {
		if h.hub != nil {
			h.hub.BroadcastCycleFailed(string(apperrors.CodeOf(err)))
		}
		writeError(w, err)
		return
	}
	// Every started event gets a terminal one, skips included.
	if h.hub != nil {
		if report.Skipped != "" {
			h.hub.BroadcastCycleSkipped(report.Skipped)
		} else {
			pushed, conflicts := 0, 0
			if report.Push != nil {
				pushed, conflicts = report.Push.Accepted, report.Push.Conflicts
			}
			pulled := 0
			if report.Pull != nil {
				pulled = report.Pull.Records
			}
			h.hub.BroadcastCycleCompleted(pushed, pulled, conflicts, report.FinishedAt.Sub(report.StartedAt))
			if conflicts > 0 {
				h.hub.BroadcastConflicts(h.engine.Resolver().List())
			}
		}
	}
	writeJSON(w, http.StatusOK, report)
}

// ListConflicts handles GET /sync/conflicts.
func (h *SyncHandler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"conflicts": h.engine.Resolver().List(),
	})
}

// ResolveConflict handles POST /sync/conflicts/{recordID}/resolve with body
// {"resolution": "keep_local" | "keep_server"}.
func (h *SyncHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	recordID := r.PathValue("recordID")
	var body struct {
		Resolution models.Resolution `json:"resolution"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrInvalid, "malformed request body", err))
		return
	}
	if err := h.engine.Resolver().Resolve(r.Context(), recordID, body.Resolution); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resolved": recordID})
}

// ListChanges handles GET /sync/changes?table=members: the pending change
// log, oldest first.
func (h *SyncHandler) ListChanges(w http.ResponseWriter, r *http.Request) {
	table := models.TableName(strings.TrimSpace(r.URL.Query().Get("table")))
	if table != "" && !table.Valid() {
		writeError(w, apperrors.New(apperrors.ErrInvalid, "unknown table"))
		return
	}
	changes, err := h.store.ListPendingChanges(table)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": changes})
}

// EnqueueChange handles POST /sync/changes: the UI-level mutation entry
// point. The CRUD screens queue every local edit here; the change becomes
// durable before the response is written.
func (h *SyncHandler) EnqueueChange(w http.ResponseWriter, r *http.Request) {
	var change models.SyncChange
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrInvalid, "malformed change", err))
		return
	}
	if err := h.store.EnqueueChange(&change); err != nil {
		writeError(w, err)
		return
	}
	h.engine.NotifyStateChanged()
	writeJSON(w, http.StatusCreated, change)
}
