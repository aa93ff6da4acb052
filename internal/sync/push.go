package sync

import (
	"context"

	"github.com/Growth-Sheriff/dernekv1-sub001/internal/logging"
	"github.com/Growth-Sheriff/dernekv1-sub001/internal/models"
)

// PushReport summarizes the push half of a sync cycle.
type PushReport struct {
	Pending   int `json:"pending"`   // unsynced changes found
	Sent      int `json:"sent"`      // effective changes transmitted after de-duplication
	Accepted  int `json:"accepted"`  // marked synced after acknowledgment
	Conflicts int `json:"conflicts"` // reported conflicting, left pending
}

// push drains the change log into one batch request. A change is only ever
// marked synced after the remote acknowledged the batch; a crash mid-push
// leaves the pending set accurately reflecting what still needs sending.
func (e *Engine) push(ctx context.Context) (*PushReport, error) {
	pending, err := e.store.ListPendingChanges("")
	if err != nil {
		return &PushReport{}, err
	}
	report := &PushReport{Pending: len(pending)}
	if len(pending) == 0 {
		// Nothing to send; skip the round-trip entirely.
		return report, nil
	}

	batch := dedupeLatest(pending)
	report.Sent = len(batch)

	deviceID, err := e.store.DeviceID()
	if err != nil {
		return report, err
	}
	since, err := e.store.Watermark()
	if err != nil {
		return report, err
	}

	resp, err := e.client.Push(ctx, &models.PushRequest{
		TenantID:   e.client.TenantID(),
		DeviceID:   deviceID,
		Changes:    batch,
		LastSyncAt: since,
	})
	if err != nil {
		return report, err
	}

	// Conflicting records stay pending until explicitly resolved; retrying
	// them blindly could mask data loss.
	conflicting := make(map[string]bool, len(resp.Conflicts))
	for _, wc := range resp.Conflicts {
		conflicting[wc.RecordID] = true
		e.resolver.Add(wc)
	}
	report.Conflicts = len(resp.Conflicts)

	// Acknowledge exactly the listed snapshot: the transmitted changes plus
	// the older duplicates they superseded, by change id. A change enqueued
	// while the request was in flight is not in the snapshot and stays
	// pending for the next cycle.
	acknowledged := make([]string, 0, len(pending))
	for _, change := range pending {
		if !conflicting[change.RecordID] {
			acknowledged = append(acknowledged, change.ID)
		}
	}
	if _, err := e.store.MarkChangesSyncedByID(acknowledged); err != nil {
		return report, err
	}
	for _, change := range batch {
		if !conflicting[change.RecordID] {
			report.Accepted++
		}
	}

	logging.Info("push completed", map[string]any{
		"sent":      report.Sent,
		"accepted":  report.Accepted,
		"conflicts": report.Conflicts,
	})
	return report, nil
}

// dedupeLatest reduces the pending log to one effective change per
// (table, record id): when several local edits accumulated before this cycle,
// only the most recent payload is transmitted. Input is oldest first; the
// returned batch keeps that order for the surviving changes.
func dedupeLatest(pending []models.SyncChange) []models.SyncChange {
	type key struct {
		table    models.TableName
		recordID string
	}
	latest := make(map[key]int, len(pending))
	for i, change := range pending {
		k := key{change.Table, change.RecordID}
		if prev, ok := latest[k]; ok {
			// Oldest-first input: a later entry with an equal timestamp is
			// still the more recent edit.
			if pending[i].LocalUpdatedAt < pending[prev].LocalUpdatedAt {
				continue
			}
		}
		latest[k] = i
	}

	batch := make([]models.SyncChange, 0, len(latest))
	for i, change := range pending {
		k := key{change.Table, change.RecordID}
		if latest[k] == i {
			batch = append(batch, change)
		}
	}
	return batch
}
