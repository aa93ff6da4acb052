package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Growth-Sheriff/dernekv1-sub001/internal/errors"
	"github.com/Growth-Sheriff/dernekv1-sub001/internal/models"
)

// Store is the data access layer consumed by the sync engine: the durable
// change log, the remote-record apply path, and the sync metadata.
type Store struct {
	db *DB
}

// NewStore creates a Store over an opened database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// EnqueueChange appends a pending change to the change log. The row is
// durable before this returns; losing a queued edit would mean a local
// mutation silently never reaches the server.
func (s *Store) EnqueueChange(change *models.SyncChange) error {
	if !change.Table.Valid() {
		return apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("unknown table %q", change.Table))
	}
	if !change.Action.Valid() {
		return apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("unknown action %q", change.Action))
	}
	if change.RecordID == "" {
		return apperrors.New(apperrors.ErrInvalid, "record id is required")
	}
	if change.ID == "" {
		change.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if change.LocalUpdatedAt == 0 {
		change.LocalUpdatedAt = now
	}
	change.CreatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO sync_changes (id, table_name, record_id, action, payload, local_updated_at, synced, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`, change.ID, string(change.Table), change.RecordID, string(change.Action),
		string(change.Payload), change.LocalUpdatedAt, change.CreatedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrLocalStorage, "failed to enqueue change", err)
	}
	return nil
}

// ListPendingChanges returns all unsynced changes, oldest first. A non-empty
// table filters to that entity. The read is a consistent snapshot; changes
// enqueued while a cycle is running are picked up next cycle.
func (s *Store) ListPendingChanges(table models.TableName) ([]models.SyncChange, error) {
	query := `
		SELECT id, table_name, record_id, action, payload, local_updated_at, synced, created_at
		FROM sync_changes
		WHERE synced = 0`
	args := []any{}
	if table != "" {
		query += " AND table_name = ?"
		args = append(args, string(table))
	}
	query += " ORDER BY local_updated_at ASC, created_at ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrLocalStorage, "failed to list pending changes", err)
	}
	defer rows.Close()

	var changes []models.SyncChange
	for rows.Next() {
		var c models.SyncChange
		var tbl, action, payload string
		var synced int
		if err := rows.Scan(&c.ID, &tbl, &c.RecordID, &action, &payload,
			&c.LocalUpdatedAt, &synced, &c.CreatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrLocalStorage, "failed to scan pending change", err)
		}
		c.Table = models.TableName(tbl)
		c.Action = models.ChangeAction(action)
		c.Payload = []byte(payload)
		c.Synced = synced != 0
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrLocalStorage, "failed to read pending changes", err)
	}
	return changes, nil
}

// MarkChangesSynced flags pending changes for the given record ids as synced
// and returns the number of rows updated. The update is bounded to changes
// with local_updated_at at or before cutoff: an edit enqueued after the
// cutoff was not part of whatever the caller is acknowledging and must stay
// pending. Marking an already-synced record is a no-op, not an error.
func (s *Store) MarkChangesSynced(recordIDs []string, cutoff int64) (int, error) {
	if len(recordIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(recordIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := []any{cutoff}
	for _, id := range recordIDs {
		args = append(args, id)
	}

	res, err := s.db.Exec(
		"UPDATE sync_changes SET synced = 1 WHERE synced = 0 AND local_updated_at <= ? AND record_id IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrLocalStorage, "failed to mark changes synced", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrLocalStorage, "failed to count marked changes", err)
	}
	return int(n), nil
}

// MarkChangesSyncedByID flags the given change rows as synced, keyed by
// change id, and returns the number of rows updated. The push path uses this
// to acknowledge exactly the snapshot it transmitted: a change enqueued while
// the push was in flight has a different id and is untouched.
func (s *Store) MarkChangesSyncedByID(changeIDs []string) (int, error) {
	if len(changeIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(changeIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(changeIDs))
	for i, id := range changeIDs {
		args[i] = id
	}

	res, err := s.db.Exec(
		"UPDATE sync_changes SET synced = 1 WHERE synced = 0 AND id IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrLocalStorage, "failed to mark changes synced", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrLocalStorage, "failed to count marked changes", err)
	}
	return int(n), nil
}

// CountPending returns the number of unsynced changes.
func (s *Store) CountPending() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sync_changes WHERE synced = 0").Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrLocalStorage, "failed to count pending changes", err)
	}
	return count, nil
}
