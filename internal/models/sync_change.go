package models

import "encoding/json"

// ChangeAction is the kind of local mutation a SyncChange carries.
type ChangeAction string

const (
	ActionCreate ChangeAction = "create"
	ActionUpdate ChangeAction = "update"
	ActionDelete ChangeAction = "delete"
)

// Valid reports whether a is a known change action.
func (a ChangeAction) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// SyncChange is one pending local mutation awaiting remote acknowledgment.
// Rows are append-only: a change is never deleted, it only flips to synced
// once the remote accepts it. The unsynced rows are the source of truth for
// what still needs sending.
type SyncChange struct {
	ID             string          `db:"id" json:"id"`
	Table          TableName       `db:"table_name" json:"table_name"`
	RecordID       string          `db:"record_id" json:"record_id"`
	Action         ChangeAction    `db:"action" json:"action"`
	Payload        json.RawMessage `db:"payload" json:"payload"`
	LocalUpdatedAt int64           `db:"local_updated_at" json:"local_updated_at"`
	Synced         bool            `db:"synced" json:"synced"`
	CreatedAt      int64           `db:"created_at" json:"created_at"`
}
