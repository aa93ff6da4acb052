package models

import "encoding/json"

// Resolution is a client-driven conflict resolution choice.
// The engine never guesses a merge; the user picks one side.
type Resolution string

const (
	KeepLocal  Resolution = "keep_local"
	KeepServer Resolution = "keep_server"
)

// Valid reports whether r is a known resolution choice.
func (r Resolution) Valid() bool {
	return r == KeepLocal || r == KeepServer
}

// SyncConflict is a divergence reported by the remote during push.
// LocalValue is the payload that was being pushed when the conflict was
// detected; it is a snapshot and does not follow later local edits.
type SyncConflict struct {
	ID          string          `json:"id"`
	Table       TableName       `json:"table_name"`
	RecordID    string          `json:"record_id"`
	LocalValue  json.RawMessage `json:"local_value"`
	RemoteValue json.RawMessage `json:"remote_value"`
	DetectedAt  int64           `json:"detected_at"`
}

// SyncState is a point-in-time snapshot of process-wide sync status,
// published to UI subscribers. Only LastSyncAt outlives the process.
type SyncState struct {
	IsOnline     bool  `json:"is_online"`
	IsSyncing    bool  `json:"is_syncing"`
	LastSyncAt   int64 `json:"last_sync_at"`
	PendingCount int   `json:"pending_count"`
}
