package models

import "encoding/json"

// Wire types for the remote sync contract (JSON over HTTPS).

// PushRequest is the body of POST /sync/push: the full pending batch for
// one sync cycle, one request per cycle.
type PushRequest struct {
	TenantID   string       `json:"tenant_id"`
	DeviceID   string       `json:"device_id"`
	Changes    []SyncChange `json:"changes"`
	LastSyncAt int64        `json:"last_sync_at"`
}

// WireConflict is one per-record conflict reported in a push response.
type WireConflict struct {
	RecordID string          `json:"record_id"`
	Table    TableName       `json:"table_name"`
	Local    json.RawMessage `json:"local"`
	Remote   json.RawMessage `json:"remote"`
}

// PushResponse is the body of a successful POST /sync/push.
type PushResponse struct {
	Accepted  []string       `json:"accepted"`
	Conflicts []WireConflict `json:"conflicts"`
}

// PullResponse is the body of GET /sync/pull/{tenant}?since=...: the remote
// delta per synchronized table.
type PullResponse struct {
	Data map[TableName][]json.RawMessage `json:"data"`
}

// ConflictResolution is one entry of the POST /sync/conflicts/resolve body.
type ConflictResolution struct {
	ConflictID string     `json:"conflict_id"`
	Resolution Resolution `json:"resolution"`
}
