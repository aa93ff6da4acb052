package db

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/Growth-Sheriff/dernekv1-sub001/internal/errors"
	"github.com/Growth-Sheriff/dernekv1-sub001/internal/models"
)

// localRecord is the shape a pulled remote record is reduced to before it is
// written into its entity table.
type localRecord struct {
	ID        string
	UpdatedAt int64
	Payload   json.RawMessage
}

// transformFunc converts one raw remote record into a localRecord.
// Each transform is pure; it validates the fields its table requires.
type transformFunc func(raw json.RawMessage) (localRecord, error)

// transforms dispatches record shaping by table, replacing per-table
// branching at the apply site.
var transforms = map[models.TableName]transformFunc{
	models.TableMembers:        transformRecord("members", "name"),
	models.TableIncomeRecords:  transformAmountRecord("income_records"),
	models.TableExpenseRecords: transformAmountRecord("expense_records"),
	models.TableCashAccounts:   transformRecord("cash_accounts", "name"),
	models.TableDuesRecords:    transformRecord("dues_records", "member_id"),
}

// decodeRemote extracts the common envelope every remote record carries.
func decodeRemote(table string, raw json.RawMessage) (map[string]any, localRecord, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, localRecord{}, fmt.Errorf("%s: malformed record: %w", table, err)
	}
	id, _ := fields["id"].(string)
	if id == "" {
		return nil, localRecord{}, fmt.Errorf("%s: record missing id", table)
	}
	rec := localRecord{ID: id, Payload: raw}
	if ts, ok := fields["updated_at"].(float64); ok {
		rec.UpdatedAt = int64(ts)
	}
	return fields, rec, nil
}

// transformRecord builds a transform that requires one non-empty string field
// beyond the common envelope.
func transformRecord(table, required string) transformFunc {
	return func(raw json.RawMessage) (localRecord, error) {
		fields, rec, err := decodeRemote(table, raw)
		if err != nil {
			return localRecord{}, err
		}
		if v, _ := fields[required].(string); v == "" {
			return localRecord{}, fmt.Errorf("%s: record %s missing %s", table, rec.ID, required)
		}
		return rec, nil
	}
}

// transformAmountRecord builds a transform for money movement tables, which
// additionally require a numeric amount.
func transformAmountRecord(table string) transformFunc {
	return func(raw json.RawMessage) (localRecord, error) {
		fields, rec, err := decodeRemote(table, raw)
		if err != nil {
			return localRecord{}, err
		}
		if _, ok := fields["amount"].(float64); !ok {
			return localRecord{}, fmt.Errorf("%s: record %s missing numeric amount", table, rec.ID)
		}
		return rec, nil
	}
}

// ApplyRemoteRecords writes one pull cycle's worth of remote records into the
// local entity tables and returns the number of records applied. The remote
// is authoritative for pulled records, so this is a plain upsert and is NOT
// routed through the change log (a pull must not re-queue as a local edit).
// All tables are applied in a single transaction: a partial pull never leaves
// the local store half-updated relative to one remote cycle.
func (s *Store) ApplyRemoteRecords(data map[models.TableName][]json.RawMessage) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrLocalStorage, "failed to begin apply transaction", err)
	}
	defer tx.Rollback()

	applied := 0
	for _, table := range models.AllTables() {
		records, ok := data[table]
		if !ok {
			continue
		}
		transform := transforms[table]
		for _, raw := range records {
			rec, err := transform(raw)
			if err != nil {
				return 0, apperrors.Wrap(apperrors.ErrValidation, "rejected remote record", err)
			}
			if _, err := tx.Exec(
				fmt.Sprintf(`INSERT INTO %s (id, payload, updated_at) VALUES (?, ?, ?)
					ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`, table),
				rec.ID, string(rec.Payload), rec.UpdatedAt,
			); err != nil {
				return 0, apperrors.Wrap(apperrors.ErrLocalStorage, "failed to apply remote record", err)
			}
			applied++
		}
	}

	// Reject tables outside the closed synchronized set instead of silently
	// dropping their records.
	for table := range data {
		if !table.Valid() {
			return 0, apperrors.New(apperrors.ErrValidation,
				fmt.Sprintf("pull response contains unknown table %q", table))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrLocalStorage, "failed to commit apply transaction", err)
	}
	return applied, nil
}

// GetLocalRecord reads one record from an entity table. Used by the client
// surfaces to show what a pull materialized.
func (s *Store) GetLocalRecord(table models.TableName, id string) (json.RawMessage, error) {
	if !table.Valid() {
		return nil, apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("unknown table %q", table))
	}
	var payload string
	err := s.db.QueryRow(
		fmt.Sprintf("SELECT payload FROM %s WHERE id = ?", table), id,
	).Scan(&payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, fmt.Sprintf("record %s/%s", table, id), err)
	}
	return json.RawMessage(payload), nil
}
