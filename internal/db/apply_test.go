package db

import (
	"encoding/json"
	"testing"

	apperrors "github.com/Growth-Sheriff/dernekv1-sub001/internal/errors"
	"github.com/Growth-Sheriff/dernekv1-sub001/internal/models"
)

// TestApplyRemoteRecordsUpsert tests that pulled records are inserted and
// later versions overwrite them.
func TestApplyRemoteRecordsUpsert(t *testing.T) {
	s := newTestStore(t)

	first := map[models.TableName][]json.RawMessage{
		models.TableMembers: {
			json.RawMessage(`{"id":"m1","name":"A","updated_at":100}`),
		},
	}
	applied, err := s.ApplyRemoteRecords(first)
	if err != nil {
		t.Fatalf("ApplyRemoteRecords failed: %v", err)
	}
	if applied != 1 {
		t.Errorf("Expected 1 record applied, got %d", applied)
	}

	second := map[models.TableName][]json.RawMessage{
		models.TableMembers: {
			json.RawMessage(`{"id":"m1","name":"B","updated_at":200}`),
		},
	}
	if _, err := s.ApplyRemoteRecords(second); err != nil {
		t.Fatalf("second ApplyRemoteRecords failed: %v", err)
	}

	payload, err := s.GetLocalRecord(models.TableMembers, "m1")
	if err != nil {
		t.Fatalf("GetLocalRecord failed: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		t.Fatalf("stored payload is not JSON: %v", err)
	}
	if fields["name"] != "B" {
		t.Errorf("Expected remote update to win, name = %v", fields["name"])
	}
}

// TestApplyRemoteRecordsAllOrNothing tests that one bad record rolls back the
// whole pull apply, across tables.
func TestApplyRemoteRecordsAllOrNothing(t *testing.T) {
	s := newTestStore(t)

	data := map[models.TableName][]json.RawMessage{
		models.TableMembers: {
			json.RawMessage(`{"id":"m1","name":"A","updated_at":100}`),
		},
		models.TableIncomeRecords: {
			json.RawMessage(`{"id":"i1","updated_at":100}`), // missing amount
		},
	}
	if _, err := s.ApplyRemoteRecords(data); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("Expected VALIDATION_ERROR, got %v", err)
	}

	// The valid member record must not have been half-applied.
	if _, err := s.GetLocalRecord(models.TableMembers, "m1"); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected m1 to be rolled back, got %v", err)
	}
}

// TestApplyRemoteRecordsUnknownTable tests that a table outside the closed
// synchronized set is rejected instead of silently dropped.
func TestApplyRemoteRecordsUnknownTable(t *testing.T) {
	s := newTestStore(t)

	data := map[models.TableName][]json.RawMessage{
		"invoices": {json.RawMessage(`{"id":"x1"}`)},
	}
	if _, err := s.ApplyRemoteRecords(data); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Expected VALIDATION_ERROR for unknown table, got %v", err)
	}
}

// TestApplyRemoteRecordsRequiredFields exercises the per-table transforms.
func TestApplyRemoteRecordsRequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		table  models.TableName
		record string
		ok     bool
	}{
		{"member with name", models.TableMembers, `{"id":"m1","name":"A"}`, true},
		{"member without name", models.TableMembers, `{"id":"m1"}`, false},
		{"income with amount", models.TableIncomeRecords, `{"id":"i1","amount":25.5}`, true},
		{"income without amount", models.TableIncomeRecords, `{"id":"i1"}`, false},
		{"expense with amount", models.TableExpenseRecords, `{"id":"e1","amount":10}`, true},
		{"dues with member", models.TableDuesRecords, `{"id":"d1","member_id":"m1"}`, true},
		{"dues without member", models.TableDuesRecords, `{"id":"d1"}`, false},
		{"record without id", models.TableCashAccounts, `{"name":"Kasa"}`, false},
		{"malformed json", models.TableCashAccounts, `{`, false},
	}

	for _, tc := range cases {
		s := newTestStore(t)
		data := map[models.TableName][]json.RawMessage{
			tc.table: {json.RawMessage(tc.record)},
		}
		_, err := s.ApplyRemoteRecords(data)
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

// TestWatermarkMonotonic tests that the watermark persists and never moves
// backwards.
func TestWatermarkMonotonic(t *testing.T) {
	s := newTestStore(t)

	wm, err := s.Watermark()
	if err != nil {
		t.Fatalf("Watermark failed: %v", err)
	}
	if wm != 0 {
		t.Errorf("Expected zero initial watermark, got %d", wm)
	}

	if err := s.SetWatermark(500); err != nil {
		t.Fatalf("SetWatermark failed: %v", err)
	}
	if err := s.SetWatermark(400); err != nil {
		t.Fatalf("backwards SetWatermark failed: %v", err)
	}
	wm, _ = s.Watermark()
	if wm != 500 {
		t.Errorf("Expected watermark to stay at 500, got %d", wm)
	}

	if err := s.SetWatermark(600); err != nil {
		t.Fatalf("SetWatermark failed: %v", err)
	}
	wm, _ = s.Watermark()
	if wm != 600 {
		t.Errorf("Expected watermark 600, got %d", wm)
	}
}

// TestDeviceIDStable tests that the generated device id is persisted.
func TestDeviceIDStable(t *testing.T) {
	s := newTestStore(t)

	first, err := s.DeviceID()
	if err != nil {
		t.Fatalf("DeviceID failed: %v", err)
	}
	if first == "" {
		t.Fatal("Expected a generated device id")
	}
	second, err := s.DeviceID()
	if err != nil {
		t.Fatalf("second DeviceID failed: %v", err)
	}
	if first != second {
		t.Errorf("Expected stable device id, got %s then %s", first, second)
	}
}
