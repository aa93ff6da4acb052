package db

import (
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Growth-Sheriff/dernekv1-sub001/internal/errors"
)

const (
	metaKeyWatermark = "last_sync_at"
	metaKeyDeviceID  = "device_id"
)

func (s *Store) getMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM sync_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrLocalStorage, "failed to read sync metadata", err)
	}
	return value, nil
}

func (s *Store) setMeta(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return apperrors.Wrap(apperrors.ErrLocalStorage, "failed to write sync metadata", err)
	}
	return nil
}

// Watermark returns the persisted last successful sync timestamp,
// zero if no pull has completed yet.
func (s *Store) Watermark() (int64, error) {
	value, err := s.getMeta(metaKeyWatermark)
	if err != nil || value == "" {
		return 0, err
	}
	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrLocalStorage, "corrupt watermark value", err)
	}
	return ts, nil
}

// SetWatermark persists the last successful sync timestamp.
// The watermark never moves backwards.
func (s *Store) SetWatermark(ts int64) error {
	current, err := s.Watermark()
	if err != nil {
		return err
	}
	if ts < current {
		return nil
	}
	return s.setMeta(metaKeyWatermark, strconv.FormatInt(ts, 10))
}

// DeviceID returns this installation's device identifier, generating and
// persisting one on first use.
func (s *Store) DeviceID() (string, error) {
	id, err := s.getMeta(metaKeyDeviceID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	id = uuid.New().String()
	if err := s.setMeta(metaKeyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}
