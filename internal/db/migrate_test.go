package db

import (
	"testing"

	apperrors "github.com/Growth-Sheriff/dernekv1-sub001/internal/errors"
)

func TestMigrateAppliesAllVersions(t *testing.T) {
	database, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := Migrate(database); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	version, err := SchemaVersion(database)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("Expected schema version %d, got %d", len(migrations), version)
	}

	// Re-running is a no-op.
	if err := Migrate(database); err != nil {
		t.Errorf("Expected repeat Migrate to succeed, got %v", err)
	}
}

func TestMigrateSurfacesMigrationCode(t *testing.T) {
	database, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	database.Close()

	if err := Migrate(database); !apperrors.Is(err, apperrors.ErrMigration) {
		t.Errorf("Expected MIGRATION_FAILED against a closed database, got %v", err)
	}
}
