package db

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMigrationsOrdering(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"002_reservations.sql": "CREATE TABLE reserved_canister (id BIGINT);",
		"001_core.sql":         "CREATE TABLE pack (id BIGINT);",
		"010_tracker.sql":      "CREATE TABLE batch_change_tracker (id UUID);",
		"notes.txt":            "not a migration",
		"no_prefix.sql":        "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	m := NewMigrator(nil, dir)
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("got %d migrations, want 3", len(migrations))
	}
	wantVersions := []int{1, 2, 10}
	for i, mig := range migrations {
		if mig.Version != wantVersions[i] {
			t.Errorf("migration %d version = %d, want %d", i, mig.Version, wantVersions[i])
		}
	}
	if migrations[0].SQL == "" {
		t.Error("migration SQL should be loaded")
	}
}

func TestLoadMigrationsMissingDir(t *testing.T) {
	m := NewMigrator(nil, filepath.Join(t.TempDir(), "nope"))
	if _, err := m.LoadMigrations(); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
