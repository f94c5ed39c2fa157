package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpen_MigratesOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "locks.db")

	db, err := Open(ctx, Config{Path: path})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	v, err := currentVersion(ctx, db.DB)
	if err != nil {
		t.Fatalf("currentVersion failed: %v", err)
	}
	if v != latestVersion {
		t.Errorf("expected version %d, got %d", latestVersion, v)
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM doc_locks;`).Scan(&n); err != nil {
		t.Fatalf("doc_locks missing: %v", err)
	}
	db.Close()

	// Reopening an existing database keeps the schema.
	db, err = Open(ctx, Config{Path: path})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}
