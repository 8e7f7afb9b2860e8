package db

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "test.db"), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestOpen_CreatesDatabase(t *testing.T) {
	database := openTestDB(t)
	if err := database.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestOpen_CreatesParentDirs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")
	database, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()
}

func TestOpen_TablesExist(t *testing.T) {
	database := openTestDB(t)

	for _, table := range []string{"tasks", "task_audit", "snippets", "schema_migrations"} {
		var count int
		err := database.Conn().QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("query table %q: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %q not found", table)
		}
	}
}

func TestOpen_MigrationsRecorded(t *testing.T) {
	database := openTestDB(t)

	var count int
	if err := database.Conn().QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("query migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("expected %d migrations recorded, got %d", len(migrations), count)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := db1.Conn().Exec(
		`INSERT INTO tasks (id, branch_id, thought_id, task_type, content, created_at, updated_at)
		 VALUES ('task-1', 'b', 't', 'TODO', 'x', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`,
	); err != nil {
		t.Fatalf("insert: %v", err)
	}
	db1.Close()

	db2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db2.Close()

	var count int
	db2.Conn().QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&count)
	if count != 1 {
		t.Errorf("expected task to survive re-open, got %d rows", count)
	}
}

func TestOpen_VectorTables(t *testing.T) {
	database := openTestDB(t, WithEmbeddingDimension(8))
	if database.Dimension() != 8 {
		t.Errorf("Dimension() = %d, want 8", database.Dimension())
	}

	var count int
	database.Conn().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name='vec_snippets'`).Scan(&count)
	// The extension may be missing in some builds; the flag must agree with the schema.
	if database.VectorsEnabled() != (count > 0) {
		t.Errorf("VectorsEnabled() = %v but vec_snippets exists = %v", database.VectorsEnabled(), count > 0)
	}
}

func TestEncodeDecodeVector(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3e-7}
	out := DecodeVector(EncodeVector(in))
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestClose(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := database.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := database.Ping(); err == nil {
		t.Error("expected Ping to fail after Close")
	}
}
