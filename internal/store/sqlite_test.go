package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/uuid"

	"github.com/roach88/nidstore/internal/nid"
	"github.com/roach88/nidstore/internal/testutil"
)

func TestOpenSQLite_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	b, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer b.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpenSQLite_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")
	id := uuid.New()

	b1, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("first OpenSQLite() failed: %v", err)
	}
	if _, err := b1.Update(ctx, conceptWrite(42), mergeWith(testutil.Concept(1, 10))); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if _, err := b1.LoadOrStore(ctx, id, func() nid.Nid { return 43 }); err != nil {
		t.Fatalf("LoadOrStore() failed: %v", err)
	}
	b1.Close()

	b2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("second OpenSQLite() failed: %v", err)
	}
	defer b2.Close()

	data, err := b2.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if string(data) != string(testutil.Concept(1, 10)) {
		t.Errorf("Get() = %x, want %x", data, testutil.Concept(1, 10))
	}

	n, ok, err := b2.Lookup(ctx, id)
	if err != nil || !ok || n != 43 {
		t.Errorf("Lookup() = %v, %v, %v; want 43, true, nil", n, ok, err)
	}

	seq, err := b2.WriteSequence(ctx)
	if err != nil {
		t.Fatalf("WriteSequence() failed: %v", err)
	}
	if seq != 1 {
		t.Errorf("WriteSequence() = %d, want 1", seq)
	}
}

func TestOpenSQLite_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		b, err := OpenSQLite(path)
		if err != nil {
			t.Fatalf("OpenSQLite() iteration %d failed: %v", i, err)
		}
		b.Close()
	}

	b, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("final OpenSQLite() failed: %v", err)
	}
	defer b.Close()

	tables := []string{"chronicles", "uuid_nids", "meta"}
	for _, table := range tables {
		var name string
		err := b.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpenSQLite_InvalidPath(t *testing.T) {
	path := "/nonexistent/dir/test.db"

	_, err := OpenSQLite(path)
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestSQLiteClose_NilDB(t *testing.T) {
	b := &SQLiteBackend{db: nil}
	if err := b.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	b := openTestSQLite(t)

	if err := b.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	b := openTestSQLite(t)

	// NORMAL = 1
	if err := b.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	b := openTestSQLite(t)

	if err := b.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

// Schema table tests

func TestSchema_ChroniclesTable(t *testing.T) {
	b := openTestSQLite(t)

	columns := getTableColumns(t, b.db, "chronicles")
	expected := []string{"nid", "category", "pattern_nid", "referenced_component_nid", "data"}
	for _, col := range expected {
		if !slices.Contains(columns, col) {
			t.Errorf("chronicles table missing column %q", col)
		}
	}
}

func TestSchema_UUIDNidsTable(t *testing.T) {
	b := openTestSQLite(t)

	columns := getTableColumns(t, b.db, "uuid_nids")
	for _, col := range []string{"uuid", "nid"} {
		if !slices.Contains(columns, col) {
			t.Errorf("uuid_nids table missing column %q", col)
		}
	}
}

func TestSchema_CategoryIndexes(t *testing.T) {
	b := openTestSQLite(t)

	indexes := getTableIndexes(t, b.db, "chronicles")
	for _, idx := range []string{"idx_chronicles_category", "idx_chronicles_pattern", "idx_chronicles_component"} {
		if !slices.Contains(indexes, idx) {
			t.Errorf("chronicles missing index %q, got %v", idx, indexes)
		}
	}
}

// Migration tests

func TestMigration_SetsUserVersion(t *testing.T) {
	b := openTestSQLite(t)

	var version int
	if err := b.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Apply schema but NOT migrations (simulates pre-migration state)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	b, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer b.Close()

	seq, err := b.WriteSequence(context.Background())
	if err != nil {
		t.Fatalf("WriteSequence() after migration failed: %v", err)
	}
	if seq != 0 {
		t.Errorf("WriteSequence() = %d, want 0", seq)
	}
}

// Helper functions

func openTestSQLite(t *testing.T) *SQLiteBackend {
	t.Helper()
	b, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}
