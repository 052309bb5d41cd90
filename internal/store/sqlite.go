package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/nidstore/internal/nid"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS chronicles (
	nid                      INTEGER PRIMARY KEY,
	category                 INTEGER NOT NULL,
	pattern_nid              INTEGER NOT NULL,
	referenced_component_nid INTEGER NOT NULL,
	data                     BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chronicles_category
	ON chronicles(category, nid);
CREATE INDEX IF NOT EXISTS idx_chronicles_pattern
	ON chronicles(category, pattern_nid, nid);
CREATE INDEX IF NOT EXISTS idx_chronicles_component
	ON chronicles(category, referenced_component_nid, pattern_nid, nid);

CREATE TABLE IF NOT EXISTS uuid_nids (
	uuid BLOB PRIMARY KEY,
	nid  INTEGER NOT NULL
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_uuid_nids_nid ON uuid_nids(nid);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Seeded write_sequence row in meta
const currentSchemaVersion = 1

// scanPageSize bounds how many rows a traversal reads before it releases
// the connection and calls visitors.
const scanPageSize = 256

// SQLiteBackend stores chronicles, the uuid → nid map and the write
// sequence in one SQLite database.
//
// Every Update runs in its own transaction. The pool holds a single
// connection, so transactions are serialized and Update is atomic per nid.
// Traversals read one page at a time and close the rows before calling
// visitors, so a visitor may call back into the backend.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	// Open database (creates file if doesn't exist). Immediate transactions
	// take the write lock up front so read-merge-write never upgrades.
	db, err := sql.Open("sqlite3", path+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// SQLiteOpener returns an Opener for the database at path.
func SQLiteOpener(path string) Opener {
	return func(context.Context) (Backend, error) {
		return OpenSQLite(path)
	}
}

// Close closes the database connection.
func (b *SQLiteBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 seeds the write sequence counter.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`INSERT OR IGNORE INTO meta (key, value) VALUES ('write_sequence', 0)`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (b *SQLiteBackend) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := b.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

// Lookup implements ident.Mapping.
func (b *SQLiteBackend) Lookup(ctx context.Context, id uuid.UUID) (nid.Nid, bool, error) {
	var n int64
	err := b.db.QueryRowContext(ctx, `SELECT nid FROM uuid_nids WHERE uuid = ?`, id[:]).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return nid.Unset, false, nil
	}
	if err != nil {
		return nid.Unset, false, fmt.Errorf("lookup %s: %w", id, err)
	}
	return nid.Nid(n), true, nil
}

// LoadOrStore implements ident.Mapping. generate runs inside the
// transaction, so it is called at most once per stored id.
func (b *SQLiteBackend) LoadOrStore(ctx context.Context, id uuid.UUID, generate func() nid.Nid) (nid.Nid, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nid.Unset, fmt.Errorf("load or store %s: %w", id, err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT nid FROM uuid_nids WHERE uuid = ?`, id[:]).Scan(&existing)
	switch {
	case err == nil:
		return nid.Nid(existing), nil
	case !errors.Is(err, sql.ErrNoRows):
		return nid.Unset, fmt.Errorf("load or store %s: %w", id, err)
	}

	n := generate()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO uuid_nids (uuid, nid) VALUES (?, ?)`, id[:], int64(n),
	); err != nil {
		return nid.Unset, fmt.Errorf("load or store %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nid.Unset, fmt.Errorf("load or store %s: %w", id, err)
	}
	return n, nil
}

// Get implements Backend.
func (b *SQLiteBackend) Get(ctx context.Context, n nid.Nid) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT data FROM chronicles WHERE nid = ?`, int64(n)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", n, err)
	}
	return data, nil
}

// Update implements Backend.
func (b *SQLiteBackend) Update(ctx context.Context, w Write, merge MergeFunc) ([]byte, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", w.Nid, err)
	}
	defer tx.Rollback()

	var stored []byte
	err = tx.QueryRowContext(ctx, `SELECT data FROM chronicles WHERE nid = ?`, int64(w.Nid)).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update %s: %w", w.Nid, err)
	}

	merged, err := merge(stored)
	if err != nil {
		return nil, err
	}
	if merged == nil {
		return nil, fmt.Errorf("update %s: merge produced no bytes", w.Nid)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chronicles
		(nid, category, pattern_nid, referenced_component_nid, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(nid) DO UPDATE SET
			category = excluded.category,
			pattern_nid = excluded.pattern_nid,
			referenced_component_nid = excluded.referenced_component_nid,
			data = excluded.data
	`,
		int64(w.Nid),
		int(w.Category),
		int64(w.PatternNid),
		int64(w.ReferencedComponentNid),
		merged,
	)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", w.Nid, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE meta SET value = value + 1 WHERE key = 'write_sequence'`,
	); err != nil {
		return nil, fmt.Errorf("update %s: write sequence: %w", w.Nid, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("update %s: %w", w.Nid, err)
	}
	return merged, nil
}

type row struct {
	nid  nid.Nid
	data []byte
}

// ForEach implements Backend. Chronicles are visited in nid order.
func (b *SQLiteBackend) ForEach(ctx context.Context, fn Visitor) error {
	const query = `SELECT nid, data FROM chronicles WHERE nid > ? ORDER BY nid LIMIT ?`

	cursor := int64(math.MinInt64)
	for {
		page, err := b.page(ctx, query, []any{cursor, scanPageSize}, true)
		if err != nil {
			return fmt.Errorf("for each: %w", err)
		}
		for _, r := range page {
			if err := fn(r.data, r.nid); err != nil {
				return err
			}
		}
		if len(page) < scanPageSize {
			return nil
		}
		cursor = int64(page[len(page)-1].nid)
	}
}

// ForEachNid implements Backend.
func (b *SQLiteBackend) ForEachNid(ctx context.Context, c Category, fn NidVisitor) error {
	return b.scanNids(ctx, `category = ?`, []any{int(c)}, fn)
}

// ForEachSemanticOfPattern implements Backend.
func (b *SQLiteBackend) ForEachSemanticOfPattern(ctx context.Context, pattern nid.Nid, fn NidVisitor) error {
	return b.scanNids(ctx, `category = ? AND pattern_nid = ?`,
		[]any{int(CategorySemantic), int64(pattern)}, fn)
}

// ForEachSemanticForComponent implements Backend.
func (b *SQLiteBackend) ForEachSemanticForComponent(ctx context.Context, component nid.Nid, fn NidVisitor) error {
	return b.scanNids(ctx, `category = ? AND referenced_component_nid = ?`,
		[]any{int(CategorySemantic), int64(component)}, fn)
}

// ForEachSemanticForComponentOfPattern implements Backend.
func (b *SQLiteBackend) ForEachSemanticForComponentOfPattern(ctx context.Context, component, pattern nid.Nid, fn NidVisitor) error {
	return b.scanNids(ctx, `category = ? AND referenced_component_nid = ? AND pattern_nid = ?`,
		[]any{int(CategorySemantic), int64(component), int64(pattern)}, fn)
}

// scanNids pages through chronicles matching where, in nid order.
// where is a constant SQL fragment; values are bound through args.
func (b *SQLiteBackend) scanNids(ctx context.Context, where string, args []any, fn NidVisitor) error {
	query := `SELECT nid FROM chronicles WHERE ` + where + ` AND nid > ? ORDER BY nid LIMIT ?`

	cursor := int64(math.MinInt64)
	for {
		page, err := b.page(ctx, query, append(slices.Clone(args), cursor, scanPageSize), false)
		if err != nil {
			return fmt.Errorf("scan %s: %w", where, err)
		}
		for _, r := range page {
			if err := fn(r.nid); err != nil {
				return err
			}
		}
		if len(page) < scanPageSize {
			return nil
		}
		cursor = int64(page[len(page)-1].nid)
	}
}

// page runs one page query and returns its rows with the result set
// already closed.
func (b *SQLiteBackend) page(ctx context.Context, query string, args []any, withData bool) ([]row, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []row
	for rows.Next() {
		var (
			n    int64
			data []byte
		)
		if withData {
			err = rows.Scan(&n, &data)
		} else {
			err = rows.Scan(&n)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, row{nid: nid.Nid(n), data: data})
	}
	return out, rows.Err()
}

// WriteSequence implements Backend.
func (b *SQLiteBackend) WriteSequence(ctx context.Context) (int64, error) {
	var seq int64
	err := b.db.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE key = 'write_sequence'`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("write sequence: %w", err)
	}
	return seq, nil
}

// MaxNid implements Backend.
func (b *SQLiteBackend) MaxNid(ctx context.Context) (nid.Nid, error) {
	var highest sql.NullInt64
	err := b.db.QueryRowContext(ctx, `
		SELECT MAX(n) FROM (
			SELECT MAX(nid) AS n FROM chronicles
			UNION ALL
			SELECT MAX(nid) AS n FROM uuid_nids
		)
	`).Scan(&highest)
	if err != nil {
		return nid.Unset, fmt.Errorf("max nid: %w", err)
	}
	if !highest.Valid {
		return nid.Unset, nil
	}
	return nid.Nid(highest.Int64), nil
}
