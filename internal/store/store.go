// Package store provides persistent server state backed by an embedded
// SQLite database: server settings, reserved display names, and an audit
// log of connect/disconnect/call lifecycle events (C11).
//
// Migration design: SQL statements are kept in the [migrations] slice as
// ordered strings. Each is applied exactly once; the applied version is
// tracked in the schema_migrations table. To add a migration, append a new
// string — never edit or reorder existing entries.
package store

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite"
)

// migrations holds the ordered list of DDL/DML statements that bring the
// schema up to date. Index i corresponds to version i+1.
var migrations = []string{
	// v1 — settings key/value store
	`CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	// v2 — names reserved against concurrent reuse across server restarts
	`CREATE TABLE IF NOT EXISTS reserved_names (
		name       TEXT PRIMARY KEY,
		claimed_by TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v3 — audit log
	`CREATE TABLE IF NOT EXISTS audit_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		kind       TEXT NOT NULL,
		peer_name  TEXT NOT NULL DEFAULT '',
		detail     TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v4 — index for recent-events queries
	`CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at)`,
	// v5 — enable WAL mode
	`PRAGMA journal_mode=WAL`,
}

// Store wraps a SQLite database and exposes server-state operations.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at path and applies any
// pending migrations. Use ":memory:" for ephemeral in-process storage
// (tests).
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		log.Printf("[store] WAL mode: %v (non-fatal)", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		log.Printf("[store] busy_timeout: %v (non-fatal)", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the schema_migrations table (if absent) and applies any
// migrations whose version number exceeds the current maximum.
func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		v := i + 1
		if v <= current {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := s.db.Exec(
			`INSERT INTO schema_migrations(version) VALUES(?)`, v,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
		log.Printf("[store] applied migration v%d", v)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// GetSetting returns the value stored under key. The second return value is
// false when the key does not exist; an error is only returned for real I/O
// failures.
func (s *Store) GetSetting(key string) (string, bool, error) {
	var val string
	err := s.db.QueryRow(
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&val)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetSetting upserts key → value in the settings table.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// GetAllSettings returns every stored key/value pair, for the admin CLI's
// "settings list" subcommand.
func (s *Store) GetAllSettings() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// ---------------------------------------------------------------------------
// Reserved names
// ---------------------------------------------------------------------------

// ReserveName claims name for claimedBy. It returns false without error if
// the name is already reserved by someone else, mirroring
// Registry.Register's in-memory collision semantics but surviving a
// restart.
func (s *Store) ReserveName(name, claimedBy string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT INTO reserved_names(name, claimed_by) VALUES(?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		name, claimedBy,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReleaseName frees a previously reserved name.
func (s *Store) ReleaseName(name string) error {
	_, err := s.db.Exec(`DELETE FROM reserved_names WHERE name = ?`, name)
	return err
}

// IsNameReserved reports whether name is currently held, and by whom.
func (s *Store) IsNameReserved(name string) (bool, string, error) {
	var claimedBy string
	err := s.db.QueryRow(
		`SELECT claimed_by FROM reserved_names WHERE name = ?`, name,
	).Scan(&claimedBy)
	if err == sql.ErrNoRows {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return true, claimedBy, nil
}

// ReservedName is one row of the reserved-names deny-list, for the admin
// CLI's "names list" subcommand.
type ReservedName struct {
	Name      string
	ClaimedBy string
	CreatedAt int64
}

// GetReservedNames returns every entry in the deny-list, most recently
// added first.
func (s *Store) GetReservedNames() ([]ReservedName, error) {
	rows, err := s.db.Query(
		`SELECT name, claimed_by, created_at FROM reserved_names ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReservedName
	for rows.Next() {
		var r ReservedName
		if err := rows.Scan(&r.Name, &r.ClaimedBy, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Audit log
// ---------------------------------------------------------------------------

// AuditEntry represents one row in the audit_log table.
type AuditEntry struct {
	ID        int64
	Kind      string
	PeerName  string
	Detail    string
	CreatedAt int64
}

// InsertAuditLog records one operational event. If the table then holds
// more than 10,000 rows, the oldest entries are purged.
func (s *Store) InsertAuditLog(kind, peerName, detail string) error {
	_, err := s.db.Exec(
		`INSERT INTO audit_log(kind, peer_name, detail) VALUES(?,?,?)`,
		kind, peerName, detail,
	)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`DELETE FROM audit_log WHERE id NOT IN (SELECT id FROM audit_log ORDER BY id DESC LIMIT 10000)`)
	return err
}

// GetAuditLog returns audit log entries, most recent first, with an
// optional kind filter. Pass kind="" to return all kinds.
func (s *Store) GetAuditLog(kind string, limit int) ([]AuditEntry, error) {
	var rows *sql.Rows
	var err error
	if kind != "" {
		rows, err = s.db.Query(
			`SELECT id, kind, peer_name, detail, created_at FROM audit_log WHERE kind = ? ORDER BY id DESC LIMIT ?`,
			kind, limit,
		)
	} else {
		rows, err = s.db.Query(
			`SELECT id, kind, peer_name, detail, created_at FROM audit_log ORDER BY id DESC LIMIT ?`,
			limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.PeerName, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AuditLogCount returns the number of entries in the audit log.
func (s *Store) AuditLogCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM audit_log`).Scan(&n)
	return n, err
}

// ---------------------------------------------------------------------------
// SQLite optimization
// ---------------------------------------------------------------------------

// Optimize runs PRAGMA optimize for SQLite query planner statistics.
func (s *Store) Optimize() error {
	_, err := s.db.Exec(`PRAGMA optimize`)
	return err
}

// AuditSink adapts a Store to the server package's AuditSink interface.
type AuditSink struct {
	store *Store
}

// NewAuditSink wraps store as a server.AuditSink.
func NewAuditSink(store *Store) *AuditSink {
	return &AuditSink{store: store}
}

// Record implements server.AuditSink.
func (a *AuditSink) Record(kind, peerName, detail string) {
	if err := a.store.InsertAuditLog(kind, peerName, detail); err != nil {
		log.Printf("[store] audit insert: %v", err)
	}
}
