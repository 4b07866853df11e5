// Package store implements a content-addressable cache for serialized
// ir.Module snapshots and a name-collision detector for link-style
// merging, backed by database/sql over whichever driver the store's DSN
// scheme names: one *sql.DB per logical connection, with the driver
// picked from the DSN itself the way a real multi-backend tool dispatches
// on a connection string's scheme.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Error is the store package's slice of the §7 error taxonomy: it raises
// ErrorNameCollision the same way ir.Module.Merge does, but across
// persisted snapshots rather than two in-memory Modules.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrorNameCollision is returned by Put when name is already bound to
	// a different content hash (§7, §3's Module-merge invariant extended
	// across store sessions).
	ErrorNameCollision Error = "store: module name is already bound to a different content hash"

	// ErrorNotFound is returned by Get for an unknown hash.
	ErrorNotFound Error = "store: no module snapshot for that hash"
)

// driverFor maps a DSN scheme to the registered database/sql driver name,
// mirroring DBManager.Connect's dbType switch but keyed off the URL
// scheme instead of an explicit type argument.
func driverFor(dsn string) (driverName, dataSource string, err error) {
	u, parseErr := url.Parse(dsn)
	if parseErr != nil || u.Scheme == "" {
		// No recognizable scheme: treat the whole string as a sqlite
		// file path, the zero-configuration default.
		return "sqlite", dsn, nil
	}
	switch u.Scheme {
	case "sqlite", "sqlite3":
		return "sqlite", strings.TrimPrefix(dsn, u.Scheme+"://"), nil
	case "mysql":
		return "mysql", strings.TrimPrefix(dsn, "mysql://"), nil
	case "postgres", "postgresql":
		return "postgres", dsn, nil
	case "sqlserver":
		return "sqlserver", dsn, nil
	default:
		return "", "", fmt.Errorf("store: unsupported DSN scheme %q", u.Scheme)
	}
}

// ModuleStore is a content-addressable cache of serialized ir.Module
// snapshots keyed by a blake2b-256 hash of their bytes, plus a registry
// of global module names used to detect ErrorNameCollision across
// sessions that never shared an in-memory ir.Module (§7).
type ModuleStore struct {
	db *sql.DB
}

// Open connects to dsn, selecting a driver from its scheme (mysql://,
// postgres://, sqlite://, sqlserver://, or a bare path for sqlite), and
// ensures the store's schema exists.
func Open(dsn string) (*ModuleStore, error) {
	driverName, dataSource, err := driverFor(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, dataSource)
	if err != nil {
		return nil, errors.Wrap(err, "store: open")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "store: ping")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &ModuleStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *ModuleStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS module_snapshots (
			content_hash TEXT PRIMARY KEY,
			content      BLOB NOT NULL,
			created_at   TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return errors.Wrap(err, "store: migrate snapshots table")
	}
	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS module_names (
			name         TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL
		)`)
	if err != nil {
		return errors.Wrap(err, "store: migrate names table")
	}
	return nil
}

// ContentHash returns the store's content-addressing key for content:
// hex-encoded blake2b-256.
func ContentHash(content []byte) string {
	sum := blake2b.Sum256(content)
	return fmt.Sprintf("%x", sum)
}

// Put caches content under its blake2b-256 hash and binds name to that
// hash, failing with ErrorNameCollision if name is already bound to a
// different hash (the persisted analogue of ir.Module.AppendUnit's
// in-memory name check, §7). Re-putting identical content under the same
// name is a no-op success.
func (s *ModuleStore) Put(ctx context.Context, name string, content []byte) (string, error) {
	hash := ContentHash(content)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "store: begin put")
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	var existingHash string
	err = tx.QueryRowContext(ctx, `SELECT content_hash FROM module_names WHERE name = ?`, name).Scan(&existingHash)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `INSERT INTO module_names (name, content_hash) VALUES (?, ?)`, name, hash); err != nil {
			return "", errors.Wrap(err, "store: bind name")
		}
	case err != nil:
		return "", errors.Wrap(err, "store: lookup name")
	case existingHash != hash:
		return "", ErrorNameCollision
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO module_snapshots (content_hash, content, created_at)
		SELECT ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM module_snapshots WHERE content_hash = ?)`,
		hash, content, time.Now().UTC(), hash); err != nil {
		return "", errors.Wrap(err, "store: insert snapshot")
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "store: commit put")
	}
	committed = true
	return hash, nil
}

// Get returns the cached content for hash.
func (s *ModuleStore) Get(ctx context.Context, hash string) ([]byte, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, `SELECT content FROM module_snapshots WHERE content_hash = ?`, hash).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, ErrorNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "store: get")
	}
	return content, nil
}

// ResolveName returns the content hash currently bound to name.
func (s *ModuleStore) ResolveName(ctx context.Context, name string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT content_hash FROM module_names WHERE name = ?`, name).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", ErrorNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "store: resolve name")
	}
	return hash, nil
}

// Close releases the underlying connection pool.
func (s *ModuleStore) Close() error { return s.db.Close() }
