// Package kv provides the synchronous key-value medium the location store
// persists into: a SQLite file for real use and an in-memory map for tests.
package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

const (
	// DataDirName is created inside the base directory.
	DataDirName = ".pinmap"
	dbFileName  = "pinmap.db"
)

// Tx reads and writes keys. Get returns (nil, nil) for a missing key.
type Tx interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(keys ...string) error
}

// Store is a synchronous key-value medium. Each Tx call made directly on
// the store is atomic on its own. Update runs fn with exclusive write access:
// no other writer, in this process or another one sharing the medium, runs
// between fn's reads and its writes. If fn returns an error nothing it wrote
// is kept and the error is returned unchanged.
type Store interface {
	Tx
	Update(fn func(tx Tx) error) error
}

// querier is satisfied by *sql.DB and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is a Store backed by a single SQLite table.
type DB struct {
	conn    *sql.DB
	dataDir string // empty when wrapping a caller-owned connection
}

// Open opens (creating if needed) the store under baseDir/.pinmap.
func Open(baseDir string) (*DB, error) {
	dataDir := filepath.Join(baseDir, DataDirName)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL keeps readers unblocked while a writer holds the file lock
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	db := &DB{conn: conn, dataDir: dataDir}
	if err := db.ensureSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// New wraps an existing connection. No cross-process lock is taken; the
// caller owns the connection's lifetime.
func New(conn *sql.DB) (*DB, error) {
	db := &DB{conn: conn}
	if err := db.ensureSchema(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) ensureSchema() error {
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	version, err := db.SchemaVersion()
	if err != nil {
		return err
	}
	if version > SchemaVersion {
		return fmt.Errorf("store schema v%d is newer than this binary (v%d)", version, SchemaVersion)
	}
	if version < SchemaVersion {
		_, err := db.conn.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`,
			strconv.Itoa(SchemaVersion))
		if err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}
	return nil
}

// SchemaVersion returns the stored schema version, 0 if unset.
func (db *DB) SchemaVersion() (int, error) {
	var v string
	err := db.conn.QueryRow(`SELECT value FROM schema_info WHERE key = 'version'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", v, err)
	}
	return n, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DataDir returns the directory holding the database, or "" for wrapped
// connections.
func (db *DB) DataDir() string {
	return db.dataDir
}

// Get implements Tx.
func (db *DB) Get(key string) ([]byte, error) {
	return getKey(context.Background(), db.conn, key)
}

// Set implements Tx.
func (db *DB) Set(key string, value []byte) error {
	return db.withWriteLock(func() error {
		return setKey(context.Background(), db.conn, key, value)
	})
}

// Delete implements Tx.
func (db *DB) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return db.withWriteLock(func() error {
		return deleteKeys(context.Background(), db.conn, keys)
	})
}

// Update implements Store. fn runs on a single connection inside a
// BEGIN IMMEDIATE transaction while the cross-process write lock is held.
func (db *DB) Update(fn func(tx Tx) error) error {
	return db.withWriteLock(func() error {
		ctx := context.Background()
		c, err := db.conn.Conn(ctx)
		if err != nil {
			return fmt.Errorf("acquire connection: %w", err)
		}
		defer c.Close()

		if _, err := c.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		if err := fn(&connTx{ctx: ctx, q: c}); err != nil {
			c.ExecContext(ctx, "ROLLBACK")
			return err
		}
		if _, err := c.ExecContext(ctx, "COMMIT"); err != nil {
			c.ExecContext(ctx, "ROLLBACK")
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
}

// connTx is the Tx handed to Update callbacks.
type connTx struct {
	ctx context.Context
	q   querier
}

func (t *connTx) Get(key string) ([]byte, error) { return getKey(t.ctx, t.q, key) }

func (t *connTx) Set(key string, value []byte) error { return setKey(t.ctx, t.q, key, value) }

func (t *connTx) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return deleteKeys(t.ctx, t.q, keys)
}

func getKey(ctx context.Context, q querier, key string) ([]byte, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(value), nil
}

func setKey(ctx context.Context, q querier, key string, value []byte) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, string(value))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func deleteKeys(ctx context.Context, q querier, keys []string) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM kv WHERE key IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}

// Keys lists stored keys in lexical order.
func (db *DB) Keys() ([]string, error) {
	rows, err := db.conn.Query(`SELECT key FROM kv`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, rows.Err()
}

// withWriteLock runs fn under the cross-process write lock.
func (db *DB) withWriteLock(fn func() error) error {
	if db.dataDir == "" {
		return fn()
	}
	locker := newWriteLocker(db.dataDir)
	if err := locker.acquire(defaultTimeout); err != nil {
		return err
	}
	defer locker.release()
	return fn()
}
