// Package serverdb is the storage layer of the reference locations API. It
// runs on SQLite (modernc) for development or Postgres (pgx) in deployments;
// the dialect is picked from the DSN.
package serverdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no location has the requested id.
var ErrNotFound = errors.New("location not found")

// Dialect identifies the SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ServerDB wraps the server database connection.
type ServerDB struct {
	conn    *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
	now     func() time.Time
}

// DialectFor reports which backend a DSN selects. postgres:// and
// postgresql:// URLs use pgx; anything else is a SQLite path.
func DialectFor(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// Open opens the server database and creates the schema if needed.
func Open(dsn string) (*ServerDB, error) {
	dialect := DialectFor(dsn)

	var (
		conn *sql.DB
		err  error
	)
	switch dialect {
	case DialectPostgres:
		conn, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		conn.SetMaxOpenConns(10)
		conn.SetConnMaxIdleTime(5 * time.Minute)

	default:
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		conn, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		conn.SetMaxOpenConns(1)

		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
		if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
		conn.Exec("PRAGMA synchronous=NORMAL")
	}

	db := newServerDB(conn, dialect)
	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func newServerDB(conn *sql.DB, dialect Dialect) *ServerDB {
	placeholder := sq.Question
	if dialect == DialectPostgres {
		placeholder = sq.Dollar
	}
	return &ServerDB{
		conn:    conn,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(placeholder).RunWith(conn),
		now:     time.Now,
	}
}

// Dialect returns the backend in use.
func (db *ServerDB) Dialect() Dialect {
	return db.dialect
}

// Ping checks the database connection is alive.
func (db *ServerDB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close checkpoints the WAL (SQLite) and closes the database connection.
func (db *ServerDB) Close() error {
	if db.dialect == DialectSQLite {
		db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return db.conn.Close()
}

func (db *ServerDB) migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schemaInfoTable); err != nil {
		return fmt.Errorf("create schema_info: %w", err)
	}

	current := db.getSchemaVersion(ctx)
	if current > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}
		for _, stmt := range m.Statements {
			if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
			}
		}
		if err := db.setSchemaVersion(ctx, m.Version); err != nil {
			return fmt.Errorf("set version %d: %w", m.Version, err)
		}
	}
	return nil
}

// SchemaVersion returns the version recorded in schema_info.
func (db *ServerDB) SchemaVersion(ctx context.Context) int {
	return db.getSchemaVersion(ctx)
}

func (db *ServerDB) getSchemaVersion(ctx context.Context) int {
	var version string
	err := db.sb.Select("value").From("schema_info").
		Where(sq.Eq{"key": "version"}).
		QueryRowContext(ctx).Scan(&version)
	if err != nil {
		return 0
	}
	var v int
	fmt.Sscanf(version, "%d", &v)
	return v
}

func (db *ServerDB) setSchemaVersion(ctx context.Context, version int) error {
	_, err := db.sb.Insert("schema_info").
		Columns("key", "value").
		Values("version", fmt.Sprintf("%d", version)).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = excluded.value").
		ExecContext(ctx)
	return err
}
