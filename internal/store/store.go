// Package store provides persistent storage for GatewayWallet cursors and
// Operation rows, transactional CRUD and filtered selects over a
// driver-agnostic database/sql handle. Postgres (via lib/pq) is the default
// driver because the Watcher's SERIALIZABLE transaction requirement needs
// real snapshot isolation; SQLite (via mattn/go-sqlite3) is kept for local
// development and the test suite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Driver identifies the backing SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Config holds store connection settings, populated from the
// DATABASE_{DRIVER,HOST,PORT,USERNAME,PASSWORD,NAME} env vars.
type Config struct {
	Driver   Driver
	Host     string
	Port     string
	Username string
	Password string
	Name     string // DSN path for sqlite
}

// DSN builds the database/sql data source name for cfg.Driver.
func (c Config) DSN() string {
	switch c.Driver {
	case DriverSQLite:
		return c.Name
	default:
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.Username, c.Password, c.Name)
	}
}

// sqlDriverName maps our Driver to the registered database/sql driver name.
func (c Config) sqlDriverName() string {
	if c.Driver == DriverSQLite {
		return "sqlite3"
	}
	return "postgres"
}

// Store wraps a *sql.DB with the gateway's schema and query set.
type Store struct {
	db     *sql.DB
	driver Driver
}

// New opens the database, pings it, and bootstraps the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open(cfg.sqlDriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// SQLite only supports one writer at a time.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &Store{db: db, driver: cfg.Driver}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// DB returns the underlying connection, for callers that need raw access
// (migrations tooling, health checks).
func (s *Store) DB() *sql.DB { return s.db }

// ph returns the i-th (1-based) placeholder for the store's dialect.
func (s *Store) ph(i int) string {
	if s.driver == DriverSQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", i)
}

func (s *Store) initSchema() error {
	idType := "BIGSERIAL PRIMARY KEY"
	if s.driver == DriverSQLite {
		idType = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS gateway_wallets (
		account_name       TEXT PRIMARY KEY,
		last_operation     INTEGER NOT NULL DEFAULT 0,
		last_parsed_block  INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS operations (
		id               %s,
		op_id            INTEGER,
		order_id         TEXT,
		order_type       TEXT NOT NULL,
		asset            TEXT NOT NULL,
		from_account     TEXT NOT NULL,
		to_account       TEXT NOT NULL,
		amount           NUMERIC NOT NULL,
		status           TEXT NOT NULL,
		error            TEXT NOT NULL DEFAULT 'NO_ERROR',
		confirmations    INTEGER NOT NULL DEFAULT 0,
		block_num        INTEGER NOT NULL DEFAULT 0,
		tx_hash          TEXT,
		memo             TEXT,
		tx_created_at    TIMESTAMP,
		tx_expiration    TIMESTAMP,
		created_at       TIMESTAMP NOT NULL,
		updated_at       TIMESTAMP NOT NULL,
		UNIQUE(op_id),
		UNIQUE(order_id),
		UNIQUE(asset, tx_hash)
	);

	CREATE INDEX IF NOT EXISTS idx_operations_status ON operations(status);
	CREATE INDEX IF NOT EXISTS idx_operations_tx_hash ON operations(tx_hash);
	`, idType)

	_, err := s.db.Exec(schema)
	return err
}

// WithSerializableTx runs fn inside a SERIALIZABLE transaction, retrying the
// whole function on serialization failure. On SQLite, which has no true
// serializable isolation, this degrades to retrying on SQLITE_BUSY.
func (s *Store) WithSerializableTx(ctx context.Context, fn func(*sql.Tx) error) error {
	const maxAttempts = 8
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return fmt.Errorf("store: begin tx: %w", err)
		}

		if err := fn(tx); err != nil {
			tx.Rollback()
			if isSerializationFailure(err) {
				lastErr = err
				backoff(attempt)
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if isSerializationFailure(err) {
				lastErr = err
				backoff(attempt)
				continue
			}
			return fmt.Errorf("store: commit: %w", err)
		}
		return nil
	}

	return fmt.Errorf("store: serialization failure, giving up after retries: %w", lastErr)
}

func backoff(attempt int) {
	time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
}

// isSerializationFailure recognizes Postgres SQLSTATE 40001 and SQLite's
// "database is locked"/"database table is locked" busy errors.
func isSerializationFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return containsAny(msg, "40001", "could not serialize access", "database is locked", "database table is locked")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(s) >= len(sub) && indexOf(s, sub) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) int {
	n, m := len(s), len(sub)
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == sub {
			return i
		}
	}
	return -1
}
