package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added tx_id index on block_txs
const currentSchemaVersion = 1

// DefaultCacheSize is the number of tip reads kept in memory.
const DefaultCacheSize = 4096

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var (
	// ErrBlockNotFound is returned when no block exists at a height.
	ErrBlockNotFound = errors.New("block not found")
	// ErrInvalidHeight is returned when a commit or rollback targets a
	// height that does not follow the tip.
	ErrInvalidHeight = errors.New("invalid block height")
)

// Reader is the read side shared by the store, historical views and
// overlays. ok is false when the key is absent or deleted.
type Reader interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
}

// Store is the persisted, block-indexed key/value history of a chain.
// Uses SQLite with a single connection; a session is single-writer.
type Store struct {
	db    *sql.DB
	cache *lru.Cache
	tip   int64 // -1 when no block has been committed
}

type cacheEntry struct {
	value []byte
	ok    bool
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// Pass MemoryPath for a throwaway session. The database is configured
// with:
//   - WAL mode for file databases
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// A second connection to ":memory:" would be a different database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	cache, err := lru.New(DefaultCacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	s := &Store{db: db, cache: cache, tip: -1}
	var tip sql.NullInt64
	if err := db.QueryRow("SELECT MAX(height) FROM blocks").Scan(&tip); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read tip: %w", err)
	}
	if tip.Valid {
		s.tip = tip.Int64
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.cache.Purge()
	return s.db.Close()
}

// TipHeight returns the height of the newest block. ok is false before
// the genesis block has been committed.
func (s *Store) TipHeight() (height uint64, ok bool) {
	if s.tip < 0 {
		return 0, false
	}
	return uint64(s.tip), true
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
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

// migrateToV1 adds the receipt lookup index for databases created before
// the index was part of schema.sql.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_block_txs_tx_id
		ON block_txs(tx_id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
