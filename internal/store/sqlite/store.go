package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/scrypster/ltam/internal/store"
)

// Store implements store.Store over modernc.org/sqlite. It is the backend
// ltam-server opens when the storage engine is "sqlite" or unset, for local
// development; production deployments use internal/store/postgres.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open creates (or reuses) the sqlite database at dsn — typically
// "file::memory:?cache=shared" for tests or a file path for local dev — and
// applies the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: open: %w", err)
	}
	// A single shared connection avoids SQLITE_BUSY under WAL-less
	// concurrent access; fine for a test/dev backend that never serves
	// production traffic.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store/sqlite: ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store/sqlite: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func now() time.Time { return time.Now().UTC() }
