package postgres

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	_ "github.com/lib/pq" // postgres driver

	"github.com/scrypster/ltam/internal/store"
)

// Store implements store.Store over a *sql.DB connection pool. Methods read
// the current Querier (plain db, or a tenant session's tx) via
// store.QuerierFromContext on every call, so a single Store value is safe
// to share across requests and goroutines.
type Store struct {
	db             *sql.DB
	pgvectorReady  bool
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn, applies the base schema, and attempts to enable
// pgvector and row-level security. Neither pgvector nor RLS availability is
// fatal: a fresh local Postgres without the extension or without
// table-owner privilege still gets a working, merely less isolated, store.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &Store{db: db}

	if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Printf("store/postgres: pgvector extension not available (semantic search disabled): %v", err)
	} else {
		s.pgvectorReady = true
	}

	schema := Schema
	if !s.pgvectorReady {
		// Without the extension the vector type does not exist; store
		// embeddings as their text form so the rest of the schema applies.
		schema = strings.ReplaceAll(Schema, "vector(1536)", "TEXT")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}

	if _, err := db.Exec(RLSPolicies); err != nil {
		log.Printf("store/postgres: row-level security policies not applied (relying on application-level filtering only): %v", err)
	}

	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// PgvectorReady reports whether semantic search can run native cosine
// distance queries against the embedding columns.
func (s *Store) PgvectorReady() bool { return s.pgvectorReady }

func toPgvector(v []float32) pgvector.Vector {
	return pgvector.NewVector(v)
}

func fromPgvector(v pgvector.Vector) []float32 {
	return v.Slice()
}
