package store

import (
	"context"
	"database/sql"

	"github.com/scrypster/ltam/internal/tenancy"
)

// Querier is satisfied by both *sql.DB and *sql.Tx. Store method bodies are
// written against it so the same code runs whether or not the caller opened
// a tenancy.Session: inside a session the tenant-scoped transaction (and its
// row-level "app.current_user" setting) is used, otherwise the store falls
// back to a plain pooled connection.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// QuerierFromContext picks the tenant session's transaction if ctx carries
// one, otherwise db itself. Every store method that needs to run a query
// calls this first.
func QuerierFromContext(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := tenancy.TxFromContext(ctx); ok {
		return tx
	}
	return db
}
