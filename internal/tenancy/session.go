// Package tenancy implements the per-tenant transactional envelope (§4.3):
// resolving an entity to its owning user, opening a database session bound
// to that owner, and enforcing that all writes within the scope commit or
// roll back together.
package tenancy

import (
	"context"
	"database/sql"
	"fmt"
)

type ctxKey int

const txKey ctxKey = iota

// Session is a database session scoped to exactly one owning user. Row-level
// predicates at the storage layer consult the transaction-local
// "app.current_user" setting this session establishes at BEGIN; the scope
// is not safe to share across goroutines, but independent sessions on
// independent goroutines may run concurrently (§5).
type Session struct {
	tx      *sql.Tx
	ownerID string
	ctx     context.Context
}

// Context returns a context carrying this session's transaction, for
// passing to store methods that need to participate in the same atomic
// unit of work.
func (s *Session) Context() context.Context { return s.ctx }

// Tx returns the underlying transaction directly, for callers (e.g. the
// store package) that need raw access.
func (s *Session) Tx() *sql.Tx { return s.tx }

// OwnerID returns the user id this session is scoped to.
func (s *Session) OwnerID() string { return s.ownerID }

// Flush makes writes made so far in this session visible to subsequent
// statements on the same transaction without committing — committing would
// drop the transaction-scoped "app.current_user" setting under connection
// pooling (pgbouncer transaction mode recycles the physical connection,
// and with it any session-local state, the instant a transaction ends).
// Implemented as an immediately-released savepoint, which is a no-op for
// visibility purposes on a single transaction but gives callers an explicit
// checkpoint to reason about and is a safe place to hang future constraint
// deferral or error-recovery logic.
func (s *Session) Flush(ctx context.Context) error {
	if _, err := s.tx.ExecContext(ctx, "SAVEPOINT flush_point"); err != nil {
		return fmt.Errorf("tenancy: flush savepoint: %w", err)
	}
	if _, err := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT flush_point"); err != nil {
		return fmt.Errorf("tenancy: release flush savepoint: %w", err)
	}
	return nil
}

// WithOwnerSession opens a scope bound to ownerID, runs fn, and commits the
// underlying transaction on fn's success or rolls it back on any error
// (including a panic, which is re-raised after rollback). All writes fn
// makes through the session's Context are one atomic transaction.
func WithOwnerSession(ctx context.Context, db *sql.DB, ownerID string, fn func(*Session) error) (err error) {
	tx, beginErr := db.BeginTx(ctx, nil)
	if beginErr != nil {
		return fmt.Errorf("tenancy: begin session: %w", beginErr)
	}

	if _, setErr := tx.ExecContext(ctx, `SELECT set_config('app.current_user', $1, true)`, ownerID); setErr != nil {
		_ = tx.Rollback()
		return fmt.Errorf("tenancy: set owner context: %w", setErr)
	}

	sessCtx := context.WithValue(ctx, txKey, tx)
	sess := &Session{tx: tx, ownerID: ownerID, ctx: sessCtx}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(sess); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("tenancy: commit session: %w", err)
	}
	return nil
}

// TxFromContext retrieves the transaction a WithOwnerSession scope placed
// on ctx, if any. Storage-layer methods use this to participate in the
// caller's tenant session instead of opening their own connection.
func TxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}
