package tenancy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// EntityKind is the set of entity kinds ResolveOwner knows how to chase to
// an owning user. §4.3 names exactly these four.
type EntityKind string

const (
	KindAnima     EntityKind = "anima"
	KindMemory    EntityKind = "memory"
	KindEvent     EntityKind = "event"
	KindKnowledge EntityKind = "knowledge"
)

// ResolveOwner finds the user id that owns the given entity, bypassing
// row-level filtering entirely: the filter predicate itself needs the
// owner id before it can run, so this query must run outside any tenant
// session (it executes directly against db, never against a session's tx).
// Returns ("", nil) — not an error — when the entity is missing or its
// owner chain is broken, matching §4.3's "returns null" contract; callers
// distinguish "not found" from "transient DB failure" via the returned
// error being non-nil only in the latter case.
func ResolveOwner(ctx context.Context, db *sql.DB, kind EntityKind, id string) (string, error) {
	var query string
	switch kind {
	case KindAnima:
		query = `SELECT user_id FROM animas WHERE id = $1`
	case KindMemory:
		query = `SELECT a.user_id FROM memories m JOIN animas a ON a.id = m.anima_id WHERE m.id = $1`
	case KindEvent:
		query = `SELECT a.user_id FROM events e JOIN animas a ON a.id = e.anima_id WHERE e.id = $1`
	case KindKnowledge:
		query = `SELECT a.user_id FROM knowledge k JOIN animas a ON a.id = k.anima_id WHERE k.id = $1`
	default:
		return "", fmt.Errorf("tenancy: unsupported entity kind %q", kind)
	}

	var ownerID string
	err := db.QueryRowContext(ctx, query, id).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tenancy: resolve owner for %s %s: %w", kind, id, err)
	}
	return ownerID, nil
}
