package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// bind returns the nth positional placeholder for driver ("sqlite" uses
// "?", "postgres" uses "$n").
func bind(driver string, n int) string {
	if driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// userScopedChildTables lists every table holding a direct or indirect
// reference to an anima, in FK-safe (children-before-parents) delete
// order. animas itself is not listed; purgeUser deletes it after these.
var userScopedChildTables = []struct {
	table   string
	where   string // anima_id filter clause, parameterized against the anima subquery
}{
	{"memory_events", "memory_id IN (SELECT id FROM memories WHERE anima_id IN (%s))"},
	{"dream_actions", "session_id IN (SELECT id FROM dream_sessions WHERE anima_id IN (%s))"},
	{"dream_sessions", "anima_id IN (%s)"},
	{"knowledge_audit_log", "knowledge_id IN (SELECT id FROM knowledge WHERE anima_id IN (%s))"},
	{"knowledge", "anima_id IN (%s)"},
	{"memories", "anima_id IN (%s)"},
	{"events", "anima_id IN (%s)"},
	{"synthesis_configs", "anima_id IN (%s)"},
	{"io_configs", "anima_id IN (%s)"},
	{"identities", "anima_id IN (%s)"},
	{"memory_packs", "anima_id IN (%s)"},
}

// purgeUser deletes every row belonging to userID, in FK-safe order,
// preserving the user's own identity (there is no users row in this
// schema; userID is carried only as a column on animas/api_keys, never as
// a row of its own, so "preserving the user row" means simply not writing
// a tombstone for that identity anywhere).
func purgeUser(ctx context.Context, db *sql.DB, driver, userID string, confirm bool) ([]tableCount, error) {
	animaSubquery := fmt.Sprintf("SELECT id FROM animas WHERE user_id = %s", bind(driver, 1))

	var report []tableCount
	for _, t := range userScopedChildTables {
		where := fmt.Sprintf(t.where, animaSubquery)
		n, err := countOrDelete(ctx, db, t.table, where, confirm, userID)
		if err != nil {
			return report, fmt.Errorf("purge user: %s: %w", t.table, err)
		}
		report = append(report, tableCount{table: t.table, count: n})
	}

	n, err := countOrDelete(ctx, db, "api_keys", fmt.Sprintf("user_id = %s", bind(driver, 1)), confirm, userID)
	if err != nil {
		return report, fmt.Errorf("purge user: api_keys: %w", err)
	}
	report = append(report, tableCount{table: "api_keys", count: n})

	n, err = countOrDelete(ctx, db, "animas", fmt.Sprintf("user_id = %s", bind(driver, 1)), confirm, userID)
	if err != nil {
		return report, fmt.Errorf("purge user: animas: %w", err)
	}
	report = append(report, tableCount{table: "animas", count: n})

	return report, nil
}

// cutoffTables lists the fixed set of tables the cutoff mode sweeps, each
// filtered independently on its own created_at column, in the same
// children-before-parents order as userScopedChildTables.
var cutoffTables = []string{
	"memory_events", "dream_actions", "dream_sessions", "knowledge_audit_log",
	"knowledge", "memories", "events", "synthesis_configs", "io_configs",
	"identities", "memory_packs", "api_keys", "animas",
}

func purgeCutoff(ctx context.Context, db *sql.DB, driver string, cutoff time.Time, confirm bool) ([]tableCount, error) {
	var report []tableCount
	for _, table := range cutoffTables {
		where := fmt.Sprintf("created_at > %s", bind(driver, 1))
		n, err := countOrDelete(ctx, db, table, where, confirm, cutoff.UTC())
		if err != nil {
			return report, fmt.Errorf("purge cutoff: %s: %w", table, err)
		}
		report = append(report, tableCount{table: table, count: n})
	}
	return report, nil
}

// countOrDelete always runs the COUNT first (so a dry run and a confirmed
// run report the same number), and only executes the DELETE when confirm
// is true.
func countOrDelete(ctx context.Context, db *sql.DB, table, where string, confirm bool, args ...interface{}) (int64, error) {
	var n int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, where)
	if err := db.QueryRowContext(ctx, countQuery, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	if !confirm || n == 0 {
		return n, nil
	}

	deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE %s", table, where)
	if _, err := db.ExecContext(ctx, deleteQuery, args...); err != nil {
		return n, fmt.Errorf("delete: %w", err)
	}
	return n, nil
}
