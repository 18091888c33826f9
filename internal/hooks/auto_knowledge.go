// Package hooks implements the auto-knowledge hook (§4.10): the detached,
// fire-and-forget trigger that runs the knowledge-synthesis pipeline after
// a memory-synthesis run persists a new Memory.
package hooks

import (
	"context"
	"log"
)

// AutoKnowledge fires detached knowledge-synthesis runs. It satisfies
// internal/synthesis.Hook so a MemorySynthesizer can hold it directly.
type AutoKnowledge struct {
	runner  func(ctx context.Context, memoryID string) error
	enabled func() bool
}

// NewAutoKnowledge builds an AutoKnowledge hook. enabled is polled on every
// Trigger call so a global background-jobs-off flag can disable it without
// re-wiring the collaborator (§4.10: "Disabled when background jobs are
// off (global flag)"). A nil enabled always allows triggering.
func NewAutoKnowledge(runner func(ctx context.Context, memoryID string) error, enabled func() bool) *AutoKnowledge {
	return &AutoKnowledge{runner: runner, enabled: enabled}
}

// Trigger schedules a detached run of the knowledge-synthesis pipeline for
// memoryID. It never blocks the caller and never propagates an error:
// failures are logged and swallowed, matching §4.10 and the fire-and-forget
// background-task contract in §7's propagation policy.
func (a *AutoKnowledge) Trigger(memoryID string) {
	if a.enabled != nil && !a.enabled() {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("hooks: auto-knowledge panic for memory %s: %v", memoryID, r)
			}
		}()
		if err := a.runner(context.Background(), memoryID); err != nil {
			log.Printf("hooks: auto-knowledge run failed for memory %s: %v", memoryID, err)
		}
	}()
}
