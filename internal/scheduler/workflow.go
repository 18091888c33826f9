// Package scheduler implements the scheduler orchestrator (§4.8): the
// process-wide singleton that drives periodic and on-demand execution of
// per-anima workflows (memory synthesis, dream curation), with per-workflow
// concurrency guards and a uniform status report.
package scheduler

import (
	"context"

	"github.com/scrypster/ltam/pkg/types"
)

// Result is what one workflow execution reports for a single anima.
type Result struct {
	AnimaID string
	Success bool
	Skipped bool
	Reason  string
	Error   string
	ItemID  string
}

// Workflow is a schedulable unit of per-anima work. Concrete workflows
// (memory synthesis, dream curation) wrap their own pipeline type and
// translate its result into a Result.
type Workflow interface {
	Name() string
	IntervalHours() float64
	ExecuteForAnima(ctx context.Context, animaID string, triggerSource string) Result
}

// AnimaLister enumerates every anima a fan-out execution should visit.
// Satisfied by internal/store.AnimaStore.
type AnimaLister interface {
	ListAllAnimas(ctx context.Context) ([]types.Anima, error)
}
