package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Stats accumulates across every execute_for_all_animas run of one workflow.
type Stats struct {
	TotalRuns       int
	SuccessfulRuns  int
	FailedRuns      int
	AnimasProcessed int
	ItemsCreated    int
}

// Status is the uniform per-workflow report §4.8 mandates.
type Status struct {
	Workflow      string
	Running       bool
	IntervalHours float64
	LastRun       time.Time
	NextRun       time.Time
	Stats         Stats
}

// registration holds one workflow's in-process scheduling state: its
// per-anima concurrency guard and its periodic-run bookkeeping.
type registration struct {
	wf Workflow

	mu      sync.Mutex
	running map[string]struct{}
	stats   Stats
	lastRun time.Time
	nextRun time.Time
	active  bool // true while the periodic ticker loop is running
	stopCh  chan struct{}
}

// Orchestrator is the process-wide singleton managing every registered
// workflow's periodic and on-demand executions (§4.8).
type Orchestrator struct {
	animas AnimaLister

	mu        sync.Mutex
	workflows map[string]*registration

	debounce *debouncer
}

// NewOrchestrator builds an Orchestrator. animas is used by
// ExecuteForAllAnimas to fan a workflow out across every anima.
func NewOrchestrator(animas AnimaLister) *Orchestrator {
	return &Orchestrator{
		animas:    animas,
		workflows: make(map[string]*registration),
		debounce:  newDebouncer(),
	}
}

// Register adds a workflow under its own name. Registering twice under the
// same name replaces the prior registration's workflow reference but keeps
// its running set and stats, matching replace_existing job semantics.
func (o *Orchestrator) Register(wf Workflow) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if existing, ok := o.workflows[wf.Name()]; ok {
		existing.wf = wf
		return
	}
	o.workflows[wf.Name()] = &registration{
		wf:      wf,
		running: make(map[string]struct{}),
	}
}

func (o *Orchestrator) lookup(name string) (*registration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rs, ok := o.workflows[name]
	if !ok {
		return nil, fmt.Errorf("scheduler: unknown workflow %q", name)
	}
	return rs, nil
}

// Start launches the periodic ticker loop for every registered workflow.
// Idempotent: a workflow whose loop is already running is left alone.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	regs := make([]*registration, 0, len(o.workflows))
	for _, rs := range o.workflows {
		regs = append(regs, rs)
	}
	o.mu.Unlock()

	for _, rs := range regs {
		o.startOne(ctx, rs)
	}
}

func (o *Orchestrator) startOne(ctx context.Context, rs *registration) {
	rs.mu.Lock()
	if rs.active {
		rs.mu.Unlock()
		return
	}
	rs.active = true
	rs.stopCh = make(chan struct{})
	interval := time.Duration(rs.wf.IntervalHours() * float64(time.Hour))
	rs.nextRun = time.Now().Add(interval)
	stopCh := rs.stopCh
	name := rs.wf.Name()
	rs.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		log.Printf("scheduler: workflow %s registered, interval=%v", name, interval)

		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				if _, err := o.ExecuteForAllAnimas(ctx, name, "scheduled"); err != nil {
					log.Printf("scheduler: workflow %s scheduled run failed: %v", name, err)
				}
				rs.mu.Lock()
				rs.nextRun = time.Now().Add(interval)
				rs.mu.Unlock()
			}
		}
	}()
}

// Stop halts every workflow's periodic loop. Idempotent.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	regs := make([]*registration, 0, len(o.workflows))
	for _, rs := range o.workflows {
		regs = append(regs, rs)
	}
	o.mu.Unlock()

	for _, rs := range regs {
		rs.mu.Lock()
		if rs.active {
			close(rs.stopCh)
			rs.active = false
		}
		rs.mu.Unlock()
	}
	o.debounce.stopAll()
}

// ExecuteForAnima runs workflow for a single anima, guarded by the
// workflow's in-process running-anima set: a second call for the same
// anima while one is in flight is reported as skipped, not queued.
func (o *Orchestrator) ExecuteForAnima(ctx context.Context, workflow, animaID, triggerSource string) (Result, error) {
	rs, err := o.lookup(workflow)
	if err != nil {
		return Result{}, err
	}

	rs.mu.Lock()
	if _, ok := rs.running[animaID]; ok {
		rs.mu.Unlock()
		return Result{AnimaID: animaID, Success: true, Skipped: true, Reason: "already_running"}, nil
	}
	rs.running[animaID] = struct{}{}
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		delete(rs.running, animaID)
		rs.mu.Unlock()
	}()

	res := rs.wf.ExecuteForAnima(ctx, animaID, triggerSource)
	return res, nil
}

// staleThreshold bounds how long a workflow may sit RUNNING before the next
// full sweep auto-fails it; only the dream workflow implements staleSweeper
// today (§4.7's 60-minute threshold), but the hook is workflow-agnostic.
const staleThreshold = 60 * time.Minute

// staleSweeper is implemented by workflows that track long-lived RUNNING
// state the orchestrator should recover before a fresh fan-out, the way
// original_source's DreamerScheduler overrides execute_for_all_animas to
// auto-fail stale sessions first.
type staleSweeper interface {
	StaleSweep(ctx context.Context, olderThan time.Time) (int, error)
}

// ExecuteForAllAnimas fans workflow out across every anima in parallel and
// aggregates the results into Stats, which it also folds into the
// workflow's running totals.
func (o *Orchestrator) ExecuteForAllAnimas(ctx context.Context, workflow, triggerSource string) (Stats, error) {
	rs, err := o.lookup(workflow)
	if err != nil {
		return Stats{}, err
	}

	if sweeper, ok := rs.wf.(staleSweeper); ok {
		if n, err := sweeper.StaleSweep(ctx, time.Now().Add(-staleThreshold)); err != nil {
			log.Printf("scheduler: workflow %s stale sweep failed: %v", workflow, err)
		} else if n > 0 {
			log.Printf("scheduler: workflow %s recovered %d stale session(s)", workflow, n)
		}
	}

	runStart := time.Now()
	animas, err := o.animas.ListAllAnimas(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("scheduler: list animas for %s: %w", workflow, err)
	}

	var wg sync.WaitGroup
	results := make([]Result, len(animas))
	for i, a := range animas {
		wg.Add(1)
		go func(i int, animaID string) {
			defer wg.Done()
			res, err := o.ExecuteForAnima(ctx, workflow, animaID, triggerSource)
			if err != nil {
				res = Result{AnimaID: animaID, Success: false, Error: err.Error()}
			}
			results[i] = res
		}(i, a.ID)
	}
	wg.Wait()

	round := Stats{AnimasProcessed: len(animas)}
	allOK := true
	for _, r := range results {
		if r.Success {
			round.ItemsCreated += itemCreated(r)
		} else {
			allOK = false
		}
	}
	round.TotalRuns = 1
	if allOK {
		round.SuccessfulRuns = 1
	} else {
		round.FailedRuns = 1
	}

	rs.mu.Lock()
	rs.stats.TotalRuns += round.TotalRuns
	rs.stats.SuccessfulRuns += round.SuccessfulRuns
	rs.stats.FailedRuns += round.FailedRuns
	rs.stats.AnimasProcessed += round.AnimasProcessed
	rs.stats.ItemsCreated += round.ItemsCreated
	rs.lastRun = runStart
	cumulative := rs.stats
	rs.mu.Unlock()

	return cumulative, nil
}

func itemCreated(r Result) int {
	if !r.Skipped && r.ItemID != "" {
		return 1
	}
	return 0
}

// TriggerManual dispatches a manual invocation: single-anima execution when
// animaID is non-empty, otherwise a full fan-out.
func (o *Orchestrator) TriggerManual(ctx context.Context, workflow string, animaID string) (any, error) {
	if animaID != "" {
		return o.ExecuteForAnima(ctx, workflow, animaID, "manual")
	}
	return o.ExecuteForAllAnimas(ctx, workflow, "manual")
}

// Status reports workflow's current uniform status.
func (o *Orchestrator) Status(workflow string) (Status, error) {
	rs, err := o.lookup(workflow)
	if err != nil {
		return Status{}, err
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	return Status{
		Workflow:      rs.wf.Name(),
		Running:       rs.active,
		IntervalHours: rs.wf.IntervalHours(),
		LastRun:       rs.lastRun,
		NextRun:       rs.nextRun,
		Stats:         rs.stats,
	}, nil
}
