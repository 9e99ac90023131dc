// Package scheduler decides which Queued tasks are eligible to run right
// now: per-group concurrency is enforced with one semaphore.Weighted per
// group, dependency checks are delegated back to the registry, earliest-start
// gating is checked here, and ties are broken by ascending task id.
//
// Grounded on original_source/daemon/task_handler/messages/mod.rs's
// single-pass admission loop and SPEC_FULL.md §5, which specifies
// golang.org/x/sync/semaphore.Weighted as the direct Go analogue of pueue's
// "count running tasks per group, compare to limit" check.
package scheduler

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/semaphore"

	"pueued/internal/registry"
	"pueued/internal/types"
)

// Scheduler holds one weighted semaphore per group, sized to that group's
// parallelism limit.
type Scheduler struct {
	sems map[string]*semaphore.Weighted
	caps map[string]int
}

// New returns an empty Scheduler; call Sync once the registry's groups are
// known (and again after any set_limit/add_group/remove_group mutation).
func New() *Scheduler {
	return &Scheduler{
		sems: make(map[string]*semaphore.Weighted),
		caps: make(map[string]int),
	}
}

// Sync reconciles the scheduler's semaphores with reg's current group table.
// A semaphore is recreated whenever a group's limit changes — in-flight
// holders of the old semaphore are unaffected (they were already admitted;
// only future TryAcquire calls see the new capacity), matching SPEC_FULL.md
// §5's "never taken back" rule.
func (s *Scheduler) Sync(reg *registry.Registry) {
	seen := make(map[string]bool, len(reg.Groups()))
	for _, g := range reg.Groups() {
		seen[g.Name] = true
		if cap, ok := s.caps[g.Name]; !ok || cap != g.Parallelism {
			s.sems[g.Name] = semaphore.NewWeighted(int64(g.Parallelism))
			s.caps[g.Name] = g.Parallelism
		}
	}
	for name := range s.sems {
		if !seen[name] {
			delete(s.sems, name)
			delete(s.caps, name)
		}
	}
}

// TryAdmit attempts to acquire one slot in group's semaphore. It never
// blocks: a full group simply returns false so the dispatch loop's tick is
// never stalled (SPEC_FULL.md §5).
func (s *Scheduler) TryAdmit(group string) bool {
	sem, ok := s.sems[group]
	if !ok {
		return false
	}
	return sem.TryAcquire(1)
}

// Release returns one slot to group's semaphore, called once a task reaches
// a terminal status.
func (s *Scheduler) Release(group string) {
	sem, ok := s.sems[group]
	if !ok {
		return
	}
	sem.Release(1)
}

// Candidates returns the Queued tasks currently eligible for admission, in
// the order the dispatch loop should attempt to admit them: ascending task
// id within the subset whose earliest_start (if any) has passed and whose
// dependencies are all terminal-and-successful.
//
// reg.ReleaseLocked should be called before Candidates on each tick so
// newly-unlocked tasks are visible as Queued.
func Candidates(reg *registry.Registry, now time.Time) []*types.Task {
	queued := reg.Lookup(types.Filter{Statuses: []types.Status{types.StatusQueued}})
	out := make([]*types.Task, 0, len(queued))
	for _, t := range queued {
		if t.EarliestStart != nil && now.Before(*t.EarliestStart) {
			continue
		}
		allTerminal, anyFailed := reg.DependenciesTerminal(t)
		if !allTerminal || anyFailed {
			// anyFailed tasks are finished as Done{dependency-failed} by
			// FailDependents when the dependency fails and by Tick before it
			// calls Candidates, so this branch is defensive.
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

// Tick runs one admission pass: release locked tasks whose dependencies
// resolved, finish Queued tasks with a failed dependency as
// Done{dependency-failed}, then admit as many eligible Queued tasks as group capacity and
// the supplied spawn function allow. spawn is called with the dispatch
// loop's own spawning logic (Supervisor.Spawn + registry bookkeeping); if it
// returns an error the slot is released back immediately and the task stays
// Queued for the next tick.
func Tick(ctx context.Context, reg *registry.Registry, sched *Scheduler, spawn func(*types.Task) error) {
	reg.ReleaseLocked()
	now := time.Now().UTC()
	for _, t := range reg.Lookup(types.Filter{Statuses: []types.Status{types.StatusQueued}}) {
		if allTerminal, anyFailed := reg.DependenciesTerminal(t); allTerminal && anyFailed {
			_ = reg.Finish(t.Id, types.DoneDependencyFailed, types.ExitInfo{Start: now, End: now})
		}
	}
	for _, t := range Candidates(reg, now) {
		group, err := reg.Group(t.Group)
		if err != nil || group.Paused {
			continue
		}
		if !sched.TryAdmit(t.Group) {
			continue
		}
		if err := spawn(t); err != nil {
			sched.Release(t.Group)
			continue
		}
	}
}
