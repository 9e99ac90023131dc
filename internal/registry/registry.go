// Package registry owns the in-memory task and group tables: the single
// source of truth the dispatch loop mutates. Every exported method assumes
// the caller is the dispatch loop goroutine — the registry itself takes no
// lock, matching SPEC_FULL.md §5's single-owner model (see internal/dispatch).
//
// Grounded on the teacher's internal/roles/auditor/auditor.go persistence
// idiom (loadStats/saveStats around a mutex-free hot path, periodic flush to
// disk) generalized from a stats blob to the full task/group table, and on
// original_source/lib/tests/settings_backward_compatibility.rs for the
// defaults-then-overlay restore contract.
package registry

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"pueued/internal/logstore"
	"pueued/internal/perrors"
	"pueued/internal/types"
)

// snapshot is the on-disk shape written to state.yml. Every field is
// optional on read so an older snapshot missing newer fields still
// deserializes — SPEC_FULL.md §6's backward-compatibility contract.
type snapshot struct {
	NextId int                     `yaml:"next_id"`
	Tasks  map[int]*types.Task     `yaml:"tasks"`
	Groups map[string]*types.Group `yaml:"groups"`
}

// Registry is the task/group table plus the id counter.
type Registry struct {
	tasks   map[int]*types.Task
	groups  map[string]*types.Group
	nextId  int
	dirty   bool
	statePath string
	logs    *logstore.Store

	// defaultParallelism seeds the default group when no state.yml exists yet
	// (or an older one predates the group). It has no effect once the group
	// is persisted — config changes to it only take hold via `pueue group`.
	defaultParallelism int
}

// New creates an empty Registry with just the default group at the given
// parallelism, rooted at stateDir for persistence (state.yml lives at
// stateDir/state.yml).
func New(stateDir string, logs *logstore.Store, defaultParallelism int) *Registry {
	if defaultParallelism <= 0 {
		defaultParallelism = 1
	}
	r := &Registry{
		tasks:              make(map[int]*types.Task),
		groups:             make(map[string]*types.Group),
		nextId:             0,
		statePath:          filepath.Join(stateDir, "state.yml"),
		logs:               logs,
		defaultParallelism: defaultParallelism,
	}
	r.groups[types.DefaultGroup] = &types.Group{Name: types.DefaultGroup, Parallelism: defaultParallelism}
	return r
}

// Enqueue assigns the next id and inserts a task per spec. Status is Queued
// unless spec.Stashed (→ Stashed) or any dependency is still non-terminal in
// a configuration where the caller wants it held until deps resolve (→
// Locked). Returns perrors.UnknownGroup if spec.Group is set and absent.
func (r *Registry) Enqueue(spec types.TaskSpec) (*types.Task, error) {
	group := spec.Group
	if group == "" {
		group = types.DefaultGroup
	}
	if _, ok := r.groups[group]; !ok {
		return nil, perrors.New(perrors.UnknownGroup, "registry.enqueue", nil)
	}

	status := types.StatusQueued
	if spec.Stashed {
		status = types.StatusStashed
	} else if r.hasUnresolvedDeps(spec.Dependencies) {
		status = types.StatusLocked
	}

	id := r.nextId
	r.nextId++
	t := &types.Task{
		Id:            id,
		Command:       spec.Command,
		WorkingDir:    spec.WorkingDir,
		Envs:          spec.Envs,
		Group:         group,
		Label:         spec.Label,
		Dependencies:  spec.Dependencies,
		EnqueuedAt:    nowUTC(),
		EarliestStart: spec.EarliestStart,
		Status:        status,
	}
	r.tasks[id] = t
	r.dirty = true
	return t, nil
}

func (r *Registry) hasUnresolvedDeps(deps []int) bool {
	for _, d := range deps {
		if dep, ok := r.tasks[d]; ok && dep.IsNonTerminal() {
			return true
		}
	}
	return false
}

// ReleaseLocked transitions every Locked task whose dependencies are now all
// terminal to Queued. Called by the scheduler before each admission pass.
func (r *Registry) ReleaseLocked() {
	for _, t := range r.tasks {
		if t.Status != types.StatusLocked {
			continue
		}
		if !r.hasUnresolvedDeps(t.Dependencies) {
			t.Status = types.StatusQueued
			r.dirty = true
		}
	}
}

// ReleaseStashed transitions a Stashed task to Queued on explicit request.
func (r *Registry) ReleaseStashed(id int) error {
	t, ok := r.tasks[id]
	if !ok {
		return perrors.New(perrors.UnknownTask, "registry.release_stashed", nil)
	}
	if t.Status != types.StatusStashed {
		return perrors.New(perrors.IllegalTransition, "registry.release_stashed", nil)
	}
	t.Status = types.StatusQueued
	r.dirty = true
	return nil
}

// Get returns the task with the given id, or perrors.UnknownTask.
func (r *Registry) Get(id int) (*types.Task, error) {
	t, ok := r.tasks[id]
	if !ok {
		return nil, perrors.New(perrors.UnknownTask, "registry.get", nil)
	}
	return t, nil
}

// Lookup resolves a filter to an ordered (ascending id) list of tasks.
func (r *Registry) Lookup(f types.Filter) []*types.Task {
	var out []*types.Task
	for _, t := range r.tasks {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

// All returns every task ordered by ascending id.
func (r *Registry) All() []*types.Task { return r.Lookup(types.Filter{}) }

// allowedTransitions enumerates the edges of the state diagram in
// SPEC_FULL.md §4.4. Done is a sink: no outgoing edges.
var allowedTransitions = map[types.Status][]types.Status{
	types.StatusQueued:  {types.StatusRunning, types.StatusDone},
	types.StatusStashed: {types.StatusQueued},
	types.StatusLocked:  {types.StatusQueued, types.StatusDone},
	types.StatusRunning: {types.StatusPaused, types.StatusDone},
	types.StatusPaused:  {types.StatusRunning, types.StatusDone},
	types.StatusDone:    {},
}

// MutateStatus applies a transition, rejecting any edge not present in
// allowedTransitions.
func (r *Registry) MutateStatus(id int, newStatus types.Status) error {
	t, ok := r.tasks[id]
	if !ok {
		return perrors.New(perrors.UnknownTask, "registry.mutate_status", nil)
	}
	if t.Status == newStatus {
		return nil
	}
	for _, allowed := range allowedTransitions[t.Status] {
		if allowed == newStatus {
			t.Status = newStatus
			r.dirty = true
			return nil
		}
	}
	return perrors.New(perrors.IllegalTransition, "registry.mutate_status", nil)
}

// Finish marks id Done with the given exit info, the one entry point for
// reaching a terminal status (keeps ExitInfo and status in lockstep).
func (r *Registry) Finish(id int, kind types.DoneKind, info types.ExitInfo) error {
	t, ok := r.tasks[id]
	if !ok {
		return perrors.New(perrors.UnknownTask, "registry.finish", nil)
	}
	if t.Status != types.StatusRunning && t.Status != types.StatusPaused && t.Status != types.StatusQueued && t.Status != types.StatusLocked {
		return perrors.New(perrors.IllegalTransition, "registry.finish", nil)
	}
	info.DoneKind = kind
	t.Status = types.StatusDone
	t.Exit = &info
	r.dirty = true
	return nil
}

// FailDependents transitions every Queued/Locked task depending (directly)
// on id to Done{dependency-failed} without spawning, per SPEC_FULL.md §4.4
// rule 3. Returns the ids that were failed so callers can recurse transitively.
func (r *Registry) FailDependents(id int) []int {
	var failed []int
	for _, t := range r.tasks {
		if t.Status != types.StatusQueued && t.Status != types.StatusLocked {
			continue
		}
		for _, d := range t.Dependencies {
			if d == id {
				now := nowUTC()
				_ = r.Finish(t.Id, types.DoneDependencyFailed, types.ExitInfo{Start: now, End: now})
				failed = append(failed, t.Id)
				break
			}
		}
	}
	return failed
}

// DependenciesTerminal reports whether every dependency of t is terminal, and
// whether any of them failed (failure/killed/dependency-failed) — the two
// facts the scheduler's admission predicate needs (SPEC_FULL.md §4.4 rule 3).
func (r *Registry) DependenciesTerminal(t *types.Task) (allTerminal, anyFailed bool) {
	allTerminal = true
	for _, d := range t.Dependencies {
		dep, ok := r.tasks[d]
		if !ok || dep.IsNonTerminal() {
			allTerminal = false
			continue
		}
		if dep.Exit != nil && dep.Exit.DoneKind != types.DoneSuccess {
			anyFailed = true
		}
	}
	return allTerminal, anyFailed
}

// RunningAndPausedCount returns the count of Running+Paused tasks in group.
func (r *Registry) RunningAndPausedCount(group string) int {
	n := 0
	for _, t := range r.tasks {
		if t.Group == group && (t.Status == types.StatusRunning || t.Status == types.StatusPaused) {
			n++
		}
	}
	return n
}

// Clean removes terminal tasks matching f from the registry and asks the Log
// Store to drop their files. Returns the removed ids.
func (r *Registry) Clean(f types.Filter) []int {
	var removed []int
	for id, t := range r.tasks {
		if !t.IsTerminal() || !f.Matches(t) {
			continue
		}
		if r.logs != nil {
			for _, err := range r.logs.Remove(id) {
				slog.Warn("registry: clean log removal", "task_id", id, "error", err)
			}
		}
		delete(r.tasks, id)
		removed = append(removed, id)
	}
	if len(removed) > 0 {
		r.dirty = true
	}
	sort.Ints(removed)
	return removed
}

// --- Group table ---

// Group returns the named group, or perrors.UnknownGroup.
func (r *Registry) Group(name string) (*types.Group, error) {
	g, ok := r.groups[name]
	if !ok {
		return nil, perrors.New(perrors.UnknownGroup, "registry.group", nil)
	}
	return g, nil
}

// Groups returns every group, in name order.
func (r *Registry) Groups() []*types.Group {
	out := make([]*types.Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AddGroup inserts a new group with the given parallelism limit (1 when
// limit <= 0). No-op if the group already exists.
func (r *Registry) AddGroup(name string, parallelism int) *types.Group {
	if g, ok := r.groups[name]; ok {
		return g
	}
	if parallelism <= 0 {
		parallelism = 1
	}
	g := &types.Group{Name: name, Parallelism: parallelism}
	r.groups[name] = g
	r.dirty = true
	return g
}

// RemoveGroup deletes a group, rejecting the request while any non-terminal
// task references it (SPEC_FULL.md §3 invariant) or while it's the default.
func (r *Registry) RemoveGroup(name string) error {
	if name == types.DefaultGroup {
		return perrors.New(perrors.IllegalTransition, "registry.remove_group", nil)
	}
	if _, ok := r.groups[name]; !ok {
		return perrors.New(perrors.UnknownGroup, "registry.remove_group", nil)
	}
	for _, t := range r.tasks {
		if t.Group == name && t.IsNonTerminal() {
			return perrors.New(perrors.IllegalTransition, "registry.remove_group", nil)
		}
	}
	delete(r.groups, name)
	r.dirty = true
	return nil
}

// SetLimit changes a group's parallelism limit.
func (r *Registry) SetLimit(name string, limit int) error {
	g, ok := r.groups[name]
	if !ok {
		return perrors.New(perrors.UnknownGroup, "registry.set_limit", nil)
	}
	g.Parallelism = limit
	r.dirty = true
	return nil
}

// SetPaused sets a group's pause flag.
func (r *Registry) SetPaused(name string, paused bool) error {
	g, ok := r.groups[name]
	if !ok {
		return perrors.New(perrors.UnknownGroup, "registry.set_paused", nil)
	}
	g.Paused = paused
	r.dirty = true
	return nil
}

// ResetAll clears every task from the registry (used by the Reset message,
// after the caller has killed non-terminal tasks). Groups survive a reset.
func (r *Registry) ResetAll() {
	r.tasks = make(map[int]*types.Task)
	r.dirty = true
}

// --- Persistence ---

// Dirty reports whether the registry has unpersisted mutations.
func (r *Registry) Dirty() bool { return r.dirty }

// Flush writes the registry to state.yml atomically (write-to-temp, then
// rename) if dirty, or unconditionally if force is true. Clears the dirty
// flag on success.
func (r *Registry) Flush(force bool) error {
	if !r.dirty && !force {
		return nil
	}
	snap := snapshot{NextId: r.nextId, Tasks: r.tasks, Groups: r.groups}
	data, err := yaml.Marshal(snap)
	if err != nil {
		return perrors.New(perrors.Generic, "registry.flush", err)
	}
	dir := filepath.Dir(r.statePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return perrors.New(perrors.Io, "registry.flush", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.yml")
	if err != nil {
		return perrors.New(perrors.Io, "registry.flush", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return perrors.New(perrors.Io, "registry.flush", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return perrors.New(perrors.Io, "registry.flush", err)
	}
	if err := os.Rename(tmpPath, r.statePath); err != nil {
		os.Remove(tmpPath)
		return perrors.New(perrors.Io, "registry.flush", err)
	}
	r.dirty = false
	return nil
}

// Load restores the registry from state.yml. Absence of the file is not an
// error — a fresh registry just stays empty. Any task found Running/Paused
// is transitioned to Done{killed} since the supervising process is gone
// (SPEC_FULL.md §4.2 persistence contract).
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return perrors.New(perrors.Io, "registry.load", err)
	}
	var snap snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return perrors.New(perrors.Generic, "registry.load", err)
	}

	if snap.Tasks == nil {
		snap.Tasks = make(map[int]*types.Task)
	}
	if snap.Groups == nil {
		snap.Groups = make(map[string]*types.Group)
	}
	if _, ok := snap.Groups[types.DefaultGroup]; !ok {
		snap.Groups[types.DefaultGroup] = &types.Group{Name: types.DefaultGroup, Parallelism: r.defaultParallelism}
	}

	now := nowUTC()
	for _, t := range snap.Tasks {
		if t.Status == types.StatusRunning || t.Status == types.StatusPaused {
			t.Status = types.StatusDone
			t.Exit = &types.ExitInfo{DoneKind: types.DoneKilled, Start: now, End: now}
		}
	}

	r.tasks = snap.Tasks
	r.groups = snap.Groups
	r.nextId = snap.NextId
	r.dirty = false
	return nil
}

func nowUTC() time.Time { return time.Now().UTC() }
