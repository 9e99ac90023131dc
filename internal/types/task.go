// Package types holds the data model shared by the daemon and client: tasks,
// groups, statuses and filters. The wire envelope lives in internal/wire.
package types

import "time"

// DefaultGroup is the group every task belongs to unless it names another.
const DefaultGroup = "default"

// Status is a task's lifecycle state. See the state diagram in SPEC_FULL.md §4.4.
type Status string

const (
	StatusQueued  Status = "Queued"
	StatusStashed Status = "Stashed"
	StatusLocked  Status = "Locked"
	StatusRunning Status = "Running"
	StatusPaused  Status = "Paused"
	StatusDone    Status = "Done"
)

// DoneKind refines a Status of Done into why the task stopped.
type DoneKind string

const (
	DoneSuccess          DoneKind = "success"
	DoneFailure          DoneKind = "failure"
	DoneKilled           DoneKind = "killed"
	DoneDependencyFailed DoneKind = "dependency-failed"
)

// ExitInfo is populated once a task reaches Status Done.
type ExitInfo struct {
	ExitCode  *int      `yaml:"exit_code,omitempty" json:"exit_code,omitempty"`
	Signal    string    `yaml:"signal,omitempty" json:"signal,omitempty"`
	Start     time.Time `yaml:"start" json:"start"`
	End       time.Time `yaml:"end" json:"end"`
	DoneKind  DoneKind  `yaml:"done_kind,omitempty" json:"done_kind,omitempty"`
}

// Task is one submitted command and its lifecycle metadata.
//
// Invariants (SPEC_FULL.md §3):
//   - Id is unique and never recycled.
//   - Status transitions follow the diagram in SPEC_FULL.md §4.4.
//   - A task in Running/Paused has exactly one live process handle (held by the
//     Supervisor, not serialized here — see internal/supervisor).
//   - Dependencies must reference already-recorded ids.
//   - Log files exist from spawn until the task is cleaned.
type Task struct {
	Id           int               `yaml:"id" json:"id"`
	Command      string            `yaml:"command" json:"command"`
	WorkingDir   string            `yaml:"working_dir,omitempty" json:"working_dir,omitempty"`
	Envs         map[string]string `yaml:"envs,omitempty" json:"envs,omitempty"`
	Group        string            `yaml:"group" json:"group"`
	Label        *string           `yaml:"label,omitempty" json:"label,omitempty"`
	Dependencies []int             `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	EnqueuedAt   time.Time         `yaml:"enqueued_at" json:"enqueued_at"`
	EarliestStart *time.Time       `yaml:"earliest_start,omitempty" json:"earliest_start,omitempty"`
	Status       Status            `yaml:"status" json:"status"`
	Exit         *ExitInfo         `yaml:"exit,omitempty" json:"exit,omitempty"`

	// PendingPause is set by a Pause{wait:true} request until the signal is
	// actually delivered; see doPause in internal/dispatch.
	PendingPause bool `yaml:"-" json:"pending_pause,omitempty"`
}

// IsTerminal reports whether the task's status is a Done{...} sink.
func (t *Task) IsTerminal() bool { return t.Status == StatusDone }

// IsNonTerminal is the complement used everywhere a group's running count or a
// registry clean/reset pass needs "still alive".
func (t *Task) IsNonTerminal() bool { return !t.IsTerminal() }

// Group is a named bucket of tasks with its own parallelism limit and pause flag.
type Group struct {
	Name        string `yaml:"name" json:"name"`
	Parallelism int    `yaml:"parallelism" json:"parallelism"`
	Paused      bool   `yaml:"paused" json:"paused"`
	// Callback is an optional command template run on task completion, with
	// %id%, %exit_code%, %group% substitution tokens (SPEC_FULL.md §4.3 addendum).
	Callback string `yaml:"callback,omitempty" json:"callback,omitempty"`
}

// Filter selects a subset of tasks for lookup/clean operations. A zero-value
// Filter matches every task.
type Filter struct {
	Ids       []int      `json:"ids,omitempty"`
	Statuses  []Status   `json:"statuses,omitempty"`
	DoneKinds []DoneKind `json:"done_kinds,omitempty"`
	Group     string     `json:"group,omitempty"`
}

// Matches reports whether t satisfies f. An empty field in f is not a constraint.
func (f Filter) Matches(t *Task) bool {
	if len(f.Ids) > 0 {
		found := false
		for _, id := range f.Ids {
			if id == t.Id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if s == t.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.DoneKinds) > 0 {
		found := false
		for _, k := range f.DoneKinds {
			if t.Exit != nil && t.Exit.DoneKind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Group != "" && f.Group != t.Group {
		return false
	}
	return true
}

// TaskSpec is the client-supplied request to enqueue a new task.
type TaskSpec struct {
	Command       string            `json:"command"`
	WorkingDir    string            `json:"working_dir,omitempty"`
	Envs          map[string]string `json:"envs,omitempty"`
	Group         string            `json:"group,omitempty"`
	Label         *string           `json:"label,omitempty"`
	Dependencies  []int             `json:"dependencies,omitempty"`
	EarliestStart *time.Time        `json:"earliest_start,omitempty"`
	Stashed       bool              `json:"stashed,omitempty"`
}
