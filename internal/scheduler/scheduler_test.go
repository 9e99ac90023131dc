package scheduler

import (
	"testing"
	"time"

	"pueued/internal/registry"
	"pueued/internal/types"
)

func TestSyncCreatesAndResizesSemaphores(t *testing.T) {
	reg := registry.New(t.TempDir(), nil, 1)
	reg.AddGroup("builds", 2)

	s := New()
	s.Sync(reg)

	if !s.TryAdmit("builds") || !s.TryAdmit("builds") {
		t.Fatalf("expected 2 admits for a parallelism-2 group")
	}
	if s.TryAdmit("builds") {
		t.Fatalf("expected 3rd admit to fail, group is full")
	}

	// Resizing the group recreates the semaphore without disturbing holders.
	if err := reg.SetLimit("builds", 3); err != nil {
		t.Fatalf("SetLimit: %v", err)
	}
	s.Sync(reg)
	if !s.TryAdmit("builds") {
		t.Fatalf("expected admit after limit raised to 3")
	}
}

func TestSyncRemovesDeletedGroups(t *testing.T) {
	reg := registry.New(t.TempDir(), nil, 1)
	reg.AddGroup("ephemeral", 1)
	s := New()
	s.Sync(reg)

	if err := reg.RemoveGroup("ephemeral"); err != nil {
		t.Fatalf("RemoveGroup: %v", err)
	}
	s.Sync(reg)

	if s.TryAdmit("ephemeral") {
		t.Fatalf("expected TryAdmit on a removed group to fail closed")
	}
}

func TestReleaseReturnsSlot(t *testing.T) {
	reg := registry.New(t.TempDir(), nil, 1)
	s := New()
	s.Sync(reg)

	if !s.TryAdmit(types.DefaultGroup) {
		t.Fatalf("expected first admit to succeed")
	}
	if s.TryAdmit(types.DefaultGroup) {
		t.Fatalf("expected second admit to fail before release")
	}
	s.Release(types.DefaultGroup)
	if !s.TryAdmit(types.DefaultGroup) {
		t.Fatalf("expected admit to succeed after release")
	}
}

func TestCandidatesOrderingAndGating(t *testing.T) {
	reg := registry.New(t.TempDir(), nil, 1)
	base, _ := reg.Enqueue(types.TaskSpec{Command: "echo base"})
	dependent, _ := reg.Enqueue(types.TaskSpec{Command: "echo dep", Dependencies: []int{base.Id}})
	future := time.Now().Add(time.Hour)
	delayed, _ := reg.Enqueue(types.TaskSpec{Command: "echo later", EarliestStart: &future})

	cands := Candidates(reg, time.Now())
	if len(cands) != 1 || cands[0].Id != base.Id {
		t.Fatalf("expected only base queued and eligible, got %+v", cands)
	}

	reg.MutateStatus(base.Id, types.StatusRunning)
	reg.Finish(base.Id, types.DoneSuccess, types.ExitInfo{})
	reg.ReleaseLocked()

	cands = Candidates(reg, time.Now())
	found := false
	for _, c := range cands {
		if c.Id == dependent.Id {
			found = true
		}
		if c.Id == delayed.Id {
			t.Fatalf("delayed task should not be a candidate before earliest_start")
		}
	}
	if !found {
		t.Fatalf("expected dependent task to become a candidate once its dependency succeeded")
	}
}

func TestTickSkipsPausedGroups(t *testing.T) {
	reg := registry.New(t.TempDir(), nil, 1)
	reg.Enqueue(types.TaskSpec{Command: "echo hi"})
	reg.SetPaused(types.DefaultGroup, true)

	s := New()
	s.Sync(reg)

	spawned := 0
	Tick(nil, reg, s, func(t *types.Task) error {
		spawned++
		return nil
	})
	if spawned != 0 {
		t.Fatalf("expected no spawns while the default group is paused, got %d", spawned)
	}
}

func TestTickReleasesSlotOnSpawnError(t *testing.T) {
	reg := registry.New(t.TempDir(), nil, 1)
	reg.Enqueue(types.TaskSpec{Command: "echo hi"})

	s := New()
	s.Sync(reg)

	Tick(nil, reg, s, func(t *types.Task) error {
		return errSpawnFailed
	})
	if !s.TryAdmit(types.DefaultGroup) {
		t.Fatalf("expected slot to be released back after spawn failure")
	}
}

var errSpawnFailed = &spawnError{}

type spawnError struct{}

func (e *spawnError) Error() string { return "spawn failed" }
