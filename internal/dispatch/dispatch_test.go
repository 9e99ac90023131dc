package dispatch

import (
	"context"
	"testing"
	"time"

	"pueued/internal/logstore"
	"pueued/internal/registry"
	"pueued/internal/scheduler"
	"pueued/internal/supervisor"
	"pueued/internal/types"
	"pueued/internal/wire"
)

func newTestLoop(t *testing.T) (*Loop, context.Context, context.CancelFunc) {
	t.Helper()
	dir := t.TempDir()
	logs := logstore.New(dir)
	reg := registry.New(dir, logs, 1)
	sup := supervisor.New(logs)
	sched := scheduler.New()
	loop := New(reg, sup, sched, logs, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	return loop, ctx, cancel
}

func submit(t *testing.T, loop *Loop, ctx context.Context, msgType wire.MessageType, payload any) wire.Response {
	t.Helper()
	resp, err := loop.Submit(ctx, wire.Message{ID: "t", Type: msgType, Payload: payload})
	if err != nil {
		t.Fatalf("Submit(%s): %v", msgType, err)
	}
	return resp
}

func TestSubmitEnqueueReturnsQueuedTask(t *testing.T) {
	loop, ctx, cancel := newTestLoop(t)
	defer cancel()

	resp := submit(t, loop, ctx, wire.MsgEnqueue, types.TaskSpec{Command: "true", Group: types.DefaultGroup})
	if !resp.Ok {
		t.Fatalf("expected Ok, got %+v", resp)
	}
	task, ok := resp.Payload.(*types.Task)
	if !ok {
		t.Fatalf("expected *types.Task payload, got %T", resp.Payload)
	}
	if task.Status != types.StatusQueued {
		t.Fatalf("expected queued status, got %s", task.Status)
	}
}

func TestSubmitStatusReturnsEveryTask(t *testing.T) {
	loop, ctx, cancel := newTestLoop(t)
	defer cancel()

	submit(t, loop, ctx, wire.MsgEnqueue, types.TaskSpec{Command: "true", Group: types.DefaultGroup})
	submit(t, loop, ctx, wire.MsgEnqueue, types.TaskSpec{Command: "true", Group: types.DefaultGroup})

	resp := submit(t, loop, ctx, wire.MsgStatus, nil)
	tasks, ok := resp.Payload.([]*types.Task)
	if !ok {
		t.Fatalf("expected []*types.Task payload, got %T", resp.Payload)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
}

func TestLoopAdmitsQueuedTaskAndReapsItOnExit(t *testing.T) {
	loop, ctx, cancel := newTestLoop(t)
	defer cancel()

	resp := submit(t, loop, ctx, wire.MsgEnqueue, types.TaskSpec{Command: "exit 0", Group: types.DefaultGroup})
	task := resp.Payload.(*types.Task)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		status := submit(t, loop, ctx, wire.MsgStatus, nil)
		tasks := status.Payload.([]*types.Task)
		for _, tk := range tasks {
			if tk.Id == task.Id && tk.Status == types.StatusDone {
				if tk.Exit == nil || tk.Exit.DoneKind != types.DoneSuccess {
					t.Fatalf("expected success exit kind, got %+v", tk.Exit)
				}
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("task never reached Done status")
}

func TestSubmitPauseThenStartRunningTask(t *testing.T) {
	loop, ctx, cancel := newTestLoop(t)
	defer cancel()

	resp := submit(t, loop, ctx, wire.MsgEnqueue, types.TaskSpec{Command: "sleep 2", Group: types.DefaultGroup})
	task := resp.Payload.(*types.Task)

	waitForStatus(t, loop, ctx, task.Id, types.StatusRunning)

	pauseResp := submit(t, loop, ctx, wire.MsgPause, wire.Pause{Tasks: []int{task.Id}})
	if !pauseResp.Ok {
		t.Fatalf("Pause failed: %+v", pauseResp)
	}
	waitForStatus(t, loop, ctx, task.Id, types.StatusPaused)

	startResp := submit(t, loop, ctx, wire.MsgStart, wire.Start{Tasks: []int{task.Id}})
	if !startResp.Ok {
		t.Fatalf("Start failed: %+v", startResp)
	}
	waitForStatus(t, loop, ctx, task.Id, types.StatusRunning)

	killResp := submit(t, loop, ctx, wire.MsgKill, wire.Kill{Tasks: []int{task.Id}, Signal: "SIGKILL"})
	if !killResp.Ok {
		t.Fatalf("Kill failed: %+v", killResp)
	}
}

func waitForStatus(t *testing.T, loop *Loop, ctx context.Context, id int, want types.Status) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp := submit(t, loop, ctx, wire.MsgStatus, nil)
		for _, tk := range resp.Payload.([]*types.Task) {
			if tk.Id == id && tk.Status == want {
				return
			}
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("task %d never reached status %s", id, want)
}

func TestSubmitGroupLifecycle(t *testing.T) {
	loop, ctx, cancel := newTestLoop(t)
	defer cancel()

	addResp := submit(t, loop, ctx, wire.MsgGroup, wire.Group{Action: wire.GroupAdd, Name: "builds", Limit: 3})
	if !addResp.Ok {
		t.Fatalf("GroupAdd failed: %+v", addResp)
	}

	limitResp := submit(t, loop, ctx, wire.MsgGroup, wire.Group{Action: wire.GroupSetLimit, Name: "builds", Limit: 5})
	if !limitResp.Ok {
		t.Fatalf("GroupSetLimit failed: %+v", limitResp)
	}

	removeResp := submit(t, loop, ctx, wire.MsgGroup, wire.Group{Action: wire.GroupRemove, Name: "builds"})
	if !removeResp.Ok {
		t.Fatalf("GroupRemove failed: %+v", removeResp)
	}

	badResp := submit(t, loop, ctx, wire.MsgGroup, wire.Group{Action: "bogus", Name: "builds"})
	if badResp.Ok {
		t.Fatal("expected an unknown group action to fail")
	}
}

func TestSubmitCleanRemovesOnlyMatchingTerminalTasks(t *testing.T) {
	loop, ctx, cancel := newTestLoop(t)
	defer cancel()

	okTask := submit(t, loop, ctx, wire.MsgEnqueue, types.TaskSpec{Command: "exit 0", Group: types.DefaultGroup}).Payload.(*types.Task)
	failTask := submit(t, loop, ctx, wire.MsgEnqueue, types.TaskSpec{Command: "exit 1", Group: types.DefaultGroup}).Payload.(*types.Task)

	waitForStatus(t, loop, ctx, okTask.Id, types.StatusDone)
	waitForStatus(t, loop, ctx, failTask.Id, types.StatusDone)

	cleanResp := submit(t, loop, ctx, wire.MsgClean, wire.Clean{Filter: types.Filter{
		DoneKinds: []types.DoneKind{types.DoneFailure},
	}})
	if !cleanResp.Ok {
		t.Fatalf("Clean failed: %+v", cleanResp)
	}

	status := submit(t, loop, ctx, wire.MsgStatus, nil)
	tasks := status.Payload.([]*types.Task)
	for _, tk := range tasks {
		if tk.Id == failTask.Id {
			t.Fatal("expected the failed task to be removed by Clean")
		}
	}
	found := false
	for _, tk := range tasks {
		if tk.Id == okTask.Id {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the successful task to survive Clean with a failure-only filter")
	}
}

func TestSubmitUnrecognizedMessageTypeIsIgnoredNotFatal(t *testing.T) {
	loop, ctx, cancel := newTestLoop(t)
	defer cancel()

	resp := submit(t, loop, ctx, wire.MessageType("Bogus"), nil)
	if !resp.Ok {
		t.Fatalf("expected an unrecognized message to be silently ignored, got %+v", resp)
	}
}

func TestGracefulShutdownStopsAfterRunningTaskFinishes(t *testing.T) {
	loop, ctx, cancel := newTestLoop(t)
	defer cancel()

	done := make(chan struct{})
	loop.NotifyOnShutdown(done)

	task := submit(t, loop, ctx, wire.MsgEnqueue, types.TaskSpec{Command: "sleep 0.2", Group: types.DefaultGroup}).Payload.(*types.Task)
	waitForStatus(t, loop, ctx, task.Id, types.StatusRunning)

	shutdownResp := submit(t, loop, ctx, wire.MsgDaemonShutdown, wire.DaemonShutdown{Kind: wire.ShutdownGraceful})
	if !shutdownResp.Ok {
		t.Fatalf("DaemonShutdown failed: %+v", shutdownResp)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run never signaled shutdown completion")
	}
}
