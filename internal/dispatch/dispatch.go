// Package dispatch runs the single-owner event loop that is the daemon's
// only writer of the Registry: it pulls wire.Message values off a bounded
// channel with a 200ms receive timeout, applies each to completion before
// pulling the next, and performs a Scheduler/reaper/persistence pass on
// every tick whether or not a message arrived.
//
// Grounded on original_source/daemon/task_handler/messages/mod.rs's
// recv_timeout dispatch table and the teacher's internal/bus/bus.go
// (non-blocking, bounded-channel pub/sub) generalized from broadcast fan-out
// to a single addressed inbound queue.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"pueued/internal/events"
	"pueued/internal/logstore"
	"pueued/internal/registry"
	"pueued/internal/scheduler"
	"pueued/internal/supervisor"
	"pueued/internal/types"
	"pueued/internal/wire"
)

const recvTimeout = 200 * time.Millisecond

// Inbound is one client request paired with the channel its response is
// delivered on.
type Inbound struct {
	Msg   wire.Message
	Reply chan<- wire.Response
}

// Loop owns the Registry, Supervisor, and Scheduler for the daemon's
// lifetime. Construct with New and run with Run in its own goroutine.
type Loop struct {
	reg   *registry.Registry
	sup   *supervisor.Supervisor
	sched *scheduler.Scheduler
	logs  *logstore.Store
	Events *events.Bus

	In chan Inbound

	callback func(group string) string // resolves a group's callback template

	flushEvery time.Duration
	lastFlush  time.Time

	shutdown      *shutdownState
	shutdownAfter chan struct{} // closed once shutdown's post-drain work is done
}

// shutdownState tracks an in-progress DaemonShutdown so repeated ticks know
// to keep waiting rather than admit new work.
type shutdownState struct {
	kind     wire.ShutdownKind
	deadline time.Time
	children bool
}

// NotifyOnShutdown arranges for ch to be closed once Run returns because a
// graceful or immediate shutdown finished (not because ctx was canceled).
// main uses this to know when it's safe to remove the PID file.
func (l *Loop) NotifyOnShutdown(ch chan struct{}) {
	l.shutdownAfter = ch
}

// New wires a Loop around the given components. callback, if non-nil, is
// consulted once per finished task to resolve its group's callback template.
func New(reg *registry.Registry, sup *supervisor.Supervisor, sched *scheduler.Scheduler, logs *logstore.Store, callback func(group string) string) *Loop {
	if callback == nil {
		callback = func(string) string { return "" }
	}
	return &Loop{
		reg:        reg,
		sup:        sup,
		sched:      sched,
		logs:       logs,
		Events:     events.New(),
		In:         make(chan Inbound, 256),
		callback:   callback,
		flushEvery: 2 * time.Second,
	}
}

// Submit sends msg to the loop and blocks for its response, or returns
// ctx.Err() if ctx is canceled first. Used by both the wire transport server
// and the HTTP introspection API — every external caller goes through this
// one bounded-channel doorway into the registry (SPEC_FULL.md §4.10).
func (l *Loop) Submit(ctx context.Context, msg wire.Message) (wire.Response, error) {
	reply := make(chan wire.Response, 1)
	select {
	case l.In <- Inbound{Msg: msg, Reply: reply}:
	case <-ctx.Done():
		return wire.Response{}, ctx.Err()
	}
	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return wire.Response{}, ctx.Err()
	}
}

// Run blocks until ctx is canceled or a graceful/immediate shutdown
// completes, whichever first. It is the daemon's single registry-owning
// goroutine; nothing else may touch reg/sup/sched/logs once Run starts.
func (l *Loop) Run(ctx context.Context) {
	l.sched.Sync(l.reg)
	l.lastFlush = time.Now()

	for {
		select {
		case <-ctx.Done():
			l.reg.Flush(true)
			return
		case in := <-l.In:
			l.handle(in)
		case result := <-l.sup.Done:
			l.onExit(result)
		case <-time.After(recvTimeout):
		}

		l.tick()

		if l.shutdown != nil && l.shutdownComplete() {
			l.reg.Flush(true)
			if l.shutdownAfter != nil {
				close(l.shutdownAfter)
			}
			return
		}
	}
}

// tick performs the per-iteration admission/persistence pass. It is a no-op
// on admission while a shutdown is in progress.
func (l *Loop) tick() {
	if l.shutdown == nil {
		scheduler.Tick(context.Background(), l.reg, l.sched, l.spawn)
	}
	if time.Since(l.lastFlush) >= l.flushEvery {
		if err := l.reg.Flush(false); err != nil {
			slog.Warn("dispatch: periodic flush failed", "error", err)
		}
		l.lastFlush = time.Now()
	}
}

func (l *Loop) spawn(t *types.Task) error {
	if err := l.sup.Spawn(t.Id, t.Command, t.WorkingDir, t.Envs); err != nil {
		return err
	}
	now := time.Now().UTC()
	t.Exit = &types.ExitInfo{Start: now}
	if err := l.reg.MutateStatus(t.Id, types.StatusRunning); err != nil {
		return err
	}
	l.Events.Publish(events.Event{Kind: events.KindStatusChanged, TaskId: t.Id, Status: types.StatusRunning})
	return nil
}

// onExit reconciles a reaped process with the registry: records exit info,
// releases the group's scheduling slot, fires the group callback, and
// propagates dependency failure to anything waiting on this task.
func (l *Loop) onExit(result supervisor.ExitResult) {
	t, err := l.reg.Get(result.TaskId)
	if err != nil {
		slog.Warn("dispatch: exit for unknown task", "task_id", result.TaskId)
		return
	}
	group := t.Group
	start := time.Now().UTC()
	if t.Exit != nil {
		start = t.Exit.Start
	}

	kind := types.DoneSuccess
	switch {
	case result.Err != nil:
		kind = types.DoneFailure
	case result.Signal != "":
		kind = types.DoneKilled
	case result.ExitCode != nil && *result.ExitCode != 0:
		kind = types.DoneFailure
	}

	info := types.ExitInfo{ExitCode: result.ExitCode, Signal: result.Signal, Start: start, End: time.Now().UTC()}
	if err := l.reg.Finish(result.TaskId, kind, info); err != nil {
		slog.Warn("dispatch: finish failed", "task_id", result.TaskId, "error", err)
	} else {
		l.Events.Publish(events.Event{Kind: events.KindStatusChanged, TaskId: result.TaskId, Status: types.StatusDone})
	}
	l.sched.Release(group)
	if kind != types.DoneSuccess {
		l.reg.FailDependents(result.TaskId)
	}

	if tmpl := l.callback(group); tmpl != "" {
		supervisor.RunCallback(context.Background(), tmpl, result.TaskId, result.ExitCode, group)
	}
}

func (l *Loop) handle(in Inbound) {
	resp := wire.Response{ID: in.Msg.ID, Ok: true}
	defer func() {
		if in.Reply != nil {
			in.Reply <- resp
		}
	}()

	switch in.Msg.Type {
	case wire.MsgEnqueue:
		payload, ok := in.Msg.Payload.(types.TaskSpec)
		if !ok {
			resp.Ok, resp.Error = false, "malformed enqueue payload"
			return
		}
		t, err := l.reg.Enqueue(payload)
		setErr(&resp, err)
		if err == nil {
			resp.Payload = t
			l.Events.Publish(events.Event{Kind: events.KindEnqueued, TaskId: t.Id, Status: t.Status})
		}

	case wire.MsgPause:
		p := mustPayload[wire.Pause](in.Msg, &resp)
		if resp.Error != "" {
			return
		}
		l.doPause(p, &resp)

	case wire.MsgStart:
		p := mustPayload[wire.Start](in.Msg, &resp)
		if resp.Error != "" {
			return
		}
		l.doStart(p, &resp)

	case wire.MsgKill:
		p := mustPayload[wire.Kill](in.Msg, &resp)
		if resp.Error != "" {
			return
		}
		l.doKill(p, &resp)

	case wire.MsgSend:
		p := mustPayload[wire.Send](in.Msg, &resp)
		if resp.Error != "" {
			return
		}
		setErr(&resp, l.sup.Send(p.TaskId, p.Input))

	case wire.MsgReset:
		p := mustPayload[wire.Reset](in.Msg, &resp)
		if resp.Error != "" {
			return
		}
		l.sup.KillAll(p.Children)
		if errs := l.logs.Reset(); len(errs) > 0 {
			for _, e := range errs {
				slog.Warn("dispatch: reset log cleanup", "error", e)
			}
		}
		l.reg.ResetAll()
		l.sched.Sync(l.reg)

	case wire.MsgGroup:
		p := mustPayload[wire.Group](in.Msg, &resp)
		if resp.Error != "" {
			return
		}
		l.doGroup(p, &resp)

	case wire.MsgClean:
		p := mustPayload[wire.Clean](in.Msg, &resp)
		if resp.Error != "" {
			return
		}
		resp.Payload = l.reg.Clean(p.Filter)

	case wire.MsgStatus:
		resp.Payload = l.reg.All()

	case wire.MsgLogRangeFetch:
		p := mustPayload[wire.LogRangeFetch](in.Msg, &resp)
		if resp.Error != "" {
			return
		}
		stdout, stderr, err := l.logs.ReadRangeCompressed(p.TaskId, p.Lines)
		setErr(&resp, err)
		if err == nil {
			resp.Payload = wire.LogRangeResult{Stdout: stdout, Stderr: stderr}
		}

	case wire.MsgDaemonShutdown:
		p := mustPayload[wire.DaemonShutdown](in.Msg, &resp)
		if resp.Error != "" {
			return
		}
		l.beginShutdown(p.Kind)

	default:
		slog.Warn("dispatch: unrecognized message type, ignoring", "type", in.Msg.Type)
	}
}

func (l *Loop) doPause(p wire.Pause, resp *wire.Response) {
	ids := p.Tasks
	if len(ids) == 0 {
		ids = idsOf(l.reg.Lookup(types.Filter{Statuses: []types.Status{types.StatusRunning}}))
	}
	for _, id := range ids {
		t, err := l.reg.Get(id)
		if err != nil {
			setErr(resp, err)
			continue
		}
		if p.Wait {
			t.PendingPause = true
		}
		if err := l.sup.Pause(id, p.Children); err != nil {
			setErr(resp, err)
			continue
		}
		t.PendingPause = false
		if err := l.reg.MutateStatus(id, types.StatusPaused); err != nil {
			setErr(resp, err)
			continue
		}
		l.Events.Publish(events.Event{Kind: events.KindStatusChanged, TaskId: id, Status: types.StatusPaused})
	}
}

func (l *Loop) doStart(p wire.Start, resp *wire.Response) {
	if len(p.Tasks) == 0 {
		// Admit eligible queued tasks immediately rather than waiting for
		// the next tick's timeout.
		scheduler.Tick(context.Background(), l.reg, l.sched, l.spawn)
		return
	}
	for _, id := range p.Tasks {
		if t, err := l.reg.Get(id); err == nil && t.Status == types.StatusStashed {
			// A stashed task is released into the queue; the scheduler
			// admits it like any other Queued task.
			if err := l.reg.ReleaseStashed(id); err != nil {
				setErr(resp, err)
				continue
			}
			l.Events.Publish(events.Event{Kind: events.KindStatusChanged, TaskId: id, Status: types.StatusQueued})
			continue
		}
		if err := l.sup.Resume(id, p.Children); err != nil {
			setErr(resp, err)
			continue
		}
		if err := l.reg.MutateStatus(id, types.StatusRunning); err != nil {
			setErr(resp, err)
			continue
		}
		l.Events.Publish(events.Event{Kind: events.KindStatusChanged, TaskId: id, Status: types.StatusRunning})
	}
}

func (l *Loop) doKill(p wire.Kill, resp *wire.Response) {
	ids := p.Tasks
	if len(ids) == 0 {
		ids = idsOf(l.reg.Lookup(types.Filter{Statuses: []types.Status{types.StatusRunning, types.StatusPaused}}))
	}
	for _, id := range ids {
		setErr(resp, l.sup.Kill(id, p.Signal, p.Children))
	}
}

func (l *Loop) doGroup(p wire.Group, resp *wire.Response) {
	switch p.Action {
	case wire.GroupAdd:
		l.reg.AddGroup(p.Name, p.Limit)
	case wire.GroupRemove:
		setErr(resp, l.reg.RemoveGroup(p.Name))
	case wire.GroupSetLimit:
		setErr(resp, l.reg.SetLimit(p.Name, p.Limit))
	case wire.GroupPause:
		setErr(resp, l.reg.SetPaused(p.Name, true))
	case wire.GroupResume:
		setErr(resp, l.reg.SetPaused(p.Name, false))
	default:
		resp.Ok, resp.Error = false, "unknown group action"
		return
	}
	l.sched.Sync(l.reg)
}

// beginShutdown transitions the loop into shutdown mode. Graceful stops
// admitting new tasks and waits 10 seconds for running tasks to finish on
// their own, then sends SIGKILL to every task process still alive (there is
// no SIGTERM step, and the configured shutdown grace does not change the 10
// seconds); Immediate signals SIGKILL right away. Either way the loop keeps
// ticking (reaping exits, flushing) until no task process is left alive, then
// Run persists and returns.
func (l *Loop) beginShutdown(kind wire.ShutdownKind) {
	if l.shutdown != nil {
		return
	}
	l.shutdown = &shutdownState{kind: kind, deadline: time.Now().Add(10 * time.Second)}
	if kind == wire.ShutdownImmediate {
		l.sup.KillAll(false)
	}
}

func (l *Loop) shutdownComplete() bool {
	if l.sup.LiveCount() == 0 {
		return true
	}
	if l.shutdown.kind == wire.ShutdownGraceful && time.Now().After(l.shutdown.deadline) {
		l.sup.KillAll(l.shutdown.children)
	}
	return false
}

func idsOf(tasks []*types.Task) []int {
	ids := make([]int, len(tasks))
	for i, t := range tasks {
		ids[i] = t.Id
	}
	return ids
}

func setErr(resp *wire.Response, err error) {
	if err == nil {
		return
	}
	resp.Ok = false
	if resp.Error == "" {
		resp.Error = err.Error()
	} else {
		resp.Error += "; " + err.Error()
	}
}

func mustPayload[T any](msg wire.Message, resp *wire.Response) T {
	var zero T
	p, ok := msg.Payload.(T)
	if !ok {
		resp.Ok, resp.Error = false, "malformed payload"
		return zero
	}
	return p
}
