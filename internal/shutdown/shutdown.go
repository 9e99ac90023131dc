// Package shutdown coordinates the daemon's exit sequence: cancel the
// dispatch loop's context (which stops the loop; the graceful-or-immediate
// task teardown is done by internal/dispatch when it handles a DaemonShutdown
// message, not by cancellation),
// wait for it to actually finish persisting and reaping, then remove the PID
// file so the test-harness/CLI contract ("PID file disappears within ~2s of
// a shutdown request") holds.
//
// Grounded on original_source/tests/helper/daemon.rs's shutdown_daemon/
// wait_for_shutdown poll contract and the teacher's cmd/agsh/main.go signal
// handling (signal.Notify feeding a cancel context).
package shutdown

import (
	"context"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"pueued/internal/perrors"
)

// Coordinator drives one daemon's exit sequence.
type Coordinator struct {
	pidFile string
	cancel  context.CancelFunc
	done    chan struct{} // closed by the dispatch loop once it actually returns
}

// New returns a Coordinator that will remove pidFile once shutdown
// completes. cancel stops the dispatch loop's context; done is the channel
// registered with dispatch.Loop.NotifyOnShutdown.
func New(pidFile string, cancel context.CancelFunc, done chan struct{}) *Coordinator {
	return &Coordinator{pidFile: pidFile, cancel: cancel, done: done}
}

// WritePID writes the current process's PID to pidFile, truncating any
// stale content. Called once at daemon startup.
func WritePID(pidFile string) error {
	f, err := os.Create(pidFile)
	if err != nil {
		return perrors.New(perrors.Io, "shutdown.write_pid", err)
	}
	defer f.Close()
	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		return perrors.New(perrors.Io, "shutdown.write_pid", err)
	}
	return nil
}

// Shutdown cancels the dispatch loop, waits (bounded by timeout) for it to
// finish its own persist-and-reap sequence, and removes the PID file
// regardless of whether the wait completed cleanly — a hung supervisor
// reap must never leave a stale PID file behind.
func (c *Coordinator) Shutdown(ctx context.Context, timeout time.Duration) error {
	c.cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-c.done:
			return nil
		case <-time.After(timeout):
			return perrors.New(perrors.Generic, "shutdown", nil)
		case <-gctx.Done():
			return gctx.Err()
		}
	})
	waitErr := g.Wait()

	if err := os.Remove(c.pidFile); err != nil && !os.IsNotExist(err) {
		if waitErr == nil {
			waitErr = perrors.New(perrors.Io, "shutdown.remove_pid", err)
		}
	}
	return waitErr
}
