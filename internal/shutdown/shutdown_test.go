package shutdown

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func TestWritePIDWritesCurrentPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pueue.pid")
	if err := WritePID(path); err != nil {
		t.Fatalf("WritePID: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got, err := strconv.Atoi(string(data))
	if err != nil {
		t.Fatalf("pid file did not contain an integer: %q", data)
	}
	if got != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), got)
	}
}

func TestWritePIDTruncatesStaleContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pueue.pid")
	if err := os.WriteFile(path, []byte("999999999"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := WritePID(path); err != nil {
		t.Fatalf("WritePID: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("expected stale content to be truncated, got %q", data)
	}
}

func TestShutdownRemovesPidFileOnCleanDone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pueue.pid")
	if err := WritePID(path); err != nil {
		t.Fatalf("WritePID: %v", err)
	}

	done := make(chan struct{})
	canceled := false
	c := New(path, func() { canceled = true }, done)
	close(done) // simulate the dispatch loop having already finished

	if err := c.Shutdown(context.Background(), time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !canceled {
		t.Fatal("expected Shutdown to invoke cancel")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected pid file to be removed")
	}
}

func TestShutdownRemovesPidFileEvenOnTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pueue.pid")
	if err := WritePID(path); err != nil {
		t.Fatalf("WritePID: %v", err)
	}

	done := make(chan struct{}) // never closed: simulates a hung dispatch loop
	c := New(path, func() {}, done)

	err := c.Shutdown(context.Background(), 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatal("expected pid file to be removed despite the timeout")
	}
}

func TestShutdownToleratesAlreadyRemovedPidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pueue.pid") // never created
	done := make(chan struct{})
	close(done)
	c := New(path, func() {}, done)

	if err := c.Shutdown(context.Background(), time.Second); err != nil {
		t.Fatalf("expected no error for an already-absent pid file, got %v", err)
	}
}
