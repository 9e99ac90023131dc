package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pueued/internal/dispatch"
	"pueued/internal/logstore"
	"pueued/internal/registry"
	"pueued/internal/scheduler"
	"pueued/internal/supervisor"
	"pueued/internal/types"
	"pueued/internal/wire"
)

func TestWriteFrameThenReadFrameRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	msg := wire.Message{ID: "abc", Type: wire.MsgStatus}
	if err := WriteFrame(&buf, msg); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	var got wire.Message
	if err := ReadFrame(&buf, &got); err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.ID != msg.ID || got.Type != msg.Type {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, msg)
	}
}

func TestReadFrameRejectsFrameOverMaxSize(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], maxFrameBytes+1)
	buf.Write(lenBuf[:])

	var v any
	if err := ReadFrame(&buf, &v); err == nil {
		t.Fatal("expected an error for an oversized frame")
	}
}

func TestReadFramePropagatesEOFOnEmptyReader(t *testing.T) {
	var buf bytes.Buffer
	var v any
	if err := ReadFrame(&buf, &v); err == nil {
		t.Fatal("expected an error reading from an empty reader")
	}
}

func newTestLoop(t *testing.T) *dispatch.Loop {
	t.Helper()
	dir := t.TempDir()
	logs := logstore.New(dir)
	reg := registry.New(dir, logs, 1)
	sup := supervisor.New(logs)
	sched := scheduler.New()
	return dispatch.New(reg, sup, sched, logs, nil)
}

func TestListenerServesStatusRequestOverUnixSocket(t *testing.T) {
	loop := newTestLoop(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	sockPath := filepath.Join(t.TempDir(), "pueue.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer os.Remove(sockPath)

	listener := NewListener(loop)
	go listener.Serve(ctx, ln)

	client, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	resp, err := client.Call(wire.Message{ID: "1", Type: wire.MsgStatus})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !resp.Ok {
		t.Fatalf("expected Ok response, got %+v", resp)
	}
}

func TestListenerRoundTripsAddedTask(t *testing.T) {
	loop := newTestLoop(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	sockPath := filepath.Join(t.TempDir(), "pueue.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer os.Remove(sockPath)

	listener := NewListener(loop)
	go listener.Serve(ctx, ln)

	client, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	addResp, err := client.Call(wire.Message{ID: "1", Type: wire.MsgEnqueue, Payload: types.TaskSpec{
		Command: "exit 0", Group: types.DefaultGroup,
	}})
	if err != nil {
		t.Fatalf("Call(Add): %v", err)
	}
	if !addResp.Ok {
		t.Fatalf("expected Add to succeed, got %+v", addResp)
	}

	statusResp, err := client.Call(wire.Message{ID: "2", Type: wire.MsgStatus})
	if err != nil {
		t.Fatalf("Call(Status): %v", err)
	}
	if !statusResp.Ok {
		t.Fatalf("expected Status to succeed, got %+v", statusResp)
	}
}

func TestClientSetDeadlineTimesOutACall(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "pueue.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	defer os.Remove(sockPath)

	// Accept and never respond, simulating an unresponsive daemon.
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			<-make(chan struct{}) // hold the connection open forever
		}
	}()

	client, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if err := client.SetDeadline(time.Now().Add(50 * time.Millisecond)); err != nil {
		t.Fatalf("SetDeadline: %v", err)
	}
	if _, err := client.Call(wire.Message{ID: "1", Type: wire.MsgStatus}); err == nil {
		t.Fatal("expected Call to time out")
	}
}
