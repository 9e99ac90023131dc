package events

import (
	"testing"
	"time"

	"pueued/internal/types"
)

func TestPublishFansOutToAllTaps(t *testing.T) {
	b := New()
	tapA := b.NewTap()
	tapB := b.NewTap()

	b.Publish(Event{Kind: KindEnqueued, TaskId: 1, Status: types.StatusQueued})

	select {
	case evt := <-tapA:
		if evt.TaskId != 1 || evt.Kind != KindEnqueued {
			t.Fatalf("unexpected event on tapA: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event on tapA")
	}

	select {
	case evt := <-tapB:
		if evt.TaskId != 1 {
			t.Fatalf("unexpected event on tapB: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event on tapB")
	}
}

func TestPublishDropsOnFullTapWithoutBlocking(t *testing.T) {
	b := New()
	tap := b.NewTap()

	done := make(chan struct{})
	go func() {
		for i := 0; i < tapBufSize+10; i++ {
			b.Publish(Event{Kind: KindStatusChanged, TaskId: i, Status: types.StatusRunning})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full tap instead of dropping")
	}

	// Drain what made it through; should be exactly tapBufSize given no reader
	// consumed concurrently.
	drained := 0
	for {
		select {
		case <-tap:
			drained++
		default:
			if drained != tapBufSize {
				t.Fatalf("expected %d buffered events, got %d", tapBufSize, drained)
			}
			return
		}
	}
}

func TestNewTapOnlySeesEventsPublishedAfterCreation(t *testing.T) {
	b := New()
	b.Publish(Event{Kind: KindEnqueued, TaskId: 99})

	tap := b.NewTap()
	select {
	case evt := <-tap:
		t.Fatalf("tap created after publish should not see it, got %+v", evt)
	default:
	}
}
