package service

import (
	"context"
	"testing"
	"time"

	logmem "github.com/vibelinechat/vibeline/internal/adapter/driven/persistence/memory"
	"github.com/vibelinechat/vibeline/internal/core/domain"
)

func TestRecorder_FlushesQueuedWrites(t *testing.T) {
	sink := logmem.NewCallLog()
	rec := NewRecorder(sink)
	go rec.Run()
	defer rec.Stop()

	session := *domain.NewCallSession("s1", "u1", "u2", "conv-1", false)
	if err := rec.RecordCreated(context.Background(), session); err != nil {
		t.Fatalf("RecordCreated: %v", err)
	}
	if err := rec.RecordStatusChange(context.Background(), "s1", domain.CallEnded, domain.ReasonNormal); err != nil {
		t.Fatalf("RecordStatusChange: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if len(sink.Created()) == 1 && len(sink.Changes()) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("writes never reached the sink: created=%d changes=%d", len(sink.Created()), len(sink.Changes()))
		}
		time.Sleep(5 * time.Millisecond)
	}

	change := sink.Changes()[0]
	if change.SessionID != "s1" || change.Status != domain.CallEnded || change.Reason != domain.ReasonNormal {
		t.Fatalf("unexpected change: %+v", change)
	}
}

func TestRecorder_StopDrainsQueue(t *testing.T) {
	sink := logmem.NewCallLog()
	rec := NewRecorder(sink)

	// Enqueue before the worker runs, then let Run observe quit with work
	// still pending.
	for i := 0; i < 10; i++ {
		rec.RecordStatusChange(context.Background(), "s1", domain.CallRinging, "")
	}
	rec.Stop()
	done := make(chan struct{})
	go func() {
		rec.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after Stop")
	}
	if got := len(sink.Changes()); got != 10 {
		t.Fatalf("expected 10 drained writes, got %d", got)
	}
}
