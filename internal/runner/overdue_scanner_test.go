package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"tasknexus/internal/model"
)

type fakeClaimer struct {
	batches  [][]model.Task
	err      error
	calls    int
	traceIDs []string
}

func (f *fakeClaimer) ClaimOverdue(_ context.Context, limit int, traceID string) ([]model.Task, error) {
	f.calls++
	f.traceIDs = append(f.traceIDs, traceID)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	if len(b) > limit {
		b = b[:limit]
	}
	return b, nil
}

func tasks(n int) []model.Task {
	out := make([]model.Task, n)
	for i := range out {
		out[i] = model.Task{ID: int64(i + 1)}
	}
	return out
}

func TestRunOnceDrainsFullBatches(t *testing.T) {
	claimer := &fakeClaimer{batches: [][]model.Task{tasks(2), tasks(2), tasks(1)}}
	s := NewOverdueScanner(claimer, time.Minute, 2, zap.NewNop())

	if got := s.RunOnce(context.Background()); got != 5 {
		t.Fatalf("expected 5 claimed, got %d", got)
	}
	if claimer.calls != 3 {
		t.Fatalf("expected 3 claim calls, got %d", claimer.calls)
	}
	if claimer.traceIDs[0] == "" || claimer.traceIDs[0] != claimer.traceIDs[2] {
		t.Fatalf("one trace id per scan expected, got %v", claimer.traceIDs)
	}
}

func TestRunOnceStopsOnError(t *testing.T) {
	claimer := &fakeClaimer{err: errors.New("db down")}
	s := NewOverdueScanner(claimer, time.Minute, 2, zap.NewNop())

	if got := s.RunOnce(context.Background()); got != 0 {
		t.Fatalf("expected 0 claimed, got %d", got)
	}
	if claimer.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", claimer.calls)
	}
}

func TestStartReturnsOnCancel(t *testing.T) {
	claimer := &fakeClaimer{}
	s := NewOverdueScanner(claimer, time.Hour, 10, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scanner did not stop after cancel")
	}
}
