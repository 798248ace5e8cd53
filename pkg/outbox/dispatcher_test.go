package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"tasknexus/pkg/circuitbreaker"
	"tasknexus/pkg/trace"
)

type fakeStore struct {
	pending []*Event
	sent    []int64
	failed  []int64
	failedByID map[int64]*Event
}

func (s *fakeStore) GetPendingEvents(_ context.Context, limit int) ([]*Event, error) {
	if len(s.pending) > limit {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *fakeStore) MarkAsSent(_ context.Context, id int64) error {
	s.sent = append(s.sent, id)
	return nil
}

func (s *fakeStore) MarkAsFailed(_ context.Context, id int64, _ int) error {
	s.failed = append(s.failed, id)
	return nil
}

func (s *fakeStore) GetEventByID(_ context.Context, id int64) (*Event, error) {
	if e, ok := s.failedByID[id]; ok {
		return e, nil
	}
	return nil, ErrEventNotFound
}

func (s *fakeStore) GetFailedEvents(_ context.Context, _ int) ([]*Event, error) {
	var out []*Event
	for _, e := range s.failedByID {
		out = append(out, e)
	}
	return out, nil
}

func (s *fakeStore) ResetEvent(_ context.Context, id int64) error {
	e, ok := s.failedByID[id]
	if !ok {
		return ErrEventNotFound
	}
	e.Status = StatusPending
	return nil
}

type publishFunc func(ctx context.Context, routingKey string, body []byte) error

func (f publishFunc) PublishWithContext(ctx context.Context, routingKey string, body []byte) error {
	return f(ctx, routingKey, body)
}

func event(id int64, payload string) *Event {
	return &Event{ID: id, RoutingKey: "notification.created", Payload: json.RawMessage(payload)}
}

func TestDispatcherPublishesAndMarks(t *testing.T) {
	store := &fakeStore{pending: []*Event{
		event(1, `{"trace_id":"t-1","notification_id":1}`),
		event(2, `{"notification_id":2}`),
	}}

	var traces []string
	pub := publishFunc(func(ctx context.Context, _ string, body []byte) error {
		traces = append(traces, trace.FromContext(ctx))
		if string(body) == `{"notification_id":2}` {
			return errors.New("broker nack")
		}
		return nil
	})

	d := NewDispatcher(store, pub, nil, zap.NewNop())
	if sent := d.ProcessPendingEvents(context.Background()); sent != 1 {
		t.Fatalf("expected 1 sent, got %d", sent)
	}
	if len(store.sent) != 1 || store.sent[0] != 1 {
		t.Fatalf("unexpected sent ids %v", store.sent)
	}
	if len(store.failed) != 1 || store.failed[0] != 2 {
		t.Fatalf("unexpected failed ids %v", store.failed)
	}
	if traces[0] != "t-1" || traces[1] != "" {
		t.Fatalf("trace ids not propagated from payload: %v", traces)
	}
}

func TestDispatcherStopsBatchWhenBreakerOpen(t *testing.T) {
	store := &fakeStore{pending: []*Event{event(1, `{}`), event(2, `{}`), event(3, `{}`)}}
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		FailureThreshold:    1,
		SuccessThreshold:    1,
		Timeout:             time.Hour,
		HalfOpenMaxRequests: 1,
	})
	calls := 0
	pub := publishFunc(func(context.Context, string, []byte) error {
		calls++
		return errors.New("connection reset")
	})

	d := NewDispatcher(store, pub, breaker, zap.NewNop())
	d.ProcessPendingEvents(context.Background())

	if calls != 1 {
		t.Fatalf("expected broker to be called once before the breaker opened, got %d", calls)
	}
	if len(store.failed) != 1 {
		t.Fatalf("only the attempted event counts as a failure, got %v", store.failed)
	}
	if len(store.sent) != 0 {
		t.Fatalf("nothing should be sent, got %v", store.sent)
	}
}

func TestReplayService(t *testing.T) {
	store := &fakeStore{failedByID: map[int64]*Event{
		5: {ID: 5, RoutingKey: "task.overdue", Status: StatusFailed, RetryCount: 5},
		6: {ID: 6, RoutingKey: "task.overdue", Status: StatusFailed, RetryCount: 5},
	}}
	svc := NewReplayService(store, zap.NewNop())

	e, err := svc.ReplayEvent(context.Background(), 5)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if e.Status != StatusPending || e.RetryCount != 0 {
		t.Fatalf("unexpected replayed event %+v", e)
	}

	if _, err := svc.ReplayEvent(context.Background(), 99); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}

	n, err := svc.ReplayFailedEvents(context.Background(), 10)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 replayed, got %d (%v)", n, err)
	}
}
