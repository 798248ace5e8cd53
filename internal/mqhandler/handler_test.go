package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	mqcontracts "tasknexus/contracts/mq"
	"tasknexus/internal/model"
	"tasknexus/pkg/util"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

type countingDeliverer struct {
	calls int
	err   error
}

func (d *countingDeliverer) Deliver(context.Context, mqcontracts.NotificationCreatedPayload) error {
	d.calls++
	return d.err
}

type fakeRecorder struct {
	recorded []model.Notification
	err      error
}

func (r *fakeRecorder) Record(_ context.Context, userID int64, typ, message string) (*model.Notification, error) {
	if r.err != nil {
		return nil, r.err
	}
	n := model.Notification{UserID: userID, Type: typ, Message: message}
	r.recorded = append(r.recorded, n)
	return &n, nil
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestNotificationCreatedDeliversOnce(t *testing.T) {
	rdb := newTestRedis(t)
	deliverer := &countingDeliverer{}
	h := NewNotificationCreatedHandler(deliverer, util.NewDeduper(rdb, time.Hour, nil), zap.NewNop())
	body := mustJSON(t, mqcontracts.NotificationCreatedPayload{NotificationID: 9, UserID: 2, Type: model.NotificationInvite})

	for i := 0; i < 3; i++ {
		if err := h.Handle(context.Background(), body); err != nil {
			t.Fatalf("handle #%d: %v", i+1, err)
		}
	}
	if deliverer.calls != 1 {
		t.Fatalf("expected one delivery, got %d", deliverer.calls)
	}
}

func TestNotificationCreatedRetriesAfterFailure(t *testing.T) {
	rdb := newTestRedis(t)
	deliverer := &countingDeliverer{err: errors.New("push gateway down")}
	h := NewNotificationCreatedHandler(deliverer, util.NewDeduper(rdb, time.Hour, nil), zap.NewNop())
	body := mustJSON(t, mqcontracts.NotificationCreatedPayload{NotificationID: 9, UserID: 2})

	if err := h.Handle(context.Background(), body); err == nil {
		t.Fatal("expected delivery error")
	}
	deliverer.err = nil
	if err := h.Handle(context.Background(), body); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if deliverer.calls != 2 {
		t.Fatalf("failed delivery must release the dedup key, calls=%d", deliverer.calls)
	}
}

func TestNotificationCreatedRejectsBadPayload(t *testing.T) {
	rdb := newTestRedis(t)
	h := NewNotificationCreatedHandler(&countingDeliverer{}, util.NewDeduper(rdb, time.Hour, nil), zap.NewNop())

	for _, body := range [][]byte{[]byte("{oops"), []byte(`{"notification_id":0,"user_id":1}`)} {
		err := h.Handle(context.Background(), body)
		if retryable, _ := util.IsRetryableError(err); err == nil || retryable {
			t.Fatalf("bad payload %s must be a permanent error, got %v", body, err)
		}
	}
}

func TestTaskOverdueRecordsReminderOnce(t *testing.T) {
	rdb := newTestRedis(t)
	recorder := &fakeRecorder{}
	h := NewTaskOverdueHandler(recorder, util.NewDeduper(rdb, time.Hour, nil), util.NewRetryCounter(rdb, time.Hour), 3, zap.NewNop())
	due := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	body := mustJSON(t, mqcontracts.TaskOverduePayload{TaskID: 4, ProjectID: 1, AssigneeID: 8, Title: "Ship", DueDate: due})

	for i := 0; i < 2; i++ {
		if err := h.Handle(context.Background(), body); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if len(recorder.recorded) != 1 {
		t.Fatalf("expected one reminder, got %d", len(recorder.recorded))
	}
	n := recorder.recorded[0]
	if n.UserID != 8 || n.Type != model.NotificationDueDate || n.Message != `Task "Ship" is overdue (due 2024-05-01)` {
		t.Fatalf("unexpected reminder %+v", n)
	}
}

func TestTaskOverdueRemindsAgainAfterReschedule(t *testing.T) {
	rdb := newTestRedis(t)
	recorder := &fakeRecorder{}
	h := NewTaskOverdueHandler(recorder, util.NewDeduper(rdb, 24*time.Hour, nil), util.NewRetryCounter(rdb, time.Hour), 3, zap.NewNop())
	first := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	second := first.Add(6 * time.Hour)

	for _, due := range []time.Time{first, first, second, second} {
		body := mustJSON(t, mqcontracts.TaskOverduePayload{TaskID: 7, AssigneeID: 8, Title: "Ship", DueDate: due})
		if err := h.Handle(context.Background(), body); err != nil {
			t.Fatalf("handle due %s: %v", due, err)
		}
	}
	if len(recorder.recorded) != 2 {
		t.Fatalf("expected one reminder per due date, got %d", len(recorder.recorded))
	}
}

func TestTaskOverdueRetriesThenGivesUp(t *testing.T) {
	rdb := newTestRedis(t)
	recorder := &fakeRecorder{err: errors.New("db down")}
	retries := util.NewRetryCounter(rdb, time.Hour)
	h := NewTaskOverdueHandler(recorder, util.NewDeduper(rdb, time.Hour, nil), retries, 2, zap.NewNop())
	body := mustJSON(t, mqcontracts.TaskOverduePayload{TaskID: 4, AssigneeID: 8, Title: "Ship"})

	for i := 0; i < 2; i++ {
		err := h.Handle(context.Background(), body)
		if retryable, _ := util.IsRetryableError(err); !retryable {
			t.Fatalf("attempt %d: expected a requeue, got %v", i+1, err)
		}
	}
	err := h.Handle(context.Background(), body)
	if !errors.Is(err, util.ErrRetriesExhausted) {
		t.Fatalf("expected retries exhausted, got %v", err)
	}
	if retryable, _ := util.IsRetryableError(err); retryable {
		t.Fatal("exhausted error must not be requeued")
	}
	retryKey := util.FormatRetryKey(fmt.Sprintf("%s:%d", overdueReminderHandler, time.Time{}.Unix()), 4)
	if count, _ := retries.Get(context.Background(), retryKey); count != 0 {
		t.Fatalf("retry counter should be reset, got %d", count)
	}
}

func TestTaskOverdueRejectsMissingAssignee(t *testing.T) {
	rdb := newTestRedis(t)
	recorder := &fakeRecorder{}
	h := NewTaskOverdueHandler(recorder, util.NewDeduper(rdb, time.Hour, nil), util.NewRetryCounter(rdb, time.Hour), 3, zap.NewNop())

	err := h.Handle(context.Background(), []byte(`{"task_id":4}`))
	if retryable, _ := util.IsRetryableError(err); err == nil || retryable {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if len(recorder.recorded) != 0 {
		t.Fatal("nothing should be recorded")
	}
}
