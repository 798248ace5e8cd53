package notification

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"tasknexus/internal/apperr"
	"tasknexus/internal/model"
)

// memStore 内存实现，语义与 NotificationRepository 一致
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	items     map[int64]*model.Notification
	insertErr error
}

func newMemStore() *memStore {
	return &memStore{items: map[int64]*model.Notification{}}
}

func (s *memStore) Insert(_ context.Context, n *model.Notification, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.nextID++
	n.ID = s.nextID
	n.IsRead = false
	n.CreatedAt = time.Unix(0, 0).Add(time.Duration(s.nextID) * time.Second)
	cp := *n
	s.items[n.ID] = &cp
	return nil
}

func (s *memStore) ListByUser(_ context.Context, userID int64, limit int) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Notification
	for _, n := range s.items {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) MarkRead(_ context.Context, id, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok || n.UserID != userID {
		return apperr.NotFound("notification %d", id)
	}
	n.IsRead = true
	return nil
}

func (s *memStore) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updated int64
	for _, n := range s.items {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (s *memStore) CountUnread(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.items {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *memStore) snapshot() map[int64]model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]model.Notification, len(s.items))
	for id, n := range s.items {
		out[id] = *n
	}
	return out
}

func newTestLedger() (*Ledger, *memStore) {
	store := newMemStore()
	return NewLedger(store, 0, zap.NewNop()), store
}

func TestRecordAppendsUnread(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()

	n, err := l.Record(ctx, 7, model.NotificationInvite, "hello")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if n.ID == 0 || n.IsRead || n.UserID != 7 {
		t.Fatalf("unexpected notification %+v", n)
	}

	for _, tc := range []struct {
		userID  int64
		typ     string
		message string
	}{
		{0, model.NotificationInvite, "x"},
		{7, "", "x"},
		{7, model.NotificationInvite, "  "},
	} {
		if _, err := l.Record(ctx, tc.userID, tc.typ, tc.message); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Record(%d, %q, %q) expected validation error, got %v", tc.userID, tc.typ, tc.message, err)
		}
	}
}

func TestRecordPropagatesStoreError(t *testing.T) {
	l, store := newTestLedger()
	store.insertErr = errors.New("db down")
	if _, err := l.Record(context.Background(), 1, model.NotificationInvite, "x"); err == nil {
		t.Fatal("expected store error to surface")
	}
}

func TestListNewestFirstCapped(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		if _, err := l.Record(ctx, 1, model.NotificationInvite, "m"); err != nil {
			t.Fatal(err)
		}
	}
	_, _ = l.Record(ctx, 2, model.NotificationInvite, "other")

	items, err := l.List(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != DefaultListLimit {
		t.Fatalf("expected %d items, got %d", DefaultListLimit, len(items))
	}
	for i := 1; i < len(items); i++ {
		if !items[i-1].CreatedAt.After(items[i].CreatedAt) {
			t.Fatalf("items not newest first at %d", i)
		}
		if items[i].UserID != 1 {
			t.Fatalf("foreign notification leaked: %+v", items[i])
		}
	}

	empty, err := l.List(ctx, 0)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("absent user must yield an empty list, got %v (%v)", empty, err)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	l, store := newTestLedger()
	ctx := context.Background()
	n, _ := l.Record(ctx, 1, model.NotificationInvite, "m")

	for i := 0; i < 2; i++ {
		if err := l.MarkRead(ctx, 1, n.ID); err != nil {
			t.Fatalf("mark read #%d: %v", i+1, err)
		}
	}
	if !store.snapshot()[n.ID].IsRead {
		t.Fatal("notification should be read")
	}
}

func TestMarkReadUnknownIDLeavesOthersUntouched(t *testing.T) {
	l, store := newTestLedger()
	ctx := context.Background()
	_, _ = l.Record(ctx, 1, model.NotificationInvite, "a")
	other, _ := l.Record(ctx, 2, model.NotificationInvite, "b")
	before := store.snapshot()

	if err := l.MarkRead(ctx, 1, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	// 其他用户的通知也视为不存在
	if err := l.MarkRead(ctx, 1, other.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected NotFound for foreign notification, got %v", err)
	}
	if err := l.MarkRead(ctx, 1, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for id 0, got %v", err)
	}

	after := store.snapshot()
	for id, n := range before {
		if after[id] != n {
			t.Fatalf("notification %d changed: %+v -> %+v", id, n, after[id])
		}
	}
}

func TestMarkAllReadIdempotent(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = l.Record(ctx, 1, model.NotificationInvite, "m")
	}
	_, _ = l.Record(ctx, 2, model.NotificationInvite, "m")

	updated, err := l.MarkAllRead(ctx, 1)
	if err != nil || updated != 3 {
		t.Fatalf("first call: updated=%d err=%v", updated, err)
	}
	if unread, _ := l.UnreadCount(ctx, 1); unread != 0 {
		t.Fatalf("expected 0 unread, got %d", unread)
	}

	updated, err = l.MarkAllRead(ctx, 1)
	if err != nil || updated != 0 {
		t.Fatalf("second call: updated=%d err=%v", updated, err)
	}
	if unread, _ := l.UnreadCount(ctx, 1); unread != 0 {
		t.Fatalf("expected 0 unread after second call, got %d", unread)
	}
	if unread, _ := l.UnreadCount(ctx, 2); unread != 1 {
		t.Fatalf("other user's notifications must stay unread, got %d", unread)
	}

	// 没有通知的用户也成功
	if _, err := l.MarkAllRead(ctx, 42); err != nil {
		t.Fatalf("mark all read with no notifications: %v", err)
	}
}

func TestReadStateIsMonotonic(t *testing.T) {
	l, store := newTestLedger()
	ctx := context.Background()
	n, _ := l.Record(ctx, 1, model.NotificationInvite, "m")
	_ = l.MarkRead(ctx, 1, n.ID)
	_, _ = l.MarkAllRead(ctx, 1)
	_ = l.MarkRead(ctx, 1, n.ID)

	if !store.snapshot()[n.ID].IsRead {
		t.Fatal("is_read must never flip back to false")
	}
}
