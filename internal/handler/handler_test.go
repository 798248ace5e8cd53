package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tasknexus/internal/apperr"
	"tasknexus/internal/model"
	"tasknexus/internal/service/auth"
	"tasknexus/internal/service/task"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newEngine 模拟认证中间件写入 user_id
func newEngine(userID int64) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID > 0 {
			c.Set(ContextUserID, userID)
		}
		c.Next()
	})
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	msg, _ := body["error"].(string)
	return msg
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.NotFound("x"), http.StatusNotFound},
		{apperr.Validation("x"), http.StatusBadRequest},
		{apperr.Conflict("x"), http.StatusConflict},
		{apperr.Unauthenticated("x"), http.StatusUnauthorized},
		{apperr.Forbidden("x"), http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", apperr.Conflict("x")), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestParseID(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-3", "", "1.5"} {
		if _, err := parseID(raw, "id"); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("parseID(%q) expected validation error, got %v", raw, err)
		}
	}
	if id, err := parseID("42", "id"); err != nil || id != 42 {
		t.Fatalf("parseID(42) = %d, %v", id, err)
	}
}

type stubLedger struct {
	list        func(ctx context.Context, userID int64) ([]model.Notification, error)
	markRead    func(ctx context.Context, userID, id int64) error
	markAllRead func(ctx context.Context, userID int64) (int64, error)
	unread      func(ctx context.Context, userID int64) (int, error)
}

func (s stubLedger) List(ctx context.Context, userID int64) ([]model.Notification, error) {
	return s.list(ctx, userID)
}

func (s stubLedger) MarkRead(ctx context.Context, userID, id int64) error {
	return s.markRead(ctx, userID, id)
}

func (s stubLedger) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.markAllRead(ctx, userID)
}

func (s stubLedger) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.unread(ctx, userID)
}

func notificationRouter(ledger NotificationLedger) *gin.Engine {
	h := NewNotificationHandler(ledger, zap.NewNop())
	r := newEngine(7)
	r.GET("/notifications", h.List)
	r.GET("/notifications/unread-count", h.UnreadCount)
	r.PUT("/notifications/read-all", h.MarkAllRead)
	r.PUT("/notifications/:id/read", h.MarkRead)
	return r
}

func TestNotificationRoutes(t *testing.T) {
	var gotUser, gotID int64
	ledger := stubLedger{
		list: func(_ context.Context, userID int64) ([]model.Notification, error) {
			gotUser = userID
			return []model.Notification{{ID: 1, UserID: userID, Type: model.NotificationInvite}}, nil
		},
		markRead: func(_ context.Context, userID, id int64) error {
			gotUser, gotID = userID, id
			if id == 404 {
				return apperr.NotFound("notification %d", id)
			}
			return nil
		},
		markAllRead: func(context.Context, int64) (int64, error) { return 3, nil },
		unread: func(_ context.Context, userID int64) (int, error) {
			gotUser = userID
			return 4, nil
		},
	}
	r := notificationRouter(ledger)

	w := do(r, http.MethodGet, "/notifications", "")
	if w.Code != http.StatusOK || gotUser != 7 {
		t.Fatalf("list: %d user=%d", w.Code, gotUser)
	}
	var items []model.Notification
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil || len(items) != 1 {
		t.Fatalf("list body %s", w.Body.String())
	}

	if w := do(r, http.MethodPut, "/notifications/5/read", ""); w.Code != http.StatusOK || gotID != 5 {
		t.Fatalf("mark read: %d id=%d", w.Code, gotID)
	}
	if w := do(r, http.MethodPut, "/notifications/404/read", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	for _, bad := range []string{"abc", "0", "-1"} {
		if w := do(r, http.MethodPut, "/notifications/"+bad+"/read", ""); w.Code != http.StatusBadRequest {
			t.Fatalf("id %q: expected 400, got %d", bad, w.Code)
		}
	}

	w = do(r, http.MethodPut, "/notifications/read-all", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"updated":3`) {
		t.Fatalf("read-all: %d %s", w.Code, w.Body.String())
	}

	gotUser = 0
	w = do(r, http.MethodGet, "/notifications/unread-count", "")
	if w.Code != http.StatusOK || gotUser != 7 || !strings.Contains(w.Body.String(), `"count":4`) {
		t.Fatalf("unread count: %d user=%d %s", w.Code, gotUser, w.Body.String())
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	ledger := stubLedger{
		list: func(context.Context, int64) ([]model.Notification, error) {
			return nil, errors.New("pq: password authentication failed")
		},
	}
	w := do(notificationRouter(ledger), http.MethodGet, "/notifications", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if msg := errorBody(t, w); strings.Contains(msg, "password") {
		t.Fatalf("internal error leaked: %q", msg)
	}
}

type stubAuth struct {
	sessions map[string]*auth.Session
}

func (s stubAuth) Register(_ context.Context, username, email, _ string) (*auth.Session, error) {
	if username == "" {
		return nil, apperr.Validation("username, email and password are required")
	}
	if _, ok := s.sessions[email]; ok {
		return nil, apperr.Conflict("email already registered")
	}
	return &auth.Session{Token: "t", User: &model.User{ID: 1, Username: username, Email: email}}, nil
}

func (s stubAuth) Login(_ context.Context, email, password string) (*auth.Session, error) {
	sess, ok := s.sessions[email]
	if !ok || password != "secret123" {
		return nil, apperr.Unauthenticated("invalid email or password")
	}
	return sess, nil
}

func (s stubAuth) Me(_ context.Context, userID int64) (*model.User, error) {
	return &model.User{ID: userID, Username: "alice"}, nil
}

func TestAuthRoutes(t *testing.T) {
	svc := stubAuth{sessions: map[string]*auth.Session{
		"alice@example.com": {Token: "tok", User: &model.User{ID: 1, Username: "alice", Email: "alice@example.com", PasswordHash: "hash"}},
	}}
	h := NewAuthHandler(svc, zap.NewNop())
	r := newEngine(1)
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.GET("/auth/me", h.Me)

	w := do(r, http.MethodPost, "/auth/register", `{"username":"bob","email":"bob@example.com","password":"secret123"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPost, "/auth/register", `{"username":"a","email":"alice@example.com","password":"secret123"}`); w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/auth/register", `{not json`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json: expected 400, got %d", w.Code)
	}

	w = do(r, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"secret123"}`)
	if w.Code != http.StatusOK || strings.Contains(w.Body.String(), "hash") {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"nope"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", w.Code)
	}

	if w := do(r, http.MethodGet, "/auth/me", ""); w.Code != http.StatusOK {
		t.Fatalf("me: %d", w.Code)
	}
}

type stubTasks struct {
	lastUpdate model.TaskUpdate
	lastCreate task.CreateInput
	lastListID int64
}

func (s *stubTasks) List(_ context.Context, _ int64, projectID int64) ([]model.Task, error) {
	s.lastListID = projectID
	return []model.Task{}, nil
}

func (s *stubTasks) Create(_ context.Context, userID int64, in task.CreateInput) (*model.Task, error) {
	s.lastCreate = in
	return &model.Task{ID: 1, Title: in.Title, CreatedBy: userID}, nil
}

func (s *stubTasks) Update(_ context.Context, _ int64, taskID int64, upd model.TaskUpdate) (*model.Task, error) {
	s.lastUpdate = upd
	t := &model.Task{ID: taskID, Status: model.StatusTodo}
	upd.Apply(t)
	return t, nil
}

func (s *stubTasks) Delete(context.Context, int64, int64) error { return nil }

func taskRouter(svc TaskService) *gin.Engine {
	h := NewTaskHandler(svc, zap.NewNop())
	r := newEngine(1)
	r.GET("/tasks", h.List)
	r.POST("/tasks", h.Create)
	r.PUT("/tasks/:id", h.Update)
	r.DELETE("/tasks/:id", h.Delete)
	return r
}

func TestTaskUpdateNullClearsFields(t *testing.T) {
	svc := &stubTasks{}
	r := taskRouter(svc)

	w := do(r, http.MethodPut, "/tasks/3", `{"due_date":null,"assignee_id":null,"completed":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}
	if !svc.lastUpdate.ClearDue || !svc.lastUpdate.ClearAssign {
		t.Fatalf("null must clear: %+v", svc.lastUpdate)
	}
	var got model.Task
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Status != model.StatusDone || !got.Completed {
		t.Fatalf("completed=true must yield done: %+v", got)
	}

	w = do(r, http.MethodPut, "/tasks/3", `{"title":"x"}`)
	if w.Code != http.StatusOK || svc.lastUpdate.ClearDue || svc.lastUpdate.DueDate != nil || svc.lastUpdate.AssigneeID != nil {
		t.Fatalf("absent fields must stay untouched: %+v", svc.lastUpdate)
	}

	w = do(r, http.MethodPut, "/tasks/3", `{"due_date":"2024-06-01","assignee_id":9}`)
	if w.Code != http.StatusOK || svc.lastUpdate.DueDate == nil || svc.lastUpdate.DueDate.Day() != 1 ||
		svc.lastUpdate.AssigneeID == nil || *svc.lastUpdate.AssigneeID != 9 {
		t.Fatalf("set fields: %d %+v", w.Code, svc.lastUpdate)
	}

	if w := do(r, http.MethodPut, "/tasks/3", `{"due_date":"tomorrow"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", w.Code)
	}
	if w := do(r, http.MethodPut, "/tasks/x", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", w.Code)
	}
}

func TestTaskListAndCreate(t *testing.T) {
	svc := &stubTasks{}
	r := taskRouter(svc)

	if w := do(r, http.MethodGet, "/tasks?projectId=12", ""); w.Code != http.StatusOK || svc.lastListID != 12 {
		t.Fatalf("list filtered: %d %d", w.Code, svc.lastListID)
	}
	if w := do(r, http.MethodGet, "/tasks", ""); w.Code != http.StatusOK || svc.lastListID != 0 {
		t.Fatalf("list all: %d %d", w.Code, svc.lastListID)
	}
	if w := do(r, http.MethodGet, "/tasks?projectId=abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad projectId: expected 400, got %d", w.Code)
	}

	w := do(r, http.MethodPost, "/tasks", `{"title":"t","project_id":4,"due_date":"2024-06-01T10:00:00Z"}`)
	if w.Code != http.StatusCreated || svc.lastCreate.ProjectID != 4 || svc.lastCreate.DueDate == nil {
		t.Fatalf("create: %d %+v", w.Code, svc.lastCreate)
	}
}
