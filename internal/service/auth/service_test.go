package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"tasknexus/internal/apperr"
	"tasknexus/internal/model"
	"tasknexus/pkg/util"
)

const testSecret = "test-secret"

type fakeUsers struct {
	byID map[int64]*model.User
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return apperr.Conflict("email already registered")
		}
		if existing.Username == u.Username {
			return apperr.Conflict("username already taken")
		}
	}
	u.ID = int64(len(f.byID) + 1)
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (f *fakeUsers) FindByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	cp := *u
	return &cp, nil
}

type fakeWorkspaces struct {
	created []model.Workspace
	err     error
}

func (f *fakeWorkspaces) Create(_ context.Context, ws *model.Workspace) error {
	if f.err != nil {
		return f.err
	}
	ws.ID = int64(len(f.created) + 100)
	f.created = append(f.created, *ws)
	return nil
}

type fakeProjects struct {
	created []model.Project
}

func (f *fakeProjects) Create(_ context.Context, p *model.Project) error {
	p.ID = int64(len(f.created) + 1000)
	f.created = append(f.created, *p)
	return nil
}

func newTestService() (*Service, *fakeUsers, *fakeWorkspaces, *fakeProjects) {
	users := &fakeUsers{byID: map[int64]*model.User{}}
	ws := &fakeWorkspaces{}
	projects := &fakeProjects{}
	return NewService(users, ws, projects, testSecret, time.Hour, zap.NewNop()), users, ws, projects
}

func TestRegisterCreatesDefaults(t *testing.T) {
	svc, users, ws, projects := newTestService()

	sess, err := svc.Register(context.Background(), "alice", "Alice@Example.com", "secret123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	claims, err := util.ParseJWT(sess.Token, testSecret)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if claims.UserID != sess.User.ID || claims.Username != "alice" || claims.Email != "alice@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	stored := users.byID[sess.User.ID]
	if stored.PasswordHash == "secret123" || !util.CheckPassword("secret123", stored.PasswordHash) {
		t.Fatal("password must be stored as a bcrypt hash")
	}

	if len(ws.created) != 1 {
		t.Fatalf("expected one default workspace, got %d", len(ws.created))
	}
	w := ws.created[0]
	if w.Name != "alice Workspace" || w.Description != "Default workspace" || w.OwnerID != sess.User.ID {
		t.Fatalf("unexpected workspace %+v", w)
	}

	if len(projects.created) != 1 {
		t.Fatalf("expected one default project, got %d", len(projects.created))
	}
	p := projects.created[0]
	if p.Name != "My First Project" || p.Description != "Default project" ||
		p.Color != model.DefaultProjectColor || p.WorkspaceID != w.ID {
		t.Fatalf("unexpected project %+v", p)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	cases := []struct{ username, email, password string }{
		{"", "a@example.com", "secret123"},
		{"a", "", "secret123"},
		{"a", "a@example.com", ""},
		{"a", "not-an-email", "secret123"},
		{"a", "a@example.com", "123"},
	}
	for _, tc := range cases {
		if _, err := svc.Register(context.Background(), tc.username, tc.email, tc.password); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Register(%q, %q, %q) expected validation error, got %v", tc.username, tc.email, tc.password, err)
		}
	}
}

func TestRegisterDuplicateIsConflict(t *testing.T) {
	svc, _, ws, _ := newTestService()
	if _, err := svc.Register(context.Background(), "alice", "alice@example.com", "secret123"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Register(context.Background(), "alice2", "alice@example.com", "secret123")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected Conflict, got %v", err)
	}
	if len(ws.created) != 1 {
		t.Fatal("no workspace for a rejected registration")
	}
}

func TestRegisterWorkspaceFailureKeepsUser(t *testing.T) {
	svc, users, ws, projects := newTestService()
	ws.err = errors.New("db down")
	if _, err := svc.Register(context.Background(), "alice", "alice@example.com", "secret123"); err == nil {
		t.Fatal("expected error")
	}
	if len(users.byID) != 1 || len(projects.created) != 0 {
		t.Fatal("user stays, project is not created")
	}
}

func TestLogin(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	reg, err := svc.Register(ctx, "alice", "alice@example.com", "secret123")
	if err != nil {
		t.Fatal(err)
	}

	sess, err := svc.Login(ctx, " ALICE@example.com", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.User.ID != reg.User.ID || sess.Token == "" {
		t.Fatalf("unexpected session %+v", sess)
	}

	if _, err := svc.Login(ctx, "alice@example.com", "wrong-pass"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("wrong password: expected Unauthenticated, got %v", err)
	}
	if _, err := svc.Login(ctx, "bob@example.com", "secret123"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("unknown email: expected Unauthenticated, got %v", err)
	}
	if _, err := svc.Login(ctx, "", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("empty credentials: expected validation error, got %v", err)
	}
}

func TestMe(t *testing.T) {
	svc, _, _, _ := newTestService()
	reg, _ := svc.Register(context.Background(), "alice", "alice@example.com", "secret123")

	u, err := svc.Me(context.Background(), reg.User.ID)
	if err != nil || u.Username != "alice" {
		t.Fatalf("me: %+v %v", u, err)
	}
	if _, err := svc.Me(context.Background(), 999); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}
