package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"tasknexus/internal/apperr"
	"tasknexus/internal/model"
	"tasknexus/pkg/logger"
	"tasknexus/pkg/util"
)

const (
	defaultWorkspaceDescription = "Default workspace"
	defaultProjectName          = "My First Project"
	defaultProjectDescription   = "Default project"

	minPasswordLength = 6
)

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

type WorkspaceCreator interface {
	Create(ctx context.Context, ws *model.Workspace) error
}

type ProjectCreator interface {
	Create(ctx context.Context, p *model.Project) error
}

// Session 登录/注册的返回值
type Session struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type Service struct {
	users      UserStore
	workspaces WorkspaceCreator
	projects   ProjectCreator
	jwtSecret  string
	tokenTTL   time.Duration
	logger     *zap.Logger
}

func NewService(users UserStore, workspaces WorkspaceCreator, projects ProjectCreator, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		users:      users,
		workspaces: workspaces,
		projects:   projects,
		jwtSecret:  jwtSecret,
		tokenTTL:   tokenTTL,
		logger:     logger,
	}
}

// Register 创建用户，随后创建默认工作区（用户为 owner）和默认项目。
// 后两步不在同一事务里：失败时返回错误，已创建的用户保留。
func (s *Service) Register(ctx context.Context, username, email, password string) (*Session, error) {
	log := logger.WithTrace(ctx, s.logger)

	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return nil, apperr.Validation("username, email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("invalid email address")
	}
	if len(password) < minPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLength)
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &model.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, u); err != nil {
		log.Warn("Register: failed to create user", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	ws := &model.Workspace{
		Name:        fmt.Sprintf("%s Workspace", username),
		Description: defaultWorkspaceDescription,
		OwnerID:     u.ID,
	}
	if err := s.workspaces.Create(ctx, ws); err != nil {
		log.Error("Register: failed to create default workspace", zap.Int64("user_id", u.ID), zap.Error(err))
		return nil, fmt.Errorf("create default workspace: %w", err)
	}

	p := &model.Project{
		Name:        defaultProjectName,
		Description: defaultProjectDescription,
		Color:       model.DefaultProjectColor,
		WorkspaceID: ws.ID,
	}
	if err := s.projects.Create(ctx, p); err != nil {
		log.Error("Register: failed to create default project", zap.Int64("workspace_id", ws.ID), zap.Error(err))
		return nil, fmt.Errorf("create default project: %w", err)
	}

	token, err := util.GenerateJWT(u.ID, u.Username, u.Email, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, err
	}

	log.Info("User registered",
		zap.Int64("user_id", u.ID),
		zap.Int64("workspace_id", ws.ID),
		zap.Int64("project_id", p.ID),
	)
	return &Session{Token: token, User: u}, nil
}

// Login 校验邮箱和密码（bcrypt），成功返回 JWT
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthenticated("invalid email or password")
		}
		return nil, err
	}
	if !util.CheckPassword(password, u.PasswordHash) {
		logger.WithTrace(ctx, s.logger).Info("Login: wrong password", zap.Int64("user_id", u.ID))
		return nil, apperr.Unauthenticated("invalid email or password")
	}

	token, err := util.GenerateJWT(u.ID, u.Username, u.Email, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: u}, nil
}

// Me 返回当前用户；token 有效但用户已不存在时视为未认证
func (s *Service) Me(ctx context.Context, userID int64) (*model.User, error) {
	if userID <= 0 {
		return nil, apperr.Unauthenticated("missing user")
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthenticated("user no longer exists")
		}
		return nil, err
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
