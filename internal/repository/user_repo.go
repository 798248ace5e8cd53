package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"tasknexus/internal/model"
)

type UserRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

// Create inserts a new user. Duplicate username or email is a Conflict.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	r.logger.Debug("Inserting user", zap.String("username", u.Username))
	query := `
        INSERT INTO users (username, email, password_hash, avatar_url)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query, u.Username, u.Email, u.PasswordHash, u.AvatarURL).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert user", zap.String("username", u.Username), zap.Error(err))
		return mapError(err, "user")
	}
	r.logger.Info("User inserted successfully", zap.Int64("user_id", u.ID))
	return nil
}

// FindByEmail returns user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
        SELECT id, username, email, password_hash, avatar_url, created_at
        FROM users
        WHERE email = $1
    `
	var u model.User
	err := r.db.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.AvatarURL, &u.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err, "user")
	}
	return &u, nil
}

// FindByID returns user by id.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
        SELECT id, username, email, password_hash, avatar_url, created_at
        FROM users
        WHERE id = $1
    `
	var u model.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.AvatarURL, &u.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err, "user")
	}
	return &u, nil
}
