package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tasknexus/internal/apperr"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// 唯一约束 -> 冲突描述
var conflictMessages = map[string]string{
	"users_username_key":     "username already taken",
	"users_email_key":        "email already registered",
	"workspace_members_pkey": "user is already a member of this workspace",
}

// mapError 把 pgx/postgres 错误转换为 apperr 的错误类型，其余原样返回
func mapError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s", entity)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if msg, ok := conflictMessages[pgErr.ConstraintName]; ok {
				return apperr.Conflict("%s", msg)
			}
			return apperr.Conflict("%s already exists", entity)
		case pgForeignKeyViolation:
			return apperr.Validation("%s references a missing record", entity)
		case pgCheckViolation:
			return apperr.Validation("%s has an invalid value", entity)
		}
	}
	return err
}
