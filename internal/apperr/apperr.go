// Package apperr defines the error kinds shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// NotFound e.g. NotFound("workspace %d", id) -> "workspace 3: not found"
func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

func Unauthenticated(format string, args ...any) error {
	return wrap(ErrUnauthenticated, format, args...)
}

func Forbidden(format string, args ...any) error {
	return wrap(ErrForbidden, format, args...)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// Message 返回去掉 kind 后缀的描述，用于响应体
func Message(err error) string {
	for _, kind := range []error{ErrNotFound, ErrValidation, ErrConflict, ErrUnauthenticated, ErrForbidden} {
		if errors.Is(err, kind) {
			msg := err.Error()
			suffix := ": " + kind.Error()
			if len(msg) > len(suffix) && msg[len(msg)-len(suffix):] == suffix {
				return msg[:len(msg)-len(suffix)]
			}
			return msg
		}
	}
	return err.Error()
}
