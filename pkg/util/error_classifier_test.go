package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsRetryableError(t *testing.T) {
	var syntaxErr error = &json.SyntaxError{}
	tests := []struct {
		name      string
		err       error
		retryable bool
		errType   string
	}{
		{"nil", nil, false, ""},
		{"permanent", Permanent(errors.New("boom")), false, "permanent"},
		{"exhausted", fmt.Errorf("x: %w", ErrRetriesExhausted), false, "retries_exhausted"},
		{"marked retryable", Retryable(errors.New("db down")), true, "retryable"},
		{"json", fmt.Errorf("decode: %w", syntaxErr), false, "json_decode_error"},
		{"deadline", context.DeadlineExceeded, true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"no rows", fmt.Errorf("find: %w", pgx.ErrNoRows), false, "not_found"},
		{"unique", &pgconn.PgError{Code: "23505"}, false, "duplicate_key"},
		{"fk", &pgconn.PgError{Code: "23503"}, false, "constraint_violation"},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true, "db_transient_error"},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true, "db_transient_error"},
		{"refused", errors.New("dial tcp: connection refused"), true, "connection_refused"},
		{"unknown", errors.New("weird"), false, "unknown_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, errType := IsRetryableError(tt.err)
			if retryable != tt.retryable || errType != tt.errType {
				t.Fatalf("got (%v, %q), want (%v, %q)", retryable, errType, tt.retryable, tt.errType)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	if ShouldRetry(1, 3, false) {
		t.Fatal("non-retryable must not retry")
	}
	if !ShouldRetry(3, 3, true) {
		t.Fatal("retry count equal to max still retries")
	}
	if ShouldRetry(4, 3, true) {
		t.Fatal("retry count above max must stop")
	}
}
