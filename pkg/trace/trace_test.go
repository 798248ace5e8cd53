package trace

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := WithContext(context.Background(), "abc")
	if got := FromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
	if got := FromContext(context.Background()); got != "" {
		t.Fatalf("expected empty trace id, got %q", got)
	}
}

func TestFromHeaderPrecedence(t *testing.T) {
	if got := FromHeader("t1", "r1"); got != "t1" {
		t.Fatalf("trace header should win, got %q", got)
	}
	if got := FromHeader("", "r1"); got != "r1" {
		t.Fatalf("request id fallback, got %q", got)
	}
	if got := FromHeader("", ""); len(got) != 32 {
		t.Fatalf("expected generated 32-char id, got %q", got)
	}
}
