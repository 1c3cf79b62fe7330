package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{InvalidArgument("bad input"), KindInvalidArgument},
		{NotFound("missing"), KindNotFound},
		{Upstream("upstream down", errors.New("dial refused")), KindUpstreamUnavailable},
		{Internal("query failed", errors.New("sql: broken")), KindInternal},
		{errors.New("plain"), KindInternal},
		{fmt.Errorf("wrapped: %w", NotFound("missing")), KindNotFound},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestMessage_SafeForClients(t *testing.T) {
	err := Internal("Failed to load post", errors.New("sql: connection reset by peer"))
	msg := Message(err, "internal error")
	if msg != "Failed to load post" {
		t.Fatalf("unexpected message: %q", msg)
	}
	// 内部原因仍然可以通过 Unwrap 拿到，用于日志
	if err.Unwrap() == nil {
		t.Fatalf("expected wrapped cause to survive")
	}

	if got := Message(errors.New("sql: secret detail"), "internal error"); got != "internal error" {
		t.Fatalf("plain errors must fall back to the generic message, got %q", got)
	}
}
