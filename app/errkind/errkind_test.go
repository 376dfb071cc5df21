package errkind

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := New(RateLimit, "openai", "429 Too Many Requests")
	err := fmt.Errorf("score item: %w", base)

	if got := KindOf(err); got != RateLimit {
		t.Errorf("Expected kind %q, got %q", RateLimit, got)
	}
}

func TestKindOfDeadline(t *testing.T) {
	err := fmt.Errorf("fetch: %w", context.DeadlineExceeded)

	if got := KindOf(err); got != Timeout {
		t.Errorf("Expected kind %q, got %q", Timeout, got)
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != Unknown {
		t.Errorf("Expected unknown kind, got %q", got)
	}
	if got := KindOf(nil); got != Unknown {
		t.Errorf("Expected unknown kind for nil, got %q", got)
	}
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{401, Auth},
		{403, Auth},
		{400, HTTP},
		{404, HTTP},
		{429, RateLimit},
		{500, Server},
		{503, Server},
		{200, Unknown},
	}

	for _, tt := range tests {
		if got := FromStatus(tt.status); got != tt.want {
			t.Errorf("Status %d: expected %q, got %q", tt.status, tt.want, got)
		}
	}
}

func TestRetryable(t *testing.T) {
	for _, k := range []Kind{RateLimit, Server, Timeout} {
		if !k.Retryable() {
			t.Errorf("Expected %q to be retryable", k)
		}
	}
	for _, k := range []Kind{Auth, Parse, Config, HTTP} {
		if k.Retryable() {
			t.Errorf("Expected %q not to be retryable", k)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	err := Wrapf(Parse, "feed", errors.New("unexpected EOF"), "source %s", "hn")
	want := "feed parse_error: source hn: unexpected EOF"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
	if !errors.Is(err, err.Err) {
		t.Errorf("Expected wrapped error to unwrap")
	}
}
