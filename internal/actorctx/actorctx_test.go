package actorctx

import (
	"context"
	"testing"
)

func TestUserIDRoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), "u-1")

	got, ok := UserIDFrom(ctx)
	if !ok || got != "u-1" {
		t.Fatalf("UserIDFrom() = %q, %v", got, ok)
	}
}

func TestUserIDMissingOrEmpty(t *testing.T) {
	if _, ok := UserIDFrom(context.Background()); ok {
		t.Fatalf("empty context should carry no user")
	}

	if _, ok := UserIDFrom(WithUserID(context.Background(), "")); ok {
		t.Fatalf("empty user id should not count")
	}
}
