package turn

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocksSerializeSameWorld(t *testing.T) {
	locks := NewLocks()
	ctx := context.Background()

	unlock, err := locks.Lock(ctx, 1)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := locks.Lock(waitCtx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected second lock to wait, got %v", err)
	}

	other, err := locks.Lock(ctx, 2)
	if err != nil {
		t.Fatalf("different world should not block: %v", err)
	}
	other()

	unlock()
	unlock()

	again, err := locks.Lock(ctx, 1)
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()

	if n := locks.held(); n != 0 {
		t.Fatalf("expected entries to be dropped, %d remain", n)
	}
}
