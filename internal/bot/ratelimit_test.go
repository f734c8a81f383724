package bot

import (
	"fmt"
	"testing"
	"time"
)

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := NewLimiter(60, 2)

	if !l.Allow("u1") || !l.Allow("u1") {
		t.Fatal("burst should admit the first two interactions")
	}
	if l.Allow("u1") {
		t.Fatal("third interaction inside the burst window should be denied")
	}

	// Per-user buckets are independent.
	if !l.Allow("u2") {
		t.Fatal("a fresh user must not inherit another user's exhaustion")
	}
}

func TestLimiter_PrunesIdleUsers(t *testing.T) {
	l := NewLimiter(60, 1)
	clock := time.Now()
	l.now = func() time.Time { return clock }

	for i := 0; i < 1024; i++ {
		l.Allow(fmt.Sprintf("u%d", i))
	}
	if got := len(l.users); got != 1024 {
		t.Fatalf("expected 1024 tracked users, got %d", got)
	}

	clock = clock.Add(16 * time.Minute)
	l.Allow("fresh")
	if got := len(l.users); got != 1 {
		t.Fatalf("idle users should be pruned, got %d tracked", got)
	}
}
