package limiter

import (
	"context"
	"testing"
	"time"
)

func TestMemory_BlocksAfterMaxFailsAndResets(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(Policy{Window: time.Minute, MaxFails: 3, BlockFor: 10 * time.Minute})
	m.now = func() time.Time { return now }
	ctx := context.Background()
	ip := HashIP("10.0.0.1")

	for i := 1; i < 3; i++ {
		blocked, _, err := m.Failure(ctx, "alice@example.com", ip)
		if err != nil || blocked {
			t.Fatalf("failure %d: blocked=%v err=%v", i, blocked, err)
		}
	}
	blocked, dur, err := m.Failure(ctx, "alice@example.com", ip)
	if err != nil || !blocked || dur != 10*time.Minute {
		t.Fatalf("third failure: blocked=%v dur=%v err=%v", blocked, dur, err)
	}

	ok, retry, _ := m.Allow(ctx, "alice@example.com", ip)
	if ok || retry != 10*time.Minute {
		t.Fatalf("Allow while blocked: ok=%v retry=%v", ok, retry)
	}
	// other clients are unaffected
	if ok, _, _ := m.Allow(ctx, "alice@example.com", HashIP("10.0.0.2")); !ok {
		t.Fatalf("other ip must be allowed")
	}

	now = now.Add(11 * time.Minute)
	if ok, _, _ := m.Allow(ctx, "alice@example.com", ip); !ok {
		t.Fatalf("block must expire")
	}

	if err := m.Success(ctx, "alice@example.com", ip); err != nil {
		t.Fatalf("Success: %v", err)
	}
	if blocked, _, _ := m.Failure(ctx, "alice@example.com", ip); blocked {
		t.Fatalf("counter must restart after success")
	}
}

func TestMemory_WindowRestartsCount(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(Policy{Window: time.Minute, MaxFails: 2, BlockFor: time.Minute})
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if blocked, _, _ := m.Failure(ctx, "bob@example.com", nil); blocked {
		t.Fatalf("first failure blocked")
	}
	now = now.Add(2 * time.Minute)
	if blocked, _, _ := m.Failure(ctx, "bob@example.com", nil); blocked {
		t.Fatalf("failure outside the window must start a new count")
	}
	if blocked, _, _ := m.Failure(ctx, "bob@example.com", nil); !blocked {
		t.Fatalf("second failure inside the window must block")
	}
}
