package cache

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestBalanceKey(t *testing.T) {
	if got := BalanceKey("abc"); got != "credits:balance:abc" {
		t.Fatalf("BalanceKey = %q", got)
	}
}

func TestIsMiss(t *testing.T) {
	if !IsMiss(redis.Nil) {
		t.Fatal("redis.Nil must be a miss")
	}
	if IsMiss(errors.New("dial tcp: connection refused")) {
		t.Fatal("connection failure must not be a miss")
	}
	if IsMiss(nil) {
		t.Fatal("nil is a hit, not a miss")
	}
}

// newTestRedis connects to TEST_REDIS_ADDR and skips when it is unset.
func newTestRedis(t *testing.T) *RedisCache {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	c := NewRedisCache(addr)
	if err := c.Ping(context.Background()); err != nil {
		c.Close()
		t.Skipf("redis unreachable: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSetBalanceKeepsNewestVersion(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()
	key := BalanceKey("test-" + uuid.New().String())
	t.Cleanup(func() { c.Delete(context.Background(), key) })

	steps := []struct {
		name      string
		snapshot  BalanceSnapshot
		wantWrite bool
		want      BalanceSnapshot
	}{
		{"first write", BalanceSnapshot{Balance: 100, Active: true, Version: 1}, true, BalanceSnapshot{Balance: 100, Active: true, Version: 1}},
		{"newer debit", BalanceSnapshot{Balance: 90, Active: true, Version: 2}, true, BalanceSnapshot{Balance: 90, Active: true, Version: 2}},
		{"late older read", BalanceSnapshot{Balance: 100, Active: true, Version: 1}, false, BalanceSnapshot{Balance: 90, Active: true, Version: 2}},
		{"same version", BalanceSnapshot{Balance: 50, Active: true, Version: 2}, false, BalanceSnapshot{Balance: 90, Active: true, Version: 2}},
		{"deactivated", BalanceSnapshot{Balance: 90, Active: false, Version: 3}, true, BalanceSnapshot{Balance: 90, Active: false, Version: 3}},
	}

	for _, step := range steps {
		written, err := c.SetBalance(ctx, key, step.snapshot, BalanceTTL)
		if err != nil {
			t.Fatalf("%s: SetBalance: %v", step.name, err)
		}
		if written != step.wantWrite {
			t.Fatalf("%s: written = %t, want %t", step.name, written, step.wantWrite)
		}
		var got BalanceSnapshot
		if err := c.GetJSON(ctx, key, &got); err != nil {
			t.Fatalf("%s: GetJSON: %v", step.name, err)
		}
		if got != step.want {
			t.Fatalf("%s: cached %+v, want %+v", step.name, got, step.want)
		}
	}

	if ttl := c.client.PTTL(ctx, key).Val(); ttl <= 0 || ttl > BalanceTTL {
		t.Fatalf("unexpected ttl %v", ttl)
	}
}
