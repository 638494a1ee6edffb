package ledger_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"clipmill/internal/ledger"
)

// Runs only against a real server: CLIPMILL_TEST_REDIS_ADDR=localhost:6379.
func TestRedisLedgerRoundTrip(t *testing.T) {
	addr := os.Getenv("CLIPMILL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CLIPMILL_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	opts := ledger.RedisOptions{Addr: addr, Key: "clipmill:test:" + uuid.NewString()}

	backend, err := ledger.OpenRedis(ctx, opts)
	if err != nil {
		t.Fatalf("OpenRedis: %v", err)
	}
	t.Cleanup(func() {
		_ = backend.Replace(context.Background(), nil)
		_ = backend.Close()
	})

	l, err := ledger.New(ctx, backend)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, key := range []string{"a", "b", "a"} {
		if err := l.MarkCompleted(ctx, key); err != nil {
			t.Fatalf("MarkCompleted(%s): %v", key, err)
		}
	}
	keys, err := backend.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("keys = %v, want [a b]", keys)
	}
}
