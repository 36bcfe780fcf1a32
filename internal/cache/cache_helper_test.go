package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestHelper(t *testing.T, prefix string) *CacheHelper {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCacheHelper(client, prefix)
}

func TestCacheHelper_SetGet(t *testing.T) {
	helper := newTestHelper(t, "registration:")
	ctx := context.Background()

	type payload struct {
		ID   uint   `json:"id"`
		Code string `json:"code"`
	}

	if err := helper.Set(ctx, "id:42", payload{ID: 42, Code: "LEPL1402"}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got payload
	if err := helper.Get(ctx, "id:42", &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != 42 || got.Code != "LEPL1402" {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestCacheHelper_GetMissing(t *testing.T) {
	helper := newTestHelper(t, "course:")

	var dest map[string]interface{}
	err := helper.Get(context.Background(), "code:missing", &dest)
	if err != ErrCacheNotFound {
		t.Errorf("expected ErrCacheNotFound, got %v", err)
	}
}

func TestCacheHelper_NilClient(t *testing.T) {
	helper := NewCacheHelper(nil, "user:")
	ctx := context.Background()

	// Writes degrade gracefully, reads report unavailability.
	if err := helper.Set(ctx, "id:1", "x", time.Minute); err != nil {
		t.Errorf("Set with nil client should be a no-op, got %v", err)
	}

	var dest string
	if err := helper.Get(ctx, "id:1", &dest); err != ErrCacheNotAvailable {
		t.Errorf("expected ErrCacheNotAvailable, got %v", err)
	}
}

func TestCacheHelper_InvalidatePattern(t *testing.T) {
	helper := newTestHelper(t, "registration:")
	ctx := context.Background()

	keys := []string{"course:7:list:1", "course:7:list:2", "course:8:list:1"}
	for _, key := range keys {
		if err := helper.SetString(ctx, key, "cached", time.Minute); err != nil {
			t.Fatalf("SetString failed: %v", err)
		}
	}

	if err := helper.InvalidatePattern(ctx, "course:7:*"); err != nil {
		t.Fatalf("InvalidatePattern failed: %v", err)
	}

	if _, err := helper.GetString(ctx, "course:7:list:1"); err != ErrCacheNotFound {
		t.Errorf("expected course 7 entries invalidated, got %v", err)
	}
	if _, err := helper.GetString(ctx, "course:8:list:1"); err != nil {
		t.Errorf("course 8 entry should survive, got %v", err)
	}
}

func TestCacheHelper_CacheOrExecute(t *testing.T) {
	helper := newTestHelper(t, "course:")
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return map[string]string{"code": "LINFO1101"}, nil
	}

	var first map[string]string
	if err := helper.CacheOrExecute(ctx, "code:LINFO1101", &first, time.Minute, fetch); err != nil {
		t.Fatalf("CacheOrExecute failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 fetch, got %d", calls)
	}

	// The async cache write races the second read; wait for the key.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if ok, _ := helper.Exists(ctx, "code:LINFO1101"); ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	var second map[string]string
	if err := helper.CacheOrExecute(ctx, "code:LINFO1101", &second, time.Minute, fetch); err != nil {
		t.Fatalf("CacheOrExecute (cached) failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected cached read, fetch ran %d times", calls)
	}
	if second["code"] != "LINFO1101" {
		t.Errorf("unexpected cached value: %v", second)
	}
}
