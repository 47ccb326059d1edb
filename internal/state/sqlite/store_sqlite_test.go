package sqlite

import (
	"context"
	"testing"
	"time"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "key", "value"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	val, ok, err := store.Get(ctx, "key")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !ok || val != "value" {
		t.Fatalf("unexpected value: %v (ok=%v)", val, ok)
	}
	if err := store.Delete(ctx, "key"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	_, ok, err = store.Get(ctx, "key")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if ok {
		t.Fatalf("expected key to be deleted")
	}
}

func TestStoreTracksUpdateTime(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	first := time.UnixMilli(1000)
	second := time.UnixMilli(2000)
	store.now = func() time.Time { return first }

	ctx := context.Background()
	if err := store.Set(ctx, "key", "v1"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	ts, ok, err := store.UpdatedAt(ctx, "key")
	if err != nil || !ok {
		t.Fatalf("updated_at failed: ok=%v err=%v", ok, err)
	}
	if !ts.Equal(first) {
		t.Fatalf("expected %v, got %v", first, ts)
	}

	store.now = func() time.Time { return second }
	if err := store.Set(ctx, "key", "v2"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	ts, _, err = store.UpdatedAt(ctx, "key")
	if err != nil {
		t.Fatalf("updated_at failed: %v", err)
	}
	if !ts.Equal(second) {
		t.Fatalf("expected overwrite to refresh timestamp, got %v", ts)
	}

	_, ok, err = store.UpdatedAt(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("expected missing key: ok=%v err=%v", ok, err)
	}
}
