package services

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCounterStoreIncrement(t *testing.T) {
	store := NewMemoryCounterStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.Increment(ctx, "counter-a", time.Minute)
		if err != nil {
			t.Fatalf("Increment returned error: %v", err)
		}
		if got != want {
			t.Errorf("Increment = %d, want %d", got, want)
		}
	}
}

func TestMemoryCounterStoreIndependentKeys(t *testing.T) {
	store := NewMemoryCounterStore()
	ctx := context.Background()

	if _, err := store.Increment(ctx, "counter-a", time.Minute); err != nil {
		t.Fatalf("Increment counter-a: %v", err)
	}
	if _, err := store.Increment(ctx, "counter-a", time.Minute); err != nil {
		t.Fatalf("Increment counter-a: %v", err)
	}

	got, err := store.Increment(ctx, "counter-b", time.Minute)
	if err != nil {
		t.Fatalf("Increment counter-b: %v", err)
	}
	if got != 1 {
		t.Errorf("counter-b = %d, want 1", got)
	}
}

func TestMemoryCounterStoreFlagRoundtrip(t *testing.T) {
	store := NewMemoryCounterStore()
	ctx := context.Background()

	blocked, err := store.ReadFlag(ctx, "flag-a")
	if err != nil || blocked {
		t.Fatalf("ReadFlag before write = (%v, %v), want (false, nil)", blocked, err)
	}

	if err := store.WriteFlag(ctx, "flag-a", time.Minute); err != nil {
		t.Fatalf("WriteFlag: %v", err)
	}

	blocked, err = store.ReadFlag(ctx, "flag-a")
	if err != nil || !blocked {
		t.Fatalf("ReadFlag after write = (%v, %v), want (true, nil)", blocked, err)
	}

	if err := store.DeleteFlag(ctx, "flag-a"); err != nil {
		t.Fatalf("DeleteFlag: %v", err)
	}

	blocked, err = store.ReadFlag(ctx, "flag-a")
	if err != nil || blocked {
		t.Fatalf("ReadFlag after delete = (%v, %v), want (false, nil)", blocked, err)
	}
}

func TestMemoryCounterStoreFlagExpiry(t *testing.T) {
	store := NewMemoryCounterStore()
	ctx := context.Background()

	if err := store.WriteFlag(ctx, "flag-short", 10*time.Millisecond); err != nil {
		t.Fatalf("WriteFlag: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	blocked, err := store.ReadFlag(ctx, "flag-short")
	if err != nil {
		t.Fatalf("ReadFlag: %v", err)
	}
	if blocked {
		t.Error("flag still set after TTL expired")
	}
}
