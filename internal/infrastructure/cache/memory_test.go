package cache

import (
	"testing"
	"time"
)

func TestMemoryStore_SetGet(t *testing.T) {
	store := NewMemoryStore[[]float32](0)
	defer store.Close()

	store.Set("q", []float32{1, 2}, time.Minute)
	got, ok := store.Get("q")
	if !ok || len(got) != 2 {
		t.Fatalf("expected cached value, got %v %v", got, ok)
	}

	store.Delete("q")
	if _, ok := store.Get("q"); ok {
		t.Fatal("expected value to be deleted")
	}
}

func TestMemoryStore_Expires(t *testing.T) {
	store := NewMemoryStore[string](0)
	defer store.Close()

	store.Set("k", "v", -time.Second)
	if _, ok := store.Get("k"); ok {
		t.Fatal("expected expired value to be hidden")
	}
}

func TestMemoryStore_EvictsWhenFull(t *testing.T) {
	store := NewMemoryStore[int](2)
	defer store.Close()

	store.Set("a", 1, time.Minute)
	store.Set("b", 2, time.Hour)
	store.Set("c", 3, time.Hour)

	if store.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", store.Len())
	}
	if _, ok := store.Get("a"); ok {
		t.Fatal("expected entry closest to expiry to be evicted")
	}
	if v, ok := store.Get("c"); !ok || v != 3 {
		t.Fatalf("expected newest entry kept, got %v %v", v, ok)
	}
}
