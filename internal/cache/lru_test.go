package cache

import (
	"context"
	"testing"
	"time"

	"carteira/internal/log"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("u1", "a")
	if v, ok := c.Get("u1"); !ok || v != "a" {
		t.Fatalf("Get(u1) = %q, %v", v, ok)
	}
	if _, ok := c.Get("u2"); ok {
		t.Fatal("expected miss for u2")
	}
	c.Set("u1", "b")
	if v, _ := c.Get("u1"); v != "b" {
		t.Fatalf("overwrite not applied, got %q", v)
	}
	if c.Size() != 1 {
		t.Fatalf("Size = %d", c.Size())
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	clk.t = clk.t.Add(30 * time.Second)
	c.Set("b", "3")

	clk.t = clk.t.Add(45 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if n := c.CleanExpired(); n != 0 {
		t.Errorf("CleanExpired removed %d, want 0", n)
	}
	clk.t = clk.t.Add(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired removed %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size = %d after cleanup", c.Size())
	}
}

func TestLRUCache_DeleteAndDisabled(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Delete("a")
	c.Delete("missing")
	if _, ok := c.Get("a"); ok {
		t.Error("a should be gone after Delete")
	}

	off := NewLRUCache[string](2, 0)
	off.Set("a", "1")
	if _, ok := off.Get("a"); ok {
		t.Error("zero TTL cache should never hit")
	}
}

func TestManager_SweepAndStop(t *testing.T) {
	c, clk := newTestCache(10, time.Second)
	c.Set("a", "1")
	m := NewManager(log.Discard())
	m.Register(c)

	clk.t = clk.t.Add(2 * time.Second)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("Sweep = %d, want 1", n)
	}

	m.StartCleanup(context.Background(), time.Millisecond)
	m.Stop()
	m.Stop()
}
