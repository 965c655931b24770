package connpool

import (
	"testing"
	"time"
)

func TestProxyPool(t *testing.T) {
	pool := NewProxyPool([]string{"p1", "p2", "p3"})

	// Test rotation
	for _, want := range []string{"p1", "p2", "p3", "p1"} {
		if got := pool.Next(); got != want {
			t.Errorf("Expected %s, got %s", want, got)
		}
	}

	// Should skip p2 while it cools down
	pool.MarkFailed("p2")
	if p := pool.Next(); p != "p3" {
		t.Errorf("Expected p3 (skipping p2), got %s", p)
	}
	if p := pool.Next(); p != "p1" {
		t.Errorf("Expected p1, got %s", p)
	}
	if p := pool.Next(); p != "p3" {
		t.Errorf("Expected p3, got %s", p)
	}

	pool.MarkHealthy("p2")
	if p := pool.Next(); p != "p1" {
		t.Errorf("Expected p1, got %s", p)
	}
	if p := pool.Next(); p != "p2" {
		t.Errorf("Expected p2, got %s", p)
	}
}

func TestProxyPool_CooldownExpires(t *testing.T) {
	now := time.Unix(1000, 0)
	pool := NewProxyPool([]string{"only"})
	pool.now = func() time.Time { return now }

	pool.MarkFailed("only")
	// all proxies failed: still returns one
	if p := pool.Next(); p != "only" {
		t.Errorf("Expected only, got %s", p)
	}

	now = now.Add(proxyCooldown + time.Second)
	if p := pool.Next(); p != "only" {
		t.Errorf("Expected only after cooldown, got %s", p)
	}
	if len(pool.failed) != 0 {
		t.Error("Expected failure record to be cleared after cooldown")
	}
}

func TestProxyPool_Empty(t *testing.T) {
	pool := NewProxyPool(nil)
	if p := pool.Next(); p != "" {
		t.Errorf("Expected empty proxy, got %s", p)
	}
}
