package cache

import (
	"testing"

	"github.com/mapmarks/engine/internal/model"
)

func TestTitleCache_AddAndGet(t *testing.T) {
	c := NewTitleCache()
	pos := model.Position{Lat: 35.6812, Lon: 139.7671}

	if _, ok := c.Get(pos); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Add(pos, "Tokyo Station")
	name, ok := c.Get(pos)
	if !ok || name != "Tokyo Station" {
		t.Fatalf("got %q, %v; want Tokyo Station, true", name, ok)
	}
}

func TestTitleCache_NearbyPositionsShareBucket(t *testing.T) {
	c := NewTitleCache()
	c.Add(model.Position{Lat: 35.68120, Lon: 139.76710}, "Tokyo Station")

	// Within the 1e-4 degree bucket.
	name, ok := c.Get(model.Position{Lat: 35.681203, Lon: 139.767098})
	if !ok || name != "Tokyo Station" {
		t.Fatalf("expected bucket hit, got %q, %v", name, ok)
	}

	// A different bucket misses.
	if _, ok := c.Get(model.Position{Lat: 35.6820, Lon: 139.7671}); ok {
		t.Fatal("expected miss for distinct bucket")
	}
}

func TestTitleCache_Reset(t *testing.T) {
	c := NewTitleCache()
	c.Add(model.Position{Lat: 1, Lon: 2}, "somewhere")
	c.Add(model.Position{Lat: 3, Lon: 4}, "elsewhere")
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}

	c.Reset()
	if c.Len() != 0 {
		t.Fatalf("len after reset = %d, want 0", c.Len())
	}
}

func TestTitleCache_ConcurrentAccess(t *testing.T) {
	c := NewTitleCache()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			c.Add(model.Position{Lat: float64(i % 10), Lon: 0}, "name")
		}
	}()
	for i := 0; i < 1000; i++ {
		c.Get(model.Position{Lat: float64(i % 10), Lon: 0})
	}
	<-done
}
