package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mapmarks/engine/internal/model"
)

func TestReverseGeocode_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("expected path /reverse, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("format"); got != "jsonv2" {
			t.Errorf("expected format=jsonv2, got %s", got)
		}
		w.Write([]byte(`{"display_name":"Tokyo Tower, Minato, Tokyo, Japan"}`))
	}))
	defer server.Close()

	c := New(server.URL)
	name, err := c.ReverseGeocode(context.Background(), model.Position{Lat: 35.6586, Lon: 139.7454})
	if err != nil {
		t.Fatalf("ReverseGeocode failed: %v", err)
	}
	if name != "Tokyo Tower, Minato, Tokyo, Japan" {
		t.Errorf("unexpected name: %s", name)
	}
}

func TestReverseGeocode_EmptyName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(server.URL)
	if _, err := c.ReverseGeocode(context.Background(), model.Position{}); err == nil {
		t.Error("expected error for empty display name")
	}
}

func TestReverseGeocode_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := New(server.URL)
	if _, err := c.ReverseGeocode(context.Background(), model.Position{}); err == nil {
		t.Error("expected error for 429 response")
	}
}

func TestTitleFor_FallsBackToCoordinates(t *testing.T) {
	c := New("http://localhost:59999") // unlikely to be listening

	got := c.TitleFor(context.Background(), model.Position{Lat: 35.6586, Lon: 139.7454})
	if got != "35.65860, 139.74540" {
		t.Errorf("unexpected fallback title: %s", got)
	}
}

func TestTitleFor_UsesDisplayName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"display_name":"Big Ben, Westminster, London"}`))
	}))
	defer server.Close()

	c := New(server.URL)
	got := c.TitleFor(context.Background(), model.Position{Lat: 51.5007, Lon: -0.1246})
	if got != "Big Ben, Westminster, London" {
		t.Errorf("unexpected title: %s", got)
	}
}

func TestReverseGeocode_CachesByCoordinate(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"display_name":"Shibuya Crossing"}`))
	}))
	defer server.Close()

	c := New(server.URL)
	pos := model.Position{Lat: 35.6595, Lon: 139.7005}

	for i := 0; i < 3; i++ {
		name, err := c.ReverseGeocode(context.Background(), pos)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if name != "Shibuya Crossing" {
			t.Fatalf("call %d: unexpected name %s", i, name)
		}
	}

	if hits != 1 {
		t.Errorf("server hits = %d, want 1", hits)
	}
}
