package ocr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDetectorPrefersFirstHealthy(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer down.Close()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()

	d := NewDetector([]string{down.URL, up.URL}, time.Minute, testLogger())

	got, err := d.Best(context.Background())
	if err != nil {
		t.Fatalf("Best: %v", err)
	}
	if got != up.URL {
		t.Fatalf("Best = %q, want %q", got, up.URL)
	}
}

func TestDetectorCachesWithinTTL(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDetector([]string{srv.URL}, time.Minute, testLogger())

	for i := 0; i < 3; i++ {
		if _, err := d.Best(context.Background()); err != nil {
			t.Fatalf("Best #%d: %v", i, err)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("probe hits = %d, want 1 (cached)", hits.Load())
	}
}

func TestDetectorAccepts405OnOCREndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			http.Error(w, "not here", http.StatusNotFound)
			return
		}
		http.Error(w, "empty request", http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	d := NewDetector([]string{srv.URL}, time.Minute, testLogger())
	if !d.Healthy(context.Background(), srv.URL) {
		t.Fatal("405 on /api/ocr must count as healthy")
	}
}

func TestDetectorAllDownErrors(t *testing.T) {
	d := NewDetector([]string{"http://127.0.0.1:1"}, time.Minute, testLogger())
	if _, err := d.Best(context.Background()); err == nil {
		t.Fatal("want error when every candidate is down")
	}
}

func TestResolveExplicitURLBypassesProbe(t *testing.T) {
	d := NewDetector([]string{"http://127.0.0.1:1"}, time.Minute, testLogger())

	got, err := d.Resolve(context.Background(), "http://10.0.0.5:1224")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "http://10.0.0.5:1224" {
		t.Fatalf("Resolve = %q, want explicit URL", got)
	}
}
