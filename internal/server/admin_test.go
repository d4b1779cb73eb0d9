package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nwardt/stathub-mcp/pkg/cache"
)

type fixedStats struct {
	stats cache.Stats
}

func (f fixedStats) CacheStats() cache.Stats { return f.stats }

func TestHealthz(t *testing.T) {
	a := NewAdmin(":0", fixedStats{})

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("GET /healthz body = %q, want OK", rec.Body.String())
	}
}

func TestCacheStats(t *testing.T) {
	a := NewAdmin(":0", fixedStats{stats: cache.Stats{Total: 3, Live: 2, Expired: 1, SizeBytes: 512}})

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cache/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /cache/stats status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var got cache.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if got.Live != 2 || got.Expired != 1 || got.SizeBytes != 512 {
		t.Errorf("stats = %+v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	a := NewAdmin(":0", fixedStats{})

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("GET /metrics returned an empty exposition")
	}
}
