package cache

import (
	"net/url"
	"testing"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		params   url.Values
		want     string
	}{
		{
			name:     "no params returns endpoint unchanged",
			endpoint: "/metrics",
			params:   nil,
			want:     "/metrics",
		},
		{
			name:     "empty params returns endpoint unchanged",
			endpoint: "/entities",
			params:   url.Values{},
			want:     "/entities",
		},
		{
			name:     "single param",
			endpoint: "/metrics",
			params:   url.Values{"category": {"economy"}},
			want:     "/metrics:category=economy",
		},
		{
			name:     "params sorted lexicographically",
			endpoint: "/observations",
			params:   url.Values{"period": {"2025"}, "entity_ids": {"a,b"}, "metric_id": {"gdp"}},
			want:     "/observations:entity_ids=a,b:metric_id=gdp:period=2025",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.endpoint, tt.params); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestKey_OrderIndependence checks that permutations of the same parameter
// set always map to the same key.
func TestKey_OrderIndependence(t *testing.T) {
	a := url.Values{}
	a.Set("metric_id", "gdp")
	a.Set("entity_ids", "de,fr,it")
	a.Set("period", "2024")

	b := url.Values{}
	b.Set("period", "2024")
	b.Set("entity_ids", "de,fr,it")
	b.Set("metric_id", "gdp")

	if Key("/observations", a) != Key("/observations", b) {
		t.Errorf("keys differ for permuted params: %q vs %q", Key("/observations", a), Key("/observations", b))
	}
}

func TestKey_Deterministic(t *testing.T) {
	params := url.Values{"x": {"1"}, "a": {"2"}, "m": {"3"}}

	first := Key("/metrics", params)
	for i := 0; i < 10; i++ {
		if got := Key("/metrics", params); got != first {
			t.Fatalf("Key() = %q on iteration %d, want %q (not deterministic)", got, i, first)
		}
	}
}

func TestKey_DistinctInputsDistinctKeys(t *testing.T) {
	base := Key("/metrics", url.Values{"category": {"economy"}})

	if got := Key("/metrics", url.Values{"category": {"health"}}); got == base {
		t.Error("different param values must produce different keys")
	}
	if got := Key("/entities", url.Values{"category": {"economy"}}); got == base {
		t.Error("different endpoints must produce different keys")
	}
}
