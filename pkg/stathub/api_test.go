package stathub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/nwardt/stathub-mcp/internal/testutil"
	"github.com/nwardt/stathub-mcp/pkg/cache"
	"github.com/nwardt/stathub-mcp/pkg/client"
	"github.com/nwardt/stathub-mcp/pkg/ratelimit"
)

func newTestService(t *testing.T, mock *testutil.MockStatHub) *Service {
	t.Helper()
	c, err := client.New(client.Config{
		BaseURL: mock.URL(),
		Timeout: 5 * time.Second,
		Retry:   client.RetryConfig{MaxRetries: 0, DelayBase: time.Millisecond},
		Limiter: ratelimit.New(0),
	})
	if err != nil {
		t.Fatalf("client.New() error: %v", err)
	}

	store := cache.New(cache.Options{DefaultTTL: time.Hour})
	t.Cleanup(store.Close)

	return NewService(c, store, DefaultServiceConfig())
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple id", "gdp", false},
		{"dotted id", "gdp.per_capita", false},
		{"hyphenated id", "gdp-nominal", false},
		{"digits", "e42", false},
		{"empty", "", true},
		{"uppercase", "GDP", true},
		{"leading dot", ".gdp", true},
		{"spaces", "gdp nominal", true},
		{"path traversal", "../secrets", true},
		{"too long", strings.Repeat("a", 65), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID("metric id", tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && client.KindOf(err) != client.KindInvalidInput {
				t.Errorf("KindOf() = %v, want %v", client.KindOf(err), client.KindInvalidInput)
			}
		})
	}
}

// TestEntities_CatalogCachedAcrossCalls covers the gateway's headline
// behavior: a paginated catalog (3+2 records over 2 pages) is assembled
// once and the second call within the TTL performs no upstream fetch.
func TestEntities_CatalogCachedAcrossCalls(t *testing.T) {
	mock := testutil.NewMockStatHub()
	defer mock.Close()
	mock.SetPagedValues("/entities", 3,
		Entity{ID: "de", Name: "Germany"},
		Entity{ID: "fr", Name: "France"},
		Entity{ID: "it", Name: "Italy"},
		Entity{ID: "es", Name: "Spain"},
		Entity{ID: "pl", Name: "Poland"},
	)

	svc := newTestService(t, mock)

	first, err := svc.Entities(context.Background())
	if err != nil {
		t.Fatalf("Entities() error: %v", err)
	}
	if len(first) != 5 {
		t.Fatalf("Entities() returned %d records, want 5", len(first))
	}
	if got := mock.PathCount("/entities"); got != 2 {
		t.Fatalf("first call hit upstream %d times, want 2 pages", got)
	}

	second, err := svc.Entities(context.Background())
	if err != nil {
		t.Fatalf("second Entities() error: %v", err)
	}
	if len(second) != 5 {
		t.Fatalf("second Entities() returned %d records, want 5", len(second))
	}
	if got := mock.PathCount("/entities"); got != 2 {
		t.Errorf("second call hit upstream (%d total requests), want cache hit", got)
	}
}

func TestMetricByID_Found(t *testing.T) {
	mock := testutil.NewMockStatHub()
	defer mock.Close()
	mock.SetValues("/metrics/gdp", Metric{ID: "gdp", Name: "Gross Domestic Product", Unit: "USD"})

	svc := newTestService(t, mock)
	m, err := svc.MetricByID(context.Background(), "gdp")
	if err != nil {
		t.Fatalf("MetricByID() error: %v", err)
	}
	if m.Name != "Gross Domestic Product" {
		t.Errorf("metric = %+v, want GDP record", m)
	}
}

func TestMetricByID_NotFoundCarriesSuggestion(t *testing.T) {
	mock := testutil.NewMockStatHub()
	defer mock.Close()
	// The mock answers 404 for unregistered paths; the client normalizes
	// that to an empty envelope, which the service maps to not-found.

	svc := newTestService(t, mock)
	_, err := svc.MetricByID(context.Background(), "no-such-metric")
	if err == nil {
		t.Fatal("MetricByID() returned nil error for unknown id")
	}
	if !client.IsNotFound(err) {
		t.Fatalf("error kind = %v, want not_found", client.KindOf(err))
	}

	var gw *client.Error
	if !errors.As(err, &gw) || !strings.Contains(gw.Suggestion, "search_metrics") {
		t.Errorf("not-found error should suggest search_metrics, got %+v", gw)
	}
}

func TestMetricByID_InvalidInputBeforeNetwork(t *testing.T) {
	mock := testutil.NewMockStatHub()
	defer mock.Close()

	svc := newTestService(t, mock)
	_, err := svc.MetricByID(context.Background(), "NOT VALID")
	if client.KindOf(err) != client.KindInvalidInput {
		t.Fatalf("KindOf() = %v, want invalid_input", client.KindOf(err))
	}
	if mock.RequestCount() != 0 {
		t.Errorf("validation error still caused %d upstream requests", mock.RequestCount())
	}
}

func TestSearchMetrics_FiltersCachedCatalog(t *testing.T) {
	mock := testutil.NewMockStatHub()
	defer mock.Close()
	mock.SetValues("/metrics",
		Metric{ID: "gdp", Name: "Gross Domestic Product"},
		Metric{ID: "gdp.per_capita", Name: "GDP per Capita"},
		Metric{ID: "unemployment", Name: "Unemployment Rate"},
	)

	svc := newTestService(t, mock)

	matches, err := svc.SearchMetrics(context.Background(), "GDP")
	if err != nil {
		t.Fatalf("SearchMetrics() error: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("SearchMetrics(GDP) returned %d matches, want 2", len(matches))
	}

	// A second search reuses the cached catalog.
	if _, err := svc.SearchMetrics(context.Background(), "rate"); err != nil {
		t.Fatalf("second SearchMetrics() error: %v", err)
	}
	if got := mock.PathCount("/metrics"); got != 1 {
		t.Errorf("two searches hit upstream %d times, want 1", got)
	}

	if _, err := svc.SearchMetrics(context.Background(), "  "); client.KindOf(err) != client.KindInvalidInput {
		t.Errorf("blank query error kind = %v, want invalid_input", client.KindOf(err))
	}
}

func TestObservations_BatchesAndCaches(t *testing.T) {
	mock := testutil.NewMockStatHub()
	defer mock.Close()
	mock.SetHandler("/observations", func(w http.ResponseWriter, r *http.Request) {
		metricID := r.URL.Query().Get("metric_id")
		ids := strings.Split(r.URL.Query().Get("entity_ids"), ",")
		if len(ids) > 25 {
			t.Errorf("chunk of %d ids exceeds upstream limit", len(ids))
		}
		values := make([]any, len(ids))
		for i, id := range ids {
			values[i] = Observation{MetricID: metricID, EntityID: id, Period: "2025", Value: float64(i)}
		}
		testutil.WriteEnvelope(w, values, len(values), "")
	})

	ids := make([]string, 57)
	for i := range ids {
		ids[i] = fmt.Sprintf("ent-%02d", i)
	}

	svc := newTestService(t, mock)
	obs, err := svc.Observations(context.Background(), "gdp", ids, "2025")
	if err != nil {
		t.Fatalf("Observations() error: %v", err)
	}
	if len(obs) != 57 {
		t.Errorf("Observations() returned %d records, want 57", len(obs))
	}
	if got := mock.PathCount("/observations"); got != 3 {
		t.Errorf("upstream saw %d calls, want 3 (25+25+7)", got)
	}

	// Same id set in a different order hits the cache.
	reversed := make([]string, len(ids))
	for i, id := range ids {
		reversed[len(ids)-1-i] = id
	}
	if _, err := svc.Observations(context.Background(), "gdp", reversed, "2025"); err != nil {
		t.Fatalf("second Observations() error: %v", err)
	}
	if got := mock.PathCount("/observations"); got != 3 {
		t.Errorf("reordered id set hit upstream (%d total calls), want cache hit", got)
	}
}

func TestObservations_Validation(t *testing.T) {
	mock := testutil.NewMockStatHub()
	defer mock.Close()
	svc := newTestService(t, mock)

	tooMany := make([]string, MaxFanout+1)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("e%d", i)
	}

	tests := []struct {
		name     string
		metricID string
		ids      []string
	}{
		{"bad metric id", "Not Valid", []string{"de"}},
		{"no entity ids", "gdp", nil},
		{"bad entity id", "gdp", []string{"de", "FR!"}},
		{"fanout exceeded", "gdp", tooMany},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Observations(context.Background(), tt.metricID, tt.ids, "")
			if client.KindOf(err) != client.KindInvalidInput {
				t.Errorf("KindOf() = %v, want invalid_input", client.KindOf(err))
			}
		})
	}

	if mock.RequestCount() != 0 {
		t.Errorf("validation errors still caused %d upstream requests", mock.RequestCount())
	}
}
