// Package stathub exposes the typed StatHub domain API used by the tool
// layer: metric and entity catalogs plus observation lookups, all served
// through the read-through cache so repeated agent turns cost no upstream
// traffic.
package stathub

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nwardt/stathub-mcp/pkg/cache"
	"github.com/nwardt/stathub-mcp/pkg/client"
	"github.com/nwardt/stathub-mcp/pkg/logging"
	"github.com/nwardt/stathub-mcp/pkg/pagination"
)

// StatHub endpoint paths, relative to the configured v3 base URL.
const (
	endpointMetrics      = "/metrics"
	endpointEntities     = "/entities"
	endpointObservations = "/observations"
)

// MaxFanout caps how many entity ids one observation lookup may carry.
// The upstream batch limit is 25 per request; 250 keeps a single tool call
// to at most ten upstream requests.
const MaxFanout = 250

// idPattern matches StatHub identifiers: lowercase alphanumeric with dots,
// underscores and hyphens, at most 64 characters.
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

// Config holds Service tunables.
type Config struct {
	// CatalogTTL is the cache TTL for the metric and entity catalogs.
	// Default 24h.
	CatalogTTL time.Duration

	// ObservationTTL is the cache TTL for observation lookups.
	// Default 1h.
	ObservationTTL time.Duration

	// MaxBatchSize is the upstream per-request entity id ceiling.
	// Default 25.
	MaxBatchSize int

	// BatchConcurrency is how many observation chunks may be in flight at
	// once; the shared rate limiter still gates every request. Default 1.
	BatchConcurrency int
}

// DefaultServiceConfig returns the StatHub defaults.
func DefaultServiceConfig() Config {
	return Config{
		CatalogTTL:       24 * time.Hour,
		ObservationTTL:   time.Hour,
		MaxBatchSize:     25,
		BatchConcurrency: 1,
	}
}

// Service answers domain queries against StatHub through the client and
// the read-through cache.
type Service struct {
	client *client.Client
	cache  *cache.Store
	cfg    Config
	logger zerolog.Logger
}

// NewService creates a Service. Zero-valued Config fields fall back to
// DefaultServiceConfig.
func NewService(c *client.Client, store *cache.Store, cfg Config) *Service {
	defaults := DefaultServiceConfig()
	if cfg.CatalogTTL <= 0 {
		cfg.CatalogTTL = defaults.CatalogTTL
	}
	if cfg.ObservationTTL <= 0 {
		cfg.ObservationTTL = defaults.ObservationTTL
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = defaults.MaxBatchSize
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = defaults.BatchConcurrency
	}

	return &Service{
		client: c,
		cache:  store,
		cfg:    cfg,
		logger: logging.NewLogger("stathub-service"),
	}
}

// ValidateID checks an identifier's shape before any network call.
// kind names the identifier in the error message ("metric id", "entity id").
func ValidateID(kind, id string) error {
	if id == "" {
		return client.InvalidInput(
			fmt.Sprintf("%s must not be empty", kind),
			fmt.Sprintf("provide a %s, e.g. from the matching search tool", kind),
		)
	}
	if !idPattern.MatchString(id) {
		return client.InvalidInput(
			fmt.Sprintf("%q is not a valid %s", id, kind),
			"identifiers are lowercase alphanumeric with dots, underscores or hyphens; use the search tools instead of guessing",
		)
	}
	return nil
}

// Metrics returns the complete metric catalog, served from cache within
// the catalog TTL.
func (s *Service) Metrics(ctx context.Context) ([]Metric, error) {
	return cache.GetOrFetch(ctx, s.cache, cache.Key(endpointMetrics, nil), s.cfg.CatalogTTL,
		func(ctx context.Context) ([]Metric, error) {
			s.logger.Info().Str("endpoint", endpointMetrics).Msg("Fetching metric catalog")
			return pagination.FetchAll[Metric](ctx, s.client, endpointMetrics, nil)
		})
}

// Entities returns the complete entity catalog, served from cache within
// the catalog TTL.
func (s *Service) Entities(ctx context.Context) ([]Entity, error) {
	return cache.GetOrFetch(ctx, s.cache, cache.Key(endpointEntities, nil), s.cfg.CatalogTTL,
		func(ctx context.Context) ([]Entity, error) {
			s.logger.Info().Str("endpoint", endpointEntities).Msg("Fetching entity catalog")
			return pagination.FetchAll[Entity](ctx, s.client, endpointEntities, nil)
		})
}

// MetricByID returns one metric, or a not-found error carrying a
// corrective suggestion. Results are cached under the by-id endpoint key.
func (s *Service) MetricByID(ctx context.Context, id string) (Metric, error) {
	if err := ValidateID("metric id", id); err != nil {
		return Metric{}, err
	}

	endpoint := endpointMetrics + "/" + id
	return cache.GetOrFetch(ctx, s.cache, cache.Key(endpoint, nil), s.cfg.CatalogTTL,
		func(ctx context.Context) (Metric, error) {
			env, err := client.Get[Metric](ctx, s.client, endpoint, nil)
			if err != nil {
				return Metric{}, err
			}
			if len(env.Values) == 0 {
				return Metric{}, client.NotFound(endpoint,
					fmt.Sprintf("no metric with id %q", id),
					"use search_metrics to find a valid metric id instead of guessing")
			}
			return env.Values[0], nil
		})
}

// EntityByID returns one entity, or a not-found error carrying a
// corrective suggestion.
func (s *Service) EntityByID(ctx context.Context, id string) (Entity, error) {
	if err := ValidateID("entity id", id); err != nil {
		return Entity{}, err
	}

	endpoint := endpointEntities + "/" + id
	return cache.GetOrFetch(ctx, s.cache, cache.Key(endpoint, nil), s.cfg.CatalogTTL,
		func(ctx context.Context) (Entity, error) {
			env, err := client.Get[Entity](ctx, s.client, endpoint, nil)
			if err != nil {
				return Entity{}, err
			}
			if len(env.Values) == 0 {
				return Entity{}, client.NotFound(endpoint,
					fmt.Sprintf("no entity with id %q", id),
					"use search_entities to find a valid entity id instead of guessing")
			}
			return env.Values[0], nil
		})
}

// SearchMetrics filters the cached metric catalog by a case-insensitive
// substring match over id, name and description.
func (s *Service) SearchMetrics(ctx context.Context, query string) ([]Metric, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, client.InvalidInput("search query must not be empty", "pass a word from the metric's name or id")
	}

	catalog, err := s.Metrics(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	var matches []Metric
	for _, m := range catalog {
		if strings.Contains(strings.ToLower(m.ID), q) ||
			strings.Contains(strings.ToLower(m.Name), q) ||
			strings.Contains(strings.ToLower(m.Description), q) {
			matches = append(matches, m)
		}
	}
	return matches, nil
}

// SearchEntities filters the cached entity catalog by a case-insensitive
// substring match over id and name.
func (s *Service) SearchEntities(ctx context.Context, query string) ([]Entity, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, client.InvalidInput("search query must not be empty", "pass a word from the entity's name or id")
	}

	catalog, err := s.Entities(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	var matches []Entity
	for _, e := range catalog {
		if strings.Contains(strings.ToLower(e.ID), q) ||
			strings.Contains(strings.ToLower(e.Name), q) {
			matches = append(matches, e)
		}
	}
	return matches, nil
}

// Observations fetches one metric's values for a set of entities, batch-
// splitting the entity list to honor the upstream per-request ceiling.
// period optionally narrows to one reporting period.
//
// All validation happens before any network or cache interaction.
func (s *Service) Observations(ctx context.Context, metricID string, entityIDs []string, period string) ([]Observation, error) {
	if err := ValidateID("metric id", metricID); err != nil {
		return nil, err
	}
	if len(entityIDs) == 0 {
		return nil, client.InvalidInput("at least one entity id is required", "pass entity ids from search_entities")
	}
	if len(entityIDs) > MaxFanout {
		return nil, client.InvalidInput(
			fmt.Sprintf("%d entity ids exceed the limit of %d per call", len(entityIDs), MaxFanout),
			"split the request into smaller entity groups")
	}
	for _, id := range entityIDs {
		if err := ValidateID("entity id", id); err != nil {
			return nil, err
		}
	}

	params := url.Values{"metric_id": {metricID}}
	if period != "" {
		params.Set("period", period)
	}

	key := cache.Key(endpointObservations, keyParams(params, entityIDs))
	return cache.GetOrFetch(ctx, s.cache, key, s.cfg.ObservationTTL,
		func(ctx context.Context) ([]Observation, error) {
			s.logger.Info().
				Str("metric_id", metricID).
				Int("entities", len(entityIDs)).
				Msg("Fetching observations")
			return pagination.BatchFetch[Observation](ctx, s.client, endpointObservations, "entity_ids", entityIDs, params,
				pagination.BatchOptions{
					MaxBatchSize: s.cfg.MaxBatchSize,
					Concurrency:  s.cfg.BatchConcurrency,
				})
		})
}

// CacheStats exposes the cache population for the observability tool.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// keyParams folds the entity id set into the cache key parameters. The ids
// are sorted so that the same set in a different order hits the same entry.
func keyParams(params url.Values, entityIDs []string) url.Values {
	sorted := append([]string(nil), entityIDs...)
	sort.Strings(sorted)

	out := make(url.Values, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out.Set("entity_ids", strings.Join(sorted, ","))
	return out
}
