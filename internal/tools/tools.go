// Package tools wires the StatHub service into MCP tool definitions.
//
// Each tool handler validates nothing itself. Validation, caching, batching
// and retries all live in the service and client layers; the handlers only
// translate between MCP calls and typed service methods, and map gateway
// errors onto tool results the calling agent can act on.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/nwardt/stathub-mcp/pkg/cache"
	"github.com/nwardt/stathub-mcp/pkg/client"
	"github.com/nwardt/stathub-mcp/pkg/logging"
	"github.com/nwardt/stathub-mcp/pkg/stathub"
)

var (
	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stathub_tool_calls_total",
		Help: "Total number of MCP tool calls by tool name",
	}, []string{"tool"})

	toolErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stathub_tool_errors_total",
		Help: "Total number of MCP tool calls that returned an error result",
	}, []string{"tool", "kind"})
)

// Registry binds the StatHub service to an MCP server.
type Registry struct {
	svc    *stathub.Service
	logger zerolog.Logger
}

// NewRegistry creates a Registry around the given service.
func NewRegistry(svc *stathub.Service) *Registry {
	return &Registry{
		svc:    svc,
		logger: logging.NewLogger("tools"),
	}
}

// SearchArgs are the arguments for search_metrics and search_entities.
type SearchArgs struct {
	Query string `json:"query" jsonschema:"word to match against names and ids, case-insensitive"`
}

// IDArgs are the arguments for get_metric and get_entity.
type IDArgs struct {
	ID string `json:"id" jsonschema:"resource id, lowercase letters, digits, dot, underscore or hyphen"`
}

// ObservationsArgs are the arguments for get_observations.
type ObservationsArgs struct {
	MetricID  string   `json:"metric_id" jsonschema:"id of the metric to fetch observations for"`
	EntityIDs []string `json:"entity_ids" jsonschema:"entity ids to fetch, split into upstream batches automatically"`
	Period    string   `json:"period,omitempty" jsonschema:"optional period filter, e.g. 2025 or 2025-Q1"`
}

// ListMetricsArgs are the arguments for list_metrics.
type ListMetricsArgs struct {
	Category string `json:"category,omitempty" jsonschema:"optional category to filter the catalog by, exact match, case-insensitive"`
}

// ListEntitiesArgs are the arguments for list_entities.
type ListEntitiesArgs struct {
	Group string `json:"group,omitempty" jsonschema:"optional group to filter the catalog by, exact match, case-insensitive"`
}

// EmptyArgs is used by tools that take no arguments.
type EmptyArgs struct{}

// MetricsResult carries metric records back to the agent.
type MetricsResult struct {
	Metrics []stathub.Metric `json:"metrics"`
	Count   int              `json:"count"`
}

// EntitiesResult carries entity records back to the agent.
type EntitiesResult struct {
	Entities []stathub.Entity `json:"entities"`
	Count    int              `json:"count"`
}

// ObservationsResult carries observation records back to the agent.
type ObservationsResult struct {
	Observations []stathub.Observation `json:"observations"`
	Count        int                   `json:"count"`
}

// CacheStatsResult reports the gateway cache state.
type CacheStatsResult struct {
	Cache cache.Stats `json:"cache"`
}

// Register adds all StatHub tools to the server.
func (r *Registry) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_metrics",
		Description: "List the catalog of available statistical metrics, optionally filtered by category.",
	}, r.listMetrics)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_metrics",
		Description: "Search the metric catalog by a word from the metric's name or id. Use this to discover valid metric ids instead of guessing them.",
	}, r.searchMetrics)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_metric",
		Description: "Get one metric by its exact id.",
	}, r.getMetric)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_entities",
		Description: "List the catalog of entities observations are reported for, optionally filtered by group.",
	}, r.listEntities)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_entities",
		Description: "Search the entity catalog by a word from the entity's name or id. Use this to discover valid entity ids instead of guessing them.",
	}, r.searchEntities)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_entity",
		Description: "Get one entity by its exact id.",
	}, r.getEntity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_observations",
		Description: "Get observations of one metric for a set of entities, optionally filtered by period. Large entity sets are batched upstream transparently.",
	}, r.getObservations)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cache_stats",
		Description: "Report the gateway's cache statistics: live and expired entries and approximate size.",
	}, r.cacheStats)
}

func (r *Registry) listMetrics(ctx context.Context, req *mcp.CallToolRequest, args ListMetricsArgs) (*mcp.CallToolResult, MetricsResult, error) {
	toolCallsTotal.WithLabelValues("list_metrics").Inc()
	metrics, err := r.svc.Metrics(ctx)
	if err != nil {
		return r.errorResult("list_metrics", err), MetricsResult{}, nil
	}
	if args.Category != "" {
		filtered := metrics[:0:0]
		for _, m := range metrics {
			if strings.EqualFold(m.Category, args.Category) {
				filtered = append(filtered, m)
			}
		}
		metrics = filtered
	}
	return nil, MetricsResult{Metrics: metrics, Count: len(metrics)}, nil
}

func (r *Registry) searchMetrics(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, MetricsResult, error) {
	toolCallsTotal.WithLabelValues("search_metrics").Inc()
	metrics, err := r.svc.SearchMetrics(ctx, args.Query)
	if err != nil {
		return r.errorResult("search_metrics", err), MetricsResult{}, nil
	}
	return nil, MetricsResult{Metrics: metrics, Count: len(metrics)}, nil
}

func (r *Registry) getMetric(ctx context.Context, req *mcp.CallToolRequest, args IDArgs) (*mcp.CallToolResult, stathub.Metric, error) {
	toolCallsTotal.WithLabelValues("get_metric").Inc()
	metric, err := r.svc.MetricByID(ctx, args.ID)
	if err != nil {
		return r.errorResult("get_metric", err), stathub.Metric{}, nil
	}
	return nil, metric, nil
}

func (r *Registry) listEntities(ctx context.Context, req *mcp.CallToolRequest, args ListEntitiesArgs) (*mcp.CallToolResult, EntitiesResult, error) {
	toolCallsTotal.WithLabelValues("list_entities").Inc()
	entities, err := r.svc.Entities(ctx)
	if err != nil {
		return r.errorResult("list_entities", err), EntitiesResult{}, nil
	}
	if args.Group != "" {
		filtered := entities[:0:0]
		for _, e := range entities {
			if strings.EqualFold(e.Group, args.Group) {
				filtered = append(filtered, e)
			}
		}
		entities = filtered
	}
	return nil, EntitiesResult{Entities: entities, Count: len(entities)}, nil
}

func (r *Registry) searchEntities(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, EntitiesResult, error) {
	toolCallsTotal.WithLabelValues("search_entities").Inc()
	entities, err := r.svc.SearchEntities(ctx, args.Query)
	if err != nil {
		return r.errorResult("search_entities", err), EntitiesResult{}, nil
	}
	return nil, EntitiesResult{Entities: entities, Count: len(entities)}, nil
}

func (r *Registry) getEntity(ctx context.Context, req *mcp.CallToolRequest, args IDArgs) (*mcp.CallToolResult, stathub.Entity, error) {
	toolCallsTotal.WithLabelValues("get_entity").Inc()
	entity, err := r.svc.EntityByID(ctx, args.ID)
	if err != nil {
		return r.errorResult("get_entity", err), stathub.Entity{}, nil
	}
	return nil, entity, nil
}

func (r *Registry) getObservations(ctx context.Context, req *mcp.CallToolRequest, args ObservationsArgs) (*mcp.CallToolResult, ObservationsResult, error) {
	toolCallsTotal.WithLabelValues("get_observations").Inc()
	observations, err := r.svc.Observations(ctx, args.MetricID, args.EntityIDs, args.Period)
	if err != nil {
		return r.errorResult("get_observations", err), ObservationsResult{}, nil
	}
	return nil, ObservationsResult{Observations: observations, Count: len(observations)}, nil
}

func (r *Registry) cacheStats(ctx context.Context, req *mcp.CallToolRequest, args EmptyArgs) (*mcp.CallToolResult, CacheStatsResult, error) {
	toolCallsTotal.WithLabelValues("cache_stats").Inc()
	return nil, CacheStatsResult{Cache: r.svc.CacheStats()}, nil
}

// toolError is the JSON body of an error tool result. Kind and suggestion
// give the agent enough structure to recover without parsing prose.
type toolError struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// errorResult turns a gateway error into an error tool result. Tool-level
// failures are reported through IsError rather than a protocol error, so the
// agent sees them as content it can react to.
func (r *Registry) errorResult(tool string, err error) *mcp.CallToolResult {
	kind := client.KindOf(err)
	toolErrorsTotal.WithLabelValues(tool, string(kind)).Inc()

	body := toolError{Kind: string(kind), Message: err.Error()}
	var gwErr *client.Error
	if errors.As(err, &gwErr) {
		body.Message = gwErr.Message
		body.Suggestion = gwErr.Suggestion
	}

	payload, marshalErr := json.Marshal(body)
	if marshalErr != nil {
		payload = []byte(fmt.Sprintf(`{"kind":%q,"message":"internal error"}`, kind))
	}

	r.logger.Warn().
		Str("tool", tool).
		Str("kind", string(kind)).
		Err(err).
		Msg("Tool call failed")

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
		IsError: true,
	}
}
