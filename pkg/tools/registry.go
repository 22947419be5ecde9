// Package tools exposes greenroute operations as MCP tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/emissions"
	"github.com/NERVsystems/greenroute/pkg/monitoring"
	"github.com/NERVsystems/greenroute/pkg/planner"
	"github.com/NERVsystems/greenroute/pkg/provider"
	"github.com/NERVsystems/greenroute/pkg/tracing"
)

// Geocoder resolves places and coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, query string, opts provider.GeocodeOptions) (*provider.GeocodeResult, error)
	ReverseGeocode(ctx context.Context, at core.Coordinate) (*provider.GeocodeResult, error)
}

// RoutePlanner compares routes across modes.
type RoutePlanner interface {
	CompareRoutes(ctx context.Context, req planner.Request) (*planner.Comparison, error)
}

// Deps are the services the tools call into.
type Deps struct {
	Calculator *emissions.Calculator
	Geocoder   Geocoder
	Routes     planner.RouteSource
	Planner    RoutePlanner
}

// Registry contains all tool definitions and handlers
type Registry struct {
	logger   *slog.Logger
	calc     *emissions.Calculator
	geocoder Geocoder
	routes   planner.RouteSource
	planner  RoutePlanner
}

// NewRegistry creates a new tool registry
func NewRegistry(deps Deps, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Calculator == nil {
		deps.Calculator = emissions.NewCalculator(nil, emissions.WithLogger(logger))
	}
	return &Registry{
		logger:   logger.With("component", "tools"),
		calc:     deps.Calculator,
		geocoder: deps.Geocoder,
		routes:   deps.Routes,
		planner:  deps.Planner,
	}
}

// ToolHandler handles one tool call.
type ToolHandler func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// ToolDefinition pairs a tool with its handler.
type ToolDefinition struct {
	Name    string
	Tool    mcp.Tool
	Handler ToolHandler
}

// GetToolDefinitions returns the tools available with the configured
// dependencies. Provider backed tools are omitted when their source is nil.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	defs := []ToolDefinition{
		{Name: "get_version", Tool: GetVersionTool(), Handler: r.HandleGetVersion},

		// Calculator tools
		{Name: "route_metrics", Tool: RouteMetricsTool(), Handler: r.HandleRouteMetrics},
		{Name: "compare_modes", Tool: CompareModesTool(), Handler: r.HandleCompareModes},
		{Name: "transport_recommendations", Tool: TransportRecommendationsTool(), Handler: r.HandleTransportRecommendations},
		{Name: "gas_price", Tool: GasPriceTool(), Handler: r.HandleGasPrice},
	}

	if r.geocoder != nil {
		defs = append(defs,
			ToolDefinition{Name: "geocode", Tool: GeocodeTool(), Handler: r.HandleGeocode},
			ToolDefinition{Name: "reverse_geocode", Tool: ReverseGeocodeTool(), Handler: r.HandleReverseGeocode},
		)
	}
	if r.routes != nil {
		defs = append(defs, ToolDefinition{Name: "directions", Tool: DirectionsTool(), Handler: r.HandleDirections})
	}
	if r.planner != nil {
		defs = append(defs, ToolDefinition{Name: "compare_routes", Tool: CompareRoutesTool(), Handler: r.HandleCompareRoutes})
	}
	return defs
}

// GetToolNames returns a list of all tool names.
func (r *Registry) GetToolNames() []string {
	defs := r.GetToolDefinitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}

// RegisterTools registers all tools with the MCP server.
func (r *Registry) RegisterTools(mcpServer *server.MCPServer) {
	for _, def := range r.GetToolDefinitions() {
		r.logger.Debug("registering tool", "name", def.Name)
		mcpServer.AddTool(def.Tool, server.ToolHandlerFunc(r.instrument(def.Name, def.Handler)))
	}
}

// instrument wraps a handler with a span and Prometheus metrics.
func (r *Registry) instrument(toolName string, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("mcp.tool.%s", toolName),
			trace.WithAttributes(
				attribute.String(tracing.AttrMCPToolName, toolName),
			),
		)
		defer span.End()

		start := time.Now()
		result, err := handler(ctx, req)
		duration := time.Since(start)

		status := tracing.StatusSuccess
		switch {
		case err != nil:
			status = tracing.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result != nil && result.IsError:
			status = tracing.StatusError
			span.SetStatus(codes.Error, "tool returned an error result")
		default:
			span.SetStatus(codes.Ok, "")
		}

		resultSize := 0
		if result != nil && result.Content != nil {
			if data, marshalErr := json.Marshal(result.Content); marshalErr == nil {
				resultSize = len(data)
			}
		}

		span.SetAttributes(tracing.MCPToolAttributes(toolName, status, duration.Milliseconds())...)
		span.SetAttributes(attribute.Int(tracing.AttrMCPResultSize, resultSize))
		monitoring.RecordMCPRequest(toolName, duration, status == tracing.StatusSuccess)

		r.logger.Debug("tool executed",
			"tool", toolName,
			"duration_ms", duration.Milliseconds(),
			"status", status,
			"result_size", resultSize,
		)

		return result, err
	}
}
