package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/emissions"
	"github.com/NERVsystems/greenroute/pkg/gasprice"
)

// InputParser decodes the request arguments into a strongly typed struct.
func InputParser[T any](req mcp.CallToolRequest) (T, error) {
	var input T

	inputJSON, err := json.Marshal(req.GetArguments())
	if err != nil {
		return input, core.NewValidationError("arguments", fmt.Sprintf("invalid input format: %v", err))
	}
	if err := json.Unmarshal(inputJSON, &input); err != nil {
		return input, core.NewValidationError("arguments", fmt.Sprintf("failed to parse input: %v", err))
	}
	return input, nil
}

// ErrorResult converts any error into an MCP error result carrying the
// structured error code.
func ErrorResult(err error) *mcp.CallToolResult {
	return core.AsError(err).ToMCPResult()
}

// JSONResult marshals v as the text content of a successful result.
func JSONResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return ErrorResult(core.NewError(core.ErrInternalError, "failed to generate result").WithCause(err))
	}
	return mcp.NewToolResultText(string(data))
}

// LocationInput is the optional pricing context shared by several tools.
type LocationInput struct {
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
}

// Context returns nil when no country was given.
func (l LocationInput) Context() *gasprice.LocationContext {
	if strings.TrimSpace(l.Country) == "" {
		return nil
	}
	return &gasprice.LocationContext{
		Country: strings.ToUpper(strings.TrimSpace(l.Country)),
		Region:  strings.TrimSpace(l.Region),
	}
}

// ParseModes parses a non-empty list of mode names.
func ParseModes(names []string) ([]emissions.Mode, error) {
	if len(names) == 0 {
		return nil, core.NewValidationError("modes", "at least one transport mode is required").
			WithGuidance("Pass one or more of: " + strings.Join(emissions.ModeNames(), ", "))
	}
	modes := make([]emissions.Mode, 0, len(names))
	for _, name := range names {
		m, err := emissions.ParseMode(name)
		if err != nil {
			return nil, err
		}
		modes = append(modes, m)
	}
	return modes, nil
}

// ParseModesOrAll is ParseModes with an empty list selecting every mode.
func ParseModesOrAll(names []string) ([]emissions.Mode, error) {
	if len(names) == 0 {
		return emissions.Modes(), nil
	}
	return ParseModes(names)
}

func coordinate(field string, lat, lon float64) (core.Coordinate, error) {
	c := core.Coordinate{Latitude: lat, Longitude: lon}
	if err := c.Validate(); err != nil {
		return c, core.AsError(err).WithField(field)
	}
	return c, nil
}
