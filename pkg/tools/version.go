package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/greenroute/pkg/emissions"
	"github.com/NERVsystems/greenroute/pkg/version"
)

// VersionInfo represents version information for the service
type VersionInfo struct {
	Version   string   `json:"version"`
	GoVersion string   `json:"go_version,omitempty"`
	Commit    string   `json:"commit,omitempty"`
	BuildDate string   `json:"build_date,omitempty"`
	Modes     []string `json:"modes"`
	Tools     []string `json:"tools"`
}

// GetVersionTool returns a tool definition for retrieving version information
func GetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the version and build information of the greenroute service"),
	)
}

// NewVersionInfo combines build metadata with the supported modes and tools.
func NewVersionInfo(toolNames []string) VersionInfo {
	info := version.Info()
	return VersionInfo{
		Version:   info["version"],
		GoVersion: info["go_version"],
		Commit:    info["commit"],
		BuildDate: info["build_date"],
		Modes:     emissions.ModeNames(),
		Tools:     toolNames,
	}
}

// HandleGetVersion reports build metadata and the supported modes.
func (r *Registry) HandleGetVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return JSONResult(NewVersionInfo(r.GetToolNames())), nil
}
