// Package server exposes greenroute over MCP (stdio and streamable HTTP) and a REST API.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/greenroute/pkg/emissions"
	"github.com/NERVsystems/greenroute/pkg/tools"
	"github.com/NERVsystems/greenroute/pkg/version"
)

const (
	// ServerName is the name of the MCP server
	ServerName = "greenroute"

	instructions = "greenroute estimates carbon emissions, cost, calories and health impact of trips. " +
		"Distances passed to route_metrics and compare_modes are in metres; durations in seconds. " +
		"Use compare_routes to fetch real routes between two coordinates for every mode at once."
)

// Server encapsulates the MCP server with the greenroute tools.
type Server struct {
	srv          *mcpserver.MCPServer
	logger       *slog.Logger
	stopCh       chan struct{}
	doneCh       chan struct{}
	running      bool
	mu           sync.Mutex
	once         sync.Once
	ctxCancel    context.CancelFunc
	ctxGoroutine sync.Once
}

// NewServer creates an MCP server with every tool of registry registered.
func NewServer(registry *tools.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("initializing MCP server",
		"name", ServerName,
		"version", version.BuildVersion)

	srv := mcpserver.NewMCPServer(
		ServerName,
		version.BuildVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithInstructions(instructions),
		mcpserver.WithRecovery(),
	)

	registry.RegisterTools(srv)
	srv.AddPrompt(tripPlanningPrompt(), handleTripPlanningPrompt)

	return &Server{
		srv:    srv,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func tripPlanningPrompt() mcp.Prompt {
	return mcp.NewPrompt("plan_green_trip",
		mcp.WithPromptDescription("Guide the assistant through choosing the lowest-impact way to make a trip"),
		mcp.WithArgument("origin",
			mcp.ArgumentDescription("Where the trip starts"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("destination",
			mcp.ArgumentDescription("Where the trip ends"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("max_minutes",
			mcp.ArgumentDescription("Optional time budget in minutes"),
		),
	)
}

func handleTripPlanningPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	origin := req.Params.Arguments["origin"]
	destination := req.Params.Arguments["destination"]
	if origin == "" || destination == "" {
		return nil, fmt.Errorf("origin and destination are required")
	}

	text := fmt.Sprintf("Plan a trip from %q to %q with the lowest environmental impact.\n"+
		"1. Geocode both places with the geocode tool.\n"+
		"2. Call compare_routes with the two coordinates for the modes %v.\n"+
		"3. Present the modes ranked by carbon emissions with cost and health impact.",
		origin, destination, emissions.ModeNames())
	if budget := req.Params.Arguments["max_minutes"]; budget != "" {
		if minutes, err := strconv.Atoi(budget); err == nil && minutes > 0 {
			text += fmt.Sprintf("\nDiscard any mode whose route takes longer than %d minutes.", minutes)
		}
	}

	return mcp.NewGetPromptResult(
		"Green trip planning",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		},
	), nil
}

// Run serves MCP over stdin/stdout and blocks until stopped.
func (s *Server) Run() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		defer close(s.doneCh)
		err := mcpserver.ServeStdio(s.srv)
		if err != nil && err != io.EOF {
			s.logger.Error("server error", "error", err)
		}
		s.Shutdown()
	}()

	<-s.stopCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	<-s.doneCh
	return nil
}

// RunWithContext is Run with shutdown on context cancellation.
func (s *Server) RunWithContext(ctx context.Context) error {
	s.ctxGoroutine.Do(func() {
		derived, cancel := context.WithCancel(ctx)
		s.ctxCancel = cancel

		go func() {
			select {
			case <-derived.Done():
				s.Shutdown()
			case <-s.stopCh:
			}
		}()
	})

	return s.Run()
}

// Shutdown initiates a graceful shutdown of the server.
// It does not block and returns immediately.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.once.Do(func() {
		close(s.stopCh)
	})

	if s.ctxCancel != nil {
		s.ctxCancel()
	}
}

// GetMCPServer returns the underlying MCP server instance for HTTP transport
func (s *Server) GetMCPServer() *mcpserver.MCPServer {
	return s.srv
}
