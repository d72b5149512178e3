// Package mcp exposes the todo tool surface over the Model Context
// Protocol, so external MCP clients can drive the same todo operations the
// embedded agent uses.
package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/taskwell/taskwell/internal/tools"
)

// Server wraps the MCP SDK server around the todo tool manager.
type Server struct {
	mcpServer *mcp.Server
	manager   *tools.Manager
	toolCount int
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
	Manager *tools.Manager
}

// NewServer creates an MCP server with all todo tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Manager == nil {
		return nil, fmt.Errorf("tool manager is required")
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		mcpServer: mcpServer,
		manager:   cfg.Manager,
	}

	if err := s.registerTodoManager(); err != nil {
		return nil, fmt.Errorf("registering todo_manager: %w", err)
	}

	return s, nil
}

// Run starts the MCP server on the given transport. Blocks until the
// transport closes or ctx is cancelled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

// ToolCount returns the number of registered tools.
func (s *Server) ToolCount() int {
	return s.toolCount
}

// registerTodoManager registers the todo_manager tool. The handler builds
// the MCP response inline, like net/http.Handler: invocation failures
// become IsError results, not protocol errors.
func (s *Server) registerTodoManager() error {
	inputSchema, err := jsonschema.For[tools.Input](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name: tools.ManagerToolName,
		Description: "Manage the user's todo list: create, read, update and delete todos. " +
			"Use 'read' first when an operation needs a todo id.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in tools.Input) (*mcp.CallToolResult, any, error) {
		result := s.manager.Invoke(ctx, in)

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result.Display()}},
			IsError: result.Status == tools.StatusError,
		}, nil, nil
	})

	s.toolCount++
	return nil
}
