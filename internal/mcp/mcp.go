// Package mcp implements the Model Context Protocol server for Kotae.
//
// The MCP server exposes the chat lifecycle as tools, so MCP-compatible
// AI agents can ask questions about guarded document directories and poll
// the streamed answer the same way HTTP clients do.
package mcp

import (
	"context"
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	"github.com/ashita-ai/kotae/internal/pathguard"
	"github.com/ashita-ai/kotae/internal/storage"
)

// TemporalClient is the slice of the Temporal client the tools use.
type TemporalClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

// Server wraps the MCP server with Kotae's chat lifecycle.
type Server struct {
	mcpServer *mcpserver.MCPServer
	temporal  TemporalClient
	guard     *pathguard.Guard
	store     *storage.Store // nil disables kotae_history
	taskQueue string
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all tools registered.
// store may be nil.
func New(temporal TemporalClient, guard *pathguard.Guard, store *storage.Store, taskQueue string, logger *slog.Logger) *Server {
	s := &Server{
		temporal:  temporal,
		guard:     guard,
		store:     store,
		taskQueue: taskQueue,
		logger:    logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"kotae",
		"0.1.0",
		mcpserver.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}
