package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	"go.temporal.io/sdk/client"

	"github.com/ashita-ai/kotae/internal/chat"
	"github.com/ashita-ai/kotae/internal/model"
	"github.com/ashita-ai/kotae/internal/promptguard"
)

func (s *Server) registerTools() {
	// kotae_ask starts a document chat.
	s.mcpServer.AddTool(
		mcplib.NewTool("kotae_ask",
			mcplib.WithDescription(`Ask a question about the documents in a guarded directory.

The answer is generated asynchronously: this tool returns a workflow_id
immediately, and the response streams token by token into the run's state.
Poll kotae_status with the returned workflow_id to read the answer as it
is produced.

Paths are interpreted inside the service's document mount. "/" means the
whole mount; anything that resolves outside it is rejected.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithString("query",
				mcplib.Description("The question to answer from the documents"),
				mcplib.Required(),
			),
			mcplib.WithString("path",
				mcplib.Description("Directory to read, relative to the document mount. Defaults to the whole mount."),
			),
			mcplib.WithNumber("max_files",
				mcplib.Description("Maximum number of files to include"),
				mcplib.Min(1),
				mcplib.Max(100),
				mcplib.DefaultNumber(model.DefaultMaxFiles),
			),
		),
		s.handleAsk,
	)

	// kotae_status polls a running or finished chat.
	s.mcpServer.AddTool(
		mcplib.NewTool("kotae_status",
			mcplib.WithDescription(`Poll the state of a chat started with kotae_ask.

Returns the current status, progress counters, and the answer tokens
produced so far. Pass the next_index from the previous call as since to
receive only new tokens.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("workflow_id",
				mcplib.Description("The workflow_id returned by kotae_ask"),
				mcplib.Required(),
			),
			mcplib.WithNumber("since",
				mcplib.Description("Token cursor from the previous poll; only tokens at or after it are returned"),
				mcplib.Min(0),
			),
		),
		s.handleStatus,
	)

	// kotae_history lists archived chat results.
	s.mcpServer.AddTool(
		mcplib.NewTool("kotae_history",
			mcplib.WithDescription(`List recent completed chats from the run archive, newest first.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithNumber("limit",
				mcplib.Description("Maximum number of runs to return"),
				mcplib.Min(1),
				mcplib.Max(200),
				mcplib.DefaultNumber(20),
			),
		),
		s.handleHistory,
	)
}

func (s *Server) handleAsk(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	query := request.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return errorResult("query is required"), nil
	}
	if err := promptguard.Validate(query); err != nil {
		return errorResult(err.Error()), nil
	}

	path := request.GetString("path", "/")
	if _, err := s.guard.Validate(path); err != nil {
		return errorResult(err.Error()), nil
	}

	req := model.RunRequest{
		Query:      query,
		TargetPath: path,
		MaxFiles:   request.GetInt("max_files", model.DefaultMaxFiles),
	}

	workflowID := "chat-" + uuid.New().String()
	run, err := s.temporal.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: s.taskQueue,
	}, chat.WorkflowName, req)
	if err != nil {
		s.logger.Error("mcp: failed to start chat workflow", "error", err)
		return errorResult(fmt.Sprintf("failed to start chat: %v", err)), nil
	}

	s.logger.Info("mcp: chat started", "workflow_id", run.GetID())
	return jsonResult(map[string]any{
		"workflow_id": run.GetID(),
		"run_id":      run.GetRunID(),
		"status":      "started",
		"hint":        "poll kotae_status with this workflow_id to read the answer",
	})
}

func (s *Server) handleStatus(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	workflowID := request.GetString("workflow_id", "")
	if workflowID == "" {
		return errorResult("workflow_id is required"), nil
	}
	since := request.GetInt("since", 0)
	if since < 0 {
		since = 0
	}

	val, err := s.temporal.QueryWorkflow(ctx, workflowID, "", chat.QueryStreamState)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to query chat %s: %v", workflowID, err)), nil
	}
	var state model.StreamState
	if err := val.Get(&state); err != nil {
		return errorResult(fmt.Sprintf("failed to decode chat state: %v", err)), nil
	}

	tokens := state.Tokens
	if since > 0 {
		if since > len(state.Tokens) {
			since = len(state.Tokens)
		}
		tokens = state.Tokens[since:]
	}

	return jsonResult(map[string]any{
		"workflow_id":     workflowID,
		"status":          state.Status,
		"completed":       state.Completed,
		"error":           state.Error,
		"files_found":     state.FilesFound,
		"files_processed": state.FilesProcessed,
		"tokens":          tokens,
		"next_index":      since + len(tokens),
		"answer_so_far":   strings.Join(tokens, ""),
	})
}

func (s *Server) handleHistory(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	if s.store == nil {
		return errorResult("run archive is disabled"), nil
	}

	limit := request.GetInt("limit", 20)
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to list runs: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"runs":  runs,
		"total": len(runs),
	})
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
