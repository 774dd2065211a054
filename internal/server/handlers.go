package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	"github.com/ashita-ai/kotae/internal/chat"
	"github.com/ashita-ai/kotae/internal/model"
	"github.com/ashita-ai/kotae/internal/pathguard"
	"github.com/ashita-ai/kotae/internal/promptguard"
	"github.com/ashita-ai/kotae/internal/storage"
)

// TemporalClient is the slice of the Temporal client the handlers use.
type TemporalClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, args ...interface{}) (converter.EncodedValue, error)
	CancelWorkflow(ctx context.Context, workflowID, runID string) error
	CheckHealth(ctx context.Context, request *client.CheckHealthRequest) (*client.CheckHealthResponse, error)
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	temporal            TemporalClient
	store               *storage.Store
	guard               *pathguard.Guard
	logger              *slog.Logger
	taskQueue           string
	version             string
	maxRequestBodyBytes int64
	startedAt           time.Time
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Store is optional (nil disables the history endpoints).
type HandlersDeps struct {
	Temporal            TemporalClient
	Store               *storage.Store
	Guard               *pathguard.Guard
	Logger              *slog.Logger
	TaskQueue           string
	Version             string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		temporal:            d.Temporal,
		store:               d.Store,
		guard:               d.Guard,
		logger:              d.Logger,
		taskQueue:           d.TaskQueue,
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		startedAt:           time.Now(),
	}
}

// HandleCreateChat handles POST /v1/chats. The query and target path are
// validated before any workflow is started, so an obviously bad request
// never creates a run.
func (h *Handlers) HandleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req model.RunRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "query is required")
		return
	}
	if err := promptguard.Validate(req.Query); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	if req.TargetPath == "" {
		req.TargetPath = "/"
	}
	if _, err := h.guard.Validate(req.TargetPath); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	workflowID := "chat-" + uuid.New().String()
	run, err := h.temporal.ExecuteWorkflow(r.Context(), client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: h.taskQueue,
	}, chat.WorkflowName, req)
	if err != nil {
		h.logger.Error("failed to start chat workflow", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to start chat")
		return
	}

	h.logger.Info("chat started", "workflow_id", run.GetID(), "run_id", run.GetRunID())
	writeJSON(w, r, http.StatusAccepted, model.ChatCreatedResponse{
		WorkflowID: run.GetID(),
		RunID:      run.GetRunID(),
		Status:     "started",
	})
}

// HandleGetChat handles GET /v1/chats/{chat_id}. The optional since
// parameter is a token cursor: only tokens at or after it are returned,
// and next_index is the cursor for the following poll.
func (h *Handlers) HandleGetChat(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("chat_id")

	since := 0
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "since must be an integer")
			return
		}
		since = n
	}
	if since < 0 {
		since = 0
	}

	var state model.StreamState
	if !h.queryWorkflow(w, r, workflowID, chat.QueryStreamState, &state) {
		return
	}

	tokens := state.Tokens
	if since > 0 {
		var suffix []string
		if !h.queryWorkflow(w, r, workflowID, chat.QueryTokensSince, &suffix, since) {
			return
		}
		tokens = suffix
		if since > len(state.Tokens) {
			since = len(state.Tokens)
		}
	}
	if tokens == nil {
		tokens = []string{}
	}

	writeJSON(w, r, http.StatusOK, model.ChatStateResponse{
		WorkflowID:     workflowID,
		Status:         state.Status,
		Completed:      state.Completed,
		Error:          state.Error,
		FilesFound:     state.FilesFound,
		FilesProcessed: state.FilesProcessed,
		Tokens:         tokens,
		NextIndex:      since + len(tokens),
	})
}

// HandleChatResult handles GET /v1/chats/{chat_id}/result. The archive is
// authoritative once written; for a run not yet archived the live state is
// consulted, and an in-flight run yields a conflict.
func (h *Handlers) HandleChatResult(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("chat_id")

	if h.store != nil {
		rec, err := h.store.GetRun(r.Context(), workflowID)
		if err == nil {
			writeJSON(w, r, http.StatusOK, rec)
			return
		}
		if !errors.Is(err, storage.ErrNotFound) {
			h.logger.Error("archive lookup failed", "workflow_id", workflowID, "error", err)
			writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "archive lookup failed")
			return
		}
	}

	var state model.StreamState
	if !h.queryWorkflow(w, r, workflowID, chat.QueryStreamState, &state) {
		return
	}
	if !state.Completed {
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "chat is still in progress")
		return
	}

	writeJSON(w, r, http.StatusOK, model.RunRecord{
		WorkflowID:     workflowID,
		Success:        state.Error == "",
		FilesFound:     state.FilesFound,
		FilesProcessed: state.FilesProcessed,
		TokenCount:     len(state.Tokens),
		Error:          state.Error,
	})
}

// HandleCancelChat handles DELETE /v1/chats/{chat_id}.
func (h *Handlers) HandleCancelChat(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("chat_id")

	if err := h.temporal.CancelWorkflow(r.Context(), workflowID, ""); err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "chat not found")
			return
		}
		h.logger.Error("failed to cancel chat", "workflow_id", workflowID, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to cancel chat")
		return
	}

	writeJSON(w, r, http.StatusAccepted, map[string]string{
		"workflow_id": workflowID,
		"status":      "canceling",
	})
}

// HandleListChats handles GET /v1/chats.
func (h *Handlers) HandleListChats(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "run archive is disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "limit must be an integer")
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list chats", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to list chats")
		return
	}
	writeJSON(w, r, http.StatusOK, runs)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	temporalStatus := "connected"
	status := "healthy"
	httpStatus := http.StatusOK

	if _, err := h.temporal.CheckHealth(r.Context(), &client.CheckHealthRequest{}); err != nil {
		temporalStatus = "disconnected"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	resp := model.HealthResponse{
		Status:   status,
		Version:  h.version,
		Temporal: temporalStatus,
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	}

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err == nil {
			resp.Archive = "connected"
		} else {
			resp.Archive = "disconnected"
			if status == "healthy" {
				resp.Status = "degraded"
			}
		}
	}

	writeJSON(w, r, httpStatus, resp)
}

// queryWorkflow runs one workflow query and decodes the result, writing
// the error response itself on failure. Returns false when a response has
// already been written.
func (h *Handlers) queryWorkflow(w http.ResponseWriter, r *http.Request, workflowID, queryType string, out any, args ...interface{}) bool {
	val, err := h.temporal.QueryWorkflow(r.Context(), workflowID, "", queryType, args...)
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "chat not found")
			return false
		}
		h.logger.Error("workflow query failed", "workflow_id", workflowID, "query", queryType, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to query chat state")
		return false
	}
	if err := val.Get(out); err != nil {
		h.logger.Error("failed to decode query result", "workflow_id", workflowID, "query", queryType, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to decode chat state")
		return false
	}
	return true
}
