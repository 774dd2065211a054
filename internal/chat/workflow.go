// Package chat implements the document-chat orchestration: a Temporal
// workflow that sequences document discovery, parallel reads, guarded
// prompt assembly, and streamed generation, exposing live progress to
// polling clients through signals and queries.
package chat

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ashita-ai/kotae/internal/model"
)

// WorkflowName is the registered name of the chat workflow.
const WorkflowName = "kotae_chat"

// DefaultTaskQueue is the task queue both binaries default to.
const DefaultTaskQueue = "kotae-chat"

// Signals mutating the live run state. Tokens from one generation are
// applied in send order; status is a plain overwrite.
const (
	SignalReceiveTokens = "receive_tokens"
	SignalUpdateStatus  = "update_status"
)

// Queries projecting the live run state.
const (
	QueryStreamState = "stream_state"
	QueryTokensSince = "tokens_since"
)

// Application-error type tags. Tags listed in a step's
// NonRetryableErrorTypes are never retried: validation and security
// failures fail closed, immediately.
const (
	ErrTypePathValidation      = "path_validation"
	ErrTypePromptInjection     = "prompt_injection"
	ErrTypeNoReadableDocuments = "no_readable_documents"
	ErrTypeEmptyPrompt         = "empty_prompt"
)

// Terminal causes that are empty results rather than faults.
const (
	errNoFilesFound   = "No files found in specified directory"
	errNoReadableDocs = "Failed to read any documents"
	errRunCanceled    = "run canceled"
)

// Workflow runs one chat request end to end. It owns the canonical
// StreamState: all mutation happens here, either at step boundaries or in
// response to the two inbound signals, and pollers read it only through
// the two query handlers. Every side effect is an activity.
func Workflow(ctx workflow.Context, req model.RunRequest) (model.RunResult, error) {
	req = req.WithDefaults()
	logger := workflow.GetLogger(ctx)
	workflowID := workflow.GetInfo(ctx).WorkflowExecution.ID
	logger.Info("chat workflow starting", "workflow_id", workflowID, "target_path", req.TargetPath)

	state := &model.StreamState{Status: "Initializing"}

	if err := workflow.SetQueryHandler(ctx, QueryStreamState, func() (model.StreamState, error) {
		return *state, nil
	}); err != nil {
		return model.RunResult{}, fmt.Errorf("chat: register %s query: %w", QueryStreamState, err)
	}
	if err := workflow.SetQueryHandler(ctx, QueryTokensSince, func(index int) ([]string, error) {
		if index < 0 {
			index = 0
		}
		if index > len(state.Tokens) {
			index = len(state.Tokens)
		}
		out := make([]string, len(state.Tokens)-index)
		copy(out, state.Tokens[index:])
		return out, nil
	}); err != nil {
		return model.RunResult{}, fmt.Errorf("chat: register %s query: %w", QueryTokensSince, err)
	}

	tokenCh := workflow.GetSignalChannel(ctx, SignalReceiveTokens)
	statusCh := workflow.GetSignalChannel(ctx, SignalUpdateStatus)

	// Signal pump: the only writer of state besides the main line below.
	// Workflow goroutines are cooperatively scheduled, so there is no
	// data race, and the pump is abandoned when the workflow returns.
	workflow.Go(ctx, func(ctx workflow.Context) {
		selector := workflow.NewSelector(ctx)
		selector.AddReceive(tokenCh, func(ch workflow.ReceiveChannel, _ bool) {
			var batch []string
			ch.Receive(ctx, &batch)
			state.Tokens = append(state.Tokens, batch...)
		})
		selector.AddReceive(statusCh, func(ch workflow.ReceiveChannel, _ bool) {
			var status string
			ch.Receive(ctx, &status)
			state.Status = status
		})
		for ctx.Err() == nil {
			selector.Select(ctx)
		}
	})

	// fail finalizes the run: completed flips true exactly once, the cause
	// is recorded, and partial progress counters survive.
	fail := func(cause string) (model.RunResult, error) {
		drainTokens(tokenCh, state)
		state.Error = cause
		state.Completed = true
		state.Status = "Failed: " + cause
		result := model.RunResult{
			Success:        false,
			FilesFound:     state.FilesFound,
			FilesProcessed: state.FilesProcessed,
			TokenCount:     len(state.Tokens),
			Error:          cause,
		}
		archiveResult(ctx, workflowID, result)
		return result, nil
	}

	var a *Activities

	// Scan. Retries cover transient filesystem trouble, not bad paths and
	// not empty results.
	state.Status = "Scanning directory..."
	scanCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		HeartbeatTimeout:    15 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypePathValidation},
		},
	})
	var paths []string
	if err := workflow.ExecuteActivity(scanCtx, a.ScanDirectory, ScanInput{
		Path:           req.TargetPath,
		MaxTotalSizeMB: DefaultScanBudgetMB,
	}).Get(ctx, &paths); err != nil {
		logger.Error("scan failed", "error", err)
		return fail(causeOf(err))
	}

	if len(paths) == 0 {
		logger.Warn("no files found", "target_path", req.TargetPath)
		return fail(errNoFilesFound)
	}
	if len(paths) > req.MaxFiles {
		logger.Info("capping file list", "found", len(paths), "max_files", req.MaxFiles)
		paths = paths[:req.MaxFiles]
	}
	state.FilesFound = len(paths)
	logger.Info("scan complete", "files_found", len(paths))

	// Read all files concurrently. A slow or failing file must not block
	// or abort its siblings, so each gets its own activity and failures
	// degrade to error records.
	state.Status = fmt.Sprintf("Reading %d files...", len(paths))
	readCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
	})
	futures := make([]workflow.Future, len(paths))
	for i, path := range paths {
		futures[i] = workflow.ExecuteActivity(readCtx, a.ReadDocument, ReadInput{
			Path:          path,
			MaxFileSizeMB: req.MaxFileSizeMB,
		})
	}
	documents := make([]model.FileRecord, len(paths))
	for i, future := range futures {
		if err := future.Get(ctx, &documents[i]); err != nil {
			if temporal.IsCanceledError(err) || ctx.Err() != nil {
				return fail(errRunCanceled)
			}
			documents[i] = model.FileRecord{Path: paths[i], Error: causeOf(err)}
		}
	}

	processed := 0
	for _, doc := range documents {
		if doc.Error == "" {
			processed++
		}
	}
	state.FilesProcessed = processed
	logger.Info("documents read", "processed", processed, "total", len(documents))
	if processed == 0 {
		return fail(errNoReadableDocs)
	}

	// Assemble the guarded prompt. Injection and empty-input failures are
	// terminal and never retried.
	state.Status = "Building prompt..."
	assembleCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        2,
			NonRetryableErrorTypes: []string{ErrTypePromptInjection, ErrTypeNoReadableDocuments},
		},
	})
	var prompt string
	if err := workflow.ExecuteActivity(assembleCtx, a.BuildPrompt, BuildPromptInput{
		Documents:       documents,
		Query:           req.Query,
		MaxCharsPerFile: req.MaxCharsPerFile,
	}).Get(ctx, &prompt); err != nil {
		logger.Error("prompt assembly failed", "error", err)
		return fail(causeOf(err))
	}

	// Generate. The liveness ceiling (heartbeat timeout) detects a stalled
	// stream long before the hard deadline does.
	state.Status = "Generating response..."
	genCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        2,
			NonRetryableErrorTypes: []string{ErrTypeEmptyPrompt},
		},
	})
	var gen model.GenerationResult
	if err := workflow.ExecuteActivity(genCtx, a.StreamCompletion, StreamInput{
		Prompt:      prompt,
		WorkflowID:  workflowID,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}).Get(ctx, &gen); err != nil {
		logger.Error("generation failed", "error", err)
		if temporal.IsCanceledError(err) || ctx.Err() != nil {
			return fail(errRunCanceled)
		}
		return fail(causeOf(err))
	}

	// Signals sent by the relay are recorded before its completion event,
	// but the pump may not have run yet; drain so the final state and
	// queries see every token.
	drainTokens(tokenCh, state)

	state.Completed = true
	state.Status = "Completed"
	logger.Info("chat workflow completed", "token_count", gen.TokenCount, "model", gen.Model)

	result := model.RunResult{
		Success:        true,
		FilesFound:     state.FilesFound,
		FilesProcessed: state.FilesProcessed,
		TokenCount:     gen.TokenCount,
		Model:          gen.Model,
	}
	archiveResult(ctx, workflowID, result)
	return result, nil
}

// drainTokens applies any buffered token batches without blocking.
func drainTokens(ch workflow.ReceiveChannel, state *model.StreamState) {
	for {
		var batch []string
		if !ch.ReceiveAsync(&batch) {
			return
		}
		state.Tokens = append(state.Tokens, batch...)
	}
}

// archiveResult persists the terminal result, best effort. It runs on a
// disconnected context so it still executes after cancellation, and its
// failure never changes the run outcome.
func archiveResult(ctx workflow.Context, workflowID string, result model.RunResult) {
	dctx, cancel := workflow.NewDisconnectedContext(ctx)
	defer cancel()

	var a *Activities
	actx := workflow.WithActivityOptions(dctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	if err := workflow.ExecuteActivity(actx, a.ArchiveResult, ArchiveInput{
		WorkflowID: workflowID,
		Result:     result,
	}).Get(dctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("failed to archive run result", "error", err)
	}
}

// causeOf extracts the human-readable cause from a step failure, peeling
// Temporal's activity/application wrappers.
func causeOf(err error) string {
	if temporal.IsCanceledError(err) {
		return errRunCanceled
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Message()
	}
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return "step timed out: " + timeoutErr.Error()
	}
	return err.Error()
}
