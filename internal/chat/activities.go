package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/ashita-ai/kotae/internal/document"
	"github.com/ashita-ai/kotae/internal/llm"
	"github.com/ashita-ai/kotae/internal/model"
	"github.com/ashita-ai/kotae/internal/pathguard"
	"github.com/ashita-ai/kotae/internal/prompt"
	"github.com/ashita-ai/kotae/internal/promptguard"
)

// DefaultScanBudgetMB caps the total bytes a single scan will admit.
const DefaultScanBudgetMB = 100

// Relay cadences. Batching amortizes per-signal overhead without changing
// observed token order; heartbeats keep a long stream from looking
// stalled; status updates are coarser UI feedback.
const (
	tokenBatchSize = 5
	heartbeatEvery = 20
	statusEvery    = 50
)

// WorkflowSignaler is the slice of the Temporal client the activities need
// to push tokens and status back into a running workflow.
type WorkflowSignaler interface {
	SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error
}

// ResultArchiver persists terminal run results.
type ResultArchiver interface {
	SaveResult(ctx context.Context, workflowID string, result model.RunResult) error
}

// Activities bundles the side-effecting steps of the chat workflow. All
// fields are immutable after construction; the struct is safe for
// concurrent execution across activity slots.
type Activities struct {
	signaler WorkflowSignaler
	docs     *document.Pipeline
	llm      llm.Client
	archive  ResultArchiver // nil disables archiving
}

// NewActivities wires the activity dependencies. archive may be nil.
func NewActivities(signaler WorkflowSignaler, docs *document.Pipeline, llmClient llm.Client, archive ResultArchiver) *Activities {
	return &Activities{
		signaler: signaler,
		docs:     docs,
		llm:      llmClient,
		archive:  archive,
	}
}

// ScanInput parameterizes directory discovery.
type ScanInput struct {
	Path           string `json:"path"`
	MaxTotalSizeMB int    `json:"max_total_size_mb"`
}

// ReadInput parameterizes a single document load.
type ReadInput struct {
	Path          string `json:"path"`
	MaxFileSizeMB int    `json:"max_file_size_mb"`
}

// BuildPromptInput parameterizes prompt assembly.
type BuildPromptInput struct {
	Documents       []model.FileRecord `json:"documents"`
	Query           string             `json:"query"`
	MaxCharsPerFile int                `json:"max_chars_per_file"`
}

// StreamInput parameterizes the generation relay.
type StreamInput struct {
	Prompt      string  `json:"prompt"`
	WorkflowID  string  `json:"workflow_id"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// ArchiveInput carries a terminal result to the archive store.
type ArchiveInput struct {
	WorkflowID string          `json:"workflow_id"`
	Result     model.RunResult `json:"result"`
}

// ScanDirectory discovers candidate files under the guarded directory,
// heartbeating as the walk progresses. Path validation failures are
// non-retryable; everything else is left retryable for the workflow's
// policy to handle.
func (a *Activities) ScanDirectory(ctx context.Context, in ScanInput) ([]string, error) {
	logger := activity.GetLogger(ctx)
	if in.MaxTotalSizeMB <= 0 {
		in.MaxTotalSizeMB = DefaultScanBudgetMB
	}

	files, err := a.docs.Scan(in.Path, nil, in.MaxTotalSizeMB, func(found int) {
		activity.RecordHeartbeat(ctx, found)
	})
	if err != nil {
		var verr *pathguard.ValidationError
		if errors.As(err, &verr) {
			return nil, temporal.NewNonRetryableApplicationError(verr.Error(), ErrTypePathValidation, err)
		}
		return nil, err
	}

	logger.Info("directory scan finished", "path", in.Path, "files", len(files))
	return files, nil
}

// ReadDocument loads one file into a record. It never returns a business
// error: every per-file failure is encoded on the record so the fan-out
// continues.
func (a *Activities) ReadDocument(ctx context.Context, in ReadInput) (model.FileRecord, error) {
	rec := a.docs.Read(in.Path, in.MaxFileSizeMB)
	if rec.Error != "" {
		activity.GetLogger(ctx).Warn("document load failed", "path", in.Path, "error", rec.Error)
	}
	return rec, nil
}

// BuildPrompt assembles the guarded prompt. Injection and empty-input
// conditions are tagged non-retryable so the workflow fails them closed.
func (a *Activities) BuildPrompt(ctx context.Context, in BuildPromptInput) (string, error) {
	logger := activity.GetLogger(ctx)

	out, err := prompt.Assemble(in.Documents, in.Query, in.MaxCharsPerFile, "")
	if err != nil {
		var ierr *promptguard.InjectionError
		if errors.As(err, &ierr) {
			logger.Warn("prompt injection detected", "detections", len(ierr.Detections))
			return "", temporal.NewNonRetryableApplicationError(err.Error(), ErrTypePromptInjection, err)
		}
		if errors.Is(err, prompt.ErrNoReadableDocuments) {
			return "", temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeNoReadableDocuments, err)
		}
		return "", err
	}

	logger.Info("prompt assembled", "chars", len(out))
	return out, nil
}

// StreamCompletion is the generation relay: it drives the provider stream
// and republishes output into the workflow's state as batched token
// signals, with periodic heartbeats and coarse status updates.
func (a *Activities) StreamCompletion(ctx context.Context, in StreamInput) (model.GenerationResult, error) {
	logger := activity.GetLogger(ctx)

	if strings.TrimSpace(in.Prompt) == "" {
		return model.GenerationResult{}, temporal.NewNonRetryableApplicationError(
			"prompt cannot be empty", ErrTypeEmptyPrompt, nil)
	}
	if a.signaler == nil {
		return model.GenerationResult{}, errors.New("chat: workflow signaler not configured")
	}

	workflowID := in.WorkflowID
	if workflowID == "" {
		workflowID = activity.GetInfo(ctx).WorkflowExecution.ID
	}
	logger.Info("starting generation stream", "workflow_id", workflowID, "provider", a.llm.Provider())

	var (
		tokenCount   int
		finishReason string
		batch        []string
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := a.signaler.SignalWorkflow(ctx, workflowID, "", SignalReceiveTokens, batch); err != nil {
			return fmt.Errorf("chat: signal token batch: %w", err)
		}
		batch = nil
		return nil
	}

	streamErr := a.llm.Stream(ctx, in.Prompt, in.MaxTokens, in.Temperature, func(chunk llm.Chunk) error {
		if chunk.FinishReason != "" {
			finishReason = chunk.FinishReason
		}
		if chunk.Content == "" {
			return nil
		}

		batch = append(batch, chunk.Content)
		tokenCount++

		if len(batch) >= tokenBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
		if tokenCount%heartbeatEvery == 0 {
			activity.RecordHeartbeat(ctx, tokenCount)
		}
		if tokenCount%statusEvery == 0 {
			status := fmt.Sprintf("Generating response... (%d tokens)", tokenCount)
			if err := a.signaler.SignalWorkflow(ctx, workflowID, "", SignalUpdateStatus, status); err != nil {
				// Status is cosmetic; losing one must not abort generation.
				logger.Warn("failed to send status update", "error", err)
			}
		}
		return nil
	})
	if streamErr != nil {
		logger.Error("generation stream failed", "error", streamErr, "tokens_before_failure", tokenCount)
		if err := a.signaler.SignalWorkflow(ctx, workflowID, "", SignalUpdateStatus, "Error: "+streamErr.Error()); err != nil {
			logger.Warn("failed to publish error status", "error", err)
		}
		if errors.Is(streamErr, llm.ErrEmptyPrompt) {
			return model.GenerationResult{}, temporal.NewNonRetryableApplicationError(
				streamErr.Error(), ErrTypeEmptyPrompt, streamErr)
		}
		return model.GenerationResult{}, streamErr
	}

	if err := flush(); err != nil {
		return model.GenerationResult{}, err
	}

	logger.Info("generation stream finished", "token_count", tokenCount, "finish_reason", finishReason)
	return model.GenerationResult{
		TokenCount:   tokenCount,
		FinishReason: finishReason,
		Model:        a.llm.Model(),
		Provider:     a.llm.Provider(),
	}, nil
}

// ArchiveResult persists a terminal run result. With no archive configured
// it is a no-op, so the workflow can call it unconditionally.
func (a *Activities) ArchiveResult(ctx context.Context, in ArchiveInput) error {
	if a.archive == nil {
		return nil
	}
	if err := a.archive.SaveResult(ctx, in.WorkflowID, in.Result); err != nil {
		return fmt.Errorf("chat: archive result: %w", err)
	}
	return nil
}
