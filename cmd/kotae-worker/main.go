// Command kotae-worker runs the Temporal worker: it hosts the chat
// workflow and its activities (directory scan, document reads, prompt
// assembly, generation relay, result archiving).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/ashita-ai/kotae/internal/chat"
	"github.com/ashita-ai/kotae/internal/config"
	"github.com/ashita-ai/kotae/internal/document"
	"github.com/ashita-ai/kotae/internal/llm"
	"github.com/ashita-ai/kotae/internal/pathguard"
	"github.com/ashita-ai/kotae/internal/storage"
	"github.com/ashita-ai/kotae/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("KOTAE_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("kotae-worker starting", "version", version, "task_queue", cfg.TaskQueue)

	ctx := context.Background()
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	guard, err := pathguard.New(cfg.DocumentsRoot)
	if err != nil {
		return fmt.Errorf("pathguard: %w", err)
	}
	guard = guard.WithMount(cfg.MountPrefix)
	logger.Info("document mount", "root", guard.Root(), "mount", cfg.MountPrefix)

	llmClient, err := llm.New(llm.Config{
		Provider:        cfg.LLMProvider,
		Model:           cfg.LLMModel,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OllamaURL:       cfg.OllamaURL,
		Timeout:         cfg.LLMTimeout,
	})
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	logger.Info("llm provider", "provider", llmClient.Provider(), "model", llmClient.Model())

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("temporal: %w", err)
	}
	defer temporalClient.Close()

	// Open the run archive (optional; empty path disables it).
	var store *storage.Store
	if cfg.SQLitePath != "" {
		store, err = storage.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		defer func() { _ = store.Close() }()
	} else {
		logger.Info("run archive: disabled (no KOTAE_SQLITE_PATH)")
	}

	activities := chat.NewActivities(temporalClient, document.New(guard), llmClient, storeOrNil(store))

	w := worker.New(temporalClient, cfg.TaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(chat.Workflow, workflow.RegisterOptions{Name: chat.WorkflowName})
	w.RegisterActivity(activities)

	// Blocks until SIGINT/SIGTERM.
	if err := w.Run(worker.InterruptCh()); err != nil {
		return fmt.Errorf("worker: %w", err)
	}

	slog.Info("kotae-worker stopped")
	return nil
}

// storeOrNil keeps a typed nil *storage.Store from becoming a non-nil
// ResultArchiver interface value.
func storeOrNil(store *storage.Store) chat.ResultArchiver {
	if store == nil {
		return nil
	}
	return store
}
