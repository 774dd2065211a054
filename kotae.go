// Package kotae is the public API for embedding the Kotae document Q&A
// server.
//
// Consumers import this package to construct and run the API server
// without forking it:
//
//	app, err := kotae.New(
//	    kotae.WithVersion(version),
//	    kotae.WithLogger(logger),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: kotae (root) imports
// internal/*, but internal/* never imports kotae (root).
package kotae

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/ashita-ai/kotae/api"
	"github.com/ashita-ai/kotae/internal/config"
	"github.com/ashita-ai/kotae/internal/mcp"
	"github.com/ashita-ai/kotae/internal/pathguard"
	"github.com/ashita-ai/kotae/internal/ratelimit"
	"github.com/ashita-ai/kotae/internal/server"
	"github.com/ashita-ai/kotae/internal/storage"
	"github.com/ashita-ai/kotae/internal/telemetry"
)

// App is the Kotae API server lifecycle. Construct with New(), run with Run().
// App has no public fields; use New() options to configure it.
type App struct {
	cfg          config.Config
	temporal     client.Client
	ownsTemporal bool
	store        *storage.Store
	limiter      ratelimit.Limiter
	srv          *server.Server
	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initialises the Kotae API server. It connects to Temporal, opens the
// run archive, wires the HTTP and MCP surfaces, and returns a ready-to-run
// App. It does NOT start any goroutines or accept connections; call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.sqlitePath != "" {
		cfg.SQLitePath = o.sqlitePath
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("kotae starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Path guard over the document mount. All client paths resolve through it.
	guard, err := pathguard.New(cfg.DocumentsRoot)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("pathguard: %w", err)
	}
	guard = guard.WithMount(cfg.MountPrefix)
	logger.Info("document mount", "root", guard.Root(), "mount", cfg.MountPrefix)

	// Connect to Temporal unless the caller supplied a client.
	temporalClient := o.temporal
	ownsTemporal := false
	if temporalClient == nil {
		temporalClient, err = client.Dial(client.Options{
			HostPort:  cfg.TemporalAddress,
			Namespace: cfg.TemporalNamespace,
			Logger:    tlog.NewStructuredLogger(logger),
		})
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("temporal: %w", err)
		}
		ownsTemporal = true
	}

	// Open the run archive (optional; empty path disables it).
	var store *storage.Store
	if cfg.SQLitePath != "" {
		store, err = storage.Open(context.Background(), cfg.SQLitePath, logger)
		if err != nil {
			if ownsTemporal {
				temporalClient.Close()
			}
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("storage: %w", err)
		}
	} else {
		logger.Info("run archive: disabled (no KOTAE_SQLITE_PATH)")
	}

	// Rate limiter for chat creation (per client IP, zero RPS disables).
	var limiter ratelimit.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limit enabled", "rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	}

	mcpSrv := mcp.New(temporalClient, guard, store, cfg.TaskQueue, logger)

	srv := server.New(server.ServerConfig{
		Temporal:            temporalClient,
		Guard:               guard,
		Store:               store,
		MCPServer:           mcpSrv.MCPServer(),
		Limiter:             limiter,
		OpenAPISpec:         api.OpenAPISpec,
		Logger:              logger,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		TaskQueue:           cfg.TaskQueue,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	return &App{
		cfg:          cfg,
		temporal:     temporalClient,
		ownsTemporal: ownsTemporal,
		store:        store,
		limiter:      limiter,
		srv:          srv,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Handler returns the root HTTP handler, for embedding in an existing
// server or for tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// server fails, then performs a graceful shutdown.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown drains in-flight HTTP requests, then releases the limiter,
// the run archive, the Temporal client, and the OTEL provider.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("kotae shutting down")

	httpCtx, httpCancel := context.WithTimeout(ctx, 10*time.Second)
	defer httpCancel()
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}

	if a.limiter != nil {
		_ = a.limiter.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.ownsTemporal {
		a.temporal.Close()
	}
	if err := a.otelShutdown(ctx); err != nil {
		a.logger.Error("otel shutdown error", "error", err)
	}

	a.logger.Info("kotae stopped")
	return nil
}
