package kotae

import (
	"log/slog"

	"go.temporal.io/sdk/client"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	port       int
	sqlitePath string
	logger     *slog.Logger
	version    string
	temporal   client.Client
}

// WithPort overrides the TCP port from config (KOTAE_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithSQLitePath overrides the run archive path from config
// (KOTAE_SQLITE_PATH env var).
func WithSQLitePath(path string) Option {
	return func(o *resolvedOptions) { o.sqlitePath = path }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithTemporalClient supplies an existing Temporal client instead of
// dialing one from config. The App will not close a supplied client on
// shutdown; its lifecycle stays with the caller.
func WithTemporalClient(c client.Client) Option {
	return func(o *resolvedOptions) { o.temporal = c }
}
