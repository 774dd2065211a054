// Package model defines the core domain types for Kotae.
//
// Types in this package cross the workflow/activity boundary and are
// serialized by the Temporal data converter, so they use plain JSON-friendly
// fields and avoid interfaces.
package model

import "time"

// FileKind classifies a discovered file by the decoder that handles it.
type FileKind string

const (
	FileKindText        FileKind = "text"
	FileKindPDF         FileKind = "pdf"
	FileKindUnsupported FileKind = "unsupported"
)

// RunRequest is the immutable input to a chat run.
type RunRequest struct {
	Query           string  `json:"query"`
	TargetPath      string  `json:"target_path"`
	MaxFiles        int     `json:"max_files"`
	MaxFileSizeMB   int     `json:"max_file_size_mb"`
	MaxCharsPerFile int     `json:"max_chars_per_file"`
	MaxTokens       int     `json:"max_tokens"`
	Temperature     float64 `json:"temperature"`
}

// Defaults mirror the limits the service applies when a field is zero.
const (
	DefaultMaxFiles        = 10
	DefaultMaxFileSizeMB   = 10
	DefaultMaxCharsPerFile = 2000
	DefaultMaxTokens       = 4096
	DefaultTemperature     = 0.7
)

// WithDefaults returns a copy of the request with zero-valued limits
// replaced by the service defaults.
func (r RunRequest) WithDefaults() RunRequest {
	if r.MaxFiles <= 0 {
		r.MaxFiles = DefaultMaxFiles
	}
	if r.MaxFileSizeMB <= 0 {
		r.MaxFileSizeMB = DefaultMaxFileSizeMB
	}
	if r.MaxCharsPerFile <= 0 {
		r.MaxCharsPerFile = DefaultMaxCharsPerFile
	}
	if r.MaxTokens <= 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	if r.Temperature <= 0 {
		r.Temperature = DefaultTemperature
	}
	return r
}

// FileRecord is the result of loading a single discovered file.
// A non-empty Error means Content is empty and the record is excluded
// from prompt assembly; a bad file never aborts its siblings.
type FileRecord struct {
	Path      string   `json:"path"` // root-relative
	Name      string   `json:"name"`
	Content   string   `json:"content"`
	Kind      FileKind `json:"kind"`
	SizeBytes int64    `json:"size_bytes"`
	Error     string   `json:"error,omitempty"`
}

// GenerationResult summarizes one completed generation step.
type GenerationResult struct {
	TokenCount   int    `json:"token_count"`
	FinishReason string `json:"finish_reason,omitempty"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
}

// StreamState is the live, poller-visible state of a run. It is owned and
// mutated exclusively by the workflow; Tokens only ever grows and Completed
// transitions false→true exactly once.
type StreamState struct {
	Tokens         []string `json:"tokens"`
	Status         string   `json:"status"`
	Completed      bool     `json:"completed"`
	Error          string   `json:"error,omitempty"`
	FilesFound     int      `json:"files_found"`
	FilesProcessed int      `json:"files_processed"`
}

// RunResult is the terminal value of a run. A successful result always
// carries a non-empty Model; a failed one always carries Error. Partial
// progress counters survive failure.
type RunResult struct {
	Success        bool   `json:"success"`
	FilesFound     int    `json:"files_found"`
	FilesProcessed int    `json:"files_processed"`
	TokenCount     int    `json:"token_count"`
	Model          string `json:"model"`
	Error          string `json:"error,omitempty"`
}

// RunRecord is an archived terminal run as stored in the run history.
type RunRecord struct {
	WorkflowID     string    `json:"workflow_id"`
	Success        bool      `json:"success"`
	FilesFound     int       `json:"files_found"`
	FilesProcessed int       `json:"files_processed"`
	TokenCount     int       `json:"token_count"`
	Model          string    `json:"model,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
