package model

import "time"

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// ChatCreatedResponse is the response body for POST /v1/chats.
type ChatCreatedResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
}

// ChatStateResponse is the response body for GET /v1/chats/{chat_id}.
// Tokens holds the tokens at or after the requested cursor; NextIndex is
// the cursor to pass on the next poll.
type ChatStateResponse struct {
	WorkflowID     string   `json:"workflow_id"`
	Status         string   `json:"status"`
	Completed      bool     `json:"completed"`
	Error          string   `json:"error,omitempty"`
	FilesFound     int      `json:"files_found"`
	FilesProcessed int      `json:"files_processed"`
	Tokens         []string `json:"tokens"`
	NextIndex      int      `json:"next_index"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Temporal string `json:"temporal"`
	Archive  string `json:"archive,omitempty"`
	Uptime   int64  `json:"uptime_seconds"`
}
