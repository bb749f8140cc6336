package types

import (
	"encoding/json"
	"time"
)

// SubmissionResponse is a journalled submission as served by the journal API
type SubmissionResponse struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	RemoteID    int64           `json:"remote_id"`
	Name        string          `json:"name,omitempty"`
	Status      string          `json:"status"`
	Strategy    string          `json:"strategy,omitempty"`
	Request     json.RawMessage `json:"request,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// SubmissionListResponse is a page of submissions
type SubmissionListResponse struct {
	Submissions []SubmissionResponse `json:"submissions"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// RefreshResponse reports a journal refresh
type RefreshResponse struct {
	Updated int    `json:"updated"`
	Errors  string `json:"errors,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version"`
	Uptime     string    `json:"uptime"`
	ActiveJobs int       `json:"active_submissions"`
}
