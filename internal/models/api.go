package models

import "time"

// StartResponse is returned when a job has been accepted
type StartResponse struct {
	Success bool      `json:"success"`
	JobID   string    `json:"job_id"`
	Status  JobStatus `json:"status"`
}

// JobStatusResponse represents the status endpoint payload
type JobStatusResponse struct {
	ID         string            `json:"id"`
	Status     JobStatus         `json:"status"`
	Options    ProcessingOptions `json:"options"`
	CreatedAt  time.Time         `json:"created_at"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	LastUpdate *Snapshot         `json:"last_update"`
}

// JobListResponse lists known jobs
type JobListResponse struct {
	Jobs  []JobStatusResponse `json:"jobs"`
	Total int                 `json:"total"`
}

// LogEntryResponse is a LogEntry with its derived reduction
type LogEntryResponse struct {
	LogEntry
	ReductionPercentage float64 `json:"reduction_percentage"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status       string                 `json:"status"`
	Timestamp    string                 `json:"timestamp"`
	Platform     string                 `json:"platform"`
	MissingTools []string               `json:"missing_tools"`
	WorkerPool   map[string]interface{} `json:"worker_pool"`
	BufferPool   map[string]interface{} `json:"buffer_pool"`
	Jobs         map[string]interface{} `json:"jobs"`
	Archive      map[string]interface{} `json:"archive"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
