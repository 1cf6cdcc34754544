package models

import "time"

// JobStatus is the lifecycle state of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// IsTerminal returns true once the status can no longer change
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCanceled
}

// JobRecord is the archived form of a finished job
type JobRecord struct {
	ID         string            `json:"id"`
	Status     JobStatus         `json:"status"`
	Options    ProcessingOptions `json:"options"`
	CreatedAt  time.Time         `json:"created_at"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	History    []Snapshot        `json:"history"`
	Processed  int               `json:"processed"` // files that produced a log entry
	Skipped    int               `json:"skipped"`
}

// LastUpdate returns the most recent snapshot, or nil for an empty history
func (r JobRecord) LastUpdate() *Snapshot {
	if len(r.History) == 0 {
		return nil
	}
	last := r.History[len(r.History)-1]
	return &last
}
