package mcpserver

import (
	"time"

	"imagebatch/internal/models"
)

// StartJobInput represents input for the start_job tool
type StartJobInput struct {
	InputFolder       string `json:"input_folder" jsonschema:"folder containing the source images"`
	OutputFolder      string `json:"output_folder" jsonschema:"folder receiving the processed images; the input layout is mirrored"`
	Model             string `json:"model,omitempty" jsonschema:"Real-ESRGAN model name, required with apply_upscale"`
	ProcessSubfolders bool   `json:"process_subfolders,omitempty" jsonschema:"also process images in nested folders"`
	ConvertToWebP     bool   `json:"convert_to_webp,omitempty" jsonschema:"encode results as WebP"`
	ConvertToAvif     bool   `json:"convert_to_avif,omitempty" jsonschema:"encode results as AVIF (not together with convert_to_webp)"`
	ApplyUpscale      bool   `json:"apply_upscale,omitempty" jsonschema:"upscale before encoding"`
	DeleteSourceFile  bool   `json:"delete_source_file,omitempty" jsonschema:"delete each source after it was processed"`
	IncludeWebPFiles  bool   `json:"include_webp_files,omitempty" jsonschema:"treat existing .webp files as inputs"`
	IncludeAvifFiles  bool   `json:"include_avif_files,omitempty" jsonschema:"treat existing .avif files as inputs"`
}

func (in StartJobInput) options() models.ProcessingOptions {
	return models.ProcessingOptions{
		InputFolder:       in.InputFolder,
		OutputFolder:      in.OutputFolder,
		Model:             in.Model,
		ProcessSubfolders: in.ProcessSubfolders,
		ConvertToWebP:     in.ConvertToWebP,
		ConvertToAvif:     in.ConvertToAvif,
		ApplyUpscale:      in.ApplyUpscale,
		DeleteSourceFile:  in.DeleteSourceFile,
		IncludeWebPFiles:  in.IncludeWebPFiles,
		IncludeAvifFiles:  in.IncludeAvifFiles,
	}
}

// StartJobOutput represents output from the start_job tool
type StartJobOutput struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobInput identifies a job
type JobInput struct {
	JobID string `json:"job_id" jsonschema:"id returned by start_job"`
}

// JobStatusInput represents input for the job_status tool
type JobStatusInput struct {
	JobID       string `json:"job_id" jsonschema:"id returned by start_job"`
	WaitSeconds int    `json:"wait_seconds,omitempty" jsonschema:"block up to this many seconds for the job to finish"`
}

// JobStatusOutput represents the state of one job
type JobStatusOutput struct {
	JobID           string  `json:"job_id"`
	Status          string  `json:"status"`
	Message         string  `json:"message,omitempty"`
	OverallProgress float64 `json:"overall_progress"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	Processed       int     `json:"processed"`
	Skipped         int     `json:"skipped"`
	CreatedAt       string  `json:"created_at"`
	FinishedAt      string  `json:"finished_at,omitempty"`
}

// JobHistoryInput represents input for the job_history tool
type JobHistoryInput struct {
	JobID string `json:"job_id" jsonschema:"id returned by start_job"`
	Since int    `json:"since,omitempty" jsonschema:"skip this many snapshots from the start of the history"`
}

// JobHistoryOutput lists progress snapshots in the order they were reported
type JobHistoryOutput struct {
	Snapshots []HistoryItem `json:"snapshots"`
	Total     int           `json:"total"`
}

// HistoryItem is one progress snapshot
type HistoryItem struct {
	Message         string  `json:"message"`
	CurrentFile     string  `json:"current_file,omitempty"`
	OverallProgress float64 `json:"overall_progress"`
	IsComplete      bool    `json:"is_complete,omitempty"`
	IsError         bool    `json:"is_error,omitempty"`
	IsCanceled      bool    `json:"is_canceled,omitempty"`
	Timestamp       string  `json:"timestamp"`
}

// ListJobsInput represents input for the list_jobs tool
type ListJobsInput struct {
	Status string `json:"status,omitempty" jsonschema:"only list jobs with this status"`
}

// ListJobsOutput lists known jobs
type ListJobsOutput struct {
	Jobs  []JobStatusOutput `json:"jobs"`
	Total int               `json:"total"`
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
