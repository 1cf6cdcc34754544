package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"imagebatch/internal/jobs"
	"imagebatch/internal/models"
)

const maxWait = 10 * time.Minute

// handleStartJob handles the start_job tool
func (s *Server) handleStartJob(ctx context.Context, req *mcp.CallToolRequest, input StartJobInput) (*mcp.CallToolResult, StartJobOutput, error) {
	output := StartJobOutput{}

	job, err := s.registry.Create(input.options())
	if err != nil {
		return nil, output, fmt.Errorf("invalid options: %w", err)
	}
	if err := s.registry.Start(job.ID); err != nil {
		return nil, output, err
	}

	output.JobID = job.ID
	output.Status = string(models.JobStatusRunning)
	return textResult(fmt.Sprintf("Started job %s", job.ID)), output, nil
}

// handleJobStatus handles the job_status tool
func (s *Server) handleJobStatus(ctx context.Context, req *mcp.CallToolRequest, input JobStatusInput) (*mcp.CallToolResult, JobStatusOutput, error) {
	if input.JobID == "" {
		return nil, JobStatusOutput{}, fmt.Errorf("job_id is required")
	}

	var (
		view jobs.JobView
		err  error
	)
	if input.WaitSeconds > 0 {
		wait := time.Duration(input.WaitSeconds) * time.Second
		if wait > maxWait {
			wait = maxWait
		}
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		view, err = s.registry.Wait(waitCtx, input.JobID)
		cancel()
		// Timing out still reports the current state
		if err != nil && waitCtx.Err() != nil && ctx.Err() == nil {
			err = nil
		}
	} else {
		view, err = s.registry.Get(input.JobID)
	}
	if err != nil {
		return nil, JobStatusOutput{}, err
	}

	output := statusOutput(view)
	text := fmt.Sprintf("Job %s is %s (%.0f%%)", output.JobID, output.Status, output.OverallProgress*100)
	if output.Message != "" {
		text += ": " + output.Message
	}
	return textResult(text), output, nil
}

// handleJobHistory handles the job_history tool
func (s *Server) handleJobHistory(ctx context.Context, req *mcp.CallToolRequest, input JobHistoryInput) (*mcp.CallToolResult, JobHistoryOutput, error) {
	output := JobHistoryOutput{Snapshots: []HistoryItem{}}
	if input.JobID == "" {
		return nil, output, fmt.Errorf("job_id is required")
	}

	history, err := s.registry.History(input.JobID)
	if err != nil {
		return nil, output, err
	}
	output.Total = len(history)

	since := input.Since
	if since < 0 {
		since = 0
	}
	if since > len(history) {
		since = len(history)
	}
	for _, snap := range history[since:] {
		output.Snapshots = append(output.Snapshots, HistoryItem{
			Message:         snap.Message,
			CurrentFile:     snap.CurrentFile,
			OverallProgress: snap.OverallProgress,
			IsComplete:      snap.IsComplete,
			IsError:         snap.IsError,
			IsCanceled:      snap.IsCanceled,
			Timestamp:       formatTime(snap.Timestamp),
		})
	}

	return textResult(fmt.Sprintf("%d of %d snapshots", len(output.Snapshots), output.Total)), output, nil
}

// handleCancelJob handles the cancel_job tool
func (s *Server) handleCancelJob(ctx context.Context, req *mcp.CallToolRequest, input JobInput) (*mcp.CallToolResult, JobStatusOutput, error) {
	if input.JobID == "" {
		return nil, JobStatusOutput{}, fmt.Errorf("job_id is required")
	}
	if err := s.registry.Cancel(input.JobID); err != nil {
		return nil, JobStatusOutput{}, err
	}

	view, err := s.registry.Get(input.JobID)
	if err != nil {
		return nil, JobStatusOutput{}, err
	}
	return textResult(fmt.Sprintf("Cancellation requested for job %s", input.JobID)), statusOutput(view), nil
}

// handleListJobs handles the list_jobs tool
func (s *Server) handleListJobs(ctx context.Context, req *mcp.CallToolRequest, input ListJobsInput) (*mcp.CallToolResult, ListJobsOutput, error) {
	output := ListJobsOutput{Jobs: []JobStatusOutput{}}
	for _, view := range s.registry.List() {
		if input.Status != "" && string(view.Status) != input.Status {
			continue
		}
		output.Jobs = append(output.Jobs, statusOutput(view))
	}
	output.Total = len(output.Jobs)
	return textResult(fmt.Sprintf("%d jobs", output.Total)), output, nil
}

func statusOutput(view jobs.JobView) JobStatusOutput {
	out := JobStatusOutput{
		JobID:     view.ID,
		Status:    string(view.Status),
		Processed: view.Processed,
		Skipped:   view.Skipped,
		CreatedAt: formatTime(view.CreatedAt),
	}
	if view.FinishedAt != nil {
		out.FinishedAt = formatTime(*view.FinishedAt)
	}
	if last := view.LastUpdate; last != nil {
		out.Message = last.Message
		out.OverallProgress = last.OverallProgress
		out.ErrorMessage = last.ErrorMessage
	}
	return out
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
