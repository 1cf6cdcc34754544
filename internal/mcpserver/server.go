// Package mcpserver exposes job control as Model Context Protocol tools
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"imagebatch/internal/jobs"
)

// Server wraps the MCP server around a job registry
type Server struct {
	mcpServer *mcp.Server
	registry  *jobs.Registry
}

// NewServer creates a new MCP server for registry
func NewServer(registry *jobs.Registry, version string) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "imagebatch",
		Version: version,
	}, nil)

	s := &Server{
		mcpServer: mcpServer,
		registry:  registry,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "start_job",
		Description: "Start a batch that upscales and/or re-encodes every image in a folder. Returns immediately with a job id.",
	}, s.handleStartJob)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "job_status",
		Description: "Get the status and latest progress of a job. Optionally wait for it to finish.",
	}, s.handleJobStatus)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "job_history",
		Description: "List the progress messages a job has reported, oldest first.",
	}, s.handleJobHistory)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "cancel_job",
		Description: "Cancel a pending or running job. The running tool is stopped and the job ends as canceled.",
	}, s.handleCancelJob)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_jobs",
		Description: "List known jobs, oldest first.",
	}, s.handleListJobs)
}

// RunStdio runs the server using stdio transport
func (s *Server) RunStdio(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
