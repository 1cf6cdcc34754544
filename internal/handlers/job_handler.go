package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"

	"imagebatch/internal/cache"
	"imagebatch/internal/jobs"
	"imagebatch/internal/models"
	"imagebatch/internal/pool"
	"imagebatch/internal/processlog"
	"imagebatch/internal/services"
)

// JobHandler exposes the job registry and the processing log over HTTP
type JobHandler struct {
	registry   *jobs.Registry
	recorder   *processlog.Recorder
	processor  *services.ImageProcessor
	runner     *services.ToolRunner
	workerPool *pool.WorkerPool
	bufferPool *pool.BufferPool
	archive    cache.JobArchive
}

// NewJobHandler creates a new job handler. archive may be nil.
func NewJobHandler(
	registry *jobs.Registry,
	recorder *processlog.Recorder,
	processor *services.ImageProcessor,
	runner *services.ToolRunner,
	workerPool *pool.WorkerPool,
	bufferPool *pool.BufferPool,
	archive cache.JobArchive,
) *JobHandler {
	return &JobHandler{
		registry:   registry,
		recorder:   recorder,
		processor:  processor,
		runner:     runner,
		workerPool: workerPool,
		bufferPool: bufferPool,
		archive:    archive,
	}
}

// Register mounts every route on router
func (h *JobHandler) Register(router fiber.Router, withHealth bool) {
	router.Post("/processing/start", h.StartProcessing)
	router.Get("/processing/:id/status", h.GetStatus)
	router.Get("/processing/:id/history", h.GetHistory)

	router.Post("/jobs", h.CreateJob)
	router.Get("/jobs", h.ListJobs)
	router.Post("/jobs/:id/start", h.StartJob)
	router.Post("/jobs/:id/cancel", h.CancelJob)

	router.Get("/logs", h.GetLogs)
	router.Get("/logs/daily", h.GetDailyLogs)
	router.Delete("/logs", h.ClearLogs)

	if withHealth {
		router.Get("/health", h.Health)
	}
}

// StartProcessing handles POST /api/processing/start: create and start in one call
func (h *JobHandler) StartProcessing(c fiber.Ctx) error {
	var opts models.ProcessingOptions
	if err := c.Bind().JSON(&opts); err != nil {
		return badRequest(c, "Invalid request body", err)
	}

	job, err := h.registry.Create(opts)
	if err != nil {
		return badRequest(c, "Invalid processing options", err)
	}
	if err := h.registry.Start(job.ID); err != nil {
		return jobError(c, err)
	}

	log.Printf("📥 Processing request accepted: job=%s", job.ID)
	return c.Status(fiber.StatusAccepted).JSON(models.StartResponse{
		Success: true,
		JobID:   job.ID,
		Status:  models.JobStatusRunning,
	})
}

// CreateJob handles POST /api/jobs: register without starting
func (h *JobHandler) CreateJob(c fiber.Ctx) error {
	var opts models.ProcessingOptions
	if err := c.Bind().JSON(&opts); err != nil {
		return badRequest(c, "Invalid request body", err)
	}

	job, err := h.registry.Create(opts)
	if err != nil {
		return badRequest(c, "Invalid processing options", err)
	}
	return c.Status(fiber.StatusCreated).JSON(models.StartResponse{
		Success: true,
		JobID:   job.ID,
		Status:  job.Status,
	})
}

// StartJob handles POST /api/jobs/:id/start
func (h *JobHandler) StartJob(c fiber.Ctx) error {
	id := c.Params("id")
	if err := h.registry.Start(id); err != nil {
		return jobError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(models.StartResponse{
		Success: true,
		JobID:   id,
		Status:  models.JobStatusRunning,
	})
}

// CancelJob handles POST /api/jobs/:id/cancel
func (h *JobHandler) CancelJob(c fiber.Ctx) error {
	id := c.Params("id")
	if err := h.registry.Cancel(id); err != nil {
		return jobError(c, err)
	}
	job, err := h.registry.Get(id)
	if err != nil {
		return jobError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(job.Response())
}

// ListJobs handles GET /api/jobs
func (h *JobHandler) ListJobs(c fiber.Ctx) error {
	views := h.registry.List()
	out := make([]models.JobStatusResponse, 0, len(views))
	for _, v := range views {
		out = append(out, v.Response())
	}
	return c.JSON(models.JobListResponse{Jobs: out, Total: len(out)})
}

// GetStatus handles GET /api/processing/:id/status
func (h *JobHandler) GetStatus(c fiber.Ctx) error {
	job, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return jobError(c, err)
	}
	return c.JSON(job.Response())
}

// GetHistory handles GET /api/processing/:id/history
func (h *JobHandler) GetHistory(c fiber.Ctx) error {
	history, err := h.registry.History(c.Params("id"))
	if err != nil {
		return jobError(c, err)
	}
	if history == nil {
		history = []models.Snapshot{}
	}
	return c.JSON(history)
}

// GetLogs handles GET /api/logs (JSON, or CSV with ?format=csv)
func (h *JobHandler) GetLogs(c fiber.Ctx) error {
	entries, err := h.recorder.Entries()
	if err != nil {
		return serverError(c, "Failed to read processing log", err)
	}

	if c.Query("format") == "csv" {
		var buf bytes.Buffer
		if err := processlog.ExportCSV(&buf, entries); err != nil {
			return serverError(c, "Failed to export processing log", err)
		}
		c.Set("Content-Type", "text/csv; charset=utf-8")
		c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"processing_log_%s.csv\"", time.Now().Format("20060102")))
		return c.Send(buf.Bytes())
	}

	out := make([]models.LogEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.LogEntryResponse{LogEntry: e, ReductionPercentage: e.ReductionPercentage()})
	}
	return c.JSON(out)
}

// GetDailyLogs handles GET /api/logs/daily
func (h *JobHandler) GetDailyLogs(c fiber.Ctx) error {
	entries, err := h.recorder.Entries()
	if err != nil {
		return serverError(c, "Failed to read processing log", err)
	}

	days := processlog.GroupByDay(entries)
	out := make([]fiber.Map, 0, len(days))
	for _, d := range days {
		out = append(out, fiber.Map{
			"date":                 d.Date.Format("2006-01-02"),
			"files":                len(d.Entries),
			"total_original_size":  d.TotalOriginalSize,
			"total_processed_size": d.TotalProcessedSize,
			"reduction_percentage": d.TotalReductionPercentage(),
		})
	}
	return c.JSON(out)
}

// ClearLogs handles DELETE /api/logs
func (h *JobHandler) ClearLogs(c fiber.Ctx) error {
	if err := h.recorder.Clear(); err != nil {
		return serverError(c, "Failed to clear processing log", err)
	}
	log.Println("🗑️  Processing log cleared")
	return c.SendStatus(fiber.StatusNoContent)
}

// Health handles GET /api/health
func (h *JobHandler) Health(c fiber.Ctx) error {
	tools := h.processor.Toolchain()
	missing := tools.Missing()
	status := "healthy"
	if len(missing) > 0 {
		status = "degraded"
	}
	if missing == nil {
		missing = []string{}
	}

	workerStats := h.workerPool.GetStats()
	bufferStats := h.bufferPool.GetStats()
	toolStats := h.runner.GetStats()
	imageStats := h.processor.ConverterStats()

	jobStats := h.registry.Stats()
	jobStats["tool_runs"] = toolStats.TotalRuns
	jobStats["tool_failures"] = toolStats.FailedRuns
	jobStats["tool_cancellations"] = toolStats.CanceledRuns
	jobStats["avg_tool_time"] = toolStats.AvgRunTime.String()
	jobStats["files_converted"] = imageStats.TotalConversions
	jobStats["files_failed"] = imageStats.FailedConversions
	jobStats["avg_file_time"] = imageStats.AvgConversionTime.String()

	archiveStats := map[string]interface{}{"backend": "none"}
	if h.archive != nil {
		archiveStats = h.archive.Stats()
	}

	return c.JSON(models.HealthResponse{
		Status:       status,
		Timestamp:    time.Now().Format(time.RFC3339),
		Platform:     tools.Platform,
		MissingTools: missing,
		WorkerPool: map[string]interface{}{
			"max_workers":    workerStats.MaxWorkers,
			"active_workers": workerStats.ActiveWorkers,
			"total_tasks":    workerStats.TotalTasks,
			"failed_tasks":   workerStats.FailedTasks,
			"overflowed":     workerStats.Overflowed,
			"avg_exec_time":  workerStats.AvgExecTime.String(),
		},
		BufferPool: map[string]interface{}{
			"allocated": bufferStats.Allocated,
			"in_use":    bufferStats.InUse,
			"available": bufferStats.Available,
			"hit_rate":  fmt.Sprintf("%.2f%%", bufferStats.HitRate),
		},
		Jobs:    jobStats,
		Archive: archiveStats,
	})
}

// Helper functions

func badRequest(c fiber.Ctx, msg string, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
		Success: false,
		Error:   msg,
		Details: err.Error(),
	})
}

func serverError(c fiber.Ctx, msg string, err error) error {
	log.Printf("❌ %s: %v", msg, err)
	return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
		Success: false,
		Error:   msg,
		Details: err.Error(),
	})
}

// jobError maps registry errors to status codes
func jobError(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Job operation failed"
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		code, msg = fiber.StatusNotFound, "Job not found"
	case errors.Is(err, jobs.ErrJobNotPending):
		code, msg = fiber.StatusConflict, "Job is not pending"
	case errors.Is(err, jobs.ErrJobFinished):
		code, msg = fiber.StatusConflict, "Job already finished"
	default:
		log.Printf("❌ %s: %v", msg, err)
	}
	return c.Status(code).JSON(models.ErrorResponse{
		Success: false,
		Error:   msg,
		Details: err.Error(),
	})
}
