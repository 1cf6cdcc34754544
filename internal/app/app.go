// Package app assembles the processing stack from a Config. The HTTP server, the CLI
// and the MCP server all share it.
package app

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/spf13/afero"

	"imagebatch/internal/cache"
	"imagebatch/internal/config"
	"imagebatch/internal/jobs"
	"imagebatch/internal/pool"
	"imagebatch/internal/processlog"
	"imagebatch/internal/services"
)

// App holds every long-lived component
type App struct {
	Config     *config.Config
	BufferPool *pool.BufferPool
	WorkerPool *pool.WorkerPool
	Tools      *services.Toolchain
	Runner     *services.ToolRunner
	Processor  *services.ImageProcessor
	Recorder   *processlog.Recorder
	Archive    cache.JobArchive
	Registry   *jobs.Registry
}

// New builds and starts the stack. Callers must Close it.
func New(cfg *config.Config) (*App, error) {
	return NewWithFs(cfg, afero.NewOsFs(), runtime.GOOS)
}

// NewWithFs is New on an explicit filesystem and platform
func NewWithFs(cfg *config.Config, fs afero.Fs, goos string) (*App, error) {
	tools, err := services.ResolveToolchain(cfg.ToolsDir, cfg.ModelsDir, goos)
	if err != nil {
		return nil, err
	}
	if missing := tools.Missing(); len(missing) > 0 {
		log.Printf("⚠️  Missing tools in %s: %v", tools.Dir, missing)
	}

	log.Printf("📦 Initializing buffer pool: count=%d, size=%d bytes", cfg.BufferPoolSize, cfg.BufferSize)
	bufferPool := pool.NewBufferPool(cfg.BufferPoolSize, cfg.BufferSize)

	log.Printf("👷 Initializing worker pool: soft limit=%d", cfg.MaxConcurrentJobs)
	workerPool := pool.NewWorkerPool(cfg.MaxConcurrentJobs)
	if err := workerPool.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}

	runner := services.NewToolRunner(bufferPool, cfg.Debug)
	processor := services.NewImageProcessor(fs, tools, runner, services.Templates{
		Upscale:   cfg.UpscaleArgs,
		WebP:      cfg.WebPArgs,
		Avif:      cfg.AvifArgs,
		AvifCodec: cfg.AvifCodec,
	}, services.Pacing{
		StartPause:  cfg.StartPause,
		FolderPause: cfg.FolderPause,
	})

	recorder, err := processlog.NewRecorder(fs, cfg.LogFilePath())
	if err != nil {
		workerPool.Stop()
		return nil, err
	}

	archive := newArchive(cfg)

	registry := jobs.NewRegistry(processor, workerPool, recorder, archive, jobs.Settings{
		Retention: cfg.JobRetention,
		Debug:     cfg.Debug,
	})

	return &App{
		Config:     cfg,
		BufferPool: bufferPool,
		WorkerPool: workerPool,
		Tools:      tools,
		Runner:     runner,
		Processor:  processor,
		Recorder:   recorder,
		Archive:    archive,
		Registry:   registry,
	}, nil
}

// newArchive prefers Redis when configured and falls back to memory
func newArchive(cfg *config.Config) cache.JobArchive {
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		archive, err := cache.NewRedisArchive(client, cfg.ArchiveTTL)
		if err == nil {
			return archive
		}
		log.Printf("⚠️  Redis unavailable at %s, using in-memory archive: %v", cfg.RedisAddr, err)
		client.Close()
	}
	return cache.NewMemoryArchive(cfg.ArchiveTTL, 10*time.Minute)
}

// Close cancels running jobs, waits for them (bounded by ctx) and releases resources
func (a *App) Close(ctx context.Context) error {
	err := a.Registry.Shutdown(ctx)
	a.WorkerPool.Stop()
	if cerr := a.Archive.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
