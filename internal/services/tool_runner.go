package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"imagebatch/internal/pool"
)

// ToolError is returned when an external tool exits with a non-zero code
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("the process %s failed with exit code %d. Error: %s",
		e.Tool, e.ExitCode, strings.TrimSpace(e.Stderr))
}

// ToolRunner launches external executables and captures their output
type ToolRunner struct {
	bufferPool *pool.BufferPool
	waitDelay  time.Duration
	debug      bool
	mu         sync.RWMutex
	stats      ToolStats
}

// ToolStats tracks invocation metrics
type ToolStats struct {
	TotalRuns    int64
	FailedRuns   int64
	CanceledRuns int64
	AvgRunTime   time.Duration
}

// NewToolRunner creates a runner. Output capture is bounded by the pool's buffer size.
func NewToolRunner(bufferPool *pool.BufferPool, debug bool) *ToolRunner {
	return &ToolRunner{
		bufferPool: bufferPool,
		waitDelay:  5 * time.Second,
		debug:      debug,
	}
}

// Run executes the tool and waits for it. stdout and stderr are drained concurrently
// with the wait so a chatty tool cannot stall on a full pipe. Cancelling ctx kills the
// process and the returned error wraps ctx.Err().
func (r *ToolRunner) Run(ctx context.Context, executable string, args []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := filepath.Base(executable)
	if r.debug {
		log.Printf("🔧 Executing command: %s %s", executable, strings.Join(args, " "))
	}

	stdout := r.bufferPool.NewTail()
	defer stdout.Release()
	stderr := r.bufferPool.NewTail()
	defer stderr.Release()

	cmd := exec.CommandContext(ctx, executable, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Bounds the wait for pipes held open by grandchildren after a kill
	cmd.WaitDelay = r.waitDelay

	start := time.Now()
	err := cmd.Run()

	if ctxErr := ctx.Err(); ctxErr != nil {
		r.record(time.Since(start), false, true)
		return fmt.Errorf("%s interrupted: %w", name, ctxErr)
	}

	if err != nil {
		r.record(time.Since(start), false, false)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if r.debug {
				log.Printf("Process output: %s", stdout.String())
			}
			return &ToolError{Tool: name, ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return fmt.Errorf("failed to run %s: %w", name, err)
	}

	r.record(time.Since(start), true, false)
	return nil
}

func (r *ToolRunner) record(d time.Duration, ok, canceled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.TotalRuns++
	switch {
	case canceled:
		r.stats.CanceledRuns++
	case !ok:
		r.stats.FailedRuns++
	}
	r.stats.AvgRunTime = (r.stats.AvgRunTime*time.Duration(r.stats.TotalRuns-1) + d) / time.Duration(r.stats.TotalRuns)
}

// GetStats returns current statistics
func (r *ToolRunner) GetStats() ToolStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}
