package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"imagebatch/internal/models"
)

// ErrMissingTools is returned when a required external binary is absent
var ErrMissingTools = errors.New("required dependencies not found")

// Outcome is how a run ended
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCanceled  Outcome = "canceled"
)

// Result is returned by every run. Entries holds the files fully processed before the
// run ended; on a failed or canceled run they are the partial results and the files
// they describe remain on disk.
type Result struct {
	Entries []models.LogEntry
	Skipped int
	Outcome Outcome
	Err     error
}

// Reporter receives snapshots in emission order. Report is called from the run's goroutine.
type Reporter interface {
	Report(models.Snapshot)
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(models.Snapshot)

// Report implements Reporter
func (f ReporterFunc) Report(s models.Snapshot) { f(s) }

// Pacing holds the observer-facing pauses of a run. Zero disables a pause.
type Pacing struct {
	StartPause  time.Duration
	FolderPause time.Duration
}

// ImageProcessor runs batches: discovery, per-file stages, statistics and reporting
type ImageProcessor struct {
	fs        afero.Fs
	tools     *Toolchain
	converter *ImageConverter
	pacing    Pacing
}

// NewImageProcessor wires a processor. fs must be the filesystem the tools write to.
func NewImageProcessor(fs afero.Fs, tools *Toolchain, runner *ToolRunner, templates Templates, pacing Pacing) *ImageProcessor {
	return &ImageProcessor{
		fs:        fs,
		tools:     tools,
		converter: NewImageConverter(fs, runner, tools, templates),
		pacing:    pacing,
	}
}

// Toolchain returns the resolved tools
func (p *ImageProcessor) Toolchain() *Toolchain {
	return p.tools
}

// ConverterStats returns per-file conversion metrics
func (p *ImageProcessor) ConverterStats() ImageStats {
	return p.converter.GetStats()
}

// Run processes one batch. Every failure, cancellation included, is reported as a final
// error snapshot; Run itself never panics on tool or filesystem errors.
func (p *ImageProcessor) Run(ctx context.Context, opts models.ProcessingOptions, reporter Reporter) Result {
	emit := func(s models.Snapshot) {
		s.Timestamp = time.Now()
		reporter.Report(s)
	}

	if missing := p.tools.Missing(); len(missing) > 0 {
		names := strings.Join(missing, ", ")
		msg := fmt.Sprintf("One or more required dependencies were not found: %s. Please make sure they are in the application's directory.", names)
		emit(models.Snapshot{Message: msg, IsError: true, ErrorMessage: msg})
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("%w: %s", ErrMissingTools, names)}
	}

	b := &batch{
		proc:  p,
		opts:  opts,
		emit:  emit,
		stats: NewSizeStats(),
	}
	err := b.run(ctx)

	res := Result{Entries: b.entries, Skipped: b.skipped}
	switch {
	case err == nil:
		res.Outcome = OutcomeCompleted
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		res.Outcome = OutcomeCanceled
		res.Err = err
		emit(models.Snapshot{
			Message:      "The process was canceled.",
			IsError:      true,
			IsCanceled:   true,
			ErrorMessage: "Canceled",
		})
	default:
		log.Printf("❌ An error occurred during image processing: %v", err)
		res.Outcome = OutcomeFailed
		res.Err = err
		emit(models.Snapshot{
			Message:      fmt.Sprintf("An unexpected error occurred: %v. The process has been stopped.", err),
			IsError:      true,
			ErrorMessage: err.Error(),
		})
	}
	return res
}

// batch is the state of one in-flight run
type batch struct {
	proc       *ImageProcessor
	opts       models.ProcessingOptions
	emit       func(models.Snapshot)
	stats      *SizeStats
	inputRoot  string
	outputRoot string
	total      int
	processed  int
	skipped    int
	entries    []models.LogEntry
}

func (b *batch) run(ctx context.Context) error {
	if err := b.opts.Validate(); err != nil {
		return err
	}

	var err error
	if b.inputRoot, err = filepath.Abs(b.opts.InputFolder); err != nil {
		return err
	}
	if b.outputRoot, err = filepath.Abs(b.opts.OutputFolder); err != nil {
		return err
	}

	groups, err := Discover(b.proc.fs, b.inputRoot, b.opts.ProcessSubfolders, ExtensionsFor(b.opts))
	if err != nil {
		return err
	}
	// a cancel that landed during discovery must not end as a completed empty batch
	if err := ctx.Err(); err != nil {
		return err
	}

	b.total = CountFiles(groups)
	if b.total == 0 {
		b.emit(models.Snapshot{Message: "No images found to process.", IsComplete: true, OverallProgress: 1.0})
		return nil
	}

	b.emit(models.Snapshot{Message: fmt.Sprintf("Found %d images in %d folders.", b.total, len(groups))})
	if err := pause(ctx, b.proc.pacing.StartPause); err != nil {
		return err
	}

	for _, group := range groups {
		if err := b.runFolder(ctx, group); err != nil {
			return err
		}
	}

	if b.opts.DeleteSourceFile {
		b.emit(models.Snapshot{Message: "Cleaning up empty source directories...", OverallProgress: b.overall()})
		for _, err := range RemoveEmptyDirs(b.proc.fs, b.inputRoot, b.opts.ProcessSubfolders) {
			log.Printf("⚠️  %v", err)
		}
	}

	final := "Process completed!"
	if b.skipped > 0 {
		final = fmt.Sprintf("Process completed. Skipped %d files because they were corrupt or empty.", b.skipped)
	}
	b.emit(models.Snapshot{Message: final, IsComplete: true, OverallProgress: 1.0})
	return nil
}

func (b *batch) runFolder(ctx context.Context, group FolderGroup) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.emit(models.Snapshot{
		Message:              "Processing folder...",
		CurrentFolderName:    filepath.Base(group.Path),
		FilesInCurrentFolder: len(group.Files),
		OverallProgress:      b.overall(),
	})
	if err := pause(ctx, b.proc.pacing.FolderPause); err != nil {
		return err
	}

	doneInFolder := 0
	for _, file := range group.Files {
		if err := ctx.Err(); err != nil {
			return err
		}

		if file.Size == 0 {
			b.skipped++
			log.Printf("⚠️  Skipping empty or corrupt file: %s", file.Path)
			b.emit(models.Snapshot{Message: fmt.Sprintf("Skipping corrupt file: %s", file.Name), OverallProgress: b.overall()})
			continue
		}

		b.processed++
		doneInFolder++
		b.emit(b.fileSnapshot(fmt.Sprintf("Processing file %d of %d...", b.processed, b.total), group, file, doneInFolder))

		out, err := b.proc.converter.Convert(ctx, file, b.opts, b.inputRoot, b.outputRoot)
		if err != nil {
			return fmt.Errorf("%s: %w", file.Name, err)
		}

		processedName := ""
		if out.FinalPath != "" {
			processedName = filepath.Base(out.FinalPath)
		}
		b.entries = append(b.entries, models.LogEntry{
			Date:              time.Now(),
			InputFile:         file.Path,
			OutputFile:        out.FinalPath,
			InputFolder:       group.Path,
			OutputFolder:      out.OutputFolder,
			OriginalFileName:  file.Name,
			ProcessedFileName: processedName,
			OriginalSize:      file.Size,
			ProcessedSize:     out.FinalSize,
		})
		b.stats.Add(group.Path, file.Path, file.Size, out.FinalSize)

		b.emit(b.fileSnapshot(fmt.Sprintf("File %d of %d processed.", b.processed, b.total), group, file, doneInFolder))
	}
	return nil
}

func (b *batch) fileSnapshot(msg string, group FolderGroup, file SourceFile, doneInFolder int) models.Snapshot {
	folder := b.stats.Folder(group.Path)
	total := b.stats.Total()
	return models.Snapshot{
		Message:              msg,
		CurrentFile:          file.Name,
		CurrentFilePath:      file.Path,
		OverallProgress:      b.overall(),
		FolderProgress:       float64(doneInFolder) / float64(len(group.Files)),
		CurrentFolderName:    filepath.Base(group.Path),
		FilesInCurrentFolder: len(group.Files),
		FolderOriginalSize:   folder.OriginalSize,
		FolderConvertedSize:  folder.ConvertedSize,
		FolderSpaceSaving:    folder.Saving(),
		TotalOriginalSize:    total.OriginalSize,
		TotalConvertedSize:   total.ConvertedSize,
		TotalSpaceSaving:     total.Saving(),
	}
}

func (b *batch) overall() float64 {
	if b.total == 0 {
		return 0
	}
	return float64(b.processed) / float64(b.total)
}

// pause waits for d unless ctx ends first
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
