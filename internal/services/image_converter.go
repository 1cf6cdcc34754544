package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"imagebatch/internal/models"
)

// Output naming for each stage
const (
	improvedSuffix = "_improved.png"
	webpSuffix     = "_final.webp"
	avifSuffix     = "_final.avif"
)

// ImageConverter runs the tool stages for a single image
type ImageConverter struct {
	fs        afero.Fs
	runner    *ToolRunner
	tools     *Toolchain
	templates Templates
	mu        sync.RWMutex
	stats     ImageStats
}

// ImageStats tracks conversion metrics
type ImageStats struct {
	TotalConversions  int64
	FailedConversions int64
	Upscaled          int64
	Encoded           int64
	AvgConversionTime time.Duration
}

// ConvertOutcome describes what one file produced
type ConvertOutcome struct {
	OutputFolder string
	FinalPath    string // empty when no stage produced a file
	FinalSize    int64
}

// NewImageConverter creates a new image converter
func NewImageConverter(fs afero.Fs, runner *ToolRunner, tools *Toolchain, templates Templates) *ImageConverter {
	return &ImageConverter{
		fs:        fs,
		runner:    runner,
		tools:     tools,
		templates: templates,
	}
}

// Convert upscales and/or re-encodes one file into the mirrored output folder, then removes
// the intermediate and, when requested, the source. inputRoot and outputRoot must be absolute.
func (ic *ImageConverter) Convert(ctx context.Context, file SourceFile, opts models.ProcessingOptions, inputRoot, outputRoot string) (ConvertOutcome, error) {
	start := time.Now()

	rel, err := filepath.Rel(inputRoot, filepath.Dir(file.Path))
	if err != nil {
		ic.recordFailure()
		return ConvertOutcome{}, fmt.Errorf("could not determine the directory of the file %s: %w", file.Path, err)
	}
	out := ConvertOutcome{OutputFolder: filepath.Join(outputRoot, rel)}
	if err := ic.fs.MkdirAll(out.OutputFolder, 0755); err != nil {
		ic.recordFailure()
		return out, fmt.Errorf("failed to create output folder: %w", err)
	}

	base := strings.TrimSuffix(file.Name, filepath.Ext(file.Name))
	improvedPath := filepath.Join(out.OutputFolder, base+improvedSuffix)

	if opts.ApplyUpscale {
		args := ExpandArgs(ic.templates.Upscale, map[string]string{
			"inputFile":  file.Path,
			"outputFile": improvedPath,
			"modelName":  opts.Model,
			"modelsPath": ic.tools.ModelsDir,
		})
		if err := ic.runner.Run(ctx, ic.tools.Path(ToolUpscaler), args); err != nil {
			ic.recordFailure()
			return out, err
		}
		ic.bump(&ic.stats.Upscaled)
	}

	source := file.Path
	if opts.ApplyUpscale && ic.exists(improvedPath) {
		source = improvedPath
	}

	encoded := false
	switch {
	case opts.ConvertToWebP:
		target := filepath.Join(out.OutputFolder, base+webpSuffix)
		args := ExpandArgs(ic.templates.WebP, map[string]string{
			"inputFile":  source,
			"outputFile": target,
		})
		if err := ic.runner.Run(ctx, ic.tools.Path(ToolWebP), args); err != nil {
			ic.recordFailure()
			return out, err
		}
		encoded = ic.adopt(&out, target)
	case opts.ConvertToAvif:
		target := filepath.Join(out.OutputFolder, base+avifSuffix)
		args := ExpandArgs(ic.templates.Avif, map[string]string{
			"inputFile":  source,
			"outputFile": target,
			"codec":      ic.templates.AvifCodec,
		})
		if err := ic.runner.Run(ctx, ic.tools.Path(ToolAvif), args); err != nil {
			ic.recordFailure()
			return out, err
		}
		encoded = ic.adopt(&out, target)
	case opts.ApplyUpscale:
		ic.adopt(&out, improvedPath)
	}
	if encoded {
		ic.bump(&ic.stats.Encoded)
	}

	// The upscaled PNG is only an intermediate once an encoder has produced the final file
	if opts.ApplyUpscale && encoded && ic.exists(improvedPath) {
		if err := ic.fs.Remove(improvedPath); err != nil {
			ic.recordFailure()
			return out, fmt.Errorf("failed to delete intermediate %s: %w", improvedPath, err)
		}
	}

	if opts.DeleteSourceFile {
		if err := ic.fs.Remove(file.Path); err != nil {
			ic.recordFailure()
			return out, fmt.Errorf("failed to delete source %s: %w", file.Path, err)
		}
	}

	ic.recordSuccess(time.Since(start))
	return out, nil
}

// adopt makes path the final artifact when it exists
func (ic *ImageConverter) adopt(out *ConvertOutcome, path string) bool {
	info, err := ic.fs.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	out.FinalPath = path
	out.FinalSize = info.Size()
	return true
}

func (ic *ImageConverter) exists(path string) bool {
	ok, err := afero.Exists(ic.fs, path)
	return err == nil && ok
}

func (ic *ImageConverter) bump(counter *int64) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	*counter++
}

func (ic *ImageConverter) recordSuccess(duration time.Duration) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.stats.TotalConversions++
	ic.stats.AvgConversionTime = (ic.stats.AvgConversionTime*time.Duration(ic.stats.TotalConversions-1) + duration) / time.Duration(ic.stats.TotalConversions)
}

func (ic *ImageConverter) recordFailure() {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.stats.FailedConversions++
}

// GetStats returns current statistics
func (ic *ImageConverter) GetStats() ImageStats {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	return ic.stats
}
