package models

import (
	"errors"
	"strings"
	"time"
)

// ProcessingOptions describes one batch run. It is never mutated after a job is created.
type ProcessingOptions struct {
	InputFolder       string `json:"input_folder"`
	OutputFolder      string `json:"output_folder"`
	Model             string `json:"model"` // Real-ESRGAN model name
	ProcessSubfolders bool   `json:"process_subfolders"`
	ConvertToWebP     bool   `json:"convert_to_webp"`
	ConvertToAvif     bool   `json:"convert_to_avif"` // mutually exclusive with ConvertToWebP
	ApplyUpscale      bool   `json:"apply_upscale"`
	DeleteSourceFile  bool   `json:"delete_source_file"`
	IncludeWebPFiles  bool   `json:"include_webp_files"` // pick up existing .webp inputs
	IncludeAvifFiles  bool   `json:"include_avif_files"` // pick up existing .avif inputs
}

// Validate checks the invariants a batch needs before it can run
func (o ProcessingOptions) Validate() error {
	if strings.TrimSpace(o.InputFolder) == "" {
		return errors.New("input_folder is required")
	}
	if strings.TrimSpace(o.OutputFolder) == "" {
		return errors.New("output_folder is required")
	}
	if o.ConvertToWebP && o.ConvertToAvif {
		return errors.New("convert_to_webp and convert_to_avif are mutually exclusive")
	}
	if o.ApplyUpscale && strings.TrimSpace(o.Model) == "" {
		return errors.New("model is required when apply_upscale is set")
	}
	return nil
}

// Transforms reports whether any tool stage will run for a file
func (o ProcessingOptions) Transforms() bool {
	return o.ApplyUpscale || o.ConvertToWebP || o.ConvertToAvif
}

// Snapshot is one progress report emitted during a run
type Snapshot struct {
	Message              string    `json:"message"`
	CurrentFile          string    `json:"current_file"`
	CurrentFilePath      string    `json:"current_file_path,omitempty"`
	OverallProgress      float64   `json:"overall_progress"` // 0.0 - 1.0
	FolderProgress       float64   `json:"folder_progress"`  // 0.0 - 1.0
	IsComplete           bool      `json:"is_complete"`
	IsError              bool      `json:"is_error"`
	IsCanceled           bool      `json:"is_canceled"`
	ErrorMessage         string    `json:"error_message,omitempty"`
	CurrentFolderName    string    `json:"current_folder_name,omitempty"`
	FilesInCurrentFolder int       `json:"files_in_current_folder,omitempty"`
	FolderOriginalSize   int64     `json:"folder_original_size"`
	FolderConvertedSize  int64     `json:"folder_converted_size"`
	FolderSpaceSaving    *float64  `json:"folder_space_saving"` // nil until the folder has original bytes
	TotalOriginalSize    int64     `json:"total_original_size"`
	TotalConvertedSize   int64     `json:"total_converted_size"`
	TotalSpaceSaving     *float64  `json:"total_space_saving"`
	Timestamp            time.Time `json:"timestamp"`
}

// Terminal reports whether the snapshot ends a run
func (s Snapshot) Terminal() bool {
	return s.IsComplete || s.IsError || s.IsCanceled
}

// LogEntry records one successfully processed file
type LogEntry struct {
	Date              time.Time `json:"date"`
	InputFile         string    `json:"input_file"`
	OutputFile        string    `json:"output_file"`
	InputFolder       string    `json:"input_folder"`
	OutputFolder      string    `json:"output_folder"`
	OriginalFileName  string    `json:"original_file_name"`
	ProcessedFileName string    `json:"processed_file_name"`
	OriginalSize      int64     `json:"original_size"`
	ProcessedSize     int64     `json:"processed_size"`
}

// ReductionPercentage returns the saved fraction of the original size (0 when the original was empty)
func (e LogEntry) ReductionPercentage() float64 {
	if e.OriginalSize <= 0 {
		return 0
	}
	return float64(e.OriginalSize-e.ProcessedSize) / float64(e.OriginalSize)
}
