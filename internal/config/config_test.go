package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TOOLS_DIR", "/opt/tools")
	t.Setenv("MODELS_DIR", "")
	t.Setenv("UPSCALE_ARGS", "")

	cfg := Load()
	if cfg.ToolsDir != "/opt/tools" {
		t.Errorf("ToolsDir = %q", cfg.ToolsDir)
	}
	if want := filepath.Join("/opt/tools", "models"); cfg.ModelsDir != want {
		t.Errorf("ModelsDir = %q, want %q", cfg.ModelsDir, want)
	}
	if cfg.UpscaleArgs != DefaultUpscaleArgs {
		t.Errorf("UpscaleArgs = %q", cfg.UpscaleArgs)
	}
	if cfg.MaxConcurrentJobs < 1 {
		t.Errorf("MaxConcurrentJobs = %d, want >= 1", cfg.MaxConcurrentJobs)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FOLDER_PAUSE", "0s")
	t.Setenv("MAX_CONCURRENT_JOBS", "3")
	t.Setenv("ENABLE_CORS", "false")
	t.Setenv("DATA_DIR", "/var/lib/imagebatch")

	cfg := Load()
	if cfg.FolderPause != 0 {
		t.Errorf("FolderPause = %v, want 0", cfg.FolderPause)
	}
	if cfg.MaxConcurrentJobs != 3 {
		t.Errorf("MaxConcurrentJobs = %d, want 3", cfg.MaxConcurrentJobs)
	}
	if cfg.EnableCORS {
		t.Error("EnableCORS should be false")
	}
	if want := filepath.Join("/var/lib/imagebatch", "processing_log.txt"); cfg.LogFilePath() != want {
		t.Errorf("LogFilePath = %q, want %q", cfg.LogFilePath(), want)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("START_PAUSE", "soon")
	t.Setenv("REDIS_DB", "x")
	t.Setenv("DEBUG", "maybe")

	cfg := Load()
	if cfg.StartPause != time.Second {
		t.Errorf("StartPause = %v, want 1s", cfg.StartPause)
	}
	if cfg.RedisDB != 0 {
		t.Errorf("RedisDB = %d, want 0", cfg.RedisDB)
	}
	if cfg.Debug {
		t.Error("Debug should fall back to false")
	}
}
