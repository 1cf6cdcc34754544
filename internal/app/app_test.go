package app

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"

	"imagebatch/internal/config"
	"imagebatch/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		MaxConcurrentJobs: 1,
		ToolsDir:          dir,
		ModelsDir:         dir,
		UpscaleArgs:       config.DefaultUpscaleArgs,
		WebPArgs:          config.DefaultWebPArgs,
		AvifArgs:          config.DefaultAvifArgs,
		AvifCodec:         config.DefaultAvifCodec,
		BufferPoolSize:    2,
		BufferSize:        1024,
		DataDir:           "/data",
		ArchiveTTL:        time.Hour,
	}
}

func TestNewWithFs_MissingToolsFailsJobs(t *testing.T) {
	fs := afero.NewMemMapFs()
	a, err := NewWithFs(testConfig(t), fs, "linux")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close(context.Background())

	if ok, _ := afero.DirExists(fs, "/data"); !ok {
		t.Error("data dir was not created")
	}
	if got := len(a.Tools.Missing()); got != 3 {
		t.Errorf("missing tools = %d, want 3", got)
	}

	job, err := a.Registry.Create(models.ProcessingOptions{InputFolder: "/in", OutputFolder: "/out", ConvertToWebP: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Registry.Start(job.ID); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done, err := a.Registry.Wait(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != models.JobStatusFailed {
		t.Errorf("status = %s, want failed", done.Status)
	}
}

func TestNewWithFs_UnsupportedPlatform(t *testing.T) {
	if _, err := NewWithFs(testConfig(t), afero.NewMemMapFs(), "plan9"); err == nil {
		t.Fatal("expected an error for an unsupported platform")
	}
}

func TestNew_FallsBackToMemoryArchive(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisAddr = "127.0.0.1:1"

	a, err := NewWithFs(cfg, afero.NewMemMapFs(), "linux")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close(context.Background())

	if got := a.Archive.Stats()["backend"]; got != "memory" {
		t.Errorf("backend = %v, want memory", got)
	}
}
