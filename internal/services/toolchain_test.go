package services

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func TestResolveToolchain_PlatformNames(t *testing.T) {
	tests := []struct {
		goos     string
		upscaler string
		webp     string
		avif     string
	}{
		{"windows", "realesrgan-ncnn-vulkan.exe", "cwebp.exe", "ffmpeg.exe"},
		{"linux", "realesrgan-ncnn-vulkan", "cwebp", "ffmpeg"},
		{"darwin", "realesrgan-ncnn-vulkan-mac", "cwebp-mac", "ffmpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			tc, err := ResolveToolchain("/opt/tools", "", tt.goos)
			if err != nil {
				t.Fatalf("ResolveToolchain: %v", err)
			}
			if got := tc.Name(ToolUpscaler); got != tt.upscaler {
				t.Errorf("upscaler = %q, want %q", got, tt.upscaler)
			}
			if got := tc.Name(ToolWebP); got != tt.webp {
				t.Errorf("webp = %q, want %q", got, tt.webp)
			}
			if got := tc.Name(ToolAvif); got != tt.avif {
				t.Errorf("avif = %q, want %q", got, tt.avif)
			}
			if got, want := tc.Path(ToolWebP), filepath.Join("/opt/tools", tt.webp); got != want {
				t.Errorf("path = %q, want %q", got, want)
			}
			if got, want := tc.ModelsDir, filepath.Join("/opt/tools", "models"); got != want {
				t.Errorf("models dir = %q, want %q", got, want)
			}
		})
	}
}

func TestResolveToolchain_Unsupported(t *testing.T) {
	_, err := ResolveToolchain("/opt/tools", "", "plan9")
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("err = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestToolchain_MissingInStableOrder(t *testing.T) {
	tc, err := ResolveToolchain(t.TempDir(), "/models", "linux")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"realesrgan-ncnn-vulkan", "cwebp", "ffmpeg"}
	if got := tc.Missing(); !reflect.DeepEqual(got, want) {
		t.Errorf("Missing() = %v, want %v", got, want)
	}

	writeScript(t, tc.Path(ToolWebP), "#!/bin/sh\n")
	want = []string{"realesrgan-ncnn-vulkan", "ffmpeg"}
	if got := tc.Missing(); !reflect.DeepEqual(got, want) {
		t.Errorf("Missing() = %v, want %v", got, want)
	}
	if tc.ModelsDir != "/models" {
		t.Errorf("models dir override ignored: %q", tc.ModelsDir)
	}
}

func TestExpandArgs_DefaultTemplates(t *testing.T) {
	got := ExpandArgs(testTemplates.Upscale, map[string]string{
		"inputFile":  "/in/My Photos/a.jpg",
		"outputFile": "/out/My Photos/a_improved.png",
		"modelName":  "realesrgan-x4plus",
		"modelsPath": "/tools/models",
	})
	want := []string{
		"-i", "/in/My Photos/a.jpg",
		"-o", "/out/My Photos/a_improved.png",
		"-n", "realesrgan-x4plus",
		"-f", "png",
		"-m", "/tools/models",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("upscale args:\n got %q\nwant %q", got, want)
	}

	got = ExpandArgs(testTemplates.Avif, map[string]string{
		"inputFile":  "a.png",
		"outputFile": "a_final.avif",
		"codec":      "libaom-av1",
	})
	want = []string{"-y", "-i", "a.png", "-c:v", "libaom-av1", "-still-picture", "1",
		"-crf", "35", "-b:v", "0", "-cpu-used", "4", "-threads", "8", "a_final.avif"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("avif args:\n got %q\nwant %q", got, want)
	}
}

func TestExpandArgs_UnknownPlaceholderKept(t *testing.T) {
	got := ExpandArgs("-q 80 {inputFile} {other}", map[string]string{"inputFile": "x.png"})
	want := []string{"-q", "80", "x.png", "{other}"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}
