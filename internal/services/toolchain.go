package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Tool identifies one of the bundled external executables
type Tool string

const (
	ToolUpscaler Tool = "upscaler" // Real-ESRGAN (ncnn/vulkan)
	ToolWebP     Tool = "webp"     // cwebp
	ToolAvif     Tool = "avif"     // ffmpeg with an AV1 still-picture encoder
)

// requiredTools is the order used for reporting missing binaries
var requiredTools = []Tool{ToolUpscaler, ToolWebP, ToolAvif}

// ErrUnsupportedPlatform is returned when no binary naming convention exists for the host
var ErrUnsupportedPlatform = errors.New("this operating system is not supported")

// platformBinaries maps GOOS to the file name of each bundled tool
var platformBinaries = map[string]map[Tool]string{
	"windows": {
		ToolUpscaler: "realesrgan-ncnn-vulkan.exe",
		ToolWebP:     "cwebp.exe",
		ToolAvif:     "ffmpeg.exe",
	},
	"linux": {
		ToolUpscaler: "realesrgan-ncnn-vulkan",
		ToolWebP:     "cwebp",
		ToolAvif:     "ffmpeg",
	},
	"darwin": {
		ToolUpscaler: "realesrgan-ncnn-vulkan-mac",
		ToolWebP:     "cwebp-mac",
		ToolAvif:     "ffmpeg",
	},
}

// Toolchain holds the resolved location of every external tool
type Toolchain struct {
	Dir       string
	ModelsDir string
	Platform  string
	paths     map[Tool]string
}

// ResolveToolchain applies the naming convention for goos to dir. It does not check that
// the binaries exist; see Missing.
func ResolveToolchain(dir, modelsDir, goos string) (*Toolchain, error) {
	names, ok := platformBinaries[goos]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
	if modelsDir == "" {
		modelsDir = filepath.Join(dir, "models")
	}

	paths := make(map[Tool]string, len(names))
	for tool, name := range names {
		paths[tool] = filepath.Join(dir, name)
	}

	return &Toolchain{
		Dir:       dir,
		ModelsDir: modelsDir,
		Platform:  goos,
		paths:     paths,
	}, nil
}

// Path returns the absolute executable path for a tool
func (tc *Toolchain) Path(tool Tool) string {
	return tc.paths[tool]
}

// Name returns the executable file name for a tool
func (tc *Toolchain) Name(tool Tool) string {
	return filepath.Base(tc.paths[tool])
}

// Missing returns the file names of required binaries that are not present, in a stable order
func (tc *Toolchain) Missing() []string {
	var missing []string
	for _, tool := range requiredTools {
		info, err := os.Stat(tc.paths[tool])
		if err != nil || info.IsDir() {
			missing = append(missing, tc.Name(tool))
		}
	}
	return missing
}

// Templates are the argument templates for each tool. Placeholders:
// {inputFile} {outputFile} {modelName} {modelsPath} {codec}.
type Templates struct {
	Upscale   string
	WebP      string
	Avif      string
	AvifCodec string
}

// ExpandArgs splits a template on whitespace and substitutes placeholders inside each
// argument, so a value containing spaces stays a single argument.
func ExpandArgs(template string, vars map[string]string) []string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	replacer := strings.NewReplacer(pairs...)

	fields := strings.Fields(template)
	args := make([]string, len(fields))
	for i, f := range fields {
		args[i] = replacer.Replace(f)
	}
	return args
}
