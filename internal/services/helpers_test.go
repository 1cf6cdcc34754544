package services

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/afero"

	"imagebatch/internal/pool"
)

// Fake tools. Each one appends its name to $IMAGEBATCH_CALLS when set.

const fakeUpscaler = `#!/bin/sh
[ -n "$IMAGEBATCH_CALLS" ] && echo upscaler >> "$IMAGEBATCH_CALLS"
while [ $# -gt 0 ]; do
  case "$1" in
    -i) in="$2"; shift ;;
    -o) out="$2"; shift ;;
  esac
  shift
done
cat "$in" "$in" > "$out"
`

// cwebp: -q 80 <in> -o <out>, keeps the first 3 bytes
const fakeWebP = `#!/bin/sh
[ -n "$IMAGEBATCH_CALLS" ] && echo webp >> "$IMAGEBATCH_CALLS"
head -c 3 "$3" > "$5"
`

// ffmpeg: -y -i <in> ... <out>, keeps the first 2 bytes
const fakeAvif = `#!/bin/sh
[ -n "$IMAGEBATCH_CALLS" ] && echo avif >> "$IMAGEBATCH_CALLS"
for a; do out="$a"; done
while [ $# -gt 0 ]; do
  case "$1" in
    -i) in="$2"; shift ;;
  esac
  shift
done
head -c 2 "$in" > "$out"
`

const failingTool = `#!/bin/sh
echo "encoder exploded" >&2
exit 3
`

const sleepingTool = `#!/bin/sh
exec sleep 30
`

var testTemplates = Templates{
	Upscale:   "-i {inputFile} -o {outputFile} -n {modelName} -f png -m {modelsPath}",
	WebP:      "-q 80 {inputFile} -o {outputFile}",
	Avif:      "-y -i {inputFile} -c:v {codec} -still-picture 1 -crf 35 -b:v 0 -cpu-used 4 -threads 8 {outputFile}",
	AvifCodec: "libaom-av1",
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are shell scripts")
	}
}

// installTools writes a full fake toolchain into a temp dir; overrides replace single tools.
func installTools(t *testing.T, overrides map[Tool]string) *Toolchain {
	t.Helper()
	skipOnWindows(t)

	dir := t.TempDir()
	tc, err := ResolveToolchain(dir, "", runtime.GOOS)
	if err != nil {
		t.Fatalf("ResolveToolchain: %v", err)
	}

	scripts := map[Tool]string{
		ToolUpscaler: fakeUpscaler,
		ToolWebP:     fakeWebP,
		ToolAvif:     fakeAvif,
	}
	for tool, script := range overrides {
		scripts[tool] = script
	}
	for tool, script := range scripts {
		writeScript(t, tc.Path(tool), script)
	}
	return tc
}

func writeScript(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
}

func newTestRunner() *ToolRunner {
	return NewToolRunner(pool.NewBufferPool(2, 4096), false)
}

// writeFile creates path with size bytes of content, creating parents.
func writeFile(t *testing.T, fs afero.Fs, path string, size int) {
	t.Helper()
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return info.Size()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
