package services

import (
	"testing"

	"github.com/spf13/afero"
)

func dirExists(t *testing.T, fs afero.Fs, path string) bool {
	t.Helper()
	ok, err := afero.DirExists(fs, path)
	if err != nil {
		t.Fatal(err)
	}
	return ok
}

func TestRemoveEmptyDirs_DeepestFirst(t *testing.T) {
	fs := afero.NewMemMapFs()
	fs.MkdirAll("/in/a/b/c", 0o755)
	fs.MkdirAll("/in/d", 0o755)
	writeFile(t, fs, "/in/keep/photo.png", 1)

	if errs := RemoveEmptyDirs(fs, "/in", true); len(errs) != 0 {
		t.Fatalf("errors: %v", errs)
	}

	for _, gone := range []string{"/in/a/b/c", "/in/a/b", "/in/a", "/in/d"} {
		if dirExists(t, fs, gone) {
			t.Errorf("%s should have been removed", gone)
		}
	}
	if !dirExists(t, fs, "/in/keep") || !dirExists(t, fs, "/in") {
		t.Error("non-empty directories were removed")
	}
}

func TestRemoveEmptyDirs_RemovesEmptyRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	fs.MkdirAll("/in/a/b", 0o755)

	if errs := RemoveEmptyDirs(fs, "/in", true); len(errs) != 0 {
		t.Fatalf("errors: %v", errs)
	}
	if dirExists(t, fs, "/in") {
		t.Error("empty root should have been removed")
	}
}

func TestRemoveEmptyDirs_NonRecursiveOnlyRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	fs.MkdirAll("/in/a", 0o755)

	RemoveEmptyDirs(fs, "/in", false)
	if !dirExists(t, fs, "/in/a") {
		t.Error("subfolder removed without recursion")
	}
	if !dirExists(t, fs, "/in") {
		t.Error("root is not empty and must stay")
	}
}

func TestRemoveEmptyDirs_CollectsErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	errs := RemoveEmptyDirs(fs, "/missing", true)
	if len(errs) == 0 {
		t.Fatal("expected errors for a missing root")
	}
}
