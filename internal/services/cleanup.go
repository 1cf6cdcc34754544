package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// RemoveEmptyDirs deletes empty directories under root, deepest first, and finally root
// itself when it ends up empty. Without recursive only root is considered. Individual
// failures are collected and returned; they never stop the sweep.
func RemoveEmptyDirs(fs afero.Fs, root string, recursive bool) []error {
	var errs []error

	if recursive {
		var dirs []string
		walkErr := afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			if fi.IsDir() && path != root {
				dirs = append(dirs, path)
			}
			return nil
		})
		if walkErr != nil {
			errs = append(errs, walkErr)
		}

		// A child path is always longer than its parent
		sort.SliceStable(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
		for _, dir := range dirs {
			if err := removeIfEmpty(fs, dir); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if err := removeIfEmpty(fs, root); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func removeIfEmpty(fs afero.Fs, dir string) error {
	empty, err := afero.IsEmpty(fs, dir)
	if err != nil {
		return fmt.Errorf("could not inspect directory %s: %w", filepath.Clean(dir), err)
	}
	if !empty {
		return nil
	}
	if err := fs.Remove(dir); err != nil {
		return fmt.Errorf("could not delete directory %s: %w", filepath.Clean(dir), err)
	}
	return nil
}
