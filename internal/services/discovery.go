package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"imagebatch/internal/models"
)

// baseExtensions are always picked up (lowercase, with leading dot)
var baseExtensions = []string{".jpg", ".jpeg", ".png"}

// ExtensionSet is a case-insensitive allow-list of file extensions
type ExtensionSet map[string]bool

// ExtensionsFor builds the allow-list implied by the options
func ExtensionsFor(opts models.ProcessingOptions) ExtensionSet {
	set := make(ExtensionSet, len(baseExtensions)+2)
	for _, ext := range baseExtensions {
		set[ext] = true
	}
	if opts.IncludeWebPFiles {
		set[".webp"] = true
	}
	if opts.IncludeAvifFiles {
		set[".avif"] = true
	}
	return set
}

// Match reports whether path has an allowed extension
func (s ExtensionSet) Match(path string) bool {
	return s[strings.ToLower(filepath.Ext(path))]
}

// SourceFile is one discovered input image
type SourceFile struct {
	Path string
	Name string
	Size int64
}

// FolderGroup is a directory and the discovered files it directly contains
type FolderGroup struct {
	Path  string
	Files []SourceFile
}

// Discover lists regular files under root whose extension is in exts. Folders come in
// order of first appearance in a lexical walk and files inside a folder are sorted by
// name, so the order is stable for a given tree. Empty files are returned, not filtered.
func Discover(fs afero.Fs, root string, recursive bool, exts ExtensionSet) ([]FolderGroup, error) {
	info, err := fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("input folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input folder %s is not a directory", root)
	}

	var order []string
	byDir := make(map[string][]SourceFile)

	add := func(path string, fi os.FileInfo) {
		if !fi.Mode().IsRegular() || !exts.Match(path) {
			return
		}
		dir := filepath.Dir(path)
		if _, seen := byDir[dir]; !seen {
			order = append(order, dir)
		}
		byDir[dir] = append(byDir[dir], SourceFile{Path: path, Name: fi.Name(), Size: fi.Size()})
	}

	if recursive {
		err = afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			add(path, fi)
			return nil
		})
	} else {
		var entries []os.FileInfo
		entries, err = afero.ReadDir(fs, root)
		for _, fi := range entries {
			add(filepath.Join(root, fi.Name()), fi)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	groups := make([]FolderGroup, 0, len(order))
	for _, dir := range order {
		files := byDir[dir]
		sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
		groups = append(groups, FolderGroup{Path: dir, Files: files})
	}
	return groups, nil
}

// CountFiles returns the number of files across all groups
func CountFiles(groups []FolderGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Files)
	}
	return n
}
