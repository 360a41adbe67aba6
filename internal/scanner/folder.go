package scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtensions is the allow-list of image file extensions.
var DefaultExtensions = []string{".jpg", ".jpeg", ".gif", ".tif", ".tiff", ".bmp", ".png", ".pcx"}

var (
	// ErrFolderNotFound is returned when the folder does not exist.
	ErrFolderNotFound = errors.New("folder not found")
	// ErrNotAFolder is returned when the path exists but is not a directory.
	ErrNotAFolder = errors.New("not a folder")
)

// ListFolder returns the files directly inside dir whose extension is in
// extensions, compared case-insensitively, sorted by name. Sub-directories
// are not descended into.
func ListFolder(dir string, extensions []string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, dir)
		}
		return nil, fmt.Errorf("stat folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotAFolder, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading folder: %w", err)
	}

	allowed := NormalizeExtensions(extensions)
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := allowed[strings.ToLower(filepath.Ext(e.Name()))]; !ok {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if e.Type()&os.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil || !target.Mode().IsRegular() {
				continue
			}
		} else if !e.Type().IsRegular() {
			continue
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// NormalizeExtensions lower-cases the list and ensures a leading dot.
func NormalizeExtensions(extensions []string) map[string]struct{} {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

// Allowed reports whether name has an extension in the allow-list.
func Allowed(name string, extensions []string) bool {
	_, ok := NormalizeExtensions(extensions)[strings.ToLower(filepath.Ext(name))]
	return ok
}
