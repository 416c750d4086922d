// fsutil/directory.go
package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DirEntry represents an entry in a directory (file or subdirectory)
type DirEntry struct {
	Path     string
	Name     string
	IsDir    bool
	Size     int64
	Mode     os.FileMode
	ModTime  time.Time
	FullPath string
}

// DirExists checks if a directory exists
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// CreateDir creates a directory if it doesn't exist
func CreateDir(path string, perm os.FileMode) error {
	if DirExists(path) {
		return nil // Directory already exists
	}
	return os.MkdirAll(path, perm)
}

// CreateDirIfNotExists creates a directory with standard permissions if it doesn't exist
func CreateDirIfNotExists(path string) error {
	return CreateDir(path, 0755)
}

// DeleteDirRecursive removes a directory and all its contents
func DeleteDirRecursive(path string) error {
	if !DirExists(path) {
		return nil // Directory doesn't exist, nothing to do
	}
	return os.RemoveAll(path)
}

// CleanDir removes all contents from a directory without removing the directory itself
func CleanDir(path string) error {
	if !DirExists(path) {
		return fmt.Errorf("directory does not exist: %s", path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		entryPath := filepath.Join(path, entry.Name())
		if entry.IsDir() {
			if err := DeleteDirRecursive(entryPath); err != nil {
				return err
			}
		} else {
			if err := os.Remove(entryPath); err != nil {
				return err
			}
		}
	}

	return nil
}

// EnsureEmptyDir ensures a directory exists and is empty
func EnsureEmptyDir(path string) error {
	// If directory exists, clean it
	if DirExists(path) {
		return CleanDir(path)
	}

	// Create new directory
	return CreateDirIfNotExists(path)
}

// ListFiles returns a list of files in a directory (non-recursive, no directories)
func ListFiles(path string) ([]DirEntry, error) {
	if !DirExists(path) {
		return nil, fmt.Errorf("directory does not exist: %s", path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	files := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, err
		}

		files = append(files, DirEntry{
			Path:     path,
			Name:     entry.Name(),
			IsDir:    false,
			Size:     info.Size(),
			Mode:     info.Mode(),
			ModTime:  info.ModTime(),
			FullPath: filepath.Join(path, entry.Name()),
		})
	}

	// Stable order for callers that print or archive the listing
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, nil
}

// WalkDir walks a directory recursively and calls a function for each entry
func WalkDir(root string, fn func(path string, info fs.FileInfo, err error) error) error {
	return filepath.Walk(root, fn)
}

// GetDirSize calculates the total size of a directory and its contents
func GetDirSize(path string) (int64, error) {
	var size int64
	err := WalkDir(path, func(_ string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// CreateTempDir creates a temporary directory with a prefix
func CreateTempDir(prefix string) (string, error) {
	return os.MkdirTemp("", prefix)
}
