// fsutil/permissions.go
package fsutil

import (
	"os"
	"path/filepath"
	"strconv"
)

// IsWritable checks whether a path can be written to
func IsWritable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	// For directories, check if we can create a temporary file
	if info.IsDir() {
		testFile := filepath.Join(path, ".permission_test_"+strconv.FormatInt(int64(os.Getpid()), 10))
		file, err := os.OpenFile(testFile, os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			return false
		}
		file.Close()
		os.Remove(testFile)
		return true
	}

	// For files, check if we can open for writing
	file, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	file.Close()
	return true
}
