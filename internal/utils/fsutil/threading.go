package fsutil

import (
	"path/filepath"
	"sync"
)

// Mutexes per cleaned path. Embedders can run several workflows from one
// process; report writes against a shared directory must not interleave.
var pathMutexes sync.Map

// GetPathMutex returns the mutex guarding a path. Paths are cleaned first
// so spelling variants of the same location share a mutex.
func GetPathMutex(path string) *sync.Mutex {
	normalized := filepath.Clean(path)

	actual, _ := pathMutexes.LoadOrStore(normalized, &sync.Mutex{})
	return actual.(*sync.Mutex)
}
