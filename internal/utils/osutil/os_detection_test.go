package osutil

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribeMatchesRuntime(t *testing.T) {
	snap := Describe()

	assert.Equal(t, runtime.GOOS, snap.OS)
	assert.Equal(t, runtime.GOARCH, snap.Arch)
	assert.Equal(t, runtime.NumCPU(), snap.CPUs)
}

func TestWSLVersionEmptyOutsideWSL(t *testing.T) {
	if IsWSL() {
		t.Skip("running under WSL")
	}
	assert.Empty(t, WSLVersion())
}
