// Package osutil describes the machine a run executes on. Reports carry
// the snapshot so a failure seen in CI can be tied to the host shape:
// anvil under WSL and inside containers behaves differently enough that
// the answer matters when triaging.
package osutil

import (
	"os"
	"runtime"
	"strings"
)

// Snapshot is the host description embedded in run reports
type Snapshot struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	CPUs          int    `json:"cpus"`
	Containerized bool   `json:"containerized,omitempty"`
	WSL           string `json:"wsl,omitempty"`
}

// Describe captures the current host
func Describe() Snapshot {
	return Snapshot{
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		CPUs:          runtime.NumCPU(),
		Containerized: IsContainerized(),
		WSL:           WSLVersion(),
	}
}

// IsContainerized attempts to detect if running in a container environment
func IsContainerized() bool {
	// Check for Docker
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	// Check for Kubernetes
	if _, err := os.Stat("/var/run/secrets/kubernetes.io"); err == nil {
		return true
	}

	return false
}

// IsWSL checks if the current environment is Windows Subsystem for Linux
func IsWSL() bool {
	if runtime.GOOS != "linux" {
		return false
	}

	if os.Getenv("WSL_DISTRO_NAME") != "" {
		return true
	}

	if _, err := os.Stat("/proc/sys/fs/binfmt_misc/WSLInterop"); err == nil {
		return true
	}

	// WSL 1 and WSL 2 identify themselves differently; the kernel release
	// string covers both
	releaseContent, err := os.ReadFile("/proc/sys/kernel/osrelease")
	if err == nil {
		if strings.Contains(strings.ToLower(string(releaseContent)), "microsoft") {
			return true
		}
	}

	osReleaseContent, err := os.ReadFile("/etc/os-release")
	if err == nil {
		releaseString := strings.ToLower(string(osReleaseContent))
		return strings.Contains(releaseString, "microsoft") ||
			strings.Contains(releaseString, "wsl")
	}

	return false
}

// WSLVersion names the WSL generation, or returns "" outside WSL
func WSLVersion() string {
	if !IsWSL() {
		return ""
	}

	if _, err := os.Stat("/sys/fs/cgroup/memory/memory.limit_in_bytes"); err == nil {
		return "WSL2"
	}

	return "WSL1"
}
