// Package workspace owns the per-run working directory handed to the CLI
// under test. It is created empty at the start of a run and removed at
// the end, so key material from one run can never leak into the next.
package workspace

import (
	"fmt"
	"path/filepath"

	"github.com/castorix/go-workflow-harness/internal/logger"
	"github.com/castorix/go-workflow-harness/internal/utils/errors"
	"github.com/castorix/go-workflow-harness/internal/utils/fsutil"
)

// Workspace is a per-run directory tree with a credentials subdirectory
type Workspace struct {
	root        string
	credentials string
	keep        bool
}

// Create builds an empty workspace at root with a credentials
// subdirectory inside it. An existing directory at root is emptied, a
// regular file at root is refused.
func Create(root, credentialsDir string) (*Workspace, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty workspace root", errors.ErrInvalidArgument)
	}

	if fsutil.FileExists(root) {
		return nil, fmt.Errorf("%w: %s", errors.ErrWorkspaceExists, root)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrWorkspace, err.Error())
	}

	if err := fsutil.EnsureEmptyDir(abs); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrWorkspace, err.Error())
	}

	credentials := filepath.Join(abs, credentialsDir)
	if credentialsDir != "" {
		if err := fsutil.CreateDirIfNotExists(credentials); err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrWorkspace, err.Error())
		}
	}

	logger.LogDebug("workspace created", map[string]interface{}{
		"root": abs,
	})

	return &Workspace{root: abs, credentials: credentials}, nil
}

// Root returns the absolute workspace root
func (w *Workspace) Root() string {
	return w.root
}

// CredentialsDir returns the absolute credentials subdirectory
func (w *Workspace) CredentialsDir() string {
	return w.credentials
}

// SetKeep marks the tree to survive Clean, for post-mortem inspection
func (w *Workspace) SetKeep(keep bool) {
	w.keep = keep
}

// Clean removes the whole workspace tree. It is idempotent: cleaning a
// workspace that is already gone (or was never fully built) succeeds.
func (w *Workspace) Clean() error {
	if w.keep {
		logger.LogInfo("workspace kept for inspection", map[string]interface{}{
			"root": w.root,
		})
		return nil
	}

	if err := fsutil.DeleteDirRecursive(w.root); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrWorkspace, err.Error())
	}

	return nil
}
