// Package report persists workflow run reports. A report directory holds
// report.json, the node log and one transcript file per stage; bundles
// are compressed snapshots of that directory.
package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/castorix/go-workflow-harness/internal/logger"
	"github.com/castorix/go-workflow-harness/internal/utils/errors"
	"github.com/castorix/go-workflow-harness/internal/utils/fsutil"
	"github.com/castorix/go-workflow-harness/internal/utils/jsonutil"
	"github.com/castorix/go-workflow-harness/internal/workflow"
)

// FileName is the JSON report's file name inside the report directory
const FileName = "report.json"

// NodeLogName is the node log's file name inside the report directory
const NodeLogName = "node.log"

// PrepareDir readies the report directory for a fresh run: it is created
// if missing and any files a previous run left behind are removed. Only
// harness-owned names are touched; other files in the directory survive.
func PrepareDir(dir string) error {
	mu := fsutil.GetPathMutex(dir)
	mu.Lock()
	defer mu.Unlock()

	if err := fsutil.CreateDirIfNotExists(dir); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrReportFailed, err.Error())
	}
	if !fsutil.IsWritable(dir) {
		return fmt.Errorf("%w: directory not writable: %s", errors.ErrReportFailed, dir)
	}

	files, err := fsutil.ListFiles(dir)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrReportFailed, err.Error())
	}

	for _, f := range files {
		if f.Name != FileName && f.Name != NodeLogName && !isTranscriptName(f.Name) {
			continue
		}
		if err := fsutil.DeleteFile(f.FullPath); err != nil {
			return fmt.Errorf("%w: %s", errors.ErrReportFailed, err.Error())
		}
	}

	return nil
}

// Write persists the report into dir: report.json plus one transcript
// file per stage that captured output. Returns the report.json path.
func Write(rep *workflow.Report, dir string) (string, error) {
	if rep == nil {
		return "", fmt.Errorf("%w: nil report", errors.ErrInvalidArgument)
	}

	mu := fsutil.GetPathMutex(dir)
	mu.Lock()
	defer mu.Unlock()

	if err := fsutil.CreateDirIfNotExists(dir); err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrReportFailed, err.Error())
	}

	path := filepath.Join(dir, FileName)
	if err := jsonutil.WriteJSON(path, rep); err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrReportFailed, err.Error())
	}

	transcripts := 0
	for i, stage := range rep.Stages {
		if stage.Captured == "" {
			continue
		}
		name := transcriptName(i+1, stage.Name)
		if err := fsutil.WriteFileString(filepath.Join(dir, name), stage.Captured, 0644); err != nil {
			return "", fmt.Errorf("%w: transcript %s: %s", errors.ErrReportFailed, name, err.Error())
		}
		transcripts++
	}

	logger.LogInfo("Run report written", map[string]interface{}{
		"path":        path,
		"stages":      len(rep.Stages),
		"transcripts": transcripts,
	})

	return path, nil
}

// transcriptName builds the NN-stage-name.log file name for a stage
func transcriptName(index int, stage string) string {
	return fmt.Sprintf("%02d-%s.log", index, sanitizeName(stage))
}

// isTranscriptName reports whether a file name matches the NN-*.log shape
func isTranscriptName(name string) bool {
	if len(name) < 4 || !strings.HasSuffix(name, ".log") {
		return false
	}
	return name[0] >= '0' && name[0] <= '9' &&
		name[1] >= '0' && name[1] <= '9' &&
		name[2] == '-'
}

// sanitizeName keeps transcript file names portable
func sanitizeName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, name)

	if mapped == "" {
		return "stage"
	}
	return mapped
}
