package report

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/castorix/go-workflow-harness/internal/logger"
	compression "github.com/castorix/go-workflow-harness/internal/utils/compressionutil"
	"github.com/castorix/go-workflow-harness/internal/utils/cryptoutil"
	"github.com/castorix/go-workflow-harness/internal/utils/errors"
	"github.com/castorix/go-workflow-harness/internal/utils/fsutil"
	"github.com/castorix/go-workflow-harness/internal/utils/jsonutil"
	"github.com/castorix/go-workflow-harness/internal/workflow"
)

// BundleInfo describes a written bundle
type BundleInfo struct {
	Path   string
	Format string
	SHA256 string
}

// bundleExtensions maps a bundle format onto its file extension
var bundleExtensions = map[string]string{
	"xz":    ".tar.xz",
	"bzip2": ".tar.bz2",
	"gzip":  ".tar.gz",
	"zip":   ".zip",
}

// Bundle archives the report directory as a sibling file named
// <dir>-<timestamp>.<ext> and records its sha256 in a file next to it.
// The directory itself is left untouched.
func Bundle(dir, format string) (*BundleInfo, error) {
	ext, ok := bundleExtensions[format]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", errors.ErrUnsupportedFormat, format)
	}
	if !fsutil.DirExists(dir) {
		return nil, fmt.Errorf("%w: %s", errors.ErrDirNotFound, dir)
	}

	mu := fsutil.GetPathMutex(dir)
	mu.Lock()
	defer mu.Unlock()

	estimate, err := compression.EstimateCompressionSize(dir, format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrBundleFailed, err.Error())
	}
	enough, err := fsutil.HasEnoughDiskSpace(filepath.Dir(dir), estimate)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrBundleFailed, err.Error())
	}
	if !enough {
		return nil, fmt.Errorf("%w: need roughly %d bytes", errors.ErrInsufficientDiskSpace, estimate)
	}

	stamp := time.Now().Format("20060102-150405")
	bundlePath := filepath.Join(filepath.Dir(dir), fmt.Sprintf("%s-%s%s", filepath.Base(dir), stamp, ext))

	if err := writeArchive(dir, bundlePath, format); err != nil {
		return nil, err
	}

	sum, err := cryptoutil.CalculateFileChecksum(bundlePath, cryptoutil.SHA256)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrBundleFailed, err.Error())
	}
	sumLine := fmt.Sprintf("%s  %s\n", sum, filepath.Base(bundlePath))
	if err := fsutil.WriteFileString(bundlePath+".sha256", sumLine, 0644); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrBundleFailed, err.Error())
	}

	dirBytes, _ := fsutil.GetDirSize(dir)
	bundleBytes, _ := fsutil.GetFileSize(bundlePath)
	logger.LogInfo("Report bundle written", map[string]interface{}{
		"path":         bundlePath,
		"format":       format,
		"sha256":       sum,
		"dir_bytes":    dirBytes,
		"bundle_bytes": bundleBytes,
	})

	return &BundleInfo{Path: bundlePath, Format: format, SHA256: sum}, nil
}

// writeArchive produces the archive file for one format. The tar-based
// formats package the directory first and compress the tarball after.
func writeArchive(dir, dst, format string) error {
	if format == "zip" {
		if err := compression.CompressZIP(dir, dst); err != nil {
			return fmt.Errorf("%w: %s", errors.ErrBundleFailed, err.Error())
		}
		return nil
	}

	tmp, err := os.CreateTemp("", "report-bundle-*.tar")
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrBundleFailed, err.Error())
	}
	tarPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tarPath)

	if err := compression.CompressTAR(dir, tarPath); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrBundleFailed, err.Error())
	}

	switch format {
	case "xz":
		err = compression.CompressXZ(tarPath, dst)
	case "bzip2":
		err = compression.CompressBZIP2(tarPath, dst)
	case "gzip":
		err = compression.CompressGZIP(tarPath, dst)
	}
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrBundleFailed, err.Error())
	}

	return nil
}

// VerifyChecksum verifies a bundle against the sha256 recorded next to it
func VerifyChecksum(bundlePath string) error {
	sumPath := bundlePath + ".sha256"
	if !fsutil.FileExists(sumPath) {
		return fmt.Errorf("%w: %s", errors.ErrFileNotFound, sumPath)
	}

	line, err := fsutil.ReadFileString(sumPath)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrInvalidArchive, err.Error())
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return fmt.Errorf("%w: empty checksum file %s", errors.ErrInvalidArchive, sumPath)
	}

	ok, err := cryptoutil.VerifyFileChecksum(bundlePath, fields[0], cryptoutil.SHA256)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrInvalidArchive, err.Error())
	}
	if !ok {
		return fmt.Errorf("%w: checksum mismatch for %s", errors.ErrInvalidArchive, filepath.Base(bundlePath))
	}

	return nil
}

// Inspect extracts a bundle into destDir and loads the report it holds.
// The archive format is detected from the file itself, so renamed bundles
// still open.
func Inspect(bundlePath, destDir string) (*workflow.Report, error) {
	format, err := compression.DetectArchiveFormat(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrInvalidArchive, err.Error())
	}

	if err := fsutil.CreateDirIfNotExists(destDir); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrInvalidArchive, err.Error())
	}

	switch format {
	case "zip":
		err = compression.ExtractZIP(bundlePath, destDir)
	case "tar":
		err = compression.ExtractTAR(bundlePath, destDir)
	case "xz", "bzip2", "gzip":
		err = extractCompressedTar(bundlePath, destDir, format)
	default:
		return nil, fmt.Errorf("%w: '%s'", errors.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrInvalidArchive, err.Error())
	}

	reportPath, err := findReportFile(destDir)
	if err != nil {
		return nil, err
	}

	var rep workflow.Report
	if err := jsonutil.ReadJSON(reportPath, &rep); err != nil {
		return nil, err
	}

	logger.LogDebug("bundle inspected", map[string]interface{}{
		"bundle":   bundlePath,
		"format":   format,
		"workflow": rep.Workflow,
	})

	return &rep, nil
}

// extractCompressedTar decompresses to a temporary tarball, then unpacks it
func extractCompressedTar(src, destDir, format string) error {
	tmp, err := os.CreateTemp("", "report-inspect-*.tar")
	if err != nil {
		return err
	}
	tarPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tarPath)

	switch format {
	case "xz":
		err = compression.ExtractXZ(src, tarPath)
	case "bzip2":
		err = compression.ExtractBZIP2(src, tarPath)
	case "gzip":
		err = compression.ExtractGZIP(src, tarPath)
	}
	if err != nil {
		return err
	}

	return compression.ExtractTAR(tarPath, destDir)
}

// findReportFile locates report.json anywhere under root; bundles nest it
// under the report directory's base name
func findReportFile(root string) (string, error) {
	var found string
	err := fsutil.WalkDir(root, func(path string, info fs.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !info.IsDir() && info.Name() == FileName {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrInvalidArchive, err.Error())
	}
	if found == "" {
		return "", fmt.Errorf("%w: no %s in archive", errors.ErrInvalidArchive, FileName)
	}

	return found, nil
}
