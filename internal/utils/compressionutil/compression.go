// Package compression archives and unpacks report bundles. Formats are
// detected from file contents first, so a renamed bundle still opens.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/castorix/go-workflow-harness/internal/utils/errors"
	"github.com/castorix/go-workflow-harness/internal/utils/fsutil"
)

// headerProbeLen covers the longest magic we look for: the tar "ustar"
// marker sits at offset 257
const headerProbeLen = 262

var magicNumbers = map[string][]byte{
	"zip":   {0x50, 0x4B, 0x03, 0x04},
	"gzip":  {0x1F, 0x8B},
	"bzip2": {0x42, 0x5A, 0x68},
	"xz":    {0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00},
}

// DetectArchiveFormat determines the archive format from the file header,
// falling back to the extension for formats without a usable magic
func DetectArchiveFormat(filename string) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	header := make([]byte, headerProbeLen)
	n, err := file.Read(header)
	if err != nil && err != io.EOF {
		return "", err
	}
	header = header[:n]

	if format, ok := formatFromHeader(header); ok {
		return format, nil
	}

	if format, ok := formatFromExtension(filename); ok {
		return format, nil
	}

	return "", fmt.Errorf("%w: %s", errors.ErrUnsupportedFormat, filepath.Base(filename))
}

// formatFromHeader matches the probe bytes against the known magics
func formatFromHeader(header []byte) (string, bool) {
	for format, magic := range magicNumbers {
		if bytes.HasPrefix(header, magic) {
			return format, true
		}
	}

	// Tar puts its marker deep into the header instead of the front
	if len(header) >= 262 && bytes.Equal(header[257:262], []byte("ustar")) {
		return "tar", true
	}

	return "", false
}

// formatFromExtension maps well-known archive extensions to formats
func formatFromExtension(filename string) (string, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".zip":
		return "zip", true
	case ".tar":
		return "tar", true
	case ".gz", ".tgz":
		return "gzip", true
	case ".bz2", ".tbz2":
		return "bzip2", true
	case ".xz", ".txz":
		return "xz", true
	}
	return "", false
}

// EstimateCompressionSize approximates how large src will be once
// archived in the given format. The ratios are rough; callers use the
// estimate for disk-space checks, not accounting.
func EstimateCompressionSize(src string, format string) (uint64, error) {
	size, err := fsutil.GetDirSize(src)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate size: %w", err)
	}

	var ratio float64
	switch format {
	case "zip":
		ratio = 0.60
	case "tar":
		ratio = 1.00
	case "gzip":
		ratio = 0.50
	case "bzip2":
		ratio = 0.40
	case "xz":
		ratio = 0.30
	default:
		return 0, fmt.Errorf("%w: %s", errors.ErrUnsupportedFormat, format)
	}

	return uint64(float64(size) * ratio), nil
}
