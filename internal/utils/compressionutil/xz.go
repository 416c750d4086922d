package compression

import (
	"fmt"
	"io"
	"os"

	"github.com/ulikunitz/xz"
)

// CompressXZ compresses a file using XZ
func CompressXZ(src, dst string) error {
	inFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer inFile.Close()

	outFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create xz file: %w", err)
	}

	xzWriter, err := xz.NewWriter(outFile)
	if err != nil {
		outFile.Close()
		return fmt.Errorf("failed to create xz writer: %w", err)
	}

	if _, err := io.Copy(xzWriter, inFile); err != nil {
		xzWriter.Close()
		outFile.Close()
		return fmt.Errorf("failed to compress file: %w", err)
	}

	// Close flushes the index and stream footer; a short file is corrupt
	if err := xzWriter.Close(); err != nil {
		outFile.Close()
		return fmt.Errorf("failed to finalize xz stream: %w", err)
	}

	return outFile.Close()
}

// ExtractXZ decompresses an XZ file
func ExtractXZ(src, dst string) error {
	inFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer inFile.Close()

	xzReader, err := xz.NewReader(inFile)
	if err != nil {
		return fmt.Errorf("failed to create xz reader: %w", err)
	}

	outFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if _, err := io.Copy(outFile, xzReader); err != nil {
		outFile.Close()
		return fmt.Errorf("failed to extract file: %w", err)
	}

	return outFile.Close()
}
