package compression

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
)

// CompressGZIP compresses a file using GZIP
func CompressGZIP(src, dst string) error {
	inFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer inFile.Close()

	outFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create gzip file: %w", err)
	}

	gzWriter := gzip.NewWriter(outFile)

	if _, err := io.Copy(gzWriter, inFile); err != nil {
		gzWriter.Close()
		outFile.Close()
		return fmt.Errorf("failed to compress file: %w", err)
	}

	// Close flushes buffered data and the gzip footer
	if err := gzWriter.Close(); err != nil {
		outFile.Close()
		return fmt.Errorf("failed to finalize gzip stream: %w", err)
	}

	return outFile.Close()
}

// ExtractGZIP decompresses a GZIP file
func ExtractGZIP(src, dst string) error {
	inFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer inFile.Close()

	gzReader, err := gzip.NewReader(inFile)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	outFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if _, err := io.Copy(outFile, gzReader); err != nil {
		outFile.Close()
		return fmt.Errorf("failed to extract file: %w", err)
	}

	return outFile.Close()
}
