package compression

import (
	"fmt"
	"io"
	"os"

	"github.com/dsnet/compress/bzip2"
)

// CompressBZIP2 compresses a file using BZIP2
func CompressBZIP2(src, dst string) error {
	inFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer inFile.Close()

	outFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create bzip2 file: %w", err)
	}

	bzWriter, err := bzip2.NewWriter(outFile, nil)
	if err != nil {
		outFile.Close()
		return fmt.Errorf("failed to create bzip2 writer: %w", err)
	}

	if _, err := io.Copy(bzWriter, inFile); err != nil {
		bzWriter.Close()
		outFile.Close()
		return fmt.Errorf("failed to compress file: %w", err)
	}

	// Close flushes the final block and stream footer
	if err := bzWriter.Close(); err != nil {
		outFile.Close()
		return fmt.Errorf("failed to finalize bzip2 stream: %w", err)
	}

	return outFile.Close()
}

// ExtractBZIP2 decompresses a BZIP2 file
func ExtractBZIP2(src, dst string) error {
	inFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer inFile.Close()

	bzReader, err := bzip2.NewReader(inFile, nil)
	if err != nil {
		return fmt.Errorf("failed to create bzip2 reader: %w", err)
	}
	defer bzReader.Close()

	outFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if _, err := io.Copy(outFile, bzReader); err != nil {
		outFile.Close()
		return fmt.Errorf("failed to extract file: %w", err)
	}

	return outFile.Close()
}
