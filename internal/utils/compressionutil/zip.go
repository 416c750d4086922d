package compression

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CompressZIP packages a directory (or single file) into a zip archive,
// named the same way CompressTAR names its entries.
func CompressZIP(src, dst string) error {
	zipFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create zip file: %w", err)
	}
	defer zipFile.Close()

	zw := zip.NewWriter(zipFile)

	base := filepath.Dir(src)
	err = filepath.Walk(src, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}

		return appendZipEntry(zw, path, filepath.ToSlash(relPath))
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("failed to create zip archive: %w", err)
	}

	// Close writes the central directory; without it the zip is unreadable
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize zip archive: %w", err)
	}

	return nil
}

// appendZipEntry writes one file into the archive under name
func appendZipEntry(zw *zip.Writer, path, name string) error {
	entry, err := zw.Create(name)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(entry, file)
	return err
}

// ExtractZIP unpacks a zip archive into dst. Entries that would land
// outside dst are refused.
func ExtractZIP(src, dst string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open zip file: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		fpath, err := containedPath(dst, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, 0755); err != nil {
				return err
			}
			continue
		}

		zipped, err := f.Open()
		if err != nil {
			return err
		}

		err = writeExtracted(fpath, zipped, f.Mode())
		zipped.Close()
		if err != nil {
			return err
		}
	}

	return nil
}
