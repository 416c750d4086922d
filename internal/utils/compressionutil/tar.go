package compression

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CompressTAR packages a directory (or single file) into a tar archive.
// Entries are named relative to src's parent so the archive unpacks into
// one top-level directory.
func CompressTAR(src, dst string) error {
	outFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create tar file: %w", err)
	}
	defer outFile.Close()

	tw := tar.NewWriter(outFile)

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

		return appendTarEntry(tw, path, filepath.ToSlash(relPath), info)
	})
	if err != nil {
		tw.Close()
		return fmt.Errorf("failed to create tar archive: %w", err)
	}

	// Close flushes the trailing blocks; a short archive is corrupt
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize tar archive: %w", err)
	}

	return nil
}

// appendTarEntry writes one file into the archive under name
func appendTarEntry(tw *tar.Writer, path, name string, info os.FileInfo) error {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(tw, file)
	return err
}

// ExtractTAR unpacks a tar archive into dst. Entries that would land
// outside dst are refused.
func ExtractTAR(src, dst string) error {
	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open tar file: %w", err)
	}
	defer file.Close()

	tr := tar.NewReader(file)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar archive: %w", err)
		}

		fpath, err := containedPath(dst, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(fpath, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeExtracted(fpath, tr, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		}
	}

	return nil
}

// containedPath joins name onto dst and refuses traversal outside it
func containedPath(dst, name string) (string, error) {
	fpath := filepath.Join(dst, filepath.FromSlash(name))
	if fpath != dst && !strings.HasPrefix(fpath, filepath.Clean(dst)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return fpath, nil
}

// writeExtracted writes one extracted file, creating its parents
func writeExtracted(fpath string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
		return err
	}

	if mode == 0 {
		mode = 0644
	}

	outFile, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(outFile, r); err != nil {
		outFile.Close()
		return err
	}

	return outFile.Close()
}
