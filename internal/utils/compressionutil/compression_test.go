package compression

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	harnesserrors "github.com/castorix/go-workflow-harness/internal/utils/errors"
)

// payloadDir builds a small directory tree to archive
func payloadDir(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "reports")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.json"), []byte(`{"workflow":"x"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "01-stage.log"), []byte("transcript\n"), 0644))
	return dir
}

func TestTarRoundTrip(t *testing.T) {
	src := payloadDir(t)
	tarPath := filepath.Join(t.TempDir(), "bundle.tar")

	require.NoError(t, CompressTAR(src, tarPath))

	dst := t.TempDir()
	require.NoError(t, ExtractTAR(tarPath, dst))

	// Entries are rooted at the source directory's base name
	data, err := os.ReadFile(filepath.Join(dst, "reports", "report.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"workflow":"x"}`, string(data))

	data, err = os.ReadFile(filepath.Join(dst, "reports", "nested", "01-stage.log"))
	require.NoError(t, err)
	assert.Equal(t, "transcript\n", string(data))
}

func TestZipRoundTrip(t *testing.T) {
	src := payloadDir(t)
	zipPath := filepath.Join(t.TempDir(), "bundle.zip")

	require.NoError(t, CompressZIP(src, zipPath))

	dst := t.TempDir()
	require.NoError(t, ExtractZIP(zipPath, dst))

	data, err := os.ReadFile(filepath.Join(dst, "reports", "nested", "01-stage.log"))
	require.NoError(t, err)
	assert.Equal(t, "transcript\n", string(data))
}

func TestCompressedFileRoundTrips(t *testing.T) {
	cases := []struct {
		name     string
		compress func(src, dst string) error
		extract  func(src, dst string) error
	}{
		{"xz", CompressXZ, ExtractXZ},
		{"bzip2", CompressBZIP2, ExtractBZIP2},
		{"gzip", CompressGZIP, ExtractGZIP},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := filepath.Join(t.TempDir(), "payload.txt")
			require.NoError(t, os.WriteFile(src, []byte("same bytes out as in"), 0644))

			packed := src + "." + tc.name
			require.NoError(t, tc.compress(src, packed))

			unpacked := filepath.Join(t.TempDir(), "restored.txt")
			require.NoError(t, tc.extract(packed, unpacked))

			data, err := os.ReadFile(unpacked)
			require.NoError(t, err)
			assert.Equal(t, "same bytes out as in", string(data))
		})
	}
}

func TestExtractTARRefusesTraversal(t *testing.T) {
	// A handcrafted archive whose entry climbs out of the destination
	tarPath := filepath.Join(t.TempDir(), "evil.tar")
	f, err := os.Create(tarPath)
	require.NoError(t, err)

	tw := tar.NewWriter(f)
	payload := []byte("outside")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "../escaped.txt",
		Mode:     0644,
		Size:     int64(len(payload)),
		Typeflag: tar.TypeReg,
	}))
	_, err = tw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, f.Close())

	parent := t.TempDir()
	dst := filepath.Join(parent, "unpack")
	require.NoError(t, os.MkdirAll(dst, 0755))

	err = ExtractTAR(tarPath, dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes destination")
	assert.NoFileExists(t, filepath.Join(parent, "escaped.txt"))
}

func TestDetectArchiveFormat(t *testing.T) {
	src := payloadDir(t)
	work := t.TempDir()

	tarPath := filepath.Join(work, "bundle.tar")
	require.NoError(t, CompressTAR(src, tarPath))

	zipPath := filepath.Join(work, "bundle.zip")
	require.NoError(t, CompressZIP(src, zipPath))

	gzPath := filepath.Join(work, "bundle.gz")
	require.NoError(t, CompressGZIP(tarPath, gzPath))

	bz2Path := filepath.Join(work, "bundle.bz2")
	require.NoError(t, CompressBZIP2(tarPath, bz2Path))

	xzPath := filepath.Join(work, "bundle.xz")
	require.NoError(t, CompressXZ(tarPath, xzPath))

	cases := map[string]string{
		tarPath: "tar",
		zipPath: "zip",
		gzPath:  "gzip",
		bz2Path: "bzip2",
		xzPath:  "xz",
	}
	for path, want := range cases {
		got, err := DetectArchiveFormat(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}
}

func TestDetectArchiveFormatIgnoresExtension(t *testing.T) {
	src := payloadDir(t)
	work := t.TempDir()

	tarPath := filepath.Join(work, "bundle.tar")
	require.NoError(t, CompressTAR(src, tarPath))

	// A gzip stream wearing a .zip name still detects as gzip
	disguised := filepath.Join(work, "bundle.zip")
	require.NoError(t, CompressGZIP(tarPath, disguised))

	got, err := DetectArchiveFormat(disguised)
	require.NoError(t, err)
	assert.Equal(t, "gzip", got)
}

func TestDetectArchiveFormatUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0644))

	_, err := DetectArchiveFormat(path)
	assert.ErrorIs(t, err, harnesserrors.ErrUnsupportedFormat)
}

func TestEstimateCompressionSize(t *testing.T) {
	src := payloadDir(t)

	tarEstimate, err := EstimateCompressionSize(src, "tar")
	require.NoError(t, err)
	xzEstimate, err := EstimateCompressionSize(src, "xz")
	require.NoError(t, err)

	assert.Greater(t, tarEstimate, uint64(0))
	assert.Less(t, xzEstimate, tarEstimate)

	_, err = EstimateCompressionSize(src, "rar")
	assert.ErrorIs(t, err, harnesserrors.ErrUnsupportedFormat)
}
