package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castorix/go-workflow-harness/internal/utils/errors"
	"github.com/castorix/go-workflow-harness/internal/utils/fsutil"
	"github.com/castorix/go-workflow-harness/internal/utils/jsonutil"
	"github.com/castorix/go-workflow-harness/internal/workflow"
)

func sampleReport() *workflow.Report {
	return &workflow.Report{
		Workflow: "farcaster-complete",
		Started:  time.Now().Add(-time.Minute),
		Finished: time.Now(),
		RunState: workflow.RunCompleted,
		Stages: []workflow.StageResult{
			{
				Name:     "key-generate",
				Kind:     "cli",
				Policy:   workflow.PolicyHard,
				State:    workflow.StagePassed,
				Duration: 3 * time.Second,
				Captured: "Wallet created\nAddress: 0x1234567890abcdef1234567890abcdef12345678\n",
			},
			{
				Name:   "fund-wallet",
				Kind:   "fund",
				Policy: workflow.PolicyHard,
				State:  workflow.StagePassed,
				Notes:  "funded with 10 ETH",
			},
			{
				Name:   "fid-register",
				Kind:   "cli",
				Policy: workflow.PolicyHard,
				State:  workflow.StageFailed,
				Failure: &workflow.Failure{
					Kind:    workflow.FailPatternMismatch,
					Stage:   "fid-register",
					Message: "expected pattern never appeared",
				},
				Captured: "❌ registration reverted\n",
			},
		},
		Artifacts: map[string]interface{}{"fid": int64(123)},
	}
}

func TestWriteReportAndTranscripts(t *testing.T) {
	dir := t.TempDir()

	path, err := Write(sampleReport(), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), path)

	var got workflow.Report
	require.NoError(t, jsonutil.ReadJSON(path, &got))
	assert.Equal(t, "farcaster-complete", got.Workflow)
	assert.Equal(t, workflow.RunCompleted, got.RunState)
	require.Len(t, got.Stages, 3)
	assert.Equal(t, workflow.StagePassed, got.Stages[0].State)
	require.NotNil(t, got.Stages[2].Failure)
	assert.Equal(t, workflow.FailPatternMismatch, got.Stages[2].Failure.Kind)
	assert.EqualValues(t, 123, got.Artifacts["fid"])

	first, err := fsutil.ReadFileString(filepath.Join(dir, "01-key-generate.log"))
	require.NoError(t, err)
	assert.Contains(t, first, "Address: 0x1234567890abcdef1234567890abcdef12345678")

	assert.True(t, fsutil.FileExists(filepath.Join(dir, "03-fid-register.log")))
	assert.False(t, fsutil.FileExists(filepath.Join(dir, "02-fund-wallet.log")),
		"stages without captured output get no transcript")
}

func TestWriteRejectsNilReport(t *testing.T) {
	_, err := Write(nil, t.TempDir())
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestTranscriptNameSanitizes(t *testing.T) {
	assert.Equal(t, "03-weird-stage-name.log", transcriptName(3, "weird stage/name"))
	assert.Equal(t, "01-fid-register.log", transcriptName(1, "fid-register"))
	assert.Equal(t, "07-stage.log", transcriptName(7, ""))
}

func TestPrepareDirRemovesPreviousRunFiles(t *testing.T) {
	dir := t.TempDir()
	stale := []string{FileName, NodeLogName, "01-old-stage.log", "12-another.log"}
	for _, name := range stale {
		require.NoError(t, fsutil.WriteFileString(filepath.Join(dir, name), "old", 0644))
	}
	require.NoError(t, fsutil.WriteFileString(filepath.Join(dir, "notes.txt"), "mine", 0644))

	require.NoError(t, PrepareDir(dir))

	for _, name := range stale {
		assert.False(t, fsutil.FileExists(filepath.Join(dir, name)), name)
	}
	assert.True(t, fsutil.FileExists(filepath.Join(dir, "notes.txt")))
}

func TestPrepareDirCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fresh", "reports")
	require.NoError(t, PrepareDir(dir))
	assert.True(t, fsutil.DirExists(dir))
}

func TestBundleRoundTrip(t *testing.T) {
	cases := []struct {
		format string
		ext    string
	}{
		{"xz", ".tar.xz"},
		{"bzip2", ".tar.bz2"},
		{"gzip", ".tar.gz"},
		{"zip", ".zip"},
	}

	for _, tc := range cases {
		t.Run(tc.format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "reports")
			_, err := Write(sampleReport(), dir)
			require.NoError(t, err)

			info, err := Bundle(dir, tc.format)
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(info.Path, tc.ext), info.Path)
			assert.True(t, fsutil.FileExists(info.Path))
			assert.True(t, fsutil.FileExists(info.Path+".sha256"))
			assert.Len(t, info.SHA256, 64)

			require.NoError(t, VerifyChecksum(info.Path))

			got, err := Inspect(info.Path, t.TempDir())
			require.NoError(t, err)
			assert.Equal(t, "farcaster-complete", got.Workflow)
			require.Len(t, got.Stages, 3)
			require.NotNil(t, got.Stages[2].Failure)
			assert.Equal(t, workflow.FailPatternMismatch, got.Stages[2].Failure.Kind)
		})
	}
}

func TestBundleLeavesReportDirIntact(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	_, err := Write(sampleReport(), dir)
	require.NoError(t, err)

	_, err = Bundle(dir, "gzip")
	require.NoError(t, err)

	assert.True(t, fsutil.FileExists(filepath.Join(dir, FileName)))
	assert.True(t, fsutil.FileExists(filepath.Join(dir, "01-key-generate.log")))
}

func TestBundleRejectsUnknownFormat(t *testing.T) {
	_, err := Bundle(t.TempDir(), "rar")
	assert.ErrorIs(t, err, errors.ErrUnsupportedFormat)
}

func TestBundleRejectsMissingDirectory(t *testing.T) {
	_, err := Bundle(filepath.Join(t.TempDir(), "absent"), "gzip")
	assert.ErrorIs(t, err, errors.ErrDirNotFound)
}

func TestVerifyChecksumDetectsTampering(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	_, err := Write(sampleReport(), dir)
	require.NoError(t, err)

	info, err := Bundle(dir, "gzip")
	require.NoError(t, err)

	f, err := os.OpenFile(info.Path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("tampered")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.ErrorIs(t, VerifyChecksum(info.Path), errors.ErrInvalidArchive)
}

func TestVerifyChecksumRequiresChecksumFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	_, err := Write(sampleReport(), dir)
	require.NoError(t, err)

	info, err := Bundle(dir, "gzip")
	require.NoError(t, err)
	require.NoError(t, os.Remove(info.Path+".sha256"))

	assert.ErrorIs(t, VerifyChecksum(info.Path), errors.ErrFileNotFound)
}

func TestInspectRejectsNonArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, fsutil.WriteFileString(path, "plain text, no archive magic", 0644))

	_, err := Inspect(path, t.TempDir())
	assert.ErrorIs(t, err, errors.ErrInvalidArchive)
}

func TestInspectRequiresReportInsideArchive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, fsutil.WriteFileString(filepath.Join(dir, "readme.md"), "no report here", 0644))

	info, err := Bundle(dir, "gzip")
	require.NoError(t, err)

	_, err = Inspect(info.Path, t.TempDir())
	assert.ErrorIs(t, err, errors.ErrInvalidArchive)
}
