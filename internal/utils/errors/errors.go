package errors

import (
	"errors"
)

var (
	// General Errors
	ErrInvalidArgument = errors.New("invalid argument")

	// Session Errors
	ErrSpawnFailure    = errors.New("failed to spawn process")
	ErrTimeoutFailure  = errors.New("process timed out")
	ErrPatternMismatch = errors.New("expected pattern never appeared")
	ErrNonZeroExit     = errors.New("process exited with non-zero status")
	ErrFailureMarker   = errors.New("output contains failure marker")

	// Extraction Errors
	ErrMissingArtifact = errors.New("required artifact missing from output")

	// Node Errors
	ErrNodeUnavailable = errors.New("test node unavailable")
	ErrNodeStopped     = errors.New("test node already stopped")
	ErrNodeShutdown    = errors.New("test node did not shut down cleanly")
	ErrFundingFailed   = errors.New("test funding transaction failed")

	// RPC Errors
	ErrRPCFailed       = errors.New("JSON-RPC call failed")
	ErrRPCBadStatus    = errors.New("unexpected HTTP status from RPC endpoint")
	ErrRPCErrorReply   = errors.New("RPC endpoint returned an error reply")
	ErrRPCEmptyResult  = errors.New("RPC reply carries no result")
	ErrInvalidEndpoint = errors.New("invalid RPC endpoint URL")

	// Workspace Errors
	ErrWorkspace       = errors.New("workspace operation failed")
	ErrWorkspaceExists = errors.New("workspace root is a file, not a directory")

	// Workflow Errors
	ErrInvalidWorkflow  = errors.New("invalid workflow definition")
	ErrUnknownStageKind = errors.New("unknown stage kind")
	ErrRunFailed        = errors.New("workflow run failed")

	// File & Directory Errors
	ErrFileNotFound   = errors.New("file not found")
	ErrFileReadError  = errors.New("error reading file")
	ErrFileWriteError = errors.New("error writing to file")
	ErrDirNotFound    = errors.New("directory not found")

	// Report & Bundle Errors
	ErrReportFailed          = errors.New("failed to write run report")
	ErrBundleFailed          = errors.New("failed to bundle report directory")
	ErrUnsupportedFormat     = errors.New("unsupported bundle format")
	ErrInvalidArchive        = errors.New("archive file is corrupted or unsupported")
	ErrInsufficientDiskSpace = errors.New("not enough disk space to write bundle")
)
