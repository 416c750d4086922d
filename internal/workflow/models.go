// Package workflow loads, validates and executes the declarative stage
// sequences the harness runs against the CLI under test. Stages are
// strictly ordered; artifacts extracted from one stage's output feed the
// arguments of later stages.
package workflow

import (
	stderrors "errors"
	"time"

	"github.com/castorix/go-workflow-harness/internal/utils/errors"
	"github.com/castorix/go-workflow-harness/internal/utils/osutil"
)

// Policy decides what a stage failure does to the rest of the run
type Policy string

const (
	// PolicyHard aborts the run; remaining stages are skipped
	PolicyHard Policy = "hard"
	// PolicySoft records the failure and lets the run continue
	PolicySoft Policy = "soft"
)

// StageState tracks a single stage through the run
type StageState string

const (
	StagePending StageState = "pending"
	StageRunning StageState = "running"
	StagePassed  StageState = "passed"
	StageFailed  StageState = "failed"
	StageSkipped StageState = "skipped"
)

// RunState tracks the run as a whole
type RunState string

const (
	RunInitializing RunState = "initializing"
	RunExecuting    RunState = "executing"
	RunCompleted    RunState = "completed"
	RunAborted      RunState = "aborted"
)

// Stage represents a single stage in the workflow
type Stage struct {
	Name        string                 `mapstructure:"name" json:"name"`
	Kind        string                 `mapstructure:"kind" json:"kind"`
	Description string                 `mapstructure:"description" json:"description,omitempty"`
	Policy      Policy                 `mapstructure:"policy" json:"policy"`
	Timeout     time.Duration          `mapstructure:"timeout" json:"timeout,omitempty"`
	Parameters  map[string]interface{} `mapstructure:",remain" json:"-"`
}

// Workflow represents the entire stage sequence
type Workflow struct {
	Name        string                 `mapstructure:"name"`
	Description string                 `mapstructure:"description"`
	Version     string                 `mapstructure:"version"`
	NeedsNode   bool                   `mapstructure:"needs_node"`
	Stages      []Stage                `mapstructure:"stages"`
	Variables   map[string]interface{} `mapstructure:"variables"`
}

// FailureKind names the failure taxonomy in reports
type FailureKind string

const (
	FailSpawn           FailureKind = "spawn_failure"
	FailTimeout         FailureKind = "timeout_failure"
	FailPatternMismatch FailureKind = "pattern_mismatch"
	FailNonZeroExit     FailureKind = "non_zero_exit"
	FailMarkerPresent   FailureKind = "failure_marker_present"
	FailMissingArtifact FailureKind = "missing_artifact"
	FailNodeUnavailable FailureKind = "node_unavailable"
	FailWorkspace       FailureKind = "workspace_error"
	FailInvalidWorkflow FailureKind = "invalid_workflow"
	FailOther           FailureKind = "stage_failed"
)

// Failure is the tagged result of anything that went wrong. The captured
// child output travels with it for diagnostics but stays out of the JSON
// report; transcripts are written as separate files.
type Failure struct {
	Kind     FailureKind `json:"kind"`
	Stage    string      `json:"stage"`
	Message  string      `json:"message"`
	Captured string      `json:"-"`
}

// newFailure tags an error with the stage it belongs to
func newFailure(stage string, err error, captured string) *Failure {
	return &Failure{
		Kind:     classifyFailure(err),
		Stage:    stage,
		Message:  err.Error(),
		Captured: captured,
	}
}

// classifyFailure maps a wrapped sentinel onto its report taxonomy name
func classifyFailure(err error) FailureKind {
	switch {
	case stderrors.Is(err, errors.ErrMissingArtifact):
		return FailMissingArtifact
	case stderrors.Is(err, errors.ErrSpawnFailure):
		return FailSpawn
	case stderrors.Is(err, errors.ErrTimeoutFailure):
		return FailTimeout
	case stderrors.Is(err, errors.ErrPatternMismatch):
		return FailPatternMismatch
	case stderrors.Is(err, errors.ErrNonZeroExit):
		return FailNonZeroExit
	case stderrors.Is(err, errors.ErrFailureMarker):
		return FailMarkerPresent
	case stderrors.Is(err, errors.ErrNodeUnavailable), stderrors.Is(err, errors.ErrFundingFailed),
		stderrors.Is(err, errors.ErrNodeStopped), stderrors.Is(err, errors.ErrNodeShutdown):
		return FailNodeUnavailable
	case stderrors.Is(err, errors.ErrWorkspace), stderrors.Is(err, errors.ErrWorkspaceExists):
		return FailWorkspace
	case stderrors.Is(err, errors.ErrInvalidWorkflow), stderrors.Is(err, errors.ErrUnknownStageKind):
		return FailInvalidWorkflow
	default:
		return FailOther
	}
}

// StageResult is one stage's outcome in the report. Captured holds the
// full transcript for the per-stage log file.
type StageResult struct {
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Policy   Policy        `json:"policy"`
	State    StageState    `json:"state"`
	Notes    string        `json:"notes,omitempty"`
	Failure  *Failure      `json:"failure,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Captured string        `json:"-"`
}

// Report aggregates everything one run produced
type Report struct {
	Workflow        string                 `json:"workflow"`
	Host            osutil.Snapshot        `json:"host"`
	Started         time.Time              `json:"started"`
	Finished        time.Time              `json:"finished"`
	RunState        RunState               `json:"run_state"`
	Stages          []StageResult          `json:"stages"`
	Artifacts       map[string]interface{} `json:"artifacts"`
	SetupFailure    *Failure               `json:"setup_failure,omitempty"`
	TeardownFailure *Failure               `json:"teardown_failure,omitempty"`
}

// Exit codes for the process as a whole
const (
	ExitPassed          = 0
	ExitStageFailure    = 1
	ExitSetupFailure    = 2
	ExitTeardownFailure = 3
)

// ExitCode folds the report into the process exit code: zero only when
// setup succeeded and every hard stage passed. Soft failures do not
// change the exit code; a teardown failure surfaces only when nothing
// else already did.
func (r *Report) ExitCode() int {
	if r.SetupFailure != nil {
		return ExitSetupFailure
	}
	for _, s := range r.Stages {
		if s.Policy == PolicyHard && s.State != StagePassed {
			return ExitStageFailure
		}
	}
	if r.TeardownFailure != nil {
		return ExitTeardownFailure
	}
	return ExitPassed
}

// HardFailures lists the failures of hard stages, in stage order
func (r *Report) HardFailures() []*Failure {
	var out []*Failure
	for _, s := range r.Stages {
		if s.Policy == PolicyHard && s.Failure != nil {
			out = append(out, s.Failure)
		}
	}
	return out
}
