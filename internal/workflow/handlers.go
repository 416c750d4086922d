package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/castorix/go-workflow-harness/internal/extract"
	"github.com/castorix/go-workflow-harness/internal/node"
	"github.com/castorix/go-workflow-harness/internal/session"
	"github.com/castorix/go-workflow-harness/internal/utils/errors"
)

// stageHandler executes one stage kind. The outcome carries whatever was
// captured even when the error is non-nil so transcripts survive
// failures.
type stageHandler func(ctx context.Context, stage Stage, sc *Context) (*stageOutcome, error)

// stageOutcome is what a handler hands back to the runner
type stageOutcome struct {
	artifacts map[string]interface{}
	captured  string
	notes     string
}

func (r *Runner) createStageHandlerRegistry() map[string]stageHandler {
	return map[string]stageHandler{
		"cli":   r.handleCLIStage,
		"fund":  r.handleFundStage,
		"probe": r.handleProbeStage,
	}
}

// ExtractSpec declares one artifact to pull out of a stage's output
type ExtractSpec struct {
	Label string `mapstructure:"label" json:"label"`
	Form  string `mapstructure:"form" json:"form"` // int, address or hex64
}

// cliParams are the parameters of a "cli" stage
type cliParams struct {
	Args                 []string               `mapstructure:"args"`
	Exchange             []session.Exchange     `mapstructure:"exchange"`
	Extract              map[string]ExtractSpec `mapstructure:"extract"`
	RequireOutput        []string               `mapstructure:"require_output"`
	RequireSuccessMarker bool                   `mapstructure:"require_success_marker"`
	AllowSoftMarkers     bool                   `mapstructure:"allow_soft_markers"`
	AllowNonZeroExit     bool                   `mapstructure:"allow_nonzero_exit"`
}

// fundParams are the parameters of a "fund" stage
type fundParams struct {
	To  string `mapstructure:"to"`
	ETH int64  `mapstructure:"eth"`
}

// probeParams are the parameters of a "probe" stage
type probeParams struct {
	Retries  int           `mapstructure:"retries"`
	Interval time.Duration `mapstructure:"interval"`
}

// decodeParams unmarshals the free-form stage parameters into a typed
// struct, accepting "30s" style duration strings
func decodeParams(params map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     out,
	})
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrInvalidWorkflow, err.Error())
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrInvalidWorkflow, err.Error())
	}
	return nil
}

// handleCLIStage drives the CLI under test through one scripted session
// and applies the marker and extraction checks to what it printed
func (r *Runner) handleCLIStage(ctx context.Context, stage Stage, sc *Context) (*stageOutcome, error) {
	var p cliParams
	if err := decodeParams(stage.Parameters, &p); err != nil {
		return nil, err
	}

	// All templating happens before the child is spawned: a reference to
	// an artifact no earlier stage produced fails the stage without
	// running anything
	args, err := sc.InterpolateAll(p.Args)
	if err != nil {
		return nil, err
	}

	script := make(session.Script, len(p.Exchange))
	for i, ex := range p.Exchange {
		send, err := sc.Interpolate(ex.Send)
		if err != nil {
			return nil, err
		}
		ex.Send = send
		script[i] = ex
	}

	requiredOutput, err := sc.InterpolateAll(p.RequireOutput)
	if err != nil {
		return nil, err
	}

	timeout := stage.Timeout
	if timeout == 0 {
		timeout = r.cfg.Workflow.StageTimeout
	}

	res, err := r.sessions.Run(ctx, session.Options{
		Command:       r.cfg.CLI.Binary,
		Args:          args,
		Dir:           r.ws.Root(),
		Env:           r.childEnv(),
		Script:        script,
		Timeout:       timeout,
		ExpectTimeout: r.cfg.Workflow.ExpectTimeout,
		SendDelay:     r.cfg.Workflow.SendDelay,
		Mirror:        r.echo,
	})

	out := &stageOutcome{captured: res.Captured}
	if err != nil {
		return out, err
	}

	// A soft marker ("not found", "dry run", ...) downgrades nonzero
	// exits and failure glyphs to a benign outcome when the stage opts in
	benign := p.AllowSoftMarkers && extract.HasSoftMarker(res.Captured)

	if res.ExitCode != 0 {
		switch {
		case p.AllowNonZeroExit:
			out.notes = fmt.Sprintf("exit %d tolerated", res.ExitCode)
		case benign:
			out.notes = fmt.Sprintf("benign nonzero exit %d (soft marker present)", res.ExitCode)
		default:
			return out, fmt.Errorf("%w: exit code %d", errors.ErrNonZeroExit, res.ExitCode)
		}
	}

	if extract.HasFailureMarker(res.Captured) && !benign {
		return out, fmt.Errorf("%w: output contains %q", errors.ErrFailureMarker, extract.FailureMarker)
	}

	if p.RequireSuccessMarker && !extract.HasSuccessMarker(res.Captured) {
		return out, fmt.Errorf("%w: required %q marker not in output", errors.ErrFailureMarker, extract.SuccessMarker)
	}

	for _, want := range requiredOutput {
		if !strings.Contains(res.Captured, want) {
			return out, fmt.Errorf("%w: expected output %q not found", errors.ErrPatternMismatch, want)
		}
	}

	if len(p.Extract) > 0 {
		artifacts, err := runExtractions(res.Captured, p.Extract)
		if err != nil {
			return out, err
		}
		out.artifacts = artifacts
	}

	return out, nil
}

// runExtractions pulls every declared artifact out of the captured
// output; any one of them missing fails the stage
func runExtractions(captured string, specs map[string]ExtractSpec) (map[string]interface{}, error) {
	artifacts := make(map[string]interface{}, len(specs))

	for name, spec := range specs {
		switch spec.Form {
		case "int":
			v, ok := extract.FindInt(captured, spec.Label)
			if !ok {
				return nil, missingArtifact(name, spec)
			}
			artifacts[name] = v

		case "address":
			v, ok := extract.FindAddress(captured, spec.Label)
			if !ok {
				return nil, missingArtifact(name, spec)
			}
			artifacts[name] = v

		case "hex64":
			v, ok := extract.FindHexToken(captured, spec.Label, 64)
			if !ok {
				return nil, missingArtifact(name, spec)
			}
			artifacts[name] = v

		default:
			return nil, fmt.Errorf("%w: extract %q: unknown form %q", errors.ErrInvalidWorkflow, name, spec.Form)
		}
	}

	return artifacts, nil
}

func missingArtifact(name string, spec ExtractSpec) error {
	return fmt.Errorf("%w: artifact %q (label %q) not found in output", errors.ErrMissingArtifact, name, spec.Label)
}

// handleFundStage moves test ETH from the node's pre-funded account to
// an address extracted earlier in the run
func (r *Runner) handleFundStage(ctx context.Context, stage Stage, sc *Context) (*stageOutcome, error) {
	if !r.nodeUp {
		return nil, fmt.Errorf("%w: fund stage requires a running node", errors.ErrNodeUnavailable)
	}

	var p fundParams
	if err := decodeParams(stage.Parameters, &p); err != nil {
		return nil, err
	}

	to, err := sc.Interpolate(p.To)
	if err != nil {
		return nil, err
	}

	// The target may be a bare address or a captured line holding one;
	// the node only ever sees the token
	addr, ok := extract.ScanAddress(to)
	if !ok {
		return nil, fmt.Errorf("%w: fund target %q contains no address", errors.ErrMissingArtifact, to)
	}

	eth := p.ETH
	if eth <= 0 {
		eth = r.cfg.RPC.FundingETH
	}

	txHash, err := r.node.Fund(ctx, addr, eth)
	if err != nil {
		return nil, err
	}

	return &stageOutcome{
		notes: fmt.Sprintf("funded %s with %d ETH (tx %s)", addr, eth, txHash),
	}, nil
}

// handleProbeStage re-checks node health mid-run
func (r *Runner) handleProbeStage(ctx context.Context, stage Stage, sc *Context) (*stageOutcome, error) {
	if !r.nodeUp {
		return nil, fmt.Errorf("%w: probe stage requires a running node", errors.ErrNodeUnavailable)
	}

	var p probeParams
	if err := decodeParams(stage.Parameters, &p); err != nil {
		return nil, err
	}

	retries := p.Retries
	if retries <= 0 {
		retries = r.cfg.Node.ProbeRetries
	}
	interval := p.Interval
	if interval <= 0 {
		interval = r.cfg.Node.ProbeInterval
	}

	health := r.node.Probe(ctx, retries, interval)
	if health != node.HealthHealthy {
		return nil, fmt.Errorf("%w: node is %s after %d attempts", errors.ErrNodeUnavailable, health, retries)
	}

	return &stageOutcome{
		notes: fmt.Sprintf("node answered within %d attempts", retries),
	}, nil
}
