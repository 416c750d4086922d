package workflow

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/castorix/go-workflow-harness/internal/config"
	"github.com/castorix/go-workflow-harness/internal/logger"
	"github.com/castorix/go-workflow-harness/internal/node"
	"github.com/castorix/go-workflow-harness/internal/session"
	"github.com/castorix/go-workflow-harness/internal/utils/errors"
	"github.com/castorix/go-workflow-harness/internal/utils/osutil"
	"github.com/castorix/go-workflow-harness/internal/workspace"
)

// SessionRunner runs one scripted child session
type SessionRunner interface {
	Run(ctx context.Context, opts session.Options) (session.Result, error)
}

// NodeController drives the test node's lifecycle for one run
type NodeController interface {
	Start(ctx context.Context) error
	URL() string
	Probe(ctx context.Context, retries int, interval time.Duration) node.Health
	Fund(ctx context.Context, to string, eth int64) (string, error)
	Stop() error
}

// WorkspaceManager owns the per-run working directory
type WorkspaceManager interface {
	Create() error
	Root() string
	CredentialsDir() string
	Clean() error
}

// sessionFunc adapts a plain function to the SessionRunner seam
type sessionFunc func(ctx context.Context, opts session.Options) (session.Result, error)

func (f sessionFunc) Run(ctx context.Context, opts session.Options) (session.Result, error) {
	return f(ctx, opts)
}

// liveNode is the production NodeController backed by a real process
type liveNode struct {
	cfg    node.Config
	handle *node.Handle
}

func (n *liveNode) Start(ctx context.Context) error {
	handle, err := node.Start(ctx, n.cfg)
	if err != nil {
		return err
	}
	n.handle = handle
	return nil
}

func (n *liveNode) URL() string {
	if n.handle != nil {
		return n.handle.URL()
	}
	return fmt.Sprintf("http://%s:%d", n.cfg.Host, n.cfg.Port)
}

func (n *liveNode) Probe(ctx context.Context, retries int, interval time.Duration) node.Health {
	if n.handle == nil {
		return node.HealthStopped
	}
	return n.handle.Probe(ctx, retries, interval)
}

func (n *liveNode) Fund(ctx context.Context, to string, eth int64) (string, error) {
	if n.handle == nil {
		return "", fmt.Errorf("%w: node was never started", errors.ErrNodeUnavailable)
	}
	return n.handle.Fund(ctx, to, eth)
}

func (n *liveNode) Stop() error {
	if n.handle == nil {
		return nil
	}
	return n.handle.Stop()
}

// liveWorkspace is the production WorkspaceManager
type liveWorkspace struct {
	root     string
	credsDir string
	keep     bool
	ws       *workspace.Workspace
}

func (w *liveWorkspace) Create() error {
	ws, err := workspace.Create(w.root, w.credsDir)
	if err != nil {
		return err
	}
	ws.SetKeep(w.keep)
	w.ws = ws
	return nil
}

func (w *liveWorkspace) Root() string {
	if w.ws != nil {
		return w.ws.Root()
	}
	return w.root
}

func (w *liveWorkspace) CredentialsDir() string {
	if w.ws != nil {
		return w.ws.CredentialsDir()
	}
	return filepath.Join(w.root, w.credsDir)
}

func (w *liveWorkspace) Clean() error {
	if w.ws == nil {
		return nil
	}
	return w.ws.Clean()
}

// Runner executes workflows: one node, one workspace, stages strictly in
// order on the calling goroutine.
type Runner struct {
	cfg      *config.HarnessConfig
	node     NodeController
	ws       WorkspaceManager
	sessions SessionRunner
	echo     io.Writer
	registry map[string]stageHandler
	nodeUp   bool
}

// NewRunner wires a runner to the real node, workspace and session
// implementations
func NewRunner(cfg *config.HarnessConfig) *Runner {
	r := &Runner{
		cfg: cfg,
		node: &liveNode{cfg: node.Config{
			Binary:        cfg.Node.Binary,
			Host:          cfg.Node.Host,
			Port:          cfg.Node.Port,
			ChainID:       cfg.Node.ChainID,
			GasLimit:      cfg.Node.GasLimit,
			GasPrice:      cfg.Node.GasPrice,
			Accounts:      cfg.Node.Accounts,
			BalanceETH:    cfg.Node.Balance,
			BlockTime:     cfg.Node.BlockTime,
			Silent:        cfg.Node.Silent,
			LogPath:       filepath.Join(cfg.Report.Dir, "node.log"),
			RPCTimeout:    cfg.RPC.Timeout,
			FunderAddress: cfg.RPC.FunderAddress,
		}},
		ws: &liveWorkspace{
			root:     cfg.Workspace.Root,
			credsDir: cfg.Workspace.CredentialsDir,
			keep:     cfg.Workspace.Keep,
		},
		sessions: sessionFunc(session.Run),
	}

	if cfg.Echo {
		r.echo = os.Stdout
	}

	r.registry = r.createStageHandlerRegistry()
	return r
}

// Execute runs the workflow to completion and always hands back a
// report, regardless of how much of the run survived
func (r *Runner) Execute(ctx context.Context, wf *Workflow) *Report {
	rep := &Report{
		Workflow:  wf.Name,
		Host:      osutil.Describe(),
		Started:   time.Now(),
		RunState:  RunInitializing,
		Artifacts: make(map[string]interface{}),
		Stages:    make([]StageResult, len(wf.Stages)),
	}
	for i, stage := range wf.Stages {
		rep.Stages[i] = StageResult{
			Name:   stage.Name,
			Kind:   stage.Kind,
			Policy: stage.Policy,
			State:  StagePending,
		}
	}

	logger.LogInfo("Starting workflow execution", map[string]interface{}{
		"workflow":   wf.Name,
		"stages":     len(wf.Stages),
		"needs_node": wf.NeedsNode,
	})

	defer func() {
		r.teardown(rep, wf.NeedsNode)
		rep.Finished = time.Now()
	}()

	if wf.NeedsNode {
		if err := r.setupNode(ctx); err != nil {
			r.failSetup(rep, err)
			return rep
		}
		r.nodeUp = true
	}

	if err := r.ws.Create(); err != nil {
		r.failSetup(rep, err)
		return rep
	}

	sc := NewContext(r.seedVariables(wf))

	rep.RunState = RunExecuting
	aborted := false
	for i := range wf.Stages {
		stage := wf.Stages[i]
		res := &rep.Stages[i]

		if aborted {
			res.State = StageSkipped
			continue
		}

		res.State = StageRunning
		logger.LogInfo(fmt.Sprintf("Executing stage %d/%d: %s", i+1, len(wf.Stages), stage.Name),
			map[string]interface{}{
				"kind":   stage.Kind,
				"policy": string(stage.Policy),
			})

		started := time.Now()
		outcome, err := r.runStage(ctx, stage, sc)
		res.Duration = time.Since(started)

		if outcome != nil {
			res.Captured = outcome.captured
			res.Notes = outcome.notes
		}

		if err != nil {
			res.State = StageFailed
			res.Failure = newFailure(stage.Name, err, res.Captured)

			logger.LogError(fmt.Sprintf("Stage failed: %s", stage.Name), err, map[string]interface{}{
				"kind":   string(res.Failure.Kind),
				"policy": string(stage.Policy),
			})

			if stage.Policy == PolicyHard {
				aborted = true
				rep.RunState = RunAborted
			}
			continue
		}

		if outcome != nil {
			for k, v := range outcome.artifacts {
				sc.Set(k, v)
				rep.Artifacts[k] = v
				logger.LogDebug("artifact captured", map[string]interface{}{
					"name":  k,
					"value": fmt.Sprintf("%v", v),
				})
			}
		}

		res.State = StagePassed
		logger.LogInfo(fmt.Sprintf("Completed stage %d/%d: %s", i+1, len(wf.Stages), stage.Name), nil)
	}

	if !aborted {
		rep.RunState = RunCompleted
	}

	logger.LogInfo("Workflow execution finished", map[string]interface{}{
		"workflow": wf.Name,
		"state":    string(rep.RunState),
	})

	return rep
}

// runStage dispatches one stage to its kind's handler
func (r *Runner) runStage(ctx context.Context, stage Stage, sc *Context) (*stageOutcome, error) {
	handler, found := r.registry[stage.Kind]
	if !found {
		return nil, fmt.Errorf("%w: '%s'", errors.ErrUnknownStageKind, stage.Kind)
	}
	return handler(ctx, stage, sc)
}

// setupNode starts the node and waits for it to answer RPC
func (r *Runner) setupNode(ctx context.Context) error {
	if err := r.node.Start(ctx); err != nil {
		return err
	}

	health := r.node.Probe(ctx, r.cfg.Node.ProbeRetries, r.cfg.Node.ProbeInterval)
	if health != node.HealthHealthy {
		return fmt.Errorf("%w: node did not become healthy (state %s)", errors.ErrNodeUnavailable, health)
	}

	return nil
}

// failSetup marks a run that never reached its first stage
func (r *Runner) failSetup(rep *Report, err error) {
	rep.SetupFailure = newFailure("setup", err, "")
	rep.RunState = RunAborted
	for i := range rep.Stages {
		rep.Stages[i].State = StageSkipped
	}

	logger.LogError("Run setup failed", err, nil)
}

// teardown stops the node and cleans the workspace, unconditionally
func (r *Runner) teardown(rep *Report, needsNode bool) {
	var firstErr error

	if needsNode {
		if err := r.node.Stop(); err != nil {
			firstErr = err
			logger.LogError("node shutdown failed", err, nil)
		}
	}

	if err := r.ws.Clean(); err != nil {
		if firstErr == nil {
			firstErr = err
		}
		logger.LogError("workspace cleanup failed", err, nil)
	}

	if firstErr != nil {
		rep.TeardownFailure = newFailure("teardown", firstErr, "")
	}

	r.nodeUp = false
}

// seedVariables builds the initial artifact store: config knobs first,
// then the workflow's own variables, then run-owned values the workflow
// cannot override
func (r *Runner) seedVariables(wf *Workflow) map[string]interface{} {
	vars := map[string]interface{}{
		"wallet_name":  r.cfg.CLI.WalletName,
		"key_password": r.cfg.CLI.KeyPassword,
		"hub_url":      r.cfg.CLI.HubURL,
		"funding_eth":  r.cfg.RPC.FundingETH,
	}

	for k, v := range wf.Variables {
		vars[k] = v
	}

	vars["workspace_root"] = r.ws.Root()
	vars["credentials_dir"] = r.ws.CredentialsDir()
	vars["node_url"] = r.nodeURL()
	vars["chain_id"] = r.cfg.Node.ChainID
	vars["timestamp"] = fmt.Sprintf("%d", time.Now().Unix())

	return vars
}

// nodeURL prefers the live handle's endpoint, falling back to the
// configured one for runs without a node
func (r *Runner) nodeURL() string {
	if r.nodeUp {
		return r.node.URL()
	}
	if r.cfg.RPC.URL != "" {
		return r.cfg.RPC.URL
	}
	return fmt.Sprintf("http://%s:%d", r.cfg.Node.Host, r.cfg.Node.Port)
}

// childEnv builds the environment for the CLI under test from scratch.
// Nothing global is mutated; each spawn gets its own copy.
func (r *Runner) childEnv() []string {
	url := r.nodeURL()

	env := []string{
		"HOME=" + os.Getenv("HOME"),
		"PATH=" + os.Getenv("PATH"),
		"TERM=xterm-256color",
		"ETH_RPC_URL=" + url,
		"ETH_OP_RPC_URL=" + url,
		"ETH_BASE_RPC_URL=" + url,
		"FARCASTER_HUB_URL=" + r.cfg.CLI.HubURL,
	}

	if r.cfg.CLI.PrivateKey != "" {
		env = append(env, "PRIVATE_KEY="+r.cfg.CLI.PrivateKey)
	}

	return env
}
