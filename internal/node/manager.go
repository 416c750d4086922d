// Package node manages the local blockchain test node the workflows run
// against: spawning it, probing it over JSON-RPC, funding test wallets
// from its pre-funded account and shutting it down exactly once.
package node

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/castorix/go-workflow-harness/internal/logger"
	"github.com/castorix/go-workflow-harness/internal/utils/errors"
	"github.com/castorix/go-workflow-harness/internal/utils/fsutil"
	"github.com/castorix/go-workflow-harness/internal/utils/rpcutil"
)

// Health describes what is known about the node
type Health string

const (
	HealthStarting    Health = "starting"
	HealthHealthy     Health = "healthy"
	HealthUnreachable Health = "unreachable"
	HealthStopped     Health = "stopped"
)

const stopGrace = 5 * time.Second

// Config carries everything needed to launch the node
type Config struct {
	Binary     string
	Host       string
	Port       int
	ChainID    int
	GasLimit   uint64
	GasPrice   uint64
	Accounts   int
	BalanceETH int
	BlockTime  int
	Silent     bool

	// LogPath receives the node's own output for post-mortem reading
	LogPath string

	RPCTimeout    time.Duration
	FunderAddress string
}

// Handle is a running (or stopped) node instance
type Handle struct {
	cfg    Config
	cmd    *exec.Cmd
	url    string
	client *rpcutil.Client

	logMu   sync.Mutex
	logFile *os.File
	pumps   errgroup.Group

	health   Health
	stopOnce sync.Once
	stopErr  error
}

// Start launches the node process and begins streaming its output to the
// configured log path. The node is not yet known to be healthy when
// Start returns; call Probe for that.
func Start(ctx context.Context, cfg Config) (*Handle, error) {
	url := fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)

	client, err := rpcutil.NewClient(url, cfg.RPCTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrNodeUnavailable, err.Error())
	}

	h := &Handle{
		cfg:    cfg,
		url:    url,
		client: client,
		health: HealthStarting,
	}

	if cfg.LogPath != "" {
		if err := fsutil.CreateDirIfNotExists(fsutil.GetDir(cfg.LogPath)); err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrNodeUnavailable, err.Error())
		}
		h.logFile, err = os.Create(cfg.LogPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrNodeUnavailable, err.Error())
		}
	}

	cmd := exec.CommandContext(ctx, cfg.Binary, buildArgs(cfg)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrNodeUnavailable, err.Error())
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrNodeUnavailable, err.Error())
	}

	if err := cmd.Start(); err != nil {
		if h.logFile != nil {
			h.logFile.Close()
		}
		return nil, fmt.Errorf("%w: starting %s: %s", errors.ErrNodeUnavailable, cfg.Binary, err.Error())
	}
	h.cmd = cmd

	h.pumps.Go(func() error { return h.pump(stdout) })
	h.pumps.Go(func() error { return h.pump(stderr) })

	logger.LogInfo("test node started", map[string]interface{}{
		"binary": cfg.Binary,
		"url":    url,
		"pid":    cmd.Process.Pid,
	})

	return h, nil
}

// buildArgs assembles the node's command line from the config
func buildArgs(cfg Config) []string {
	args := []string{
		"--host", cfg.Host,
		"--port", strconv.Itoa(cfg.Port),
		"--chain-id", strconv.Itoa(cfg.ChainID),
		"--gas-limit", strconv.FormatUint(cfg.GasLimit, 10),
		"--gas-price", strconv.FormatUint(cfg.GasPrice, 10),
		"--accounts", strconv.Itoa(cfg.Accounts),
		"--balance", strconv.Itoa(cfg.BalanceETH),
		"--block-time", strconv.Itoa(cfg.BlockTime),
	}
	if cfg.Silent {
		args = append(args, "--silent")
	}
	return args
}

// pump copies one output stream of the node to the log file line by line
func (h *Handle) pump(stream io.Reader) error {
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if strings.Contains(line, "Listening on") {
			logger.LogDebug("node reported listening", map[string]interface{}{
				"line": line,
			})
		}

		if h.logFile != nil {
			h.logMu.Lock()
			fmt.Fprintln(h.logFile, line)
			h.logMu.Unlock()
		}
	}

	return scanner.Err()
}

// URL returns the node's JSON-RPC endpoint
func (h *Handle) URL() string {
	return h.url
}

// Health returns the last observed health state
func (h *Handle) Health() Health {
	return h.health
}

// ChainID returns the chain id the node was launched with
func (h *Handle) ChainID() int {
	return h.cfg.ChainID
}

// Probe polls the node until it answers RPC and records the outcome
func (h *Handle) Probe(ctx context.Context, retries int, interval time.Duration) Health {
	h.health = await(ctx, h.client, h.url, retries, interval)
	return h.health
}

// ProbeEndpoint checks whether any node answers JSON-RPC at url, without
// managing a process. The standalone probe command uses it against nodes
// the harness did not start.
func ProbeEndpoint(ctx context.Context, url string, timeout time.Duration, retries int, interval time.Duration) Health {
	client, err := rpcutil.NewClient(url, timeout)
	if err != nil {
		return HealthUnreachable
	}
	return await(ctx, client, url, retries, interval)
}

// await polls with eth_blockNumber until the endpoint answers or the
// attempts run out. Each attempt is preceded by one interval wait, which
// doubles as the startup grace period, so an exhausted probe takes about
// retries times interval.
func await(ctx context.Context, client *rpcutil.Client, url string, retries int, interval time.Duration) Health {
	if retries < 1 {
		retries = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= retries; attempt++ {
		select {
		case <-ctx.Done():
			return HealthUnreachable
		case <-ticker.C:
		}

		height, err := client.BlockNumber(ctx)
		if err == nil {
			logger.LogInfo("test node healthy", map[string]interface{}{
				"url":     url,
				"height":  height,
				"attempt": attempt,
			})
			return HealthHealthy
		}

		logger.LogDebug("node probe attempt failed", map[string]interface{}{
			"attempt": attempt,
			"of":      retries,
			"error":   err.Error(),
		})
	}

	return HealthUnreachable
}

// Fund transfers whole ETH from the node's pre-funded account to a test
// wallet and returns the transaction hash
func (h *Handle) Fund(ctx context.Context, to string, eth int64) (string, error) {
	if h.health == HealthStopped {
		return "", fmt.Errorf("%w: cannot fund %s", errors.ErrNodeStopped, to)
	}
	if to == "" {
		return "", fmt.Errorf("%w: empty recipient", errors.ErrFundingFailed)
	}

	txHash, err := h.client.SendTransaction(ctx, h.cfg.FunderAddress, to, rpcutil.EthToWei(eth))
	if err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrFundingFailed, err.Error())
	}

	logger.LogInfo("test wallet funded", map[string]interface{}{
		"to":  to,
		"eth": eth,
		"tx":  txHash,
	})

	return txHash, nil
}

// Stop shuts the node down: SIGTERM to its process group, a bounded
// grace, then SIGKILL. Stop runs its shutdown exactly once per Start;
// later calls return the first outcome.
func (h *Handle) Stop() error {
	h.stopOnce.Do(func() {
		defer func() {
			if h.logFile != nil {
				h.logFile.Close()
			}
			h.health = HealthStopped
		}()

		if h.cmd == nil || h.cmd.Process == nil {
			return
		}

		pid := h.cmd.Process.Pid

		done := make(chan error, 1)
		go func() {
			// Output pipes must be drained before Wait
			_ = h.pumps.Wait()
			done <- h.cmd.Wait()
		}()

		_ = syscall.Kill(-pid, syscall.SIGTERM)

		select {
		case <-done:
		case <-time.After(stopGrace):
			_ = syscall.Kill(-pid, syscall.SIGKILL)
			<-done
			h.stopErr = fmt.Errorf("%w: ignored SIGTERM for %s, killed process group %d",
				errors.ErrNodeShutdown, stopGrace, pid)
		}

		logger.LogInfo("test node stopped", map[string]interface{}{
			"pid": pid,
		})
	})

	return h.stopErr
}
