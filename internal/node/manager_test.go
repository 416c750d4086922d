package node

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castorix/go-workflow-harness/internal/utils/errors"
	"github.com/castorix/go-workflow-harness/internal/utils/rpcutil"
)

// fakeNode writes a script that announces itself like the real node and
// then blocks, so Stop has something alive to terminate.
func fakeNode(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fakenode")
	script := "#!/bin/sh\necho \"Listening on 127.0.0.1:0\"\nexec sleep 60\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	return path
}

func testHandle(t *testing.T, endpoint, funder string) *Handle {
	t.Helper()

	client, err := rpcutil.NewClient(endpoint, 2*time.Second)
	require.NoError(t, err)

	return &Handle{
		cfg:    Config{FunderAddress: funder},
		url:    endpoint,
		client: client,
		health: HealthStarting,
	}
}

func TestBuildArgs(t *testing.T) {
	cfg := Config{
		Host:       "127.0.0.1",
		Port:       8545,
		ChainID:    31337,
		GasLimit:   30000000,
		GasPrice:   1000000000,
		Accounts:   10,
		BalanceETH: 10000,
		BlockTime:  1,
	}

	base := []string{
		"--host", "127.0.0.1",
		"--port", "8545",
		"--chain-id", "31337",
		"--gas-limit", "30000000",
		"--gas-price", "1000000000",
		"--accounts", "10",
		"--balance", "10000",
		"--block-time", "1",
	}
	assert.Equal(t, base, buildArgs(cfg))

	cfg.Silent = true
	assert.Equal(t, append(base, "--silent"), buildArgs(cfg))
}

func TestProbeExhaustsRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h := testHandle(t, srv.URL, "")

	interval := 30 * time.Millisecond
	start := time.Now()
	got := h.Probe(context.Background(), 3, interval)
	elapsed := time.Since(start)

	assert.Equal(t, HealthUnreachable, got)
	assert.Equal(t, HealthUnreachable, h.Health())
	assert.EqualValues(t, 3, calls.Load())
	assert.GreaterOrEqual(t, elapsed, 3*interval-10*time.Millisecond)
}

func TestProbeSucceedsOnFirstAnswer(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": 1, "result": "0x2a",
		})
	}))
	defer srv.Close()

	h := testHandle(t, srv.URL, "")

	got := h.Probe(context.Background(), 5, 20*time.Millisecond)

	assert.Equal(t, HealthHealthy, got)
	assert.EqualValues(t, 1, calls.Load())
}

func TestProbeRecoversMidway(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": 1, "result": "0x1",
		})
	}))
	defer srv.Close()

	h := testHandle(t, srv.URL, "")

	got := h.Probe(context.Background(), 5, 10*time.Millisecond)

	assert.Equal(t, HealthHealthy, got)
	assert.EqualValues(t, 3, calls.Load())
}

func TestProbeHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h := testHandle(t, srv.URL, "")

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	start := time.Now()
	got := h.Probe(ctx, 100, 20*time.Millisecond)

	assert.Equal(t, HealthUnreachable, got)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestProbeEndpointWithoutHandle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": 1, "result": "0x10",
		})
	}))
	defer srv.Close()

	got := ProbeEndpoint(context.Background(), srv.URL, time.Second, 3, 10*time.Millisecond)
	assert.Equal(t, HealthHealthy, got)

	got = ProbeEndpoint(context.Background(), "http://127.0.0.1:1", time.Second, 2, 10*time.Millisecond)
	assert.Equal(t, HealthUnreachable, got)
}

func TestFundSendsFromConfiguredFunder(t *testing.T) {
	funder := "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	recipient := "0x8ba1f109551bD432803012645Ac136ddd64DBA72"

	var body struct {
		Method string `json:"method"`
		Params []struct {
			From  string `json:"from"`
			To    string `json:"to"`
			Value string `json:"value"`
		} `json:"params"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": 1, "result": "0xdeadbeef",
		})
	}))
	defer srv.Close()

	h := testHandle(t, srv.URL, funder)

	txHash, err := h.Fund(context.Background(), recipient, 10)
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", txHash)

	require.Equal(t, "eth_sendTransaction", body.Method)
	require.Len(t, body.Params, 1)
	assert.Equal(t, funder, body.Params[0].From)
	assert.Equal(t, recipient, body.Params[0].To)
	assert.Equal(t, "0x8ac7230489e80000", body.Params[0].Value)
}

func TestFundRejectsEmptyRecipient(t *testing.T) {
	h := testHandle(t, "http://127.0.0.1:1", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	_, err := h.Fund(context.Background(), "", 1)
	assert.ErrorIs(t, err, errors.ErrFundingFailed)
}

func TestFundAfterStopIsRefused(t *testing.T) {
	h, err := Start(context.Background(), Config{
		Binary:     fakeNode(t),
		Host:       "127.0.0.1",
		Port:       8545,
		RPCTimeout: time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, h.Stop())

	_, err = h.Fund(context.Background(), "0x8ba1f109551bD432803012645Ac136ddd64DBA72", 1)
	assert.ErrorIs(t, err, errors.ErrNodeStopped)
}

func TestStartStreamsNodeOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "node", "node.log")

	h, err := Start(context.Background(), Config{
		Binary:     fakeNode(t),
		Host:       "127.0.0.1",
		Port:       8545,
		ChainID:    31337,
		Accounts:   1,
		BalanceETH: 1,
		LogPath:    logPath,
		RPCTimeout: time.Second,
	})
	require.NoError(t, err)
	defer h.Stop()

	assert.Equal(t, HealthStarting, h.Health())
	assert.Equal(t, "http://127.0.0.1:8545", h.URL())

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(logPath)
		return err == nil && strings.Contains(string(data), "Listening on")
	}, 3*time.Second, 25*time.Millisecond)
}

func TestStopTerminatesProcessGroup(t *testing.T) {
	h, err := Start(context.Background(), Config{
		Binary:     fakeNode(t),
		Host:       "127.0.0.1",
		Port:       8545,
		RPCTimeout: time.Second,
	})
	require.NoError(t, err)

	pid := h.cmd.Process.Pid

	start := time.Now()
	require.NoError(t, h.Stop())

	assert.Less(t, time.Since(start), stopGrace)
	assert.Equal(t, HealthStopped, h.Health())

	err = syscall.Kill(pid, syscall.Signal(0))
	assert.ErrorIs(t, err, syscall.ESRCH)
}

func TestStopIsExactlyOnce(t *testing.T) {
	h, err := Start(context.Background(), Config{
		Binary:     fakeNode(t),
		Host:       "127.0.0.1",
		Port:       8545,
		RPCTimeout: time.Second,
	})
	require.NoError(t, err)

	require.NoError(t, h.Stop())
	require.NoError(t, h.Stop())
	assert.Equal(t, HealthStopped, h.Health())
}

func TestStartRejectsMissingBinary(t *testing.T) {
	_, err := Start(context.Background(), Config{
		Binary:     filepath.Join(t.TempDir(), "no-such-node"),
		Host:       "127.0.0.1",
		Port:       8545,
		RPCTimeout: time.Second,
	})
	assert.ErrorIs(t, err, errors.ErrNodeUnavailable)
}
