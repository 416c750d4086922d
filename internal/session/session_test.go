package session

import (
	"bytes"
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castorix/go-workflow-harness/internal/extract"
	"github.com/castorix/go-workflow-harness/internal/utils/errors"
)

// shell runs a script through sh with fast test-friendly timings
func shell(script string, exchanges Script, timeout time.Duration) Options {
	return Options{
		Command:       "sh",
		Args:          []string{"-c", script},
		Script:        exchanges,
		Timeout:       timeout,
		ExpectTimeout: 5 * time.Second,
		SendDelay:     10 * time.Millisecond,
	}
}

func TestRunScriptedExchange(t *testing.T) {
	opts := shell(
		`printf 'Enter a name: '; read name; printf 'hello %s\n' "$name"; `+
			`printf 'Enter password: '; read pw; echo 'stored ✅'`,
		Script{
			{Expect: "Enter a name:", Send: "alice"},
			{Expect: "password:", Send: "secret"},
		},
		10*time.Second,
	)

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Captured, "hello alice")
	assert.Contains(t, result.Captured, "stored ✅")
}

func TestRunRepeatedPattern(t *testing.T) {
	opts := shell(
		`printf 'password: '; read a; printf 'password: '; read b; `+
			`[ "$a" = "first" ] && [ "$b" = "second" ] && echo MATCHED`,
		Script{
			{Expect: "password:", Send: "first"},
			{Expect: "password:", Send: "second"},
		},
		10*time.Second,
	)

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)

	// Each expect consumed fresh output, so the answers landed in order
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Captured, "MATCHED")
}

func TestRunTimeoutKillsChild(t *testing.T) {
	opts := shell(
		`echo "pid=$$"; sleep 60`,
		Script{{Expect: "never-printed"}},
		0,
	)
	opts.ExpectTimeout = 300 * time.Millisecond

	start := time.Now()
	result, err := Run(context.Background(), opts)

	assert.ErrorIs(t, err, errors.ErrTimeoutFailure)
	assert.Equal(t, StateTimedOut, result.State)
	assert.Less(t, time.Since(start), 10*time.Second, "must not wait for the sleep")

	// The child must be gone: Run reaps it before returning, so a signal
	// probe on its pid has nothing to hit
	pid, found := extract.FindInt(result.Captured, "pid=")
	require.True(t, found, "captured output should carry the shell pid")
	assert.ErrorIs(t, syscall.Kill(int(pid), syscall.Signal(0)), syscall.ESRCH)
}

func TestRunOverallDeadline(t *testing.T) {
	opts := shell(
		`echo waiting; sleep 60`,
		nil,
		300*time.Millisecond,
	)

	result, err := Run(context.Background(), opts)

	assert.ErrorIs(t, err, errors.ErrTimeoutFailure)
	assert.Equal(t, StateTimedOut, result.State)
	assert.Contains(t, result.Captured, "waiting")
}

func TestRunPatternMismatchOnEOF(t *testing.T) {
	opts := shell(
		`echo 'no prompts here'`,
		Script{{Expect: "Enter a name:"}},
		10*time.Second,
	)

	result, err := Run(context.Background(), opts)

	assert.ErrorIs(t, err, errors.ErrPatternMismatch)
	assert.Equal(t, StateAwaitingPattern, result.State)
	assert.Contains(t, result.Captured, "no prompts here")
}

func TestRunSpawnFailure(t *testing.T) {
	opts := Options{
		Command: "/nonexistent/binary-for-harness-test",
		Timeout: time.Second,
	}

	result, err := Run(context.Background(), opts)

	assert.ErrorIs(t, err, errors.ErrSpawnFailure)
	assert.Equal(t, StateSpawnFailed, result.State)
	assert.Equal(t, -1, result.ExitCode)
}

func TestRunReportsNonZeroExit(t *testing.T) {
	opts := shell(`echo boom; exit 3`, nil, 10*time.Second)

	result, err := Run(context.Background(), opts)
	require.NoError(t, err, "a nonzero exit is a result, not an error")

	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, result.Captured, "boom")
}

func TestRunMirrorsCapturedStream(t *testing.T) {
	var mirror bytes.Buffer

	opts := shell(`echo mirrored-text`, nil, 10*time.Second)
	opts.Mirror = &mirror

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Contains(t, result.Captured, "mirrored-text")
	assert.Equal(t, result.Captured, mirror.String())
}

func TestRunContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	opts := shell(`sleep 60`, Script{{Expect: "nothing"}}, 0)

	result, err := Run(ctx, opts)

	assert.ErrorIs(t, err, errors.ErrTimeoutFailure)
	assert.Equal(t, StateTimedOut, result.State)
}
