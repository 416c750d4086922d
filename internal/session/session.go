// Package session runs one child process on a pseudo-terminal and plays a
// scripted expect/send exchange against its output. The CLI under test
// switches to non-interactive prompting when stdin is not a terminal, so
// a plain pipe would exercise the wrong code paths.
package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/castorix/go-workflow-harness/internal/logger"
	"github.com/castorix/go-workflow-harness/internal/utils/errors"
)

const (
	defaultExpectTimeout = 30 * time.Second
	defaultSendDelay     = 100 * time.Millisecond
	defaultRows          = 40
	defaultCols          = 120
)

// Options configures a single session run
type Options struct {
	Command string
	Args    []string
	Dir     string
	Env     []string // nil inherits the parent environment

	Script Script

	// Timeout bounds the whole session; zero means no overall bound
	Timeout time.Duration
	// ExpectTimeout is the per-step default wait for a pattern
	ExpectTimeout time.Duration
	// SendDelay is the settle time between a match and the response write
	SendDelay time.Duration

	// Mirror receives every captured byte as it arrives (live diagnostics)
	Mirror io.Writer
}

// Run spawns the child and plays the script to completion. A nonzero exit
// code is reported in the Result, not as an error; errors are reserved
// for spawn failures, missed patterns and timeouts.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Command == "" {
		return Result{ExitCode: -1, State: StateSpawnFailed},
			fmt.Errorf("%w: no command given", errors.ErrInvalidArgument)
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: defaultRows, Cols: defaultCols})
	if err != nil {
		return Result{ExitCode: -1, State: StateSpawnFailed},
			fmt.Errorf("%w: %s: %s", errors.ErrSpawnFailure, opts.Command, err.Error())
	}
	defer ptmx.Close()

	logger.LogDebug("session spawned", map[string]interface{}{
		"command": opts.Command,
		"args":    strings.Join(opts.Args, " "),
		"pid":     cmd.Process.Pid,
	})

	run := &running{
		cmd:    cmd,
		ptmx:   ptmx,
		opts:   opts,
		chunks: make(chan []byte, 16),
		waitCh: make(chan error, 1),
		state:  StateSpawned,
	}

	// Pump PTY output. A read error here is the EOF signal: on Linux the
	// master returns EIO once the child side is gone.
	go func() {
		buf := make([]byte, 4096)
		for {
			n, readErr := ptmx.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				run.chunks <- data
			}
			if readErr != nil {
				close(run.chunks)
				return
			}
		}
	}()

	go func() {
		run.waitCh <- cmd.Wait()
	}()

	if opts.Timeout > 0 {
		overall := time.NewTimer(opts.Timeout)
		defer overall.Stop()
		run.deadline = overall.C
	}

	return run.play(ctx)
}

// running holds the moving parts of one in-flight session
type running struct {
	cmd      *exec.Cmd
	ptmx     *os.File
	opts     Options
	chunks   chan []byte
	waitCh   chan error
	deadline <-chan time.Time

	captured  bytes.Buffer
	searchPos int // captured bytes before this offset are already matched
	eof       bool
	state     State
}

// play walks the script, drains the stream and reaps the child
func (r *running) play(ctx context.Context) (Result, error) {
	for _, step := range r.opts.Script {
		r.state = StateAwaitingPattern

		if err := r.await(ctx, step); err != nil {
			r.abort()
			return r.result(-1), err
		}

		r.state = StateSending
		r.settle()

		if _, err := r.ptmx.Write([]byte(step.Send + "\r")); err != nil {
			r.abort()
			return r.result(-1), fmt.Errorf("%w: writing response: %s",
				errors.ErrPatternMismatch, err.Error())
		}
	}

	// Script exhausted: read whatever remains, then collect the exit status
	if err := r.drain(ctx); err != nil {
		r.abort()
		return r.result(-1), err
	}

	// The stream is closed, so the child is exiting; bound the reap anyway
	reapTimer := time.NewTimer(defaultExpectTimeout)
	defer reapTimer.Stop()

	select {
	case waitErr := <-r.waitCh:
		r.state = StateCompleted
		return r.result(exitCode(waitErr)), nil
	case <-r.deadline:
	case <-reapTimer.C:
	case <-ctx.Done():
	}

	r.abort()
	r.state = StateTimedOut
	return r.result(-1), fmt.Errorf("%w: child did not exit after closing its stream",
		errors.ErrTimeoutFailure)
}

// await blocks until the step's pattern shows up in the captured stream
func (r *running) await(ctx context.Context, step Exchange) error {
	stepTimeout := step.Timeout
	if stepTimeout <= 0 {
		stepTimeout = r.opts.ExpectTimeout
	}
	if stepTimeout <= 0 {
		stepTimeout = defaultExpectTimeout
	}

	stepTimer := time.NewTimer(stepTimeout)
	defer stepTimer.Stop()

	for {
		if r.matched(step.Expect) {
			return nil
		}

		if r.eof {
			return fmt.Errorf("%w: %q (process closed its stream)",
				errors.ErrPatternMismatch, step.Expect)
		}

		select {
		case data, ok := <-r.chunks:
			r.consume(data, ok)

		case <-stepTimer.C:
			r.state = StateTimedOut
			return fmt.Errorf("%w: pattern %q not seen within %s",
				errors.ErrTimeoutFailure, step.Expect, stepTimeout)

		case <-r.deadline:
			r.state = StateTimedOut
			return fmt.Errorf("%w: session exceeded %s",
				errors.ErrTimeoutFailure, r.opts.Timeout)

		case <-ctx.Done():
			r.state = StateTimedOut
			return fmt.Errorf("%w: %s", errors.ErrTimeoutFailure, ctx.Err().Error())
		}
	}
}

// drain consumes the stream to EOF once the script is done
func (r *running) drain(ctx context.Context) error {
	for !r.eof {
		select {
		case data, ok := <-r.chunks:
			r.consume(data, ok)

		case <-r.deadline:
			r.state = StateTimedOut
			return fmt.Errorf("%w: session exceeded %s",
				errors.ErrTimeoutFailure, r.opts.Timeout)

		case <-ctx.Done():
			r.state = StateTimedOut
			return fmt.Errorf("%w: %s", errors.ErrTimeoutFailure, ctx.Err().Error())
		}
	}
	return nil
}

// matched reports whether the pattern occurs at or after the search
// position, advancing the position past the match so a repeated pattern
// (two password prompts) needs fresh output each time
func (r *running) matched(pattern string) bool {
	if pattern == "" {
		return true
	}

	window := r.captured.String()[r.searchPos:]
	idx := strings.Index(window, pattern)
	if idx < 0 {
		return false
	}

	r.searchPos += idx + len(pattern)
	return true
}

// consume appends a chunk to the capture buffer and mirrors it
func (r *running) consume(data []byte, ok bool) {
	if !ok {
		r.eof = true
		return
	}

	r.captured.Write(data)
	if r.opts.Mirror != nil {
		r.opts.Mirror.Write(data)
	}
}

// settle waits briefly before answering a prompt so the child is really
// blocked in its read when the response arrives
func (r *running) settle() {
	delay := r.opts.SendDelay
	if delay <= 0 {
		delay = defaultSendDelay
	}
	time.Sleep(delay)
}

// abort force-kills the child and reaps it. pty start puts the child in
// its own session, so the negative pid reaches the whole process group.
func (r *running) abort() {
	if r.cmd.Process != nil {
		_ = syscall.Kill(-r.cmd.Process.Pid, syscall.SIGKILL)
	}

	// Reap so nothing is left behind, and let the pump goroutine finish
	for range r.chunks {
	}
	<-r.waitCh
	r.eof = true
}

// result snapshots the session outcome
func (r *running) result(code int) Result {
	return Result{
		ExitCode: code,
		Captured: r.captured.String(),
		State:    r.state,
	}
}

// exitCode maps a Wait error to the child's exit code
func exitCode(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
