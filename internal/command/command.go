// Package command runs external tools for the stage bindings.
//
// Every binding (yt-dlp, ffmpeg, ffprobe, rclone) goes through the Executor
// interface so tests can substitute a stub and assert the exact argument
// vector without spawning processes.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// tailLines is how many trailing output lines are kept for error messages.
const tailLines = 20

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// ExitError reports a non-zero exit together with the tail of the tool's output.
type ExitError struct {
	Binary   string
	ExitCode int
	Tail     []string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Binary, e.ExitCode)
	if len(e.Tail) > 0 {
		msg += ": " + strings.Join(e.Tail, " | ")
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// Default returns the process-spawning executor.
func Default() Executor {
	return processExecutor{}
}

type processExecutor struct{}

const (
	// maxLineBytes bounds one forwarded line; longer output is split.
	maxLineBytes = 1 << 20
	// pipeGrace is how long Wait keeps reading after the tool exits or is
	// killed before closing pipes still held by its descendants.
	pipeGrace = 5 * time.Second
)

func (processExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Kill the whole group so helpers spawned by the tool (aria2c,
		// ffmpeg under yt-dlp) release the output pipes too.
		if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = pipeGrace

	tail := &ring{limit: tailLines}
	var mu sync.Mutex
	emit := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		tail.add(line)
		if onOutput != nil {
			onOutput(line)
		}
	}
	stdout := &lineWriter{emit: emit}
	stderr := &lineWriter{emit: emit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", binary, err)
	}
	err := cmd.Wait()
	stdout.flush()
	stderr.flush()

	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s interrupted: %w", binary, ctxErr)
	}
	if errors.Is(err, exec.ErrWaitDelay) {
		// The tool exited cleanly; only a leftover descendant kept the pipes.
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Binary: binary, ExitCode: exitErr.ExitCode(), Tail: tail.lines(), Err: err}
	}
	return fmt.Errorf("wait %s: %w", binary, err)
}

// lineWriter splits a byte stream into lines for emit. It never fails, so
// the copy goroutine owned by exec keeps draining the pipe.
type lineWriter struct {
	emit    func(string)
	pending []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		idx := bytes.IndexByte(p, '\n')
		if idx < 0 {
			w.pending = append(w.pending, p...)
			for len(w.pending) >= maxLineBytes {
				w.emit(string(w.pending[:maxLineBytes]))
				w.pending = w.pending[maxLineBytes:]
			}
			break
		}
		w.pending = append(w.pending, p[:idx]...)
		p = p[idx+1:]
		w.emitPending()
	}
	return n, nil
}

func (w *lineWriter) emitPending() {
	line := strings.TrimSuffix(string(w.pending), "\r")
	w.pending = w.pending[:0]
	for len(line) > maxLineBytes {
		w.emit(line[:maxLineBytes])
		line = line[maxLineBytes:]
	}
	w.emit(line)
}

func (w *lineWriter) flush() {
	if len(w.pending) > 0 {
		w.emitPending()
	}
}

type ring struct {
	mu    sync.Mutex
	limit int
	buf   []string
}

func (r *ring) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, line)
	if len(r.buf) > r.limit {
		r.buf = r.buf[len(r.buf)-r.limit:]
	}
}

func (r *ring) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.buf...)
}

// Command is a tool invocation: a binary plus its argument vector. Arguments
// are never joined into a shell string except for display.
type Command struct {
	Binary string
	Args   []string
}

// Run executes the command through exec.
func (c Command) Run(ctx context.Context, exec Executor, onOutput func(string)) error {
	return exec.Run(ctx, c.Binary, c.Args, onOutput)
}

// String renders the command as a shell-quoted line for logs.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Binary))
	for _, arg := range c.Args {
		parts = append(parts, quote(arg))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return !(r == '-' || r == '_' || r == '.' || r == '/' || r == ':' || r == '=' || r == ',' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
