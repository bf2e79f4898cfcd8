package processor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// Executor runs a command payload and returns its captured output. A
// non-nil error means status=error for the result; it must describe what
// went wrong in text, since it travels back to the client verbatim.
type Executor interface {
	Execute(ctx context.Context, code string) (output string, err error)
}

// ShellExecutor runs payloads through a shell with stdout and stderr
// captured into a single stream, in submission order.
type ShellExecutor struct {
	// Shell defaults to /bin/sh.
	Shell string
	// Workdir is the working directory for each command; typically the
	// synced workspace root.
	Workdir string
	// Timeout bounds a single execution. Defaults to 60s.
	Timeout time.Duration
}

// Execute runs code via the shell. A timeout or non-zero exit becomes an
// error result with whatever output was produced, never a loop failure.
func (e *ShellExecutor) Execute(ctx context.Context, code string) (string, error) {
	shell := e.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, shell, "-c", code)
	if e.Workdir != "" {
		cmd.Dir = e.Workdir
	}

	// Own process group so a timeout kills the whole tree, not just the
	// shell. Cancel signals the group; WaitDelay stops Wait from
	// blocking on backgrounded children still holding the output pipe.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 2 * time.Second

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return out.String(), fmt.Errorf("command timed out after %s: %w", timeout, context.DeadlineExceeded)
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return out.String(), fmt.Errorf("command exited with code %d", exitErr.ExitCode())
		}
		return out.String(), fmt.Errorf("command failed to start: %v", err)
	}
	return out.String(), nil
}
