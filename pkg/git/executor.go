package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ExecOptions are per-invocation settings for a CommandExecutor.
type ExecOptions struct {
	Dir string
	// Env is appended to the process environment.
	Env []string
}

// ExecResult is what a finished command produced. A non-zero ExitCode is a
// result, not an error.
type ExecResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// CommandExecutor starts external commands. Run returns an error only when
// the command could not run to completion (missing binary, cancelled ctx).
type CommandExecutor interface {
	Run(ctx context.Context, name string, args []string, opts ExecOptions) (*ExecResult, error)
}

// OSExecutor runs commands on the host.
type OSExecutor struct{}

func (OSExecutor) Run(ctx context.Context, name string, args []string, opts ExecOptions) (*ExecResult, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	err := cmd.Run()
	res := &ExecResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}
}
