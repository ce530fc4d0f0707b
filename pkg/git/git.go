// Package git drives the git CLI for the repository actions.
package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
)

// PushOptions configures CommitAndPush.
type PushOptions struct {
	Branch        string
	CommitMessage string
	AuthorName    string
	AuthorEmail   string
	AuthHeader    string // full Authorization header value, e.g. "Basic ..."
}

// Runner runs git commands through a CommandExecutor.
type Runner struct {
	exec   CommandExecutor
	logger logr.Logger
}

// NewRunner creates a Runner. A nil executor uses os/exec.
func NewRunner(executor CommandExecutor, logger logr.Logger) *Runner {
	if executor == nil {
		executor = OSExecutor{}
	}
	return &Runner{exec: executor, logger: logger}
}

// authArgs passes credentials for a single invocation so they are never
// written to .git/config.
func authArgs(authHeader string) []string {
	if authHeader == "" {
		return nil
	}
	return []string{"-c", "http.extraHeader=Authorization: " + authHeader}
}

func (r *Runner) git(ctx context.Context, dir string, args ...string) (string, error) {
	res, err := r.exec.Run(ctx, "git", args, ExecOptions{
		Dir: dir,
		Env: []string{"GIT_TERMINAL_PROMPT=0"},
	})
	if err != nil {
		return "", fmt.Errorf("running git %s: %w", firstNonFlag(args), err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("git %s failed (exit %d): %s", firstNonFlag(args), res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}

// firstNonFlag names the subcommand in errors without leaking -c values.
func firstNonFlag(args []string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == "-c" {
			i++
			continue
		}
		if !strings.HasPrefix(args[i], "-") {
			return args[i]
		}
	}
	return ""
}

// Clone clones a single branch of remoteURL into dir.
func (r *Runner) Clone(ctx context.Context, remoteURL, branch, dir, authHeader string) error {
	args := authArgs(authHeader)
	args = append(args, "clone", "--single-branch", "--branch", branch, remoteURL, dir)
	if _, err := r.git(ctx, "", args...); err != nil {
		return err
	}
	r.logger.Info("cloned repository", "remote", remoteURL, "branch", branch, "dir", dir)
	return nil
}

// RemoteURL returns the URL of the origin remote.
func (r *Runner) RemoteURL(ctx context.Context, dir string) (string, error) {
	return r.git(ctx, dir, "remote", "get-url", "origin")
}

// CommitAndPush stages everything in dir, commits on a new branch and pushes
// it to origin.
func (r *Runner) CommitAndPush(ctx context.Context, dir string, opts PushOptions) error {
	if _, err := r.git(ctx, dir, "checkout", "-B", opts.Branch); err != nil {
		return err
	}
	if _, err := r.git(ctx, dir, "add", "--all"); err != nil {
		return err
	}

	author := fmt.Sprintf("%s <%s>", opts.AuthorName, opts.AuthorEmail)
	if _, err := r.git(ctx, dir,
		"-c", "user.name="+opts.AuthorName,
		"-c", "user.email="+opts.AuthorEmail,
		"commit", "--allow-empty", "--author", author, "-m", opts.CommitMessage,
	); err != nil {
		return err
	}

	args := authArgs(opts.AuthHeader)
	args = append(args, "push", "origin", opts.Branch)
	if _, err := r.git(ctx, dir, args...); err != nil {
		return err
	}
	r.logger.Info("pushed branch", "branch", opts.Branch, "dir", dir)
	return nil
}
