// Package vcs provides the git operations and script execution the
// deploy stage needs, scoped to a single working tree.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Driver exposes the git operations used by the deploy sequence.
// Implementations are scoped to one working tree.
type Driver interface {
	// IsClean reports whether the working tree has no uncommitted changes.
	IsClean(ctx context.Context) (bool, error)

	// CurrentBranch returns the checked-out branch name.
	CurrentBranch(ctx context.Context) (string, error)

	// CreateBranch creates and checks out a new branch.
	CreateBranch(ctx context.Context, name string) error

	// Checkout switches to an existing branch.
	Checkout(ctx context.Context, name string) error

	// DeleteBranch removes a local branch. force allows deleting
	// unmerged branches.
	DeleteBranch(ctx context.Context, name string, force bool) error

	// DiscardChanges restores tracked files to HEAD and removes
	// untracked files and directories, leaving the tree clean.
	DiscardChanges(ctx context.Context) error

	// AddAll stages every change in the working tree.
	AddAll(ctx context.Context) error

	// Commit records the staged changes.
	Commit(ctx context.Context, message string) error

	// Merge merges branch into the current branch with --no-ff.
	Merge(ctx context.Context, branch string) error

	// MergeAbort aborts an in-progress merge.
	MergeAbort(ctx context.Context) error
}

// GitDriver implements Driver by shelling out to git.
type GitDriver struct {
	repoPath string
	timeout  time.Duration
}

// Compile-time interface check.
var _ Driver = (*GitDriver)(nil)

// GitOption is a functional option for GitDriver.
type GitOption func(*GitDriver)

// WithCommandTimeout sets the per-command timeout.
func WithCommandTimeout(d time.Duration) GitOption {
	return func(g *GitDriver) { g.timeout = d }
}

// NewGitDriver creates a GitDriver scoped to repoPath.
func NewGitDriver(repoPath string, opts ...GitOption) *GitDriver {
	g := &GitDriver{
		repoPath: repoPath,
		timeout:  300 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RepoPath returns the working tree the driver operates on.
func (g *GitDriver) RepoPath() string { return g.repoPath }

// IsClean reports whether `git status --porcelain` is empty.
func (g *GitDriver) IsClean(ctx context.Context) (bool, error) {
	out, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "", nil
}

// CurrentBranch returns the checked-out branch name.
func (g *GitDriver) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CreateBranch creates and checks out a new branch.
func (g *GitDriver) CreateBranch(ctx context.Context, name string) error {
	_, err := g.run(ctx, "checkout", "-b", name)
	return err
}

// Checkout switches to an existing branch.
func (g *GitDriver) Checkout(ctx context.Context, name string) error {
	_, err := g.run(ctx, "checkout", name)
	return err
}

// DeleteBranch removes a local branch.
func (g *GitDriver) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := g.run(ctx, "branch", flag, name)
	return err
}

// DiscardChanges restores tracked files to HEAD and removes untracked
// files and directories.
func (g *GitDriver) DiscardChanges(ctx context.Context) error {
	if _, err := g.run(ctx, "checkout", "--", "."); err != nil {
		return err
	}
	_, err := g.run(ctx, "clean", "-fd")
	return err
}

// AddAll stages every change in the working tree.
func (g *GitDriver) AddAll(ctx context.Context) error {
	_, err := g.run(ctx, "add", "-A")
	return err
}

// Commit records the staged changes.
func (g *GitDriver) Commit(ctx context.Context, message string) error {
	_, err := g.run(ctx, "commit", "-m", message)
	return err
}

// Merge merges branch into the current branch with --no-ff.
func (g *GitDriver) Merge(ctx context.Context, branch string) error {
	_, err := g.run(ctx, "merge", "--no-ff", branch, "-m", fmt.Sprintf("Merge branch '%s'", branch))
	return err
}

// MergeAbort aborts an in-progress merge.
func (g *GitDriver) MergeAbort(ctx context.Context) error {
	_, err := g.run(ctx, "merge", "--abort")
	return err
}

func (g *GitDriver) run(ctx context.Context, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "git", args...)
	cmd.Dir = g.repoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("git %s: timed out after %s", args[0], g.timeout)
		}
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
