package vcs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// ScriptResult captures the outcome of a shell script run.
type ScriptResult struct {
	exitCode int
	output   string
	timedOut bool
}

// ExitCode returns the script's exit code (-1 if it never ran).
func (r ScriptResult) ExitCode() int { return r.exitCode }

// Output returns the combined stdout and stderr.
func (r ScriptResult) Output() string { return r.output }

// TimedOut returns true if the script was killed by its timeout.
func (r ScriptResult) TimedOut() bool { return r.timedOut }

// Succeeded returns true if the script ran to completion with exit 0.
func (r ScriptResult) Succeeded() bool {
	return r.exitCode == 0 && !r.timedOut
}

// ScriptRunner executes repository scripts (pipeline and deploy hooks)
// with a timeout, working from the repository root.
type ScriptRunner struct {
	repoPath string
}

// NewScriptRunner creates a ScriptRunner scoped to repoPath.
func NewScriptRunner(repoPath string) *ScriptRunner {
	return &ScriptRunner{repoPath: repoPath}
}

// Exists reports whether the script is present relative to the repo root.
func (s *ScriptRunner) Exists(script string) bool {
	_, err := os.Stat(filepath.Join(s.repoPath, script))
	return err == nil
}

// Run executes the script with the given timeout and returns its result.
// A missing script is reported through the returned error.
func (s *ScriptRunner) Run(ctx context.Context, script string, timeout time.Duration) (ScriptResult, error) {
	path := filepath.Join(s.repoPath, script)
	if _, err := os.Stat(path); err != nil {
		return ScriptResult{exitCode: -1}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "bash", path)
	cmd.Dir = s.repoPath

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	err := cmd.Run()
	result := ScriptResult{output: combined.String()}

	if runCtx.Err() == context.DeadlineExceeded {
		result.timedOut = true
		result.exitCode = -1
		return result, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.exitCode = exitErr.ExitCode()
			return result, nil
		}
		result.exitCode = -1
		return result, err
	}
	result.exitCode = 0
	return result, nil
}

// Tail returns the last n bytes of s, used to bound diagnostic output.
func Tail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
