package agents

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lostworld/plateau/domain/agent"
	"github.com/lostworld/plateau/domain/change"
	"github.com/lostworld/plateau/infrastructure/vcs"
)

// Deployer defaults.
const (
	DefaultPipelineScript  = "scripts/pipeline.sh"
	DefaultDeployScript    = "scripts/deploy.sh"
	DefaultPipelineTimeout = 10 * time.Minute
	DefaultDeployTimeout   = 10 * time.Minute
	DefaultOutputTail      = 2000
)

// Deployer applies an approved change set to the target repository
// through a transactional git sequence: snapshot, feature branch,
// apply, commit, pipeline check, merge, deploy hook. Any failure
// before the merge rolls the working tree back to the snapshot.
type Deployer struct {
	driver          vcs.Driver
	scripts         *vcs.ScriptRunner
	repoPath        string
	pipelineScript  string
	deployScript    string
	pipelineTimeout time.Duration
	deployTimeout   time.Duration
	outputTail      int
	logger          *slog.Logger
}

// DeployerOption is a functional option for Deployer.
type DeployerOption func(*Deployer)

// WithPipelineScript overrides the pipeline script path.
func WithPipelineScript(path string) DeployerOption {
	return func(d *Deployer) { d.pipelineScript = path }
}

// WithDeployScript overrides the deploy script path.
func WithDeployScript(path string) DeployerOption {
	return func(d *Deployer) { d.deployScript = path }
}

// WithPipelineTimeout overrides the pipeline script timeout.
func WithPipelineTimeout(t time.Duration) DeployerOption {
	return func(d *Deployer) { d.pipelineTimeout = t }
}

// WithDeployTimeout overrides the deploy script timeout.
func WithDeployTimeout(t time.Duration) DeployerOption {
	return func(d *Deployer) { d.deployTimeout = t }
}

// WithOutputTail overrides the diagnostic output cap in bytes.
func WithOutputTail(n int) DeployerOption {
	return func(d *Deployer) { d.outputTail = n }
}

// WithDeployerLogger sets the logger.
func WithDeployerLogger(logger *slog.Logger) DeployerOption {
	return func(d *Deployer) { d.logger = logger }
}

// NewDeployer creates the deploy agent for the given target repository.
func NewDeployer(driver vcs.Driver, scripts *vcs.ScriptRunner, repoPath string, opts ...DeployerOption) *Deployer {
	d := &Deployer{
		driver:          driver,
		scripts:         scripts,
		repoPath:        repoPath,
		pipelineScript:  DefaultPipelineScript,
		deployScript:    DefaultDeployScript,
		pipelineTimeout: DefaultPipelineTimeout,
		deployTimeout:   DefaultDeployTimeout,
		outputTail:      DefaultOutputTail,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the registry name.
func (d *Deployer) Name() string { return agent.NameDeploy }

// Run applies the change set in input.Payload (change.ChangeSet).
func (d *Deployer) Run(ctx context.Context, input agent.Input) agent.Output {
	cs, ok := input.Payload().(change.ChangeSet)
	if !ok {
		return agent.NewFailure("deploy input must be a change set", 0)
	}

	clean, err := d.driver.IsClean(ctx)
	if err != nil {
		return agent.NewFailure(fmt.Sprintf("check working tree: %v", err), 0)
	}
	if !clean {
		return agent.NewFailure("working tree not clean, refusing to deploy", 0)
	}

	snapshot, err := d.driver.CurrentBranch(ctx)
	if err != nil {
		return agent.NewFailure(fmt.Sprintf("resolve current branch: %v", err), 0)
	}

	branch := "agent/" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if err := d.driver.CreateBranch(ctx, branch); err != nil {
		return agent.NewFailure(fmt.Sprintf("create branch %s: %v", branch, err), 0)
	}
	d.logger.Info("deploy started", "branch", branch, "snapshot", snapshot, "changes", len(cs.Changes()))

	if err := d.applyChanges(cs); err != nil {
		d.rollback(ctx, snapshot, branch)
		return agent.NewFailure(fmt.Sprintf("apply changes: %v", err), 0)
	}

	if err := d.driver.AddAll(ctx); err != nil {
		d.rollback(ctx, snapshot, branch)
		return agent.NewFailure(fmt.Sprintf("stage changes: %v", err), 0)
	}
	if err := d.driver.Commit(ctx, "agent: "+cs.Summary()); err != nil {
		d.rollback(ctx, snapshot, branch)
		return agent.NewFailure(fmt.Sprintf("commit changes: %v", err), 0)
	}

	if d.scripts.Exists(d.pipelineScript) {
		result, err := d.scripts.Run(ctx, d.pipelineScript, d.pipelineTimeout)
		if err != nil || !result.Succeeded() {
			d.rollback(ctx, snapshot, branch)
			diagnostics := vcs.Tail(result.Output(), d.outputTail)
			msg := fmt.Sprintf("pipeline failed (exit %d)", result.ExitCode())
			if result.TimedOut() {
				msg = fmt.Sprintf("pipeline timed out after %s", d.pipelineTimeout)
			} else if err != nil {
				msg = fmt.Sprintf("pipeline could not run: %v", err)
			}
			d.logger.Warn("pipeline check failed, rolled back", "branch", branch, "message", msg)
			return agent.NewFailure(msg, 0).
				WithData(change.NewDeployResult("", false, diagnostics))
		}
	} else {
		d.logger.Warn("pipeline script missing, skipping checks", "script", d.pipelineScript)
	}

	if err := d.driver.Checkout(ctx, snapshot); err != nil {
		if derr := d.driver.DeleteBranch(ctx, branch, true); derr != nil {
			d.logger.Warn("failed to delete feature branch after checkout failure",
				"branch", branch, "error", derr)
		}
		return agent.NewFailure(fmt.Sprintf("checkout %s: %v", snapshot, err), 0)
	}
	if err := d.driver.Merge(ctx, branch); err != nil {
		_ = d.driver.MergeAbort(ctx)
		_ = d.driver.DeleteBranch(ctx, branch, true)
		return agent.NewFailure(fmt.Sprintf("merge %s: %v", branch, err), 0)
	}
	if err := d.driver.DeleteBranch(ctx, branch, false); err != nil {
		d.logger.Warn("failed to delete merged branch", "branch", branch, "error", err)
	}

	deployed := true
	diagnostics := ""
	if d.scripts.Exists(d.deployScript) {
		result, err := d.scripts.Run(ctx, d.deployScript, d.deployTimeout)
		if err != nil || !result.Succeeded() {
			// Changes are already merged; a deploy hook failure only
			// means they have not been promoted yet.
			deployed = false
			diagnostics = vcs.Tail(result.Output(), d.outputTail)
			d.logger.Warn("deploy script failed after merge",
				"branch", branch, "exit", result.ExitCode(), "timed_out", result.TimedOut())
		}
	}

	d.logger.Info("deploy finished", "branch", branch, "deployed", deployed)
	return agent.NewOutput(change.NewDeployResult(branch, deployed, diagnostics), 0)
}

// applyChanges writes the file operations into the working tree,
// rejecting any path that escapes the repository root.
func (d *Deployer) applyChanges(cs change.ChangeSet) error {
	root, err := filepath.Abs(d.repoPath)
	if err != nil {
		return fmt.Errorf("resolve repo root: %w", err)
	}
	for _, fc := range cs.Changes() {
		target, err := d.containedPath(root, fc.Path())
		if err != nil {
			return err
		}
		switch fc.Action() {
		case change.ActionCreate:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create directories for %s: %w", fc.Path(), err)
			}
			if err := os.WriteFile(target, []byte(fc.Content()), 0o644); err != nil {
				return fmt.Errorf("create %s: %w", fc.Path(), err)
			}
		case change.ActionModify:
			if _, err := os.Stat(target); err != nil {
				return fmt.Errorf("modify %s: file does not exist", fc.Path())
			}
			if err := os.WriteFile(target, []byte(fc.Content()), 0o644); err != nil {
				return fmt.Errorf("modify %s: %w", fc.Path(), err)
			}
		case change.ActionDelete:
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("delete %s: %w", fc.Path(), err)
			}
		default:
			return fmt.Errorf("%w: %q for %s", change.ErrUnknownAction, fc.Action(), fc.Path())
		}
	}
	return nil
}

// containedPath resolves rel against root and rejects traversal outside it.
func (d *Deployer) containedPath(root, rel string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(rel))
	relative, err := filepath.Rel(root, target)
	if err != nil || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the repository root", rel)
	}
	return target, nil
}

// rollback discards any uncommitted changes, restores the snapshot
// branch, and removes the feature branch. The discard matters on the
// pre-commit paths: a partially applied change set would otherwise
// survive the checkout and wedge every later deploy on the clean check.
func (d *Deployer) rollback(ctx context.Context, snapshot, branch string) {
	if err := d.driver.DiscardChanges(ctx); err != nil {
		d.logger.Error("rollback discard failed", "error", err)
	}
	if err := d.driver.Checkout(ctx, snapshot); err != nil {
		d.logger.Error("rollback checkout failed", "snapshot", snapshot, "error", err)
	}
	if err := d.driver.DeleteBranch(ctx, branch, true); err != nil {
		d.logger.Warn("rollback branch delete failed", "branch", branch, "error", err)
	}
}
