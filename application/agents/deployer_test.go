package agents

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lostworld/plateau/domain/agent"
	"github.com/lostworld/plateau/domain/change"
	"github.com/lostworld/plateau/infrastructure/vcs"
)

// fakeDriver records the git operations a deploy performs.
type fakeDriver struct {
	dirty         bool
	cleanErr      error
	mergeErr      error
	checkoutErrOn string
	branch        string
	calls         []string
}

func (f *fakeDriver) IsClean(ctx context.Context) (bool, error) {
	f.calls = append(f.calls, "is-clean")
	return !f.dirty, f.cleanErr
}

func (f *fakeDriver) CurrentBranch(ctx context.Context) (string, error) {
	f.calls = append(f.calls, "current-branch")
	return "main", nil
}

func (f *fakeDriver) CreateBranch(ctx context.Context, name string) error {
	f.branch = name
	f.calls = append(f.calls, "create-branch "+name)
	return nil
}

func (f *fakeDriver) Checkout(ctx context.Context, name string) error {
	f.calls = append(f.calls, "checkout "+name)
	if f.checkoutErrOn != "" && name == f.checkoutErrOn {
		return errors.New("checkout refused")
	}
	return nil
}

func (f *fakeDriver) DiscardChanges(ctx context.Context) error {
	f.calls = append(f.calls, "discard-changes")
	return nil
}

func (f *fakeDriver) DeleteBranch(ctx context.Context, name string, force bool) error {
	call := "delete-branch " + name
	if force {
		call += " force"
	}
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeDriver) AddAll(ctx context.Context) error {
	f.calls = append(f.calls, "add-all")
	return nil
}

func (f *fakeDriver) Commit(ctx context.Context, message string) error {
	f.calls = append(f.calls, "commit "+message)
	return nil
}

func (f *fakeDriver) Merge(ctx context.Context, branch string) error {
	f.calls = append(f.calls, "merge "+branch)
	return f.mergeErr
}

func (f *fakeDriver) MergeAbort(ctx context.Context) error {
	f.calls = append(f.calls, "merge-abort")
	return nil
}

func writeScript(t *testing.T, repo, rel, body string) {
	t.Helper()
	path := filepath.Join(repo, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/bash\n"+body+"\n"), 0o755))
}

func deployChangeSet() change.ChangeSet {
	return change.NewChangeSet("speed up creatures", "requested",
		[]change.FileChange{
			change.NewFileChange("sim/speed.py", change.ActionCreate, "SPEED = 2\n"),
		})
}

func TestDeployer_HappyPath(t *testing.T) {
	repo := t.TempDir()
	writeScript(t, repo, "scripts/pipeline.sh", "exit 0")
	writeScript(t, repo, "scripts/deploy.sh", "exit 0")
	driver := &fakeDriver{}
	deployer := NewDeployer(driver, vcs.NewScriptRunner(repo), repo)

	out := deployer.Run(context.Background(), agent.NewInput(deployChangeSet()))
	require.True(t, out.Success(), out.Message())

	result, ok := out.Data().(change.DeployResult)
	require.True(t, ok)
	assert.True(t, result.Deployed())
	assert.True(t, strings.HasPrefix(result.Branch(), "agent/"))

	content, err := os.ReadFile(filepath.Join(repo, "sim/speed.py"))
	require.NoError(t, err)
	assert.Equal(t, "SPEED = 2\n", string(content))

	assert.Equal(t, []string{
		"is-clean",
		"current-branch",
		"create-branch " + driver.branch,
		"add-all",
		"commit agent: speed up creatures",
		"checkout main",
		"merge " + driver.branch,
		"delete-branch " + driver.branch,
	}, driver.calls)
}

func TestDeployer_DirtyTreeRefuses(t *testing.T) {
	repo := t.TempDir()
	driver := &fakeDriver{dirty: true}
	deployer := NewDeployer(driver, vcs.NewScriptRunner(repo), repo)

	out := deployer.Run(context.Background(), agent.NewInput(deployChangeSet()))
	require.False(t, out.Success())
	assert.Contains(t, out.Message(), "not clean")
	assert.Equal(t, []string{"is-clean"}, driver.calls)
}

func TestDeployer_PipelineFailureRollsBack(t *testing.T) {
	repo := t.TempDir()
	writeScript(t, repo, "scripts/pipeline.sh", "echo 'tests failed'; exit 1")
	driver := &fakeDriver{}
	deployer := NewDeployer(driver, vcs.NewScriptRunner(repo), repo)

	out := deployer.Run(context.Background(), agent.NewInput(deployChangeSet()))
	require.False(t, out.Success())
	assert.Contains(t, out.Message(), "pipeline failed")

	result, ok := out.Data().(change.DeployResult)
	require.True(t, ok)
	assert.Contains(t, result.Diagnostics(), "tests failed")

	assert.Contains(t, driver.calls, "discard-changes")
	assert.Contains(t, driver.calls, "checkout main")
	assert.Contains(t, driver.calls, "delete-branch "+driver.branch+" force")
	assert.NotContains(t, driver.calls, "merge "+driver.branch)
}

func TestDeployer_SnapshotCheckoutFailureDeletesBranch(t *testing.T) {
	repo := t.TempDir()
	driver := &fakeDriver{checkoutErrOn: "main"}
	deployer := NewDeployer(driver, vcs.NewScriptRunner(repo), repo)

	out := deployer.Run(context.Background(), agent.NewInput(deployChangeSet()))
	require.False(t, out.Success())
	assert.Contains(t, out.Message(), "checkout main")
	assert.Contains(t, driver.calls, "delete-branch "+driver.branch+" force")
	assert.NotContains(t, driver.calls, "merge "+driver.branch)
}

func TestDeployer_MissingPipelineScriptSkipsChecks(t *testing.T) {
	repo := t.TempDir()
	driver := &fakeDriver{}
	deployer := NewDeployer(driver, vcs.NewScriptRunner(repo), repo)

	out := deployer.Run(context.Background(), agent.NewInput(deployChangeSet()))
	require.True(t, out.Success())
	// No deploy script either: the merge stands and counts as deployed.
	assert.True(t, out.Data().(change.DeployResult).Deployed())
}

func TestDeployer_DeployScriptFailureAfterMerge(t *testing.T) {
	repo := t.TempDir()
	writeScript(t, repo, "scripts/deploy.sh", "echo 'restart failed'; exit 1")
	driver := &fakeDriver{}
	deployer := NewDeployer(driver, vcs.NewScriptRunner(repo), repo)

	out := deployer.Run(context.Background(), agent.NewInput(deployChangeSet()))
	require.True(t, out.Success())

	result := out.Data().(change.DeployResult)
	assert.False(t, result.Deployed())
	assert.Contains(t, result.Diagnostics(), "restart failed")
	assert.Contains(t, driver.calls, "merge "+driver.branch)
}

func TestDeployer_MergeFailureAborts(t *testing.T) {
	repo := t.TempDir()
	driver := &fakeDriver{mergeErr: errors.New("conflict")}
	deployer := NewDeployer(driver, vcs.NewScriptRunner(repo), repo)

	out := deployer.Run(context.Background(), agent.NewInput(deployChangeSet()))
	require.False(t, out.Success())
	assert.Contains(t, driver.calls, "merge-abort")
	assert.Contains(t, driver.calls, "delete-branch "+driver.branch+" force")
}

func TestDeployer_PathTraversalRejected(t *testing.T) {
	repo := t.TempDir()
	driver := &fakeDriver{}
	deployer := NewDeployer(driver, vcs.NewScriptRunner(repo), repo)

	cs := change.NewChangeSet("escape", "", []change.FileChange{
		change.NewFileChange("../outside.txt", change.ActionCreate, "nope"),
	})
	out := deployer.Run(context.Background(), agent.NewInput(cs))
	require.False(t, out.Success())
	assert.Contains(t, out.Message(), "escapes the repository root")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(repo), "outside.txt"))
	// Failed application rolls the branch back.
	assert.Contains(t, driver.calls, "checkout main")
}

func TestDeployer_ModifyMissingFileFails(t *testing.T) {
	repo := t.TempDir()
	driver := &fakeDriver{}
	deployer := NewDeployer(driver, vcs.NewScriptRunner(repo), repo)

	cs := change.NewChangeSet("modify", "", []change.FileChange{
		change.NewFileChange("missing.py", change.ActionModify, "x = 1\n"),
	})
	out := deployer.Run(context.Background(), agent.NewInput(cs))
	require.False(t, out.Success())
	assert.Contains(t, out.Message(), "does not exist")
}

func TestDeployer_UnknownActionFails(t *testing.T) {
	repo := t.TempDir()
	driver := &fakeDriver{}
	deployer := NewDeployer(driver, vcs.NewScriptRunner(repo), repo)

	cs := change.NewChangeSet("odd", "", []change.FileChange{
		change.NewFileChange("file.py", change.Action("rename"), ""),
	})
	out := deployer.Run(context.Background(), agent.NewInput(cs))
	require.False(t, out.Success())
	assert.Contains(t, out.Message(), "unknown file change action")
}

func TestDeployer_DeleteMissingFileIsNoop(t *testing.T) {
	repo := t.TempDir()
	driver := &fakeDriver{}
	deployer := NewDeployer(driver, vcs.NewScriptRunner(repo), repo)

	cs := change.NewChangeSet("cleanup", "", []change.FileChange{
		change.NewFileChange("gone.py", change.ActionDelete, ""),
	})
	out := deployer.Run(context.Background(), agent.NewInput(cs))
	assert.True(t, out.Success())
}
