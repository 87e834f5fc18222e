package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gitCmd(t *testing.T, repo string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = repo
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return string(out)
}

// initRepo creates a repository on branch main with one committed file.
func initRepo(t *testing.T) (string, *GitDriver) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	repo := t.TempDir()
	gitCmd(t, repo, "init", "-b", "main")
	gitCmd(t, repo, "config", "user.email", "pipeline@lostworld.local")
	gitCmd(t, repo, "config", "user.name", "pipeline")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "world.py"), []byte("SPEED = 1\n"), 0o644))
	gitCmd(t, repo, "add", "-A")
	gitCmd(t, repo, "commit", "-m", "initial")
	return repo, NewGitDriver(repo)
}

func TestGitDriver_IsClean(t *testing.T) {
	repo, driver := initRepo(t)
	ctx := context.Background()

	clean, err := driver.IsClean(ctx)
	require.NoError(t, err)
	assert.True(t, clean)

	require.NoError(t, os.WriteFile(filepath.Join(repo, "extra.py"), []byte("x = 1\n"), 0o644))
	clean, err = driver.IsClean(ctx)
	require.NoError(t, err)
	assert.False(t, clean)
}

func TestGitDriver_BranchLifecycle(t *testing.T) {
	repo, driver := initRepo(t)
	ctx := context.Background()

	branch, err := driver.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	require.NoError(t, driver.CreateBranch(ctx, "agent/abc12345"))
	branch, err = driver.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "agent/abc12345", branch)

	require.NoError(t, os.WriteFile(filepath.Join(repo, "world.py"), []byte("SPEED = 2\n"), 0o644))
	require.NoError(t, driver.AddAll(ctx))
	require.NoError(t, driver.Commit(ctx, "agent: speed up"))

	require.NoError(t, driver.Checkout(ctx, "main"))
	require.NoError(t, driver.Merge(ctx, "agent/abc12345"))
	require.NoError(t, driver.DeleteBranch(ctx, "agent/abc12345", false))

	content, err := os.ReadFile(filepath.Join(repo, "world.py"))
	require.NoError(t, err)
	assert.Equal(t, "SPEED = 2\n", string(content))
	assert.Empty(t, gitCmd(t, repo, "branch", "--list", "agent/*"))
}

func TestGitDriver_DiscardChanges(t *testing.T) {
	repo, driver := initRepo(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(repo, "world.py"), []byte("SPEED = 99\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(repo, "sim"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "sim", "extra.py"), []byte("x = 1\n"), 0o644))

	require.NoError(t, driver.DiscardChanges(ctx))

	content, err := os.ReadFile(filepath.Join(repo, "world.py"))
	require.NoError(t, err)
	assert.Equal(t, "SPEED = 1\n", string(content))
	assert.NoFileExists(t, filepath.Join(repo, "sim", "extra.py"))

	clean, err := driver.IsClean(ctx)
	require.NoError(t, err)
	assert.True(t, clean)
}

func TestGitDriver_DeleteUnmergedBranchNeedsForce(t *testing.T) {
	repo, driver := initRepo(t)
	ctx := context.Background()

	require.NoError(t, driver.CreateBranch(ctx, "agent/orphan99"))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "orphan.py"), []byte("y = 2\n"), 0o644))
	require.NoError(t, driver.AddAll(ctx))
	require.NoError(t, driver.Commit(ctx, "agent: orphan"))
	require.NoError(t, driver.Checkout(ctx, "main"))

	assert.Error(t, driver.DeleteBranch(ctx, "agent/orphan99", false))
	require.NoError(t, driver.DeleteBranch(ctx, "agent/orphan99", true))
	assert.Empty(t, gitCmd(t, repo, "branch", "--list", "agent/*"))
}

func TestGitDriver_MergeConflictAborts(t *testing.T) {
	repo, driver := initRepo(t)
	ctx := context.Background()

	require.NoError(t, driver.CreateBranch(ctx, "agent/conflict"))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "world.py"), []byte("SPEED = 2\n"), 0o644))
	require.NoError(t, driver.AddAll(ctx))
	require.NoError(t, driver.Commit(ctx, "agent: branch side"))

	require.NoError(t, driver.Checkout(ctx, "main"))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "world.py"), []byte("SPEED = 3\n"), 0o644))
	require.NoError(t, driver.AddAll(ctx))
	require.NoError(t, driver.Commit(ctx, "main side"))

	require.Error(t, driver.Merge(ctx, "agent/conflict"))
	require.NoError(t, driver.MergeAbort(ctx))

	clean, err := driver.IsClean(ctx)
	require.NoError(t, err)
	assert.True(t, clean)
}
