package agents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lostworld/plateau/domain/change"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a": 1}`, `{"a": 1}`},
		{"plain fences", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"json fences", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  \n```json\n{}\n```  \n", "{}"},
		{"no trailing fence", "```json\n{}", "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFences(tt.in))
		})
	}
}

func TestParseWriterResponse(t *testing.T) {
	raw := "```json\n" + `{
		"changes": [
			{"path": "sim/world.py", "action": "modify", "content": "x = 1\n"},
			{"path": "sim/old.py", "action": "delete", "content": ""}
		],
		"summary": "tweak world",
		"reasoning": "requested"
	}` + "\n```"

	cs, err := parseWriterResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "tweak world", cs.Summary())
	assert.Equal(t, "requested", cs.Reasoning())
	require.Len(t, cs.Changes(), 2)
	assert.Equal(t, change.ActionModify, cs.Changes()[0].Action())
	assert.Equal(t, "sim/world.py", cs.Changes()[0].Path())
	assert.Equal(t, change.ActionDelete, cs.Changes()[1].Action())
}

func TestParseWriterResponse_Invalid(t *testing.T) {
	_, err := parseWriterResponse("I could not produce JSON, sorry.")
	assert.Error(t, err)
}

func TestParseReviewerResponse(t *testing.T) {
	raw := `{
		"verdict": "reject",
		"comments": "The loop never terminates.",
		"issues": [{"file": "sim/world.py", "description": "missing exit condition"}]
	}`

	verdict, err := parseReviewerResponse(raw)
	require.NoError(t, err)
	assert.False(t, verdict.Approved())
	assert.Equal(t, []string{"The loop never terminates."}, verdict.Comments())
	require.Len(t, verdict.Issues(), 1)
	assert.Equal(t, "sim/world.py", verdict.Issues()[0].File())
}

func TestParseReviewerResponse_UnknownVerdictRejects(t *testing.T) {
	verdict, err := parseReviewerResponse(`{"verdict": "maybe", "comments": "", "issues": []}`)
	require.NoError(t, err)
	assert.False(t, verdict.Approved())
	assert.Empty(t, verdict.Comments())
}

func TestBuildWriterUserMessage(t *testing.T) {
	task := change.NewTask(
		change.NewCluster([]string{"LW-001", "LW-002"}, []string{"more trees", "denser forest"}),
		"Increase vegetation density",
	)

	msg := buildWriterUserMessage(task, []string{"fix the off-by-one"}, "(No source files found)")
	assert.Contains(t, msg, "## Task\nIncrease vegetation density")
	assert.Contains(t, msg, "## User Feedback\n- more trees\n- denser forest")
	assert.Contains(t, msg, "## Reviewer Feedback (address these issues)\nfix the off-by-one")
	assert.Contains(t, msg, "## Source Files\n(No source files found)")
}

func TestBuildWriterUserMessage_FirstAttemptOmitsReviewerSection(t *testing.T) {
	task := change.NewTask(change.NewCluster(nil, nil), "Do something")

	msg := buildWriterUserMessage(task, nil, "(No source files found)")
	assert.NotContains(t, msg, "## Reviewer Feedback")
	assert.NotContains(t, msg, "## User Feedback")
}

func TestGatherSourceFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("sim/world.py", "class World: pass\n")
	write("frontend/app.tsx", "export {}\n")
	write("sim/test_world.py", "def test(): pass\n")
	write("node_modules/pkg/index.js", "module.exports = {}\n")
	write("README.md", "# readme\n")

	out := gatherSourceFiles(dir)
	assert.Contains(t, out, "--- sim/world.py ---\nclass World: pass\n")
	assert.Contains(t, out, "--- frontend/app.tsx ---")
	assert.NotContains(t, out, "test_world")
	assert.NotContains(t, out, "node_modules")
	assert.NotContains(t, out, "README")
}

func TestGatherSourceFiles_Empty(t *testing.T) {
	assert.Equal(t, "(No source files found)", gatherSourceFiles(t.TempDir()))
}

func TestReadContract(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contract.md"), []byte("# Rules\n"), 0o644))

	assert.Equal(t, "# Rules\n", readContract(dir, "contract.md"))
	assert.Equal(t, "(No contract file found)", readContract(dir, "missing.md"))
}

func TestFormatChangesForReview(t *testing.T) {
	cs := change.NewChangeSet("s", "r", []change.FileChange{
		change.NewFileChange("sim/world.py", change.ActionModify, "x = 1\n"),
		change.NewFileChange("sim/old.py", change.ActionDelete, ""),
	})

	out := formatChangesForReview(cs)
	assert.Contains(t, out, "### MODIFY: sim/world.py\n```\nx = 1\n\n```")
	assert.Contains(t, out, "### DELETE: sim/old.py\n(File to be deleted)")
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, estimateTokens(""))
	assert.Equal(t, 1, estimateTokens("abc"))
	assert.Equal(t, 25, estimateTokens(string(make([]byte, 100))))
}
