// Package agents implements the six pipeline stages behind the
// domain/agent interface, plus their dry-run stand-ins.
package agents

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lostworld/plateau/domain/change"
)

const filterSystemPrompt = `You are a safety filter for The Lost World Plateau, a bounded 2D ecosystem that evolves autonomously through user feedback.

Classify the user's feedback submission. Reject submissions that request malicious code, attempt to break the sandbox, ask for secrets, or are abusive. Everything else is safe, including vague, silly, or impossible requests.

Answer with a single line in exactly one of these forms:
VERDICT: safe
VERDICT: reject | <short reason>`

const writerSystemPrompt = `You are a code writer for The Lost World Plateau, a bounded 2D ecosystem that evolves autonomously through user feedback.

Your job is to implement a specific task by producing minimal, focused code changes. Follow these rules strictly:

1. Make ONLY the changes needed to implement the requested task.
2. Do NOT refactor, rename, or reorganise unrelated code.
3. Do NOT add comments, docstrings, or type annotations to code you did not change.
4. Ensure existing tests still pass - do not break existing behaviour.
5. Respect the architectural contract below. You must not violate any invariant it defines.

--- CONTRACT ---
%s
--- END CONTRACT ---

Return your changes as a JSON object with this exact structure:
{
  "changes": [
    {
      "path": "relative/path/to/file.ext",
      "action": "create" | "modify" | "delete",
      "content": "full file content for create/modify, empty string for delete"
    }
  ],
  "summary": "Brief human-readable description of what was changed",
  "reasoning": "Why these changes were made"
}

Return ONLY the JSON object. No markdown fences, no commentary outside the JSON.`

const reviewerSystemPrompt = `You are a code reviewer for The Lost World Plateau, a bounded 2D ecosystem that evolves autonomously through user feedback.

Your job is to review proposed code changes for:
1. **Correctness** - Will the changes work as intended? Are there logic errors?
2. **Security** - Do the changes introduce vulnerabilities (XSS, injection, etc.)?
3. **Contract adherence** - Do the changes respect the architectural contract below?
4. **Test safety** - Are existing tests likely to still pass?
5. **Minimality** - Are the changes focused, or do they include unnecessary modifications?

--- CONTRACT ---
%s
--- END CONTRACT ---

Return your review as a JSON object with this exact structure:
{
  "verdict": "approve" or "reject",
  "comments": "Detailed review comments explaining your decision",
  "issues": [
    {
      "file": "path/to/file",
      "description": "What is wrong and how to fix it"
    }
  ]
}

If you approve, "issues" should be an empty list.
If you reject, "comments" must include specific, actionable feedback that the writer can use to fix the problems. Be precise about what needs to change and why.

Return ONLY the JSON object. No markdown fences, no commentary outside the JSON.`

// readContract reads the contract file from the repository root.
func readContract(repoPath, contractFile string) string {
	data, err := os.ReadFile(filepath.Join(repoPath, contractFile))
	if err != nil {
		return "(No contract file found)"
	}
	return string(data)
}

var sourceExtensions = map[string]struct{}{
	".py": {}, ".ts": {}, ".tsx": {}, ".js": {}, ".jsx": {}, ".css": {}, ".html": {},
}

var excludedDirs = map[string]struct{}{
	"node_modules": {}, "dist": {}, "build": {}, ".git": {},
	"__pycache__": {}, "venv": {}, ".venv": {}, "data": {},
}

// gatherSourceFiles collects source files under repoPath for prompt
// context. Test files and build output are excluded; unreadable files
// are skipped.
func gatherSourceFiles(repoPath string) string {
	var paths []string
	_ = filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if _, excluded := excludedDirs[d.Name()]; excluded {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := sourceExtensions[filepath.Ext(path)]; !ok {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, "test_") || strings.HasPrefix(name, "conftest") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	sort.Strings(paths)

	var parts []string
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(repoPath, path)
		if err != nil {
			rel = path
		}
		parts = append(parts, fmt.Sprintf("--- %s ---\n%s\n", filepath.ToSlash(rel), content))
	}
	if len(parts) == 0 {
		return "(No source files found)"
	}
	return strings.Join(parts, "\n")
}

// buildWriterUserMessage assembles the writer's user prompt.
func buildWriterUserMessage(task change.Task, reviewerFeedback []string, sourceFiles string) string {
	parts := []string{"## Task\n" + task.Summary()}
	if docs := task.Documents(); len(docs) > 0 {
		var b strings.Builder
		b.WriteString("## User Feedback\n")
		for i, doc := range docs {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("- " + doc)
		}
		parts = append(parts, b.String())
	}
	if len(reviewerFeedback) > 0 {
		parts = append(parts, "## Reviewer Feedback (address these issues)\n"+strings.Join(reviewerFeedback, "\n"))
	}
	parts = append(parts, "## Source Files\n"+sourceFiles)
	return strings.Join(parts, "\n\n")
}

// formatChangesForReview renders a change set for the reviewer prompt.
func formatChangesForReview(cs change.ChangeSet) string {
	var parts []string
	for _, fc := range cs.Changes() {
		header := fmt.Sprintf("### %s: %s", strings.ToUpper(string(fc.Action())), fc.Path())
		if fc.Action() == change.ActionDelete {
			parts = append(parts, header+"\n(File to be deleted)")
		} else {
			parts = append(parts, header+"\n```\n"+fc.Content()+"\n```")
		}
	}
	return strings.Join(parts, "\n\n")
}

// buildReviewerUserMessage assembles the reviewer's user prompt.
func buildReviewerUserMessage(cs change.ChangeSet) string {
	return fmt.Sprintf(
		"## Proposed Changes\n\n**Summary:** %s\n\n**Reasoning:** %s\n\n## File Changes\n\n%s",
		cs.Summary(), cs.Reasoning(), formatChangesForReview(cs),
	)
}

// stripFences removes surrounding markdown code fences from an LLM
// response before JSON parsing.
func stripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.IndexByte(cleaned, '\n'); idx >= 0 {
			cleaned = cleaned[idx+1:]
		}
	}
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

// writerResponse mirrors the JSON the writer model must return.
type writerResponse struct {
	Changes []struct {
		Path    string `json:"path"`
		Action  string `json:"action"`
		Content string `json:"content"`
	} `json:"changes"`
	Summary   string `json:"summary"`
	Reasoning string `json:"reasoning"`
}

// parseWriterResponse parses the writer model's JSON into a ChangeSet.
func parseWriterResponse(text string) (change.ChangeSet, error) {
	var resp writerResponse
	if err := json.Unmarshal([]byte(stripFences(text)), &resp); err != nil {
		return change.ChangeSet{}, fmt.Errorf("parse writer response: %w", err)
	}
	changes := make([]change.FileChange, 0, len(resp.Changes))
	for _, c := range resp.Changes {
		changes = append(changes, change.NewFileChange(c.Path, change.Action(c.Action), c.Content))
	}
	return change.NewChangeSet(resp.Summary, resp.Reasoning, changes), nil
}

// reviewerResponse mirrors the JSON the reviewer model must return.
type reviewerResponse struct {
	Verdict  string `json:"verdict"`
	Comments string `json:"comments"`
	Issues   []struct {
		File        string `json:"file"`
		Description string `json:"description"`
	} `json:"issues"`
}

// parseReviewerResponse parses the reviewer model's JSON into a
// ReviewVerdict, coercing unknown verdicts to reject.
func parseReviewerResponse(text string) (change.ReviewVerdict, error) {
	var resp reviewerResponse
	if err := json.Unmarshal([]byte(stripFences(text)), &resp); err != nil {
		return change.ReviewVerdict{}, fmt.Errorf("parse reviewer response: %w", err)
	}
	var comments []string
	if resp.Comments != "" {
		comments = []string{resp.Comments}
	}
	issues := make([]change.Issue, 0, len(resp.Issues))
	for _, i := range resp.Issues {
		issues = append(issues, change.NewIssue(i.File, i.Description))
	}
	return change.NewReviewVerdict(change.CoerceVerdict(resp.Verdict), comments, issues), nil
}

// estimateTokens gives a rough token count (~4 characters per token).
func estimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}
