package change

import (
	"errors"
	"fmt"
)

// Action is a file operation within a change set.
type Action string

// Action values.
const (
	ActionCreate Action = "create"
	ActionModify Action = "modify"
	ActionDelete Action = "delete"
)

// ErrUnknownAction indicates an action outside the known set.
var ErrUnknownAction = errors.New("unknown file change action")

// ParseAction validates a raw action string.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionCreate, ActionModify, ActionDelete:
		return Action(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// FileChange is a single file operation. Content is empty for deletes.
type FileChange struct {
	path    string
	action  Action
	content string
}

// NewFileChange creates a FileChange.
func NewFileChange(path string, action Action, content string) FileChange {
	return FileChange{path: path, action: action, content: content}
}

// Path returns the repo-relative file path.
func (f FileChange) Path() string { return f.path }

// Action returns the file operation.
func (f FileChange) Action() Action { return f.action }

// Content returns the full new file content (empty for deletes).
func (f FileChange) Content() string { return f.content }

// ChangeSet is the writer's structured output for one task.
type ChangeSet struct {
	summary   string
	reasoning string
	changes   []FileChange
}

// NewChangeSet creates a ChangeSet.
func NewChangeSet(summary, reasoning string, changes []FileChange) ChangeSet {
	cs := ChangeSet{summary: summary, reasoning: reasoning}
	cs.changes = make([]FileChange, len(changes))
	copy(cs.changes, changes)
	return cs
}

// Summary returns the one-line change summary.
func (c ChangeSet) Summary() string { return c.summary }

// Reasoning returns the writer's reasoning.
func (c ChangeSet) Reasoning() string { return c.reasoning }

// Changes returns the file operations.
func (c ChangeSet) Changes() []FileChange {
	out := make([]FileChange, len(c.changes))
	copy(out, c.changes)
	return out
}

// Empty returns true if the change set contains no file operations.
func (c ChangeSet) Empty() bool { return len(c.changes) == 0 }
