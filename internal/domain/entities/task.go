package entities

import "time"

// Task field names on the remote.
const (
	TaskFieldID         = "id"
	TaskFieldTitle      = "title"
	TaskFieldCreatedBy  = "createdBy"
	TaskFieldAssignees  = "assignees"
	TaskFieldSharedWith = "sharedWith"
	TaskFieldCreatedAt  = "createdAt"
	TaskFieldUpdatedAt  = "updatedAt"
)

// Task is a to-do item shared between users. The sharing fields are typed;
// everything else is free-form content in Fields.
type Task struct {
	ID         string         `json:"id"`
	CreatedBy  string         `json:"createdBy"`
	Assignees  []string       `json:"assignees"`
	SharedWith []string       `json:"sharedWith"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// Title returns the title field, or "" when unset.
func (t Task) Title() string {
	s, _ := t.Fields[TaskFieldTitle].(string)
	return s
}

// IsTaskMetaField reports whether name is one of the sharing fields rather
// than task content.
func IsTaskMetaField(name string) bool {
	switch name {
	case TaskFieldID, TaskFieldCreatedBy, TaskFieldAssignees, TaskFieldSharedWith, TaskFieldCreatedAt, TaskFieldUpdatedAt:
		return true
	default:
		return false
	}
}

// TaskMembers returns the users a task is visible to: the owner, the users it
// is shared with and its assignees, in that order, without empty or repeated
// ids.
func TaskMembers(owner string, sharedWith, assignees []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, group := range [][]string{{owner}, sharedWith, assignees} {
		for _, id := range group {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
