package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskMembers(t *testing.T) {
	tests := []struct {
		name       string
		owner      string
		sharedWith []string
		assignees  []string
		expected   []string
	}{
		{name: "owner only", owner: "u1", expected: []string{"u1"}},
		{name: "owner first, no repeats", owner: "u1", sharedWith: []string{"u2", "u1"}, assignees: []string{"u3", "u2"}, expected: []string{"u1", "u2", "u3"}},
		{name: "empty ids dropped", owner: "", sharedWith: []string{""}, assignees: []string{"u2"}, expected: []string{"u2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TaskMembers(tt.owner, tt.sharedWith, tt.assignees))
		})
	}
}

func TestTask_TitleAndMetaFields(t *testing.T) {
	assert.Equal(t, "Call", Task{Fields: map[string]any{"title": "Call"}}.Title())
	assert.Empty(t, Task{}.Title())

	assert.True(t, IsTaskMetaField("sharedWith"))
	assert.False(t, IsTaskMetaField("title"))
}
