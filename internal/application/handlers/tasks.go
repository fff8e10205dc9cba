package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/domain/services"
)

// TasksHandler manages the tasks shared with a user.
type TasksHandler struct {
	tasks *services.TaskService
}

// NewTasksHandler creates a new tasks handler.
func NewTasksHandler(tasks *services.TaskService) *TasksHandler {
	return &TasksHandler{tasks: tasks}
}

// TaskInput describes a task to create or edit. When editing, Fields are
// merged into the stored content and non-nil lists replace the stored ones.
type TaskInput struct {
	ID         string
	Fields     map[string]any
	Assignees  []string
	SharedWith []string
}

// List returns the tasks shared with userID.
func (h *TasksHandler) List(ctx context.Context, userID string) ([]entities.Task, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	return h.tasks.Load(ctx, userID)
}

// Save creates a task, or edits the task with in.ID when one is shared with
// userID, and returns its id.
func (h *TasksHandler) Save(ctx context.Context, userID string, in TaskInput) (string, error) {
	if userID == "" {
		return "", ErrNoUser
	}

	task := entities.Task{Fields: map[string]any{}}
	if in.ID != "" {
		existing, err := h.find(ctx, userID, in.ID)
		if err != nil {
			return "", err
		}
		task = existing
		if task.Fields == nil {
			task.Fields = map[string]any{}
		}
	}

	for k, v := range in.Fields {
		task.Fields[k] = v
	}
	if in.Assignees != nil {
		task.Assignees = in.Assignees
	}
	if in.SharedWith != nil {
		task.SharedWith = in.SharedWith
	}
	return h.tasks.Save(ctx, userID, task)
}

// Delete removes a task shared with userID.
func (h *TasksHandler) Delete(ctx context.Context, userID, taskID string) error {
	if userID == "" {
		return ErrNoUser
	}
	if _, err := h.find(ctx, userID, taskID); err != nil {
		return err
	}
	return h.tasks.Delete(ctx, userID, taskID)
}

// Watch delivers the tasks shared with userID on every change until ctx is
// done.
func (h *TasksHandler) Watch(ctx context.Context, userID string, onChange func([]entities.Task)) error {
	if userID == "" {
		return ErrNoUser
	}
	unsub, err := h.tasks.Subscribe(ctx, userID, onChange)
	if err != nil {
		return err
	}
	defer unsub()

	<-ctx.Done()
	return nil
}

func (h *TasksHandler) find(ctx context.Context, userID, taskID string) (entities.Task, error) {
	tasks, err := h.tasks.Load(ctx, userID)
	if err != nil {
		return entities.Task{}, err
	}
	for _, t := range tasks {
		if t.ID == taskID {
			return t, nil
		}
	}
	return entities.Task{}, fmt.Errorf("no task %q is shared with you", taskID)
}
