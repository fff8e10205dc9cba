package services

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/domain/ports"
)

// TaskOption configures a TaskService.
type TaskOption func(*TaskService)

// WithTaskLogger sets the logger. Defaults to slog.Default().
func WithTaskLogger(l *slog.Logger) TaskOption {
	return func(s *TaskService) {
		if l != nil {
			s.logger = l
		}
	}
}

// TaskService shares tasks between users through the remote store. A task
// is visible to every user in its sharedWith list, which always holds the
// owner and the assignees. Tasks are never kept locally.
type TaskService struct {
	remote ports.RemoteStore
	logger *slog.Logger
	newID  func() string
}

// NewTaskService creates a new TaskService. A nil remote fails every
// operation with entities.ErrNotConfigured.
func NewTaskService(remote ports.RemoteStore, opts ...TaskOption) *TaskService {
	s := &TaskService{
		remote: remote,
		logger: slog.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the tasks shared with userID, most recently updated first.
func (s *TaskService) Load(ctx context.Context, userID string) ([]entities.Task, error) {
	if err := s.check(userID); err != nil {
		return nil, err
	}
	docs, err := s.remote.Query(ctx, sharedWithQuery(userID))
	if err != nil {
		return nil, entities.RemoteFailure("load tasks", err)
	}
	return decodeTasks(docs), nil
}

// Subscribe delivers the tasks shared with userID on every change.
func (s *TaskService) Subscribe(ctx context.Context, userID string, onChange func([]entities.Task)) (ports.Unsubscribe, error) {
	if err := s.check(userID); err != nil {
		return nil, err
	}
	unsub, err := s.remote.SubscribeQuery(ctx, sharedWithQuery(userID), func(docs []ports.Document) {
		onChange(decodeTasks(docs))
	})
	if err != nil {
		return nil, entities.RemoteFailure("subscribe tasks", err)
	}
	return unsub, nil
}

// Save creates or updates a task and returns its id. The owner is the task's
// creator, or userID for a new task. Only the given fields change on the
// remote; createdAt is set once and updatedAt on every save.
func (s *TaskService) Save(ctx context.Context, userID string, task entities.Task) (string, error) {
	if err := s.check(userID); err != nil {
		return "", err
	}

	owner := task.CreatedBy
	if owner == "" {
		owner = userID
	}
	id := task.ID
	if id == "" {
		id = s.newID()
	}
	assignees := task.Assignees
	if assignees == nil {
		assignees = []string{}
	}

	doc := ports.Document{}
	for k, v := range task.Fields {
		if !entities.IsTaskMetaField(k) {
			doc[k] = v
		}
	}
	doc[entities.TaskFieldID] = id
	doc[entities.TaskFieldCreatedBy] = owner
	doc[entities.TaskFieldAssignees] = toList(assignees)
	doc[entities.TaskFieldSharedWith] = toList(entities.TaskMembers(owner, task.SharedWith, assignees))
	doc[entities.TaskFieldCreatedAt] = ports.ServerTimestamp
	if !task.CreatedAt.IsZero() {
		doc[entities.TaskFieldCreatedAt] = task.CreatedAt
	}
	doc[entities.TaskFieldUpdatedAt] = ports.ServerTimestamp

	if err := s.remote.SetDocument(ctx, ports.TasksCollection, id, doc, true); err != nil {
		return "", entities.RemoteFailure("save task", err)
	}
	s.logger.DebugContext(ctx, "task saved", "id", id, "owner", owner)
	return id, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, userID, taskID string) error {
	if err := s.check(userID); err != nil {
		return err
	}
	if taskID == "" {
		return &entities.ValidationError{Field: entities.TaskFieldID, Message: "required"}
	}
	if err := s.remote.DeleteDocument(ctx, ports.TasksCollection, taskID); err != nil {
		return entities.RemoteFailure("delete task", err)
	}
	s.logger.DebugContext(ctx, "task deleted", "id", taskID)
	return nil
}

func (s *TaskService) check(userID string) error {
	if s.remote == nil {
		return entities.ErrNotConfigured
	}
	if userID == "" {
		return &entities.ValidationError{Field: "userId", Message: "required to share tasks"}
	}
	return nil
}

func sharedWithQuery(userID string) ports.Query {
	return ports.Query{
		Collection: ports.TasksCollection,
		Filters:    []ports.Filter{{Field: entities.TaskFieldSharedWith, Op: ports.OpArrayContains, Value: userID}},
	}
}

func decodeTasks(docs []ports.Document) []entities.Task {
	out := make([]entities.Task, 0, len(docs))
	for _, doc := range docs {
		out = append(out, decodeTask(doc))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func decodeTask(doc ports.Document) entities.Task {
	t := entities.Task{
		ID:         stringField(doc, entities.TaskFieldID),
		CreatedBy:  stringField(doc, entities.TaskFieldCreatedBy),
		Assignees:  stringList(doc[entities.TaskFieldAssignees]),
		SharedWith: stringList(doc[entities.TaskFieldSharedWith]),
		CreatedAt:  timeField(doc[entities.TaskFieldCreatedAt]),
		UpdatedAt:  timeField(doc[entities.TaskFieldUpdatedAt]),
	}
	for k, v := range doc {
		if entities.IsTaskMetaField(k) {
			continue
		}
		if t.Fields == nil {
			t.Fields = make(map[string]any)
		}
		t.Fields[k] = v
	}
	return t
}

func stringList(v any) []string {
	out := []string{}
	switch l := v.(type) {
	case []any:
		for _, e := range l {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, l...)
	}
	return out
}

func toList(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
