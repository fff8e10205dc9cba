package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/domain/ports"
)

// DefaultMaxActivities bounds the activity log.
const DefaultMaxActivities = 100

// Remote activity document fields.
const (
	activityFieldUserID    = "userId"
	activityFieldType      = "type"
	activityFieldTimestamp = "timestamp"
)

// ActivityOption configures an ActivityService.
type ActivityOption func(*ActivityService)

// WithActivityLogger sets the logger. Defaults to slog.Default().
func WithActivityLogger(l *slog.Logger) ActivityOption {
	return func(s *ActivityService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxEntries sets the log bound.
func WithMaxEntries(n int) ActivityOption {
	return func(s *ActivityService) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithRemoteLimit sets how many remote entries are fetched or watched.
func WithRemoteLimit(n int) ActivityOption {
	return func(s *ActivityService) {
		if n > 0 {
			s.remoteLimit = n
		}
	}
}

// WithActivityClock overrides time.Now.
func WithActivityClock(now func() time.Time) ActivityOption {
	return func(s *ActivityService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithActivityDiagnostics receives the result of every remote append.
func WithActivityDiagnostics(fn func(RemoteResult)) ActivityOption {
	return func(s *ActivityService) { s.diagnostics = fn }
}

// ActivityService records domain and system events in a bounded,
// newest-first log kept locally and mirrored to the remote on a best-effort
// basis.
type ActivityService struct {
	local  ports.LocalStore
	remote ports.RemoteStore

	logger      *slog.Logger
	maxEntries  int
	remoteLimit int
	now         func() time.Time
	diagnostics func(RemoteResult)

	mu         sync.Mutex
	entries    []entities.ActivityEntry
	loaded     bool
	userID     string
	subscribed bool
}

// NewActivityService creates a new ActivityService. A nil remote keeps the
// log local only.
func NewActivityService(local ports.LocalStore, remote ports.RemoteStore, opts ...ActivityOption) *ActivityService {
	s := &ActivityService{
		local:      local,
		remote:     remote,
		logger:     slog.Default(),
		maxEntries: DefaultMaxActivities,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.remoteLimit == 0 {
		s.remoteLimit = s.maxEntries
	}
	return s
}

// SetUser sets the user whose entries are mirrored remotely. Empty keeps the
// log local only.
func (s *ActivityService) SetUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
}

// Log records an event. The entry is always kept locally; the remote append
// is best effort and its failure never reaches the caller.
func (s *ActivityService) Log(ctx context.Context, typ entities.ActivityType, data entities.ActivityData) entities.ActivityEntry {
	now := s.now()
	entry := entities.ActivityEntry{
		ID:          newLocalID(now),
		Type:        typ,
		Description: data.Description,
		Details:     data.Details,
		EntityType:  data.EntityType,
		EntityID:    data.EntityID,
		EntityName:  data.EntityName,
		Metadata:    data.Metadata,
		Timestamp:   now,
		CreatedAt:   now.UTC().Format(exportTimeLayout),
		IsLocal:     true,
	}
	if entry.Description == "" {
		entry.Description = typ.Label()
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}

	s.mu.Lock()
	s.ensureLoaded(ctx)
	s.entries = s.trim(append([]entities.ActivityEntry{entry}, s.entries...))
	s.persist(ctx)
	userID := s.userID
	s.mu.Unlock()

	if s.remote != nil && userID != "" {
		s.appendRemote(ctx, userID, entry)
	}
	return entry
}

// LoadInitial returns the local log, combined with the user's latest remote
// entries when the remote has any. Unconfirmed local entries stay in front.
func (s *ActivityService) LoadInitial(ctx context.Context, userID string) []entities.ActivityEntry {
	s.mu.Lock()
	if userID != "" {
		s.userID = userID
	}
	s.ensureLoaded(ctx)
	current := s.snapshot()
	s.mu.Unlock()

	if s.remote == nil || userID == "" {
		return current
	}

	docs, err := s.remote.Query(ctx, s.remoteQuery(userID))
	if err != nil {
		s.logger.WarnContext(ctx, "loading remote activity", "user", userID, "error", err)
		s.report("query", userID, err)
		return current
	}
	if len(docs) == 0 {
		return current
	}

	remote := decodeActivities(docs)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.combine(s.entries, remote)
	return s.snapshot()
}

// Subscribe watches the user's latest remote entries. Each snapshot replaces
// the remote part of the log and onChange receives the combined view.
// While a subscription is active, further calls return a no-op disposer.
func (s *ActivityService) Subscribe(ctx context.Context, userID string, onChange func([]entities.ActivityEntry)) (ports.Unsubscribe, error) {
	if s.remote == nil || userID == "" {
		return ports.NoopUnsubscribe, nil
	}

	s.mu.Lock()
	if s.subscribed {
		s.mu.Unlock()
		return ports.NoopUnsubscribe, nil
	}
	s.subscribed = true
	s.ensureLoaded(ctx)
	s.mu.Unlock()

	var active atomic.Bool
	active.Store(true)

	unsub, err := s.remote.SubscribeQuery(ctx, s.remoteQuery(userID), func(docs []ports.Document) {
		if !active.Load() {
			return
		}
		remote := decodeActivities(docs)

		s.mu.Lock()
		s.entries = s.combine(s.entries, remote)
		view := s.snapshot()
		s.mu.Unlock()

		if onChange != nil {
			onChange(view)
		}
	})
	if err != nil {
		s.mu.Lock()
		s.subscribed = false
		s.mu.Unlock()
		s.report("subscribe", userID, err)
		return nil, entities.RemoteFailure("subscribe activity", err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			active.Store(false)
			unsub()
			s.mu.Lock()
			s.subscribed = false
			s.mu.Unlock()
		})
	}, nil
}

// Entries returns a copy of the current log, newest first.
func (s *ActivityService) Entries() []entities.ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// FilterByType returns the entries of one type.
func (s *ActivityService) FilterByType(typ entities.ActivityType) []entities.ActivityEntry {
	return s.filter(func(e entities.ActivityEntry) bool { return e.Type == typ })
}

// FilterByCategory returns the entries whose type belongs to category.
// Unknown categories match nothing.
func (s *ActivityService) FilterByCategory(category string) []entities.ActivityEntry {
	types := entities.CategoryTypes(category)
	set := make(map[entities.ActivityType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return s.filter(func(e entities.ActivityEntry) bool { return set[e.Type] })
}

// Recent returns the entries whose event time falls within the last hours.
func (s *ActivityService) Recent(hours int) []entities.ActivityEntry {
	return s.filter(func(e entities.ActivityEntry) bool { return s.WithinHours(e, hours) })
}

// WithinHours reports whether e happened within the last hours.
func (s *ActivityService) WithinHours(e entities.ActivityEntry, hours int) bool {
	cutoff := s.now().Add(-time.Duration(hours) * time.Hour)
	return !e.EventTime().Before(cutoff)
}

// RemoteByType queries the user's remote entries of one type, newest first.
// The result can reach past the remote entries kept in the log. It does not
// change the log.
func (s *ActivityService) RemoteByType(ctx context.Context, userID string, typ entities.ActivityType) ([]entities.ActivityEntry, error) {
	if s.remote == nil || userID == "" {
		return nil, nil
	}

	q := s.remoteQuery(userID)
	q.Filters = append(q.Filters, ports.Filter{Field: activityFieldType, Value: string(typ)})
	docs, err := s.remote.Query(ctx, q)
	if err != nil {
		s.report("query", userID, err)
		return nil, entities.RemoteFailure("query activity", err)
	}
	return decodeActivities(docs), nil
}

func (s *ActivityService) filter(keep func(entities.ActivityEntry) bool) []entities.ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []entities.ActivityEntry{}
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (s *ActivityService) remoteQuery(userID string) ports.Query {
	return ports.Query{
		Collection: ports.ActivityCollection,
		Filters:    []ports.Filter{{Field: activityFieldUserID, Value: userID}},
		OrderBy:    activityFieldTimestamp,
		Descending: true,
		Limit:      s.remoteLimit,
	}
}

func (s *ActivityService) appendRemote(ctx context.Context, userID string, e entities.ActivityEntry) {
	doc := ports.Document{
		activityFieldUserID:    userID,
		activityFieldType:      string(e.Type),
		"description":          e.Description,
		"details":              nullableMap(e.Details),
		"entityType":           nullableString(e.EntityType),
		"entityId":             nullableString(e.EntityID),
		"entityName":           nullableString(e.EntityName),
		"metadata":             e.Metadata,
		activityFieldTimestamp: ports.ServerTimestamp,
		"createdAt":            e.CreatedAt,
	}

	_, err := s.remote.AddDocument(ctx, ports.ActivityCollection, doc)
	s.report("append", userID, err)
	if err != nil {
		s.logger.WarnContext(ctx, "mirroring activity to remote", "type", e.Type, "error", err)
	}
}

func (s *ActivityService) report(op, userID string, err error) {
	if s.diagnostics != nil {
		s.diagnostics(RemoteResult{Op: op, UserID: userID, Err: err})
	}
}

// combine keeps the local-only entries of current ahead of the remote ones.
func (s *ActivityService) combine(current, remote []entities.ActivityEntry) []entities.ActivityEntry {
	out := make([]entities.ActivityEntry, 0, len(current)+len(remote))
	for _, e := range current {
		if e.IsLocal {
			out = append(out, e)
		}
	}
	out = append(out, remote...)
	return s.trim(out)
}

func (s *ActivityService) trim(entries []entities.ActivityEntry) []entities.ActivityEntry {
	if len(entries) > s.maxEntries {
		return entries[:s.maxEntries]
	}
	return entries
}

// ensureLoaded reads the persisted log once. Caller holds mu.
func (s *ActivityService) ensureLoaded(ctx context.Context) {
	if s.loaded {
		return
	}
	s.loaded = true

	raw, found, err := s.local.Get(ctx, ports.ActivityLogKey)
	if err != nil {
		s.logger.WarnContext(ctx, "loading activity log", "error", entities.StoreFailure("get", err))
		return
	}
	if !found || raw == "" {
		return
	}

	var stored []entities.ActivityEntry
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.logger.WarnContext(ctx, "decoding activity log", "error", err)
		return
	}
	s.entries = s.trim(append(s.entries, stored...))
}

// persist writes the log to the local store. Caller holds mu.
func (s *ActivityService) persist(ctx context.Context) {
	data, err := json.Marshal(s.entries)
	if err != nil {
		s.logger.ErrorContext(ctx, "encoding activity log", "error", err)
		return
	}
	if err := s.local.Set(ctx, ports.ActivityLogKey, string(data)); err != nil {
		s.logger.WarnContext(ctx, "saving activity log", "error", entities.StoreFailure("set", err))
	}
}

// snapshot copies the log. Caller holds mu.
func (s *ActivityService) snapshot() []entities.ActivityEntry {
	out := make([]entities.ActivityEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func newLocalID(now time.Time) string {
	return fmt.Sprintf("local-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

func decodeActivities(docs []ports.Document) []entities.ActivityEntry {
	out := make([]entities.ActivityEntry, 0, len(docs))
	for _, doc := range docs {
		out = append(out, decodeActivity(doc))
	}
	return out
}

func decodeActivity(doc ports.Document) entities.ActivityEntry {
	e := entities.ActivityEntry{
		ID:          stringField(doc, "id"),
		UserID:      stringField(doc, activityFieldUserID),
		Type:        entities.ActivityType(stringField(doc, activityFieldType)),
		Description: stringField(doc, "description"),
		Details:     mapField(doc, "details"),
		EntityType:  stringField(doc, "entityType"),
		EntityID:    stringField(doc, "entityId"),
		EntityName:  stringField(doc, "entityName"),
		Metadata:    mapField(doc, "metadata"),
		Timestamp:   timeField(doc[activityFieldTimestamp]),
		CreatedAt:   stringField(doc, "createdAt"),
	}
	if e.Description == "" {
		e.Description = e.Type.Label()
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	return e
}

func stringField(doc ports.Document, key string) string {
	switch v := doc[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

func mapField(doc ports.Document, key string) map[string]any {
	switch v := doc[key].(type) {
	case map[string]any:
		return v
	case ports.Document:
		return v
	default:
		return nil
	}
}

func timeField(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}
		}
		return parsed
	case float64:
		return time.UnixMilli(int64(t))
	case int64:
		return time.UnixMilli(t)
	default:
		return time.Time{}
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableMap(m map[string]any) any {
	if m == nil {
		return nil
	}
	return m
}
