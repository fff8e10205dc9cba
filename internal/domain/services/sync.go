package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/domain/ports"
)

// DefaultSaveDebounce is the quiescence window of ScheduleSave.
const DefaultSaveDebounce = time.Second

// Remote dataset document fields besides the collections.
const (
	fieldConfig    = "config"
	fieldVersion   = "version"
	fieldUpdatedAt = "updatedAt"
)

// RemoteResult reports the outcome of one remote operation to a diagnostics sink.
type RemoteResult struct {
	Op     string
	UserID string
	Err    error
}

// SyncOption configures a SyncService.
type SyncOption func(*SyncService)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) SyncOption {
	return func(s *SyncService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDebounce sets the ScheduleSave window.
func WithDebounce(d time.Duration) SyncOption {
	return func(s *SyncService) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithSaveErrorHandler receives errors of debounced saves.
func WithSaveErrorHandler(fn func(error)) SyncOption {
	return func(s *SyncService) { s.onSaveError = fn }
}

// WithClock overrides time.Now, used for version stamps and export times.
func WithClock(now func() time.Time) SyncOption {
	return func(s *SyncService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDiagnostics receives the result of every remote operation.
func WithDiagnostics(fn func(RemoteResult)) SyncOption {
	return func(s *SyncService) { s.diagnostics = fn }
}

// SyncService keeps one user's dataset consistent between the local store
// and the remote store. A nil remote means sync is not configured.
type SyncService struct {
	local  ports.LocalStore
	remote ports.RemoteStore

	logger      *slog.Logger
	debounce    time.Duration
	onSaveError func(error)
	diagnostics func(RemoteResult)
	now         func() time.Time

	saver *Debouncer

	syncMu sync.Mutex

	statusMu sync.RWMutex
	last     entities.SyncResult
}

// NewSyncService creates a new SyncService.
func NewSyncService(local ports.LocalStore, remote ports.RemoteStore, opts ...SyncOption) *SyncService {
	s := &SyncService{
		local:    local,
		remote:   remote,
		logger:   slog.Default(),
		debounce: DefaultSaveDebounce,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.saver = NewDebouncer(s.debounce)
	return s
}

// RemoteConfigured reports whether a remote store is set up.
func (s *SyncService) RemoteConfigured() bool {
	return s.remote != nil
}

// LoadLocal reads the dataset from the local store. Missing, unreadable or
// corrupt data yields an empty dataset; the error is only logged.
func (s *SyncService) LoadLocal(ctx context.Context) *entities.Dataset {
	raw, found, err := s.local.Get(ctx, ports.DatasetKey)
	if err != nil {
		s.logger.WarnContext(ctx, "loading local dataset", "error", entities.StoreFailure("get", err))
		return entities.NewDataset()
	}
	if !found || raw == "" {
		return entities.NewDataset()
	}

	var ds entities.Dataset
	if err := json.Unmarshal([]byte(raw), &ds); err != nil {
		s.logger.WarnContext(ctx, "decoding local dataset", "error", err)
		return entities.NewDataset()
	}
	ds.Normalize()
	return &ds
}

// SaveLocal persists the whole dataset as one blob.
func (s *SyncService) SaveLocal(ctx context.Context, ds *entities.Dataset) error {
	if ds == nil {
		ds = entities.NewDataset()
	}
	data, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("encoding dataset: %w", err)
	}
	if err := s.local.Set(ctx, ports.DatasetKey, string(data)); err != nil {
		return entities.StoreFailure("set", err)
	}
	return nil
}

// ScheduleSave persists ds after the debounce window. A later call within
// the window replaces ds and restarts the window. Failures go to the save
// error handler.
func (s *SyncService) ScheduleSave(ds *entities.Dataset) {
	snapshot := ds.Clone()
	s.saver.Schedule(func() {
		if err := s.SaveLocal(context.Background(), snapshot); err != nil {
			s.reportSaveError(err)
		}
	})
}

// SavePending reports whether a debounced save is waiting.
func (s *SyncService) SavePending() bool {
	return s.saver.Pending()
}

// Flush writes a pending debounced save now.
func (s *SyncService) Flush() {
	s.saver.Flush()
}

// Close flushes pending saves and stops scheduling.
func (s *SyncService) Close() {
	s.saver.Stop()
}

// Upload merge-writes the dataset to the user's remote document and returns
// the version it was stamped with.
func (s *SyncService) Upload(ctx context.Context, userID string, ds *entities.Dataset) (int64, error) {
	if s.remote == nil {
		return 0, entities.ErrNotConfigured
	}
	if ds == nil {
		ds = entities.NewDataset()
	}

	version := s.now().UnixMilli()
	if version <= ds.Version {
		version = ds.Version + 1
	}

	fields, err := datasetDocument(ds)
	if err != nil {
		return 0, err
	}
	fields[fieldUpdatedAt] = ports.ServerTimestamp
	fields[fieldVersion] = version

	err = s.remote.SetDocument(ctx, ports.UsersDataCollection, userID, fields, true)
	s.report("upload", userID, err)
	if err != nil {
		return 0, entities.RemoteFailure("upload", err)
	}
	return version, nil
}

// Download reads the user's remote dataset. found is false when the user has
// no remote document yet.
func (s *SyncService) Download(ctx context.Context, userID string) (*entities.Dataset, bool, error) {
	if s.remote == nil {
		return nil, false, entities.ErrNotConfigured
	}

	doc, found, err := s.remote.GetDocument(ctx, ports.UsersDataCollection, userID)
	s.report("download", userID, err)
	if err != nil {
		return nil, false, entities.RemoteFailure("download", err)
	}
	if !found {
		return nil, false, nil
	}

	ds, err := decodeDataset(doc)
	if err != nil {
		return nil, false, entities.RemoteFailure("download", err)
	}
	return ds, true, nil
}

// Subscribe delivers the remote dataset on every change of the user's
// document. Without a remote it returns a no-op disposer.
func (s *SyncService) Subscribe(ctx context.Context, userID string, onChange func(*entities.Dataset)) (ports.Unsubscribe, error) {
	if s.remote == nil {
		return ports.NoopUnsubscribe, nil
	}

	unsub, err := s.remote.SubscribeDocument(ctx, ports.UsersDataCollection, userID, func(doc ports.Document, found bool) {
		if !found {
			return
		}
		ds, err := decodeDataset(doc)
		if err != nil {
			s.logger.WarnContext(ctx, "decoding remote dataset", "user", userID, "error", err)
			return
		}
		onChange(ds)
	})
	s.report("subscribe", userID, err)
	if err != nil {
		return nil, entities.RemoteFailure("subscribe", err)
	}
	return unsub, nil
}

// Synchronize reconciles the local dataset with the remote one. The higher
// version wins outright; equal versions are merged record by record and the
// merge is uploaded. Nothing is persisted locally.
func (s *SyncService) Synchronize(ctx context.Context, userID string, local *entities.Dataset, localVersion int64) entities.SyncResult {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if local == nil {
		local = entities.NewDataset()
	}
	if s.remote == nil {
		return s.finish(entities.SyncResult{Err: entities.ErrNotConfigured})
	}

	remote, found, err := s.Download(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "remote unreachable, uploading local dataset", "user", userID, "error", err)
	}
	if err != nil || !found {
		return s.finish(s.uploadAs(ctx, userID, local, entities.SyncUploaded))
	}

	switch {
	case localVersion > remote.Version:
		return s.finish(s.uploadAs(ctx, userID, local, entities.SyncUploaded))
	case remote.Version > localVersion:
		return s.finish(entities.SyncResult{Action: entities.SyncDownloaded, Dataset: remote})
	default:
		merged := MergeDatasets(local, remote)
		return s.finish(s.uploadAs(ctx, userID, merged, entities.SyncMerged))
	}
}

// LastResult returns the outcome of the latest Synchronize call.
func (s *SyncService) LastResult() entities.SyncResult {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.last
}

// Export builds the transferable backup document of ds.
func (s *SyncService) Export(ds *entities.Dataset) entities.ExportDocument {
	return ExportDataset(ds, s.now())
}

// Import decodes a backup document. It never merges; replacing the current
// dataset is up to the caller.
func (s *SyncService) Import(data []byte) (*entities.Dataset, error) {
	return ImportDataset(data)
}

func (s *SyncService) uploadAs(ctx context.Context, userID string, ds *entities.Dataset, action entities.SyncAction) entities.SyncResult {
	version, err := s.Upload(ctx, userID, ds)
	if err != nil {
		return entities.SyncResult{Err: err}
	}
	out := ds.Clone()
	out.Normalize()
	out.Version = version
	return entities.SyncResult{Action: action, Dataset: out}
}

func (s *SyncService) finish(res entities.SyncResult) entities.SyncResult {
	res.At = s.now()
	if res.Failed() && !errors.Is(res.Err, entities.ErrNotConfigured) {
		s.logger.Warn("synchronization failed", "error", res.Err)
	}

	s.statusMu.Lock()
	s.last = res
	s.statusMu.Unlock()
	return res
}

func (s *SyncService) report(op, userID string, err error) {
	if err != nil {
		s.logger.Debug("remote operation failed", "op", op, "user", userID, "error", err)
	}
	if s.diagnostics != nil {
		s.diagnostics(RemoteResult{Op: op, UserID: userID, Err: err})
	}
}

func (s *SyncService) reportSaveError(err error) {
	if s.onSaveError != nil {
		s.onSaveError(err)
		return
	}
	s.logger.Error("saving local dataset", "error", err)
}

// datasetDocument converts a dataset into plain JSON-shaped values that
// every remote adapter can encode.
func datasetDocument(ds *entities.Dataset) (ports.Document, error) {
	norm := ds.Clone()
	norm.Normalize()

	data, err := json.Marshal(norm)
	if err != nil {
		return nil, fmt.Errorf("encoding dataset: %w", err)
	}
	var doc ports.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("encoding dataset: %w", err)
	}
	delete(doc, fieldVersion)
	return doc, nil
}

// decodeDataset reads a remote dataset document. Unknown fields such as
// updatedAt are ignored; a missing version is 0.
func decodeDataset(doc ports.Document) (*entities.Dataset, error) {
	payload := make(map[string]any, len(entities.CollectionNames)+2)
	for _, name := range entities.CollectionNames {
		if v, ok := doc[name]; ok {
			payload[name] = v
		}
	}
	if v, ok := doc[fieldConfig]; ok {
		payload[fieldConfig] = v
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding remote dataset: %w", err)
	}
	var ds entities.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("decoding remote dataset: %w", err)
	}
	ds.Version = versionValue(doc[fieldVersion])
	ds.Normalize()
	return &ds, nil
}

func versionValue(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float64:
		return int64(t)
	case json.Number:
		n, _ := t.Int64()
		return n
	default:
		return 0
	}
}
