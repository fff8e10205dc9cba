// Package memory provides an in-process RemoteStore with push subscriptions.
// It backs the "memory" remote provider and end-to-end tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/bookspace/internal/domain/ports"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("memory remote store closed")

type entry struct {
	seq int64
	doc ports.Document
}

type docSub struct {
	collection, key string
	fn              func(ports.Document, bool)
}

type querySub struct {
	q  ports.Query
	fn func([]ports.Document)
}

// Store implements ports.RemoteStore in memory. Subscribers are notified
// synchronously after each write, outside the store lock.
type Store struct {
	mu        sync.RWMutex
	docs      map[string]map[string]*entry
	seq       int64
	docSubs   map[int]*docSub
	querySubs map[int]*querySub
	nextSub   int
	closed    bool
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		docs:      make(map[string]map[string]*entry),
		docSubs:   make(map[int]*docSub),
		querySubs: make(map[int]*querySub),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetDocument reads a document by key.
func (s *Store) GetDocument(_ context.Context, collection, key string) (ports.Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false, ErrClosed
	}
	e, ok := s.docs[collection][key]
	if !ok {
		return nil, false, nil
	}
	return withID(key, e.doc), true, nil
}

// SetDocument writes a document, merging top-level fields when merge is set.
func (s *Store) SetDocument(_ context.Context, collection, key string, fields ports.Document, merge bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	target := ports.Document{}
	existing, ok := s.docs[collection][key]
	if ok && merge {
		target = existing.doc
	}
	for k, v := range s.resolve(fields) {
		target[k] = v
	}
	s.put(collection, key, target, existing)
	notify := s.pending(collection, key)
	s.mu.Unlock()

	notify()
	return nil
}

// AddDocument appends a document with a generated id.
func (s *Store) AddDocument(_ context.Context, collection string, fields ports.Document) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	key := uuid.NewString()
	s.put(collection, key, s.resolve(fields), nil)
	notify := s.pending(collection, key)
	s.mu.Unlock()

	notify()
	return key, nil
}

// DeleteDocument removes a document. Document subscribers then receive a
// not-found snapshot.
func (s *Store) DeleteDocument(_ context.Context, collection, key string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.docs[collection][key]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.docs[collection], key)
	notify := s.pending(collection, key)
	s.mu.Unlock()

	notify()
	return nil
}

// Query returns the documents matching q.
func (s *Store) Query(_ context.Context, q ports.Query) ([]ports.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.query(q), nil
}

// SubscribeDocument delivers the current document and every later change.
func (s *Store) SubscribeDocument(_ context.Context, collection, key string, fn func(ports.Document, bool)) (ports.Unsubscribe, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	id := s.nextSub
	s.nextSub++
	s.docSubs[id] = &docSub{collection: collection, key: key, fn: fn}
	var (
		doc   ports.Document
		found bool
	)
	if e, ok := s.docs[collection][key]; ok {
		doc, found = withID(key, e.doc), true
	}
	s.mu.Unlock()

	fn(doc, found)
	return s.unsubscriber(func() { delete(s.docSubs, id) }), nil
}

// SubscribeQuery delivers the current result set of q and every later change.
func (s *Store) SubscribeQuery(_ context.Context, q ports.Query, fn func([]ports.Document)) (ports.Unsubscribe, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	id := s.nextSub
	s.nextSub++
	s.querySubs[id] = &querySub{q: q, fn: fn}
	docs := s.query(q)
	s.mu.Unlock()

	fn(docs)
	return s.unsubscriber(func() { delete(s.querySubs, id) }), nil
}

// Close drops all subscriptions. Later operations fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.docSubs = make(map[int]*docSub)
	s.querySubs = make(map[int]*querySub)
	return nil
}

// put stores doc, keeping the insertion order of an existing entry. Caller holds mu.
func (s *Store) put(collection, key string, doc ports.Document, existing *entry) {
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]*entry)
	}
	if existing != nil {
		existing.doc = doc
		return
	}
	s.seq++
	s.docs[collection][key] = &entry{seq: s.seq, doc: doc}
}

// pending collects the notifications caused by a write. Caller holds mu.
func (s *Store) pending(collection, key string) func() {
	var calls []func()
	for _, sub := range s.docSubs {
		if sub.collection == collection && sub.key == key {
			fn := sub.fn
			e, found := s.docs[collection][key]
			var doc ports.Document
			if found {
				doc = withID(key, e.doc)
			}
			calls = append(calls, func() { fn(doc, found) })
		}
	}
	for _, sub := range s.querySubs {
		if sub.q.Collection == collection {
			fn := sub.fn
			docs := s.query(sub.q)
			calls = append(calls, func() { fn(docs) })
		}
	}
	return func() {
		for _, call := range calls {
			call()
		}
	}
}

// query evaluates q. Caller holds mu.
func (s *Store) query(q ports.Query) []ports.Document {
	entries := make([]*entry, 0, len(s.docs[q.Collection]))
	keys := make(map[*entry]string, len(s.docs[q.Collection]))
	for key, e := range s.docs[q.Collection] {
		if Matches(e.doc, q.Filters) {
			entries = append(entries, e)
			keys[e] = key
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	if q.OrderBy != "" {
		sort.SliceStable(entries, func(i, j int) bool {
			c := Compare(entries[i].doc[q.OrderBy], entries[j].doc[q.OrderBy])
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}

	out := make([]ports.Document, len(entries))
	for i, e := range entries {
		out[i] = withID(keys[e], e.doc)
	}
	return out
}

func (s *Store) resolve(fields ports.Document) ports.Document {
	out := make(ports.Document, len(fields))
	for k, v := range fields {
		if ports.IsServerTimestamp(v) {
			out[k] = s.now()
			continue
		}
		out[k] = deepCopy(v)
	}
	return out
}

func (s *Store) unsubscriber(remove func()) ports.Unsubscribe {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			remove()
		})
	}
}

// withID returns a deep copy of doc carrying key under "id".
func withID(key string, doc ports.Document) ports.Document {
	out := deepCopy(map[string]any(doc)).(map[string]any)
	out["id"] = key
	return out
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case ports.Document:
		return ports.Document(deepCopy(map[string]any(t)).(map[string]any))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
