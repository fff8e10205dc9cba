package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ersonp/bookspace/internal/domain/ports"
)

// SetDocumentCall records one SetDocument invocation.
type SetDocumentCall struct {
	Collection string
	Key        string
	Fields     ports.Document
	Merge      bool
}

// RemoteStore is a mock implementation of ports.RemoteStore.
// Documents live in memory; subscriptions are captured so tests can emit snapshots.
type RemoteStore struct {
	Docs  map[string]map[string]ports.Document
	Added map[string][]ports.Document

	// Errors (nil means success)
	GetErr       error
	SetErr       error
	AddErr       error
	DeleteErr    error
	QueryErr     error
	SubscribeErr error

	// Now replaces ports.ServerTimestamp. Defaults to time.Now.
	Now func() time.Time

	// Call tracking
	GetCallCount       int
	SetCallCount       int
	AddCallCount       int
	DeleteCallCount    int
	QueryCallCount     int
	SetCalls           []SetDocumentCall
	LastQuery          ports.Query
	UnsubscribeCount   int
	DocumentSubscribed int
	QuerySubscribed    int

	docSubs   []func(ports.Document, bool)
	querySubs []func([]ports.Document)
	nextID    int
	mu        sync.Mutex
}

// NewRemoteStore creates a new mock RemoteStore.
func NewRemoteStore() *RemoteStore {
	return &RemoteStore{
		Docs:  make(map[string]map[string]ports.Document),
		Added: make(map[string][]ports.Document),
	}
}

// GetDocument returns a copy of the stored document.
func (m *RemoteStore) GetDocument(_ context.Context, collection, key string) (ports.Document, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCallCount++
	if m.GetErr != nil {
		return nil, false, m.GetErr
	}
	doc, ok := m.Docs[collection][key]
	if !ok {
		return nil, false, nil
	}
	return copyDoc(doc), true, nil
}

// SetDocument stores the document, merging fields when merge is set.
func (m *RemoteStore) SetDocument(_ context.Context, collection, key string, fields ports.Document, merge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetCallCount++
	m.SetCalls = append(m.SetCalls, SetDocumentCall{Collection: collection, Key: key, Fields: copyDoc(fields), Merge: merge})
	if m.SetErr != nil {
		return m.SetErr
	}
	if m.Docs[collection] == nil {
		m.Docs[collection] = make(map[string]ports.Document)
	}
	target := ports.Document{}
	if existing, ok := m.Docs[collection][key]; ok && merge {
		target = existing
	}
	for k, v := range fields {
		target[k] = m.resolve(v)
	}
	m.Docs[collection][key] = target
	return nil
}

// AddDocument appends a document with a generated id.
func (m *RemoteStore) AddDocument(_ context.Context, collection string, fields ports.Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AddCallCount++
	if m.AddErr != nil {
		return "", m.AddErr
	}
	m.nextID++
	id := fmt.Sprintf("remote-%d", m.nextID)
	doc := ports.Document{"id": id}
	for k, v := range fields {
		doc[k] = m.resolve(v)
	}
	m.Added[collection] = append(m.Added[collection], doc)
	return id, nil
}

// DeleteDocument removes a keyed document.
func (m *RemoteStore) DeleteDocument(_ context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCallCount++
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.Docs[collection], key)
	return nil
}

// Query filters the added documents of a collection, followed by its keyed
// documents in key order.
func (m *RemoteStore) Query(_ context.Context, q ports.Query) ([]ports.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.QueryCallCount++
	m.LastQuery = q
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}

	var out []ports.Document
	for _, doc := range m.Added[q.Collection] {
		if matches(doc, q.Filters) {
			out = append(out, copyDoc(doc))
		}
	}
	keys := make([]string, 0, len(m.Docs[q.Collection]))
	for key := range m.Docs[q.Collection] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		doc := m.Docs[q.Collection][key]
		if matches(doc, q.Filters) {
			out = append(out, withKey(key, doc))
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			ti, _ := out[i][q.OrderBy].(time.Time)
			tj, _ := out[j][q.OrderBy].(time.Time)
			if q.Descending {
				return ti.After(tj)
			}
			return ti.Before(tj)
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// SubscribeDocument captures the callback.
func (m *RemoteStore) SubscribeDocument(_ context.Context, _, _ string, fn func(ports.Document, bool)) (ports.Unsubscribe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SubscribeErr != nil {
		return nil, m.SubscribeErr
	}
	m.DocumentSubscribed++
	idx := len(m.docSubs)
	m.docSubs = append(m.docSubs, fn)
	return m.unsubscriber(func() { m.docSubs[idx] = nil }), nil
}

// SubscribeQuery captures the callback.
func (m *RemoteStore) SubscribeQuery(_ context.Context, q ports.Query, fn func([]ports.Document)) (ports.Unsubscribe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SubscribeErr != nil {
		return nil, m.SubscribeErr
	}
	m.QuerySubscribed++
	m.LastQuery = q
	idx := len(m.querySubs)
	m.querySubs = append(m.querySubs, fn)
	return m.unsubscriber(func() { m.querySubs[idx] = nil }), nil
}

// Subscriptions returns the number of document and query subscriptions so
// far. Safe to call while subscribers run on other goroutines.
func (m *RemoteStore) Subscriptions() (documents, queries int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.DocumentSubscribed, m.QuerySubscribed
}

// Unsubscribed returns the number of disposers called so far.
func (m *RemoteStore) Unsubscribed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.UnsubscribeCount
}

// Document returns a copy of a stored document without counting a call.
func (m *RemoteStore) Document(collection, key string) (ports.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.Docs[collection][key]
	return copyDoc(doc), ok
}

// EmitDocument delivers a document snapshot to active document subscribers.
func (m *RemoteStore) EmitDocument(doc ports.Document, found bool) {
	m.mu.Lock()
	subs := append([]func(ports.Document, bool){}, m.docSubs...)
	m.mu.Unlock()

	for _, fn := range subs {
		if fn != nil {
			fn(copyDoc(doc), found)
		}
	}
}

// EmitQuery delivers a query snapshot to active query subscribers.
func (m *RemoteStore) EmitQuery(docs []ports.Document) {
	m.mu.Lock()
	subs := append([]func([]ports.Document){}, m.querySubs...)
	m.mu.Unlock()

	for _, fn := range subs {
		if fn != nil {
			fn(docs)
		}
	}
}

// Close is a no-op.
func (m *RemoteStore) Close() error {
	return nil
}

func (m *RemoteStore) unsubscriber(remove func()) ports.Unsubscribe {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.UnsubscribeCount++
			remove()
		})
	}
}

func (m *RemoteStore) resolve(v any) any {
	if !ports.IsServerTimestamp(v) {
		return v
	}
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func matches(doc ports.Document, filters []ports.Filter) bool {
	for _, f := range filters {
		if f.Op == ports.OpArrayContains {
			if !contains(doc[f.Field], f.Value) {
				return false
			}
			continue
		}
		if doc[f.Field] != f.Value {
			return false
		}
	}
	return true
}

func contains(list, v any) bool {
	switch l := list.(type) {
	case []any:
		for _, e := range l {
			if e == v {
				return true
			}
		}
	case []string:
		for _, e := range l {
			if e == v {
				return true
			}
		}
	}
	return false
}

func withKey(key string, doc ports.Document) ports.Document {
	out := copyDoc(doc)
	out["id"] = key
	return out
}

func copyDoc(doc ports.Document) ports.Document {
	if doc == nil {
		return nil
	}
	out := make(ports.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
