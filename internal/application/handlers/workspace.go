// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"sync"

	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/domain/services"
)

// Workspace holds the working copy of one profile's dataset. It is loaded
// from the local store on first use; every change is saved through the
// synchronizer's debounced save.
type Workspace struct {
	sync *services.SyncService

	mu sync.Mutex
	ds *entities.Dataset
}

// NewWorkspace creates a workspace backed by the given synchronizer.
func NewWorkspace(syncService *services.SyncService) *Workspace {
	return &Workspace{sync: syncService}
}

// View calls fn with the current dataset. fn must not keep or modify it.
func (w *Workspace) View(ctx context.Context, fn func(ds *entities.Dataset)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(w.load(ctx))
}

// Update applies fn to the dataset and schedules a save when fn succeeds.
func (w *Workspace) Update(ctx context.Context, fn func(ds *entities.Dataset) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.load(ctx).Clone()
	if err := fn(next); err != nil {
		return err
	}
	w.ds = next
	w.sync.ScheduleSave(next)
	return nil
}

// Replace swaps in ds, keeping the local version stamp, and saves at once.
// A pending debounced save is written first so it cannot land afterwards.
func (w *Workspace) Replace(ctx context.Context, ds *entities.Dataset) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sync.Flush()
	next := ds.Clone()
	next.Normalize()
	next.Version = w.load(ctx).Version
	if err := w.sync.SaveLocal(ctx, next); err != nil {
		return err
	}
	w.ds = next
	return nil
}

// Adopt takes ds as is, including its version, and saves at once.
func (w *Workspace) Adopt(ctx context.Context, ds *entities.Dataset) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sync.Flush()
	next := ds.Clone()
	next.Normalize()
	if err := w.sync.SaveLocal(ctx, next); err != nil {
		return err
	}
	w.ds = next
	return nil
}

// Snapshot returns a copy of the current dataset.
func (w *Workspace) Snapshot(ctx context.Context) *entities.Dataset {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.load(ctx).Clone()
}

// load returns the cached dataset, reading it on first use. Caller holds mu.
func (w *Workspace) load(ctx context.Context) *entities.Dataset {
	if w.ds == nil {
		w.ds = w.sync.LoadLocal(ctx)
	}
	return w.ds
}
