package handlers

import (
	"context"
	"slices"

	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/domain/services"
	"github.com/ersonp/bookspace/internal/infrastructure/logging"
)

// ActivityHandler reads the activity log.
type ActivityHandler struct {
	activity *services.ActivityService
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(activity *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// ActivityFilter narrows the listed entries. Zero values match everything.
type ActivityFilter struct {
	Type     entities.ActivityType
	Category string
	Hours    int
	Limit    int
}

// List loads the log of userID (local entries only when userID is empty)
// and returns the entries matching every filter, newest first. A type filter
// also queries the remote for older entries of that type.
func (h *ActivityHandler) List(ctx context.Context, userID string, filter ActivityFilter) []entities.ActivityEntry {
	all := h.activity.LoadInitial(ctx, userID)
	var older []entities.ActivityEntry
	if filter.Type != "" {
		older = h.olderOfType(ctx, userID, filter, all)
	}

	var selections [][]entities.ActivityEntry
	if filter.Type != "" {
		selections = append(selections, h.activity.FilterByType(filter.Type))
	}
	if filter.Category != "" {
		selections = append(selections, h.activity.FilterByCategory(filter.Category))
	}
	if filter.Hours > 0 {
		selections = append(selections, h.activity.Recent(filter.Hours))
	}

	out := append(intersect(all, selections), older...)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// olderOfType returns the remote entries of filter.Type missing from have
// that match the other filters. A failed query only loses them.
func (h *ActivityHandler) olderOfType(ctx context.Context, userID string, filter ActivityFilter, have []entities.ActivityEntry) []entities.ActivityEntry {
	remote, err := h.activity.RemoteByType(ctx, userID, filter.Type)
	if err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "querying remote activity by type", "type", filter.Type, "error", err)
		return nil
	}

	var out []entities.ActivityEntry
	for _, e := range remote {
		if containsEntry(have, e.ID) {
			continue
		}
		if filter.Category != "" && !slices.Contains(entities.CategoryTypes(filter.Category), e.Type) {
			continue
		}
		if filter.Hours > 0 && !h.activity.WithinHours(e, filter.Hours) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// intersect keeps the entries of all that appear in every selection.
func intersect(all []entities.ActivityEntry, selections [][]entities.ActivityEntry) []entities.ActivityEntry {
	out := []entities.ActivityEntry{}
	for _, e := range all {
		keep := true
		for _, sel := range selections {
			if !containsEntry(sel, e.ID) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, e)
		}
	}
	return out
}

func containsEntry(entries []entities.ActivityEntry, id string) bool {
	for _, e := range entries {
		if e.ID == id {
			return true
		}
	}
	return false
}
