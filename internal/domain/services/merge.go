package services

import "github.com/ersonp/bookspace/internal/domain/entities"

// MergeRecords merges two versions of a collection by record id.
// Records are seeded from local; remote records with new ids are appended and
// conflicting ids keep the record with the strictly greater recency signal.
// Ties and missing signals keep the local record. Records without an id are dropped.
// Output order is local order followed by remote-only records in remote order.
func MergeRecords(local, remote []entities.Record) []entities.Record {
	index := make(map[string]int, len(local)+len(remote))
	merged := make([]entities.Record, 0, len(local)+len(remote))

	for _, r := range local {
		id := r.ID()
		if id == "" {
			continue
		}
		if i, ok := index[id]; ok {
			merged[i] = r
			continue
		}
		index[id] = len(merged)
		merged = append(merged, r)
	}

	for _, r := range remote {
		id := r.ID()
		if id == "" {
			continue
		}
		i, ok := index[id]
		if !ok {
			index[id] = len(merged)
			merged = append(merged, r)
			continue
		}
		if r.Recency() > merged[i].Recency() {
			merged[i] = r
		}
	}

	return merged
}

// MergeConfig returns the shallow union of both configs. Remote keys win.
func MergeConfig(local, remote map[string]any) map[string]any {
	out := make(map[string]any, len(local)+len(remote))
	for k, v := range local {
		out[k] = v
	}
	for k, v := range remote {
		out[k] = v
	}
	return out
}

// MergeDatasets merges every collection and the config of two datasets.
// The result carries the local version; the caller stamps a new one on upload.
func MergeDatasets(local, remote *entities.Dataset) *entities.Dataset {
	if local == nil {
		local = entities.NewDataset()
	}
	if remote == nil {
		remote = entities.NewDataset()
	}

	out := &entities.Dataset{Version: local.Version}
	for _, name := range entities.CollectionNames {
		l, _ := local.Collection(name)
		r, _ := remote.Collection(name)
		_ = out.SetCollection(name, MergeRecords(l, r))
	}
	out.Config = MergeConfig(local.Config, remote.Config)
	return out
}
