package entities

import "time"

// SyncAction is the outcome of a successful synchronization.
type SyncAction string

const (
	// SyncUploaded means the local dataset won and was written to the remote.
	SyncUploaded SyncAction = "uploaded"
	// SyncDownloaded means the remote dataset won and was adopted locally.
	SyncDownloaded SyncAction = "downloaded"
	// SyncMerged means both sides were merged record by record and uploaded.
	SyncMerged SyncAction = "merged"
)

// SyncResult is the tagged outcome of a synchronization attempt.
// Exactly one of Dataset (with Action) or Err is meaningful.
type SyncResult struct {
	Action  SyncAction
	Dataset *Dataset
	Err     error
	At      time.Time
}

// Failed reports whether the attempt failed.
func (r SyncResult) Failed() bool {
	return r.Err != nil
}

// Message returns a user-facing summary. Failures are phrased as transient
// since local state is always preserved.
func (r SyncResult) Message() string {
	if r.Failed() {
		return "could not sync, will retry"
	}
	switch r.Action {
	case SyncUploaded:
		return "local changes uploaded"
	case SyncDownloaded:
		return "remote changes downloaded"
	case SyncMerged:
		return "local and remote changes merged"
	default:
		return ""
	}
}
