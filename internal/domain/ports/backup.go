package ports

import "context"

// BackupTarget stores exported datasets outside the local machine.
type BackupTarget interface {
	// Upload stores data under name and returns where it was written.
	Upload(ctx context.Context, name string, data []byte) (location string, err error)
}
