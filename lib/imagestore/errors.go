package imagestore

import "errors"

var (
	// ErrNotCached is returned by get-image-status when no cache entry exists.
	ErrNotCached = errors.New("imagestore: image not cached")
	// ErrMountFailed indicates the overlay mount syscall failed.
	ErrMountFailed = errors.New("imagestore: overlay mount failed")
	// ErrSocketTimeout indicates the shared-fs daemon never created its socket.
	ErrSocketTimeout = errors.New("imagestore: virtiofsd socket did not appear in time")
	// ErrUnsafeArchivePath indicates a tar entry with an absolute path or
	// a ".." component, rejected before any path resolution is attempted.
	ErrUnsafeArchivePath = errors.New("imagestore: unsafe archive path")
)
