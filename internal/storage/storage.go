// Package storage provides object storage abstractions for warehouse
// backups.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts the storage a warehouse backup is written to.
// Implementations include S3 and the local filesystem.
type ObjectStorage interface {
	// Upload uploads a local file to objectPath in storage.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download downloads the object at objectPath to localPath.
	Download(ctx context.Context, objectPath, localPath string) error

	// Delete removes an object from storage. Deleting an absent object
	// is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists checks whether an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all object paths under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}
