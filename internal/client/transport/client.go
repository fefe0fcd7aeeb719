// Package transport is the client's view of the server API. The interface
// keeps the transfer orchestrators independent of the HTTP plumbing so
// tests can drive them with in-memory fakes.
package transport

import "context"

// RemoteItem is one directory row as the server returns it: everything but
// the handle and size is still encrypted.
type RemoteItem struct {
	Handle                string
	Size                  int64
	EncryptedFileCryptKey []byte // nil for folders
	EncryptedMetadata     []byte
	Signature             []byte // nil for folders
}

// MetadataUpdate renames or re-describes one entry.
type MetadataUpdate struct {
	Handle            string
	EncryptedMetadata []byte
}

// Client is the server API surface the orchestrators depend on.
type Client interface {
	// StartUpload reserves a handle for a file of the given plaintext size.
	StartUpload(ctx context.Context, fileSize int64) (string, error)

	// UploadChunk transmits one encrypted chunk. ErrRateLimited means the
	// server's buffered-chunk limit was hit; the caller may retry after
	// reducing concurrency, the orchestrator itself does not.
	UploadChunk(ctx context.Context, handle string, chunkID int32, data []byte) error

	// FinalizeUpload registers the uploaded file with the directory
	// service. Only after it returns nil is the upload durable.
	FinalizeUpload(ctx context.Context, handle, parentHandle string, encryptedMetadata, encryptedFileCryptKey, signature []byte) error

	// DownloadChunk fetches exactly one encrypted chunk.
	// ErrRangeNotSatisfiable means the chunk id lies past the end of file.
	DownloadChunk(ctx context.Context, handle string, chunkID int32) ([]byte, error)

	// CreateFolder registers a folder entry and returns its handle.
	CreateFolder(ctx context.Context, parentHandle string, encryptedMetadata []byte) (string, error)

	// ListItems returns the directory rows under a parent handle.
	ListItems(ctx context.Context, parentHandle string) ([]RemoteItem, error)

	// PutMetadata applies a batch of metadata updates.
	PutMetadata(ctx context.Context, updates []MetadataUpdate) error

	// GetUsage returns the caller's stored bytes.
	GetUsage(ctx context.Context) (int64, error)

	Close() error
}
