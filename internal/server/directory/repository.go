// Package directory persists the encrypted filesystem tree: which handles
// exist, who owns them, and the client-encrypted metadata attached to each.
package directory

import (
	"context"

	"github.com/almers2006/tresor/internal/server/models"
)

// Repository is the directory storage surface. Every query is scoped to a
// user; a handle owned by someone else behaves exactly like a missing one.
type Repository interface {
	// Create inserts a new row.
	Create(ctx context.Context, file *models.File) error

	// GetByHandle returns one row, or common.ErrNotFound.
	GetByHandle(ctx context.Context, userID, handle string) (*models.File, error)

	// ListByParent returns the rows directly under parentHandle.
	ListByParent(ctx context.Context, userID, parentHandle string) ([]*models.File, error)

	// UpdateMetadata replaces a row's encrypted metadata, or
	// common.ErrNotFound.
	UpdateMetadata(ctx context.Context, userID, handle string, encryptedMetadata []byte) error

	// StorageUsed sums the plaintext sizes of the user's files.
	StorageUsed(ctx context.Context, userID string) (int64, error)
}
