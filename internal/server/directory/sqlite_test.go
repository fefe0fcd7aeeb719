package directory

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/almers2006/tresor/internal/common"
	"github.com/almers2006/tresor/internal/server/models"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE files (
  handle TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  parent_handle TEXT NOT NULL,
  size INTEGER NOT NULL DEFAULT 0,
  encrypted_metadata BLOB NOT NULL,
  encrypted_file_key BLOB,
  signature BLOB
);
`)
	require.NoError(t, err)

	return db
}

func sampleFile(handle, userID string) *models.File {
	return &models.File{
		Handle:                handle,
		UserID:                userID,
		ParentHandle:          common.RootHandle,
		Size:                  1234,
		EncryptedMetadata:     []byte("md"),
		EncryptedFileCryptKey: []byte("key"),
		Signature:             []byte("sig"),
	}
}

func TestCreateAndGetByHandle(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	f := sampleFile("aaaaaaaaaaaaaaaa", "u1")
	require.NoError(t, r.Create(ctx, f))

	got, err := r.GetByHandle(ctx, "u1", f.Handle)
	require.NoError(t, err)
	assert.Equal(t, f, got)
	assert.False(t, got.IsFolder())
}

func TestGetByHandle_OwnershipScoped(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, sampleFile("aaaaaaaaaaaaaaaa", "u1")))

	// Another user's handle looks exactly like a missing one.
	_, err := r.GetByHandle(ctx, "u2", "aaaaaaaaaaaaaaaa")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCreate_DuplicateHandle(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, sampleFile("aaaaaaaaaaaaaaaa", "u1")))
	assert.Error(t, r.Create(ctx, sampleFile("aaaaaaaaaaaaaaaa", "u1")))
}

func TestListByParent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	folder := &models.File{
		Handle:            "ffffffffffffffff",
		UserID:            "u1",
		ParentHandle:      common.RootHandle,
		EncryptedMetadata: []byte("folder-md"),
	}
	require.NoError(t, r.Create(ctx, folder))
	require.NoError(t, r.Create(ctx, sampleFile("aaaaaaaaaaaaaaaa", "u1")))

	nested := sampleFile("bbbbbbbbbbbbbbbb", "u1")
	nested.ParentHandle = folder.Handle
	require.NoError(t, r.Create(ctx, nested))

	require.NoError(t, r.Create(ctx, sampleFile("cccccccccccccccc", "u2")))

	files, err := r.ListByParent(ctx, "u1", common.RootHandle)
	require.NoError(t, err)
	require.Len(t, files, 2)

	byHandle := map[string]*models.File{}
	for _, f := range files {
		byHandle[f.Handle] = f
	}
	require.Contains(t, byHandle, folder.Handle)
	assert.True(t, byHandle[folder.Handle].IsFolder())
	assert.False(t, byHandle["aaaaaaaaaaaaaaaa"].IsFolder())

	inside, err := r.ListByParent(ctx, "u1", folder.Handle)
	require.NoError(t, err)
	require.Len(t, inside, 1)
	assert.Equal(t, nested.Handle, inside[0].Handle)
}

func TestUpdateMetadata(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	f := sampleFile("aaaaaaaaaaaaaaaa", "u1")
	require.NoError(t, r.Create(ctx, f))

	require.NoError(t, r.UpdateMetadata(ctx, "u1", f.Handle, []byte("md2")))

	got, err := r.GetByHandle(ctx, "u1", f.Handle)
	require.NoError(t, err)
	assert.Equal(t, []byte("md2"), got.EncryptedMetadata)

	assert.ErrorIs(t, r.UpdateMetadata(ctx, "u2", f.Handle, []byte("x")), common.ErrNotFound)
	assert.ErrorIs(t, r.UpdateMetadata(ctx, "u1", "missingmissing00", []byte("x")), common.ErrNotFound)
}

func TestStorageUsed(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	used, err := r.StorageUsed(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, used)

	a := sampleFile("aaaaaaaaaaaaaaaa", "u1")
	a.Size = 100
	b := sampleFile("bbbbbbbbbbbbbbbb", "u1")
	b.Size = 250
	other := sampleFile("cccccccccccccccc", "u2")
	other.Size = 999

	require.NoError(t, r.Create(ctx, a))
	require.NoError(t, r.Create(ctx, b))
	require.NoError(t, r.Create(ctx, other))

	used, err = r.StorageUsed(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(350), used)
}
