package storage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almers2006/tresor/internal/common"
	"github.com/almers2006/tresor/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func setupStores(t *testing.T, expiry time.Duration) (*ActiveUploadStore, *ChunkSessionStore) {
	t.Helper()
	uploads, err := NewActiveUploadStore(t.TempDir(), testLogger())
	require.NoError(t, err)
	sessions := NewChunkSessionStore(uploads.FilesDir(), expiry, testLogger())
	t.Cleanup(sessions.Close)
	return uploads, sessions
}

// chunkPayload builds a fake encrypted chunk of the exact size the store
// expects for chunk chunkID of a file of fileSize plaintext bytes, filled
// with fill.
func chunkPayload(fileSize int64, chunkID int32, fill byte) []byte {
	size := common.PlaintextChunkSize(fileSize, chunkID) + common.EncryptedChunkExtraSize
	return bytes.Repeat([]byte{fill}, int(size))
}

func TestUpload_InOrder(t *testing.T) {
	uploads, _ := setupStores(t, time.Minute)
	ctx := context.Background()

	fileSize := int64(2*common.ChunkDataSize + 100)
	handle, err := uploads.Start(ctx, "u1", fileSize)
	require.NoError(t, err)
	require.True(t, common.ValidHandle(handle))

	for id := int32(0); id < 3; id++ {
		require.NoError(t, uploads.PutChunk(ctx, "u1", handle, id, chunkPayload(fileSize, id, byte(id))))
	}
	size, err := uploads.Finalize(ctx, "u1", handle)
	require.NoError(t, err)
	assert.Equal(t, fileSize, size)

	// Finalized files start with the format magic and hold the chunks
	// back to back.
	stored, err := os.ReadFile(filepath.Join(uploads.FilesDir(), handle+common.FileExtension))
	require.NoError(t, err)
	assert.Equal(t, common.EncryptedFileSize(fileSize), int64(len(stored)))
	assert.Equal(t, common.EncryptedFileMagic, stored[:4])
	assert.Equal(t, chunkPayload(fileSize, 0, 0), stored[4:4+common.EncryptedChunkSize])

	// The handle is gone from the store once published.
	assert.ErrorIs(t, uploads.PutChunk(ctx, "u1", handle, 0, chunkPayload(fileSize, 0, 9)), common.ErrNotFound)
}

func TestUpload_OutOfOrderBuffering(t *testing.T) {
	uploads, _ := setupStores(t, time.Minute)
	ctx := context.Background()

	fileSize := int64(2*common.ChunkDataSize + 100)
	handle, err := uploads.Start(ctx, "u1", fileSize)
	require.NoError(t, err)

	// 2 and 1 arrive before 0 and must wait in the reorder buffer.
	require.NoError(t, uploads.PutChunk(ctx, "u1", handle, 2, chunkPayload(fileSize, 2, 2)))
	require.NoError(t, uploads.PutChunk(ctx, "u1", handle, 1, chunkPayload(fileSize, 1, 1)))
	require.NoError(t, uploads.PutChunk(ctx, "u1", handle, 0, chunkPayload(fileSize, 0, 0)))

	size, err := uploads.Finalize(ctx, "u1", handle)
	require.NoError(t, err)
	assert.Equal(t, fileSize, size)

	stored, err := os.ReadFile(filepath.Join(uploads.FilesDir(), handle+common.FileExtension))
	require.NoError(t, err)
	require.Equal(t, common.EncryptedFileSize(fileSize), int64(len(stored)))

	// Order on disk is chunk order, not arrival order.
	second := stored[4+common.EncryptedChunkSize : 4+2*common.EncryptedChunkSize]
	assert.Equal(t, chunkPayload(fileSize, 1, 1), second)
}

func TestUpload_BufferLimitRateLimits(t *testing.T) {
	uploads, _ := setupStores(t, time.Minute)
	ctx := context.Background()

	fileSize := int64(6 * common.ChunkDataSize)
	handle, err := uploads.Start(ctx, "u1", fileSize)
	require.NoError(t, err)

	// Chunk 0 never arrives, so ids 1..4 fill the reorder buffer.
	for id := int32(1); id <= 4; id++ {
		require.NoError(t, uploads.PutChunk(ctx, "u1", handle, id, chunkPayload(fileSize, id, byte(id))))
	}
	err = uploads.PutChunk(ctx, "u1", handle, 5, chunkPayload(fileSize, 5, 5))
	assert.ErrorIs(t, err, common.ErrRateLimited)

	// Delivering the missing chunk drains the buffer and makes room.
	require.NoError(t, uploads.PutChunk(ctx, "u1", handle, 0, chunkPayload(fileSize, 0, 0)))
	require.NoError(t, uploads.PutChunk(ctx, "u1", handle, 5, chunkPayload(fileSize, 5, 5)))
	size, err := uploads.Finalize(ctx, "u1", handle)
	require.NoError(t, err)
	assert.Equal(t, fileSize, size)
}

func TestUpload_Validation(t *testing.T) {
	uploads, _ := setupStores(t, time.Minute)
	ctx := context.Background()

	fileSize := int64(100)
	handle, err := uploads.Start(ctx, "u1", fileSize)
	require.NoError(t, err)

	t.Run("wrong size", func(t *testing.T) {
		err := uploads.PutChunk(ctx, "u1", handle, 0, make([]byte, 10))
		assert.Error(t, err)
	})

	t.Run("chunk id out of range", func(t *testing.T) {
		err := uploads.PutChunk(ctx, "u1", handle, 1, chunkPayload(fileSize, 0, 0))
		assert.ErrorIs(t, err, common.ErrRangeNotSatisfiable)
	})

	t.Run("wrong owner", func(t *testing.T) {
		err := uploads.PutChunk(ctx, "u2", handle, 0, chunkPayload(fileSize, 0, 0))
		assert.ErrorIs(t, err, common.ErrOwnershipMismatch)
	})

	t.Run("finalize incomplete", func(t *testing.T) {
		_, err := uploads.Finalize(ctx, "u1", handle)
		assert.ErrorIs(t, err, common.ErrUploadIncomplete)
	})

	t.Run("duplicate chunk", func(t *testing.T) {
		require.NoError(t, uploads.PutChunk(ctx, "u1", handle, 0, chunkPayload(fileSize, 0, 0)))
		err := uploads.PutChunk(ctx, "u1", handle, 0, chunkPayload(fileSize, 0, 0))
		assert.ErrorIs(t, err, common.ErrInvalidState)
	})
}

func TestUpload_EmptyFile(t *testing.T) {
	uploads, _ := setupStores(t, time.Minute)
	ctx := context.Background()

	handle, err := uploads.Start(ctx, "u1", 0)
	require.NoError(t, err)
	size, err := uploads.Finalize(ctx, "u1", handle)
	require.NoError(t, err)
	assert.Zero(t, size)

	stored, err := os.ReadFile(filepath.Join(uploads.FilesDir(), handle+common.FileExtension))
	require.NoError(t, err)
	assert.Equal(t, common.EncryptedFileMagic, stored)
}

func TestUpload_Abort(t *testing.T) {
	uploads, _ := setupStores(t, time.Minute)
	ctx := context.Background()

	fileSize := int64(100)
	handle, err := uploads.Start(ctx, "u1", fileSize)
	require.NoError(t, err)
	require.NoError(t, uploads.PutChunk(ctx, "u1", handle, 0, chunkPayload(fileSize, 0, 0)))

	require.NoError(t, uploads.Abort(ctx, "u1", handle))
	_, err = uploads.Finalize(ctx, "u1", handle)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

// finalizeTestFile uploads a file of fileSize where chunk i is filled with
// byte i, and returns its handle.
func finalizeTestFile(t *testing.T, uploads *ActiveUploadStore, userID string, fileSize int64) string {
	t.Helper()
	ctx := context.Background()
	handle, err := uploads.Start(ctx, userID, fileSize)
	require.NoError(t, err)
	for id := int32(0); int64(id) < common.ChunkCount(fileSize); id++ {
		require.NoError(t, uploads.PutChunk(ctx, userID, handle, id, chunkPayload(fileSize, id, byte(id))))
	}
	_, err = uploads.Finalize(ctx, userID, handle)
	require.NoError(t, err)
	return handle
}

func TestReadChunk(t *testing.T) {
	uploads, sessions := setupStores(t, time.Minute)
	ctx := context.Background()

	fileSize := int64(2*common.ChunkDataSize + 100)
	handle := finalizeTestFile(t, uploads, "u1", fileSize)

	for id := int32(0); id < 3; id++ {
		got, err := sessions.ReadChunk(ctx, "u1", handle, id)
		require.NoError(t, err)
		assert.Equal(t, chunkPayload(fileSize, id, byte(id)), got)
	}

	// The final chunk is short: exactly the stored length, never padded.
	last, err := sessions.ReadChunk(ctx, "u1", handle, 2)
	require.NoError(t, err)
	assert.Len(t, last, 100+common.EncryptedChunkExtraSize)
}

func TestReadChunk_Errors(t *testing.T) {
	uploads, sessions := setupStores(t, time.Minute)
	ctx := context.Background()

	handle := finalizeTestFile(t, uploads, "u1", 100)

	t.Run("past end of file", func(t *testing.T) {
		_, err := sessions.ReadChunk(ctx, "u1", handle, 1)
		assert.ErrorIs(t, err, common.ErrRangeNotSatisfiable)
	})

	t.Run("negative id", func(t *testing.T) {
		_, err := sessions.ReadChunk(ctx, "u1", handle, -1)
		assert.ErrorIs(t, err, common.ErrRangeNotSatisfiable)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := sessions.ReadChunk(ctx, "u1", "nosuchhandle0000", 0)
		assert.ErrorIs(t, err, common.ErrMissingFileData)
	})

	t.Run("wrong owner on open session", func(t *testing.T) {
		_, err := sessions.ReadChunk(ctx, "u2", handle, 0)
		assert.ErrorIs(t, err, common.ErrOwnershipMismatch)
	})
}

func TestReadChunk_SessionExpiresAndReopens(t *testing.T) {
	uploads, sessions := setupStores(t, 50*time.Millisecond)
	ctx := context.Background()

	handle := finalizeTestFile(t, uploads, "u1", 100)

	_, err := sessions.ReadChunk(ctx, "u1", handle, 0)
	require.NoError(t, err)

	sessions.mu.Lock()
	_, open := sessions.sessions[handle]
	sessions.mu.Unlock()
	assert.True(t, open)

	require.Eventually(t, func() bool {
		sessions.mu.Lock()
		defer sessions.mu.Unlock()
		_, open := sessions.sessions[handle]
		return !open
	}, time.Second, 10*time.Millisecond)

	// A read after expiry transparently opens a fresh session.
	got, err := sessions.ReadChunk(ctx, "u1", handle, 0)
	require.NoError(t, err)
	assert.Equal(t, chunkPayload(100, 0, 0), got)
}

func TestReadChunk_ExpiredSessionPointerIsNotServed(t *testing.T) {
	uploads, sessions := setupStores(t, time.Minute)
	ctx := context.Background()

	handle := finalizeTestFile(t, uploads, "u1", 100)

	// Hold the session pointer a racing request would have, then let the
	// expiry close its descriptor.
	sess, err := sessions.session(ctx, "u1", handle)
	require.NoError(t, err)
	sessions.expire(handle, sess)
	assert.True(t, sess.closed)

	got, err := sessions.ReadChunk(ctx, "u1", handle, 0)
	require.NoError(t, err)
	assert.Equal(t, chunkPayload(100, 0, 0), got)
}

func TestReadChunk_ExpiryRaceLosesNoReads(t *testing.T) {
	uploads, sessions := setupStores(t, time.Millisecond)
	ctx := context.Background()

	handle := finalizeTestFile(t, uploads, "u1", 100)

	// Reads paced at the expiry interval keep colliding with the timer;
	// none of them may surface a closed-descriptor error.
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deadline := time.Now().Add(150 * time.Millisecond)
			for time.Now().Before(deadline) {
				if _, err := sessions.ReadChunk(ctx, "u1", handle, 0); err != nil {
					errs <- err
					return
				}
				time.Sleep(time.Millisecond)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("read lost to expiry: %v", err)
	}
}

func TestReadChunk_ConcurrentReadsAreWhole(t *testing.T) {
	uploads, sessions := setupStores(t, time.Minute)
	ctx := context.Background()

	fileSize := int64(4 * common.ChunkDataSize)
	handle := finalizeTestFile(t, uploads, "u1", fileSize)

	var wg sync.WaitGroup
	errs := make(chan error, 16)

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for iter := 0; iter < 4; iter++ {
				for id := int32(0); id < 4; id++ {
					got, err := sessions.ReadChunk(ctx, "u1", handle, id)
					if err != nil {
						errs <- err
						return
					}
					for _, b := range got {
						if b != byte(id) {
							errs <- assert.AnError
							return
						}
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent read failed: %v", err)
	}
}
