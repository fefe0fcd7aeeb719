// Package storage owns the physical encrypted files: staged writes for
// in-flight uploads and shared, self-expiring read sessions for downloads.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/almers2006/tresor/internal/common"
	"github.com/almers2006/tresor/internal/filex"
	"github.com/almers2006/tresor/internal/logging"
)

// activeUpload is one in-flight upload. Chunks may arrive out of order from
// the client's concurrent workers; the file itself is written strictly
// sequentially, with a small reorder buffer in front.
type activeUpload struct {
	mu sync.Mutex

	userID   string
	fileSize int64
	chunks   int64

	f         *os.File
	nextChunk int32
	buffered  map[int32][]byte
}

// ActiveUploadStore stages uploads under a temporary name and moves them
// into the files directory only on finalize, so a crashed upload never
// leaves a half-written file where downloads could see it.
type ActiveUploadStore struct {
	mu      sync.Mutex
	byID    map[string]*activeUpload
	staging string
	files   string
	logger  logging.Logger

	// maxBuffered caps the reorder buffer per upload. A client running
	// further ahead than this is told to back off.
	maxBuffered int
}

// NewActiveUploadStore creates the staging and files directories under root.
func NewActiveUploadStore(root string, logger logging.Logger) (*ActiveUploadStore, error) {
	staging, err := filex.EnsureDir(filepath.Join(root, "staging"))
	if err != nil {
		return nil, err
	}
	files, err := filex.EnsureDir(filepath.Join(root, "files"))
	if err != nil {
		return nil, err
	}
	return &ActiveUploadStore{
		byID:        make(map[string]*activeUpload),
		staging:     staging,
		files:       files,
		logger:      logger.With("module", "uploads"),
		maxBuffered: common.MaxConcurrentUploadChunks,
	}, nil
}

// FilesDir returns the directory finalized files live in.
func (s *ActiveUploadStore) FilesDir() string { return s.files }

// Start reserves a handle for a new upload and opens its staging file with
// the format header already written.
func (s *ActiveUploadStore) Start(ctx context.Context, userID string, fileSize int64) (string, error) {
	if fileSize < 0 || fileSize > common.MaxFileSize {
		return "", fmt.Errorf("invalid file size %d", fileSize)
	}

	handle, err := common.NewHandle()
	if err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(s.staging, uuid.NewString()))
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	if _, err := f.Write(common.EncryptedFileMagic); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write header: %w", err)
	}

	up := &activeUpload{
		userID:   userID,
		fileSize: fileSize,
		chunks:   common.ChunkCount(fileSize),
		f:        f,
		buffered: make(map[int32][]byte),
	}

	s.mu.Lock()
	s.byID[handle] = up
	s.mu.Unlock()

	s.logger.Debug(ctx, "upload started", "handle", handle, "size", fileSize)
	return handle, nil
}

func (s *ActiveUploadStore) get(handle, userID string) (*activeUpload, error) {
	s.mu.Lock()
	up, ok := s.byID[handle]
	s.mu.Unlock()
	if !ok {
		return nil, common.ErrNotFound
	}
	if up.userID != userID {
		return nil, common.ErrOwnershipMismatch
	}
	return up, nil
}

// expectedChunkSize returns the exact encrypted size chunk chunkID must
// have for this upload's file size.
func (up *activeUpload) expectedChunkSize(chunkID int32) int64 {
	return common.PlaintextChunkSize(up.fileSize, chunkID) + common.EncryptedChunkExtraSize
}

// PutChunk accepts one encrypted chunk. Chunks ahead of the write position
// are buffered up to the reorder limit; beyond it the client gets
// ErrRateLimited and must retry later.
func (s *ActiveUploadStore) PutChunk(ctx context.Context, userID, handle string, chunkID int32, data []byte) error {
	up, err := s.get(handle, userID)
	if err != nil {
		return err
	}

	if int64(chunkID) < 0 || int64(chunkID) >= up.chunks {
		return fmt.Errorf("chunk %d out of range: %w", chunkID, common.ErrRangeNotSatisfiable)
	}
	if int64(len(data)) != up.expectedChunkSize(chunkID) {
		return fmt.Errorf("chunk %d: wrong size %d", chunkID, len(data))
	}

	up.mu.Lock()
	defer up.mu.Unlock()

	switch {
	case chunkID < up.nextChunk:
		return fmt.Errorf("chunk %d already written: %w", chunkID, common.ErrInvalidState)
	case chunkID > up.nextChunk:
		if _, ok := up.buffered[chunkID]; ok {
			return fmt.Errorf("chunk %d already buffered: %w", chunkID, common.ErrInvalidState)
		}
		if len(up.buffered) >= s.maxBuffered {
			return common.ErrRateLimited
		}
		up.buffered[chunkID] = data
		return nil
	}

	if err := up.writeSequential(data); err != nil {
		return err
	}

	// Drain any buffered successors that are now contiguous.
	for {
		next, ok := up.buffered[up.nextChunk]
		if !ok {
			return nil
		}
		delete(up.buffered, up.nextChunk)
		if err := up.writeSequential(next); err != nil {
			return err
		}
	}
}

func (up *activeUpload) writeSequential(data []byte) error {
	if _, err := up.f.Write(data); err != nil {
		return fmt.Errorf("write chunk %d: %w", up.nextChunk, err)
	}
	up.nextChunk++
	return nil
}

// Finalize moves a fully-written staging file into the files directory and
// returns the plaintext size the upload was started with. The upload is
// gone from the store afterwards.
func (s *ActiveUploadStore) Finalize(ctx context.Context, userID, handle string) (int64, error) {
	up, err := s.get(handle, userID)
	if err != nil {
		return 0, err
	}

	up.mu.Lock()
	defer up.mu.Unlock()

	if int64(up.nextChunk) != up.chunks {
		return 0, fmt.Errorf("%w: have %d of %d chunks", common.ErrUploadIncomplete, up.nextChunk, up.chunks)
	}
	if err := up.f.Close(); err != nil {
		return 0, fmt.Errorf("close staging file: %w", err)
	}
	if err := os.Rename(up.f.Name(), filepath.Join(s.files, handle+common.FileExtension)); err != nil {
		return 0, fmt.Errorf("publish file: %w", err)
	}

	s.mu.Lock()
	delete(s.byID, handle)
	s.mu.Unlock()

	s.logger.Info(ctx, "upload finalized", "handle", handle, "size", up.fileSize)
	return up.fileSize, nil
}

// Abort drops an in-flight upload and its staging file.
func (s *ActiveUploadStore) Abort(ctx context.Context, userID, handle string) error {
	up, err := s.get(handle, userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.byID, handle)
	s.mu.Unlock()

	up.mu.Lock()
	defer up.mu.Unlock()
	_ = up.f.Close()
	if err := os.Remove(up.f.Name()); err != nil {
		return err
	}
	s.logger.Debug(ctx, "upload aborted", "handle", handle)
	return nil
}
