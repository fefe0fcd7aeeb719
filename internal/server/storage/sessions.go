package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/almers2006/tresor/internal/common"
	"github.com/almers2006/tresor/internal/logging"
)

// readSession is one open file descriptor shared by every concurrent reader
// of the same file. Reads are serialized by mu so a seek-then-read never
// interleaves between readers.
type readSession struct {
	mu sync.Mutex

	userID string
	f      *os.File
	size   int64
	timer  *time.Timer

	// closed marks a descriptor the expiry timer (or an invalidation)
	// has closed after this pointer was already handed to a reader.
	closed bool
}

// ChunkSessionStore serves chunk reads for finalized files. A session is
// opened lazily on the first read of a handle, kept while requests arrive
// and closed after a quiet period, so a sequential download pays for one
// open and one header check no matter how many chunks it fetches.
type ChunkSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*readSession

	files  string
	expiry time.Duration
	logger logging.Logger
}

// NewChunkSessionStore serves files from dir, closing idle sessions after
// expiry.
func NewChunkSessionStore(dir string, expiry time.Duration, logger logging.Logger) *ChunkSessionStore {
	return &ChunkSessionStore{
		sessions: make(map[string]*readSession),
		files:    dir,
		expiry:   expiry,
		logger:   logger.With("module", "sessions"),
	}
}

// session returns the open session for handle, creating it if needed.
func (s *ChunkSessionStore) session(ctx context.Context, userID, handle string) (*readSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[handle]; ok {
		if sess.userID != userID {
			return nil, common.ErrOwnershipMismatch
		}
		return sess, nil
	}

	path := filepath.Join(s.files, handle+common.FileExtension)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", common.ErrMissingFileData, handle)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", handle, err)
	}

	header := make([]byte, common.EncryptedFileHeaderSize)
	if _, err := f.ReadAt(header, 0); err != nil || !bytes.Equal(header, common.EncryptedFileMagic) {
		_ = f.Close()
		return nil, fmt.Errorf("%w: bad header in %s", common.ErrMissingFileData, handle)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	sess := &readSession{userID: userID, f: f, size: info.Size()}
	sess.timer = time.AfterFunc(s.expiry, func() { s.expire(handle, sess) })
	s.sessions[handle] = sess

	s.logger.Debug(ctx, "read session opened", "handle", handle, "size", sess.size)
	return sess, nil
}

func (s *ChunkSessionStore) expire(handle string, sess *readSession) {
	s.mu.Lock()
	if s.sessions[handle] != sess {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, handle)
	s.mu.Unlock()

	sess.mu.Lock()
	sess.closed = true
	_ = sess.f.Close()
	sess.mu.Unlock()
}

// ReadChunk returns the encrypted bytes of one chunk. The last chunk of a
// file is shorter than the rest; the returned slice has the exact stored
// length. A chunk id at or past end of file is ErrRangeNotSatisfiable.
func (s *ChunkSessionStore) ReadChunk(ctx context.Context, userID, handle string, chunkID int32) ([]byte, error) {
	if chunkID < 0 {
		return nil, common.ErrRangeNotSatisfiable
	}

	for attempt := 0; ; attempt++ {
		sess, err := s.session(ctx, userID, handle)
		if err != nil {
			return nil, err
		}

		offset := common.EncryptedFileHeaderSize + int64(chunkID)*common.EncryptedChunkSize
		if offset >= sess.size {
			return nil, common.ErrRangeNotSatisfiable
		}
		length := int64(common.EncryptedChunkSize)
		if remaining := sess.size - offset; remaining < length {
			length = remaining
		}

		buf := make([]byte, length)

		sess.mu.Lock()
		if sess.closed {
			// Expiry fired between the session lookup and this read.
			// Retry against a fresh session.
			sess.mu.Unlock()
			if attempt == 0 {
				continue
			}
			return nil, fmt.Errorf("read chunk %d of %s: %w", chunkID, handle, os.ErrClosed)
		}
		_, err = sess.f.ReadAt(buf, offset)
		if err == nil {
			// Every served chunk buys the session another expiry interval.
			sess.timer.Reset(s.expiry)
		}
		sess.mu.Unlock()

		if err != nil {
			return nil, fmt.Errorf("read chunk %d of %s: %w", chunkID, handle, err)
		}
		return buf, nil
	}
}

// Invalidate closes the session for one handle, if open.
func (s *ChunkSessionStore) Invalidate(handle string) {
	s.mu.Lock()
	sess, ok := s.sessions[handle]
	if ok {
		delete(s.sessions, handle)
	}
	s.mu.Unlock()

	if ok {
		sess.mu.Lock()
		sess.closed = true
		sess.timer.Stop()
		_ = sess.f.Close()
		sess.mu.Unlock()
	}
}

// Close shuts every open session down.
func (s *ChunkSessionStore) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*readSession)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		sess.closed = true
		sess.timer.Stop()
		_ = sess.f.Close()
		sess.mu.Unlock()
	}
}
