package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/almers2006/tresor/internal/client/keyring"
	"github.com/almers2006/tresor/internal/client/models"
	"github.com/almers2006/tresor/internal/client/transport"
	"github.com/almers2006/tresor/internal/common"
	"github.com/almers2006/tresor/internal/cryptox"
	"github.com/almers2006/tresor/internal/logging"
)

// Uploader turns a local byte source into a registered, encrypted file on
// the server. Chunk transfers run concurrently under an adaptive ceiling
// recomputed from measured throughput; reads stay strictly sequential so
// the file signature accumulates in order.
type Uploader struct {
	client transport.Client
	keys   *keyring.Keyring
	logger logging.Logger

	maxConcurrent       int
	tuneInterval        time.Duration
	throughputIncrement int64
}

// NewUploader builds an Uploader with the standard tuning constants.
func NewUploader(client transport.Client, keys *keyring.Keyring, logger logging.Logger) *Uploader {
	return &Uploader{
		client:              client,
		keys:                keys,
		logger:              logger.With("module", "uploader"),
		maxConcurrent:       common.MaxConcurrentUploadChunks,
		tuneInterval:        common.UploadTuneInterval,
		throughputIncrement: common.UploadThroughputIncrement,
	}
}

// UploadRequest describes one file to upload. Source must deliver exactly
// FileSize bytes.
type UploadRequest struct {
	FileName     string
	FileSize     int64
	Source       io.Reader
	ParentHandle string
	Reporter     Reporter // optional
}

// uploadState is the dispatcher/worker shared state, guarded by mu.
type uploadState struct {
	mu   sync.Mutex
	cond *sync.Cond

	limit       int
	inFlight    int
	transferred int64 // plaintext bytes acknowledged by the server
	ackedSince  int64 // bytes acknowledged since the last tune tick
	firstErr    error
}

func (st *uploadState) fail(err error, cancel context.CancelFunc) {
	st.mu.Lock()
	if st.firstErr == nil {
		st.firstErr = err
		cancel()
	}
	st.cond.Broadcast()
	st.mu.Unlock()
}

// Upload runs the whole upload: handle reservation, the concurrent chunk
// pipeline and the finalize handshake. Only when it returns a non-nil entry
// is the upload durable; any error before that leaves at most an orphaned
// partial object server-side, which is reported as a failure and never as
// success.
//
// Cancellation of ctx is reported as ErrCancelled, a terminal outcome
// distinct from failure.
func (u *Uploader) Upload(ctx context.Context, req *UploadRequest) (*models.FilesystemEntry, error) {
	rep := req.Reporter
	if rep == nil {
		rep = NopReporter
	}

	entry, err := u.upload(ctx, req, rep)
	switch {
	case err == nil:
		rep.Done(StatusFinished, nil)
	case errors.Is(err, common.ErrCancelled):
		rep.Done(StatusCancelled, err)
	default:
		rep.Done(StatusFailed, err)
	}
	return entry, err
}

func (u *Uploader) upload(callerCtx context.Context, req *UploadRequest, rep Reporter) (*models.FilesystemEntry, error) {
	chunkCount := common.ChunkCount(req.FileSize)
	fileKey := cryptox.NewFileKey()

	handle, err := u.client.StartUpload(callerCtx, req.FileSize)
	if err != nil {
		if callerCtx.Err() != nil {
			return nil, common.ErrCancelled
		}
		return nil, fmt.Errorf("start upload: %w", err)
	}

	u.logger.Debug(callerCtx, "upload started",
		"handle", handle, "size", req.FileSize, "chunks", chunkCount)

	// Worker cancellation is explicit: the first failure cancels this
	// context, which aborts all in-flight transmits and stops further
	// chunk starts.
	ctx, cancel := context.WithCancel(callerCtx)
	defer cancel()

	st := &uploadState{limit: 1}
	st.cond = sync.NewCond(&st.mu)

	sig := cryptox.NewFileSignature()

	stopTuner := u.startTuner(ctx, st)
	defer stopTuner()

	var wg sync.WaitGroup

	for id := int32(0); int64(id) < chunkCount; id++ {
		st.mu.Lock()
		for st.inFlight >= st.limit && st.firstErr == nil && ctx.Err() == nil {
			st.cond.Wait()
		}
		stop := st.firstErr != nil || ctx.Err() != nil
		if !stop {
			st.inFlight++
		}
		st.mu.Unlock()
		if stop {
			break
		}

		// Sequential read keeps the signature accumulator ordering.
		size := int64(common.ChunkDataSize)
		if remaining := req.FileSize - int64(id)*common.ChunkDataSize; remaining < size {
			size = remaining
		}
		plaintext := make([]byte, size)
		if _, err := io.ReadFull(req.Source, plaintext); err != nil {
			st.fail(fmt.Errorf("read chunk %d: %w", id, err), cancel)
			st.mu.Lock()
			st.inFlight--
			st.mu.Unlock()
			break
		}
		if err := sig.Append(id, plaintext); err != nil {
			st.fail(err, cancel)
			st.mu.Lock()
			st.inFlight--
			st.mu.Unlock()
			break
		}

		wg.Add(1)
		go u.transferChunk(ctx, cancel, st, &wg, rep, req.FileSize, handle, id, plaintext, fileKey)
	}

	wg.Wait()

	st.mu.Lock()
	firstErr := st.firstErr
	st.mu.Unlock()

	if callerCtx.Err() != nil {
		return nil, common.ErrCancelled
	}
	if firstErr != nil {
		return nil, firstErr
	}

	return u.finalize(callerCtx, req, handle, fileKey, sig)
}

// transferChunk encrypts and transmits one chunk, then immediately frees a
// slot so the dispatcher can start the next one without waiting for a tune
// tick.
func (u *Uploader) transferChunk(ctx context.Context, cancel context.CancelFunc, st *uploadState,
	wg *sync.WaitGroup, rep Reporter, total int64, handle string, id int32, plaintext, fileKey []byte) {

	defer wg.Done()

	encrypted, err := cryptox.EncryptFileChunk(id, plaintext, fileKey)
	if err == nil {
		err = u.client.UploadChunk(ctx, handle, id, encrypted)
	}

	st.mu.Lock()
	st.inFlight--
	if err != nil {
		if st.firstErr == nil {
			st.firstErr = fmt.Errorf("chunk %d: %w", id, err)
			cancel()
		}
	} else {
		st.transferred += int64(len(plaintext))
		st.ackedSince += int64(len(plaintext))
		rep.Progress(st.transferred, total)
	}
	st.cond.Broadcast()
	st.mu.Unlock()
}

// startTuner re-derives the concurrency ceiling from measured throughput on
// a fixed interval. Completions refill slots greedily in between; the tick
// only moves the ceiling.
func (u *Uploader) startTuner(ctx context.Context, st *uploadState) (stop func()) {
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(u.tuneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
			}

			st.mu.Lock()
			bytesPerSec := st.ackedSince * int64(time.Second/u.tuneInterval)
			st.ackedSince = 0

			limit := int(bytesPerSec / u.throughputIncrement)
			if limit < 1 {
				limit = 1
			}
			if limit > u.maxConcurrent {
				limit = u.maxConcurrent
			}
			st.limit = limit
			st.cond.Broadcast()
			st.mu.Unlock()
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func (u *Uploader) finalize(ctx context.Context, req *UploadRequest, handle string,
	fileKey []byte, sig *cryptox.FileSignature) (*models.FilesystemEntry, error) {

	md := &cryptox.FileMetadata{
		FileName:  req.FileName,
		DateAdded: time.Now().UTC().Unix(),
		IsFolder:  false,
	}
	encryptedMetadata, err := cryptox.EncryptFileMetadata(md, u.keys.MasterKey())
	if err != nil {
		return nil, fmt.Errorf("encrypt metadata: %w", err)
	}

	wrappedKey, err := u.keys.WrapFileKey(fileKey)
	if err != nil {
		return nil, fmt.Errorf("wrap file key: %w", err)
	}

	signature, err := sig.Finalize(u.keys.SigningKey(), handle)
	if err != nil {
		return nil, err
	}

	if err := u.client.FinalizeUpload(ctx, handle, req.ParentHandle, encryptedMetadata, wrappedKey, signature); err != nil {
		if ctx.Err() != nil {
			return nil, common.ErrCancelled
		}
		return nil, fmt.Errorf("finalize: %w", err)
	}

	u.logger.Info(ctx, "upload finalized", "handle", handle, "size", req.FileSize)

	return &models.FilesystemEntry{
		Handle:        handle,
		ParentHandle:  req.ParentHandle,
		Name:          req.FileName,
		Size:          req.FileSize,
		EncryptedSize: common.EncryptedFileSize(req.FileSize),
		FileKey:       fileKey,
		Signature:     signature,
		DateAdded:     md.DateAdded,
	}, nil
}
