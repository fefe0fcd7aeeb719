package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/almers2006/tresor/internal/client/keyring"
	"github.com/almers2006/tresor/internal/client/models"
	"github.com/almers2006/tresor/internal/client/transport"
	"github.com/almers2006/tresor/internal/common"
	"github.com/almers2006/tresor/internal/cryptox"
	"github.com/almers2006/tresor/internal/logging"
)

// Downloader fetches a file chunk-by-chunk, decrypts it, and verifies the
// file signature before the result is accepted. Chunks are requested and
// awaited strictly in order; the signature accumulator depends on it.
type Downloader struct {
	client transport.Client
	keys   *keyring.Keyring
	logger logging.Logger
}

func NewDownloader(client transport.Client, keys *keyring.Keyring, logger logging.Logger) *Downloader {
	return &Downloader{
		client: client,
		keys:   keys,
		logger: logger.With("module", "downloader"),
	}
}

// DownloadRequest describes one file to fetch. Entry must carry the handle,
// plaintext size, unwrapped file key and stored signature.
type DownloadRequest struct {
	Entry    *models.FilesystemEntry
	Cancel   func() bool // optional; polled before each chunk request
	Reporter Reporter    // optional
}

// Sink receives decrypted chunks in order in streaming mode. The
// orchestrator closes it after signature verification succeeds and aborts
// it on any failure, including cancellation.
type Sink interface {
	WriteChunk(chunkID int32, plaintext []byte) error
	Close() error
	Abort() error
}

// DownloadBuffer fetches the whole file into a single pre-sized buffer.
func (d *Downloader) DownloadBuffer(ctx context.Context, req *DownloadRequest) ([]byte, error) {
	buf := make([]byte, req.Entry.Size)

	err := d.run(ctx, req, func(id int32, plaintext []byte) error {
		copy(buf[int64(id)*common.ChunkDataSize:], plaintext)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// DownloadStream fetches the file into sink. The sink sees every chunk in
// order but must not treat the content as trustworthy until Close is
// called: a signature mismatch after the last chunk aborts the sink.
func (d *Downloader) DownloadStream(ctx context.Context, req *DownloadRequest, sink Sink) error {
	rep := req.Reporter
	if rep == nil {
		rep = NopReporter
	}

	err := d.fetchAndVerify(ctx, req, rep, sink.WriteChunk)
	if err == nil {
		err = sink.Close()
	} else if abortErr := sink.Abort(); abortErr != nil {
		d.logger.Warn(ctx, "sink abort failed", "handle", req.Entry.Handle, "error", abortErr)
	}

	switch {
	case err == nil:
		rep.Done(StatusFinished, nil)
	case errors.Is(err, common.ErrCancelled):
		rep.Done(StatusCancelled, err)
	default:
		rep.Done(StatusFailed, err)
	}
	return err
}

func (d *Downloader) run(ctx context.Context, req *DownloadRequest, deliver func(int32, []byte) error) error {
	rep := req.Reporter
	if rep == nil {
		rep = NopReporter
	}

	err := d.fetchAndVerify(ctx, req, rep, deliver)
	switch {
	case err == nil:
		// Finished is reported only after verification succeeded.
		rep.Done(StatusFinished, nil)
	case errors.Is(err, common.ErrCancelled):
		rep.Done(StatusCancelled, err)
	default:
		rep.Done(StatusFailed, err)
	}
	return err
}

func (d *Downloader) fetchAndVerify(ctx context.Context, req *DownloadRequest, rep Reporter, deliver func(int32, []byte) error) error {
	entry := req.Entry
	chunkCount := common.ChunkCount(entry.Size)

	sig := cryptox.NewFileSignature()
	var transferred int64

	for id := int32(0); int64(id) < chunkCount; id++ {
		// Cooperative cancellation, polled before each unit of work.
		if req.Cancel != nil && req.Cancel() {
			return common.ErrCancelled
		}
		if ctx.Err() != nil {
			return common.ErrCancelled
		}

		encrypted, err := d.client.DownloadChunk(ctx, entry.Handle, id)
		if err != nil {
			if ctx.Err() != nil {
				return common.ErrCancelled
			}
			return fmt.Errorf("chunk %d: %w", id, err)
		}

		plaintext, err := cryptox.DecryptFileChunkAt(id, encrypted, entry.FileKey)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", id, err)
		}

		if err := sig.Append(id, plaintext); err != nil {
			return err
		}
		if err := deliver(id, plaintext); err != nil {
			return fmt.Errorf("deliver chunk %d: %w", id, err)
		}

		transferred += int64(len(plaintext))
		rep.Progress(transferred, entry.Size)
	}

	// A tampered or stale file is rejected as a whole, never partially
	// consumed: verification runs only after every chunk arrived.
	if !sig.Verify(d.keys.VerifyKey(), entry.Signature, entry.Handle) {
		return fmt.Errorf("%w: handle %s", common.ErrSignatureMismatch, entry.Handle)
	}
	return nil
}
