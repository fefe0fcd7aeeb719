package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/almers2006/tresor/internal/client/transfer"
	"github.com/almers2006/tresor/internal/common"
)

// fileSink streams decrypted chunks into a temporary file and renames it
// into place only after the whole download verified.
type fileSink struct {
	f     *os.File
	final string
}

func newFileSink(path string) (*fileSink, error) {
	f, err := os.CreateTemp(".", ".tresor-download-*")
	if err != nil {
		return nil, err
	}
	return &fileSink{f: f, final: path}, nil
}

func (s *fileSink) WriteChunk(_ int32, plaintext []byte) error {
	_, err := s.f.Write(plaintext)
	return err
}

func (s *fileSink) Close() error {
	if err := s.f.Close(); err != nil {
		return err
	}
	return os.Rename(s.f.Name(), s.final)
}

func (s *fileSink) Abort() error {
	_ = s.f.Close()
	return os.Remove(s.f.Name())
}

// Get downloads one file from the current folder to destPath (defaulting to
// the file's own name).
func (a *App) Get(ctx context.Context, name, destPath string) {
	entry, err := a.findByName(ctx, name)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if entry.IsFolder {
		fmt.Println("Error: that is a folder, use zip to fetch it as an archive")
		return
	}
	if destPath == "" {
		destPath = entry.Name
	}

	sink, err := newFileSink(destPath)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	err = a.downloader.DownloadStream(ctx, &transfer.DownloadRequest{
		Entry:    entry,
		Reporter: transfer.NewBarReporter("downloading "+entry.Name, entry.Size),
	}, sink)
	switch {
	case errors.Is(err, common.ErrCancelled):
		fmt.Println("Download cancelled")
	case errors.Is(err, common.ErrSignatureMismatch):
		fmt.Println("Error: file failed verification, refusing to save it")
	case err != nil:
		fmt.Println("Download failed:", err)
	default:
		fmt.Printf("Saved %s (%d bytes)\n", destPath, entry.Size)
	}
}

// Zip downloads every file in the current folder into one zip archive.
func (a *App) Zip(ctx context.Context, destPath string) {
	entries, err := a.refresh(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if len(entries) == 0 {
		fmt.Println("Folder is empty")
		return
	}

	out, err := os.Create(destPath)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	err = transfer.AssembleZip(ctx, a.downloader, entries, out, 2)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(destPath)
		fmt.Println("Archive failed:", err)
		return
	}
	fmt.Printf("Saved %s\n", destPath)
}
