package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/almers2006/tresor/internal/client/transfer"
	"github.com/almers2006/tresor/internal/common"
)

// Put encrypts and uploads one local file into the current folder.
func (a *App) Put(ctx context.Context, localPath string) {
	f, err := os.Open(localPath)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if info.IsDir() {
		fmt.Println("Error: directories cannot be uploaded, use mkdir and put files individually")
		return
	}
	if info.Size() > common.MaxFileSize {
		fmt.Println("Error: file too large")
		return
	}

	name := filepath.Base(localPath)
	entry, err := a.uploader.Upload(ctx, &transfer.UploadRequest{
		FileName:     name,
		FileSize:     info.Size(),
		Source:       f,
		ParentHandle: a.cwd(),
		Reporter:     transfer.NewBarReporter("uploading "+name, info.Size()),
	})
	switch {
	case errors.Is(err, common.ErrCancelled):
		fmt.Println("Upload cancelled")
	case errors.Is(err, common.ErrQuotaExceeded):
		fmt.Println("Error: storage quota exceeded")
	case err != nil:
		fmt.Println("Upload failed:", err)
	default:
		fmt.Printf("Uploaded %s (%d bytes) as %s\n", name, entry.Size, entry.Handle)
	}
}
