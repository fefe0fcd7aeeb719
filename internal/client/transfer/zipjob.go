package transfer

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/almers2006/tresor/internal/client/models"
)

// AssembleZip downloads the given files concurrently in buffered mode and
// streams each one into a zip archive as it completes. It is a consumer of
// the single-file download contract: every file is fetched, decrypted and
// signature-verified independently before it is added to the archive.
//
// Output order follows completion order, not input order.
func AssembleZip(ctx context.Context, d *Downloader, entries []*models.FilesystemEntry, w io.Writer, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}

	zw := zip.NewWriter(w)
	var zipMu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, entry := range entries {
		if entry.IsFolder {
			continue
		}
		g.Go(func() error {
			buf, err := d.DownloadBuffer(ctx, &DownloadRequest{Entry: entry})
			if err != nil {
				return fmt.Errorf("%s: %w", entry.Name, err)
			}

			// zip.Writer is not safe for concurrent use; one file is
			// appended at a time.
			zipMu.Lock()
			defer zipMu.Unlock()

			fw, err := zw.CreateHeader(&zip.FileHeader{
				Name:     entry.Name,
				Method:   zip.Deflate,
				Modified: time.Unix(entry.DateAdded, 0).UTC(),
			})
			if err != nil {
				return fmt.Errorf("%s: %w", entry.Name, err)
			}
			if _, err := fw.Write(buf); err != nil {
				return fmt.Errorf("%s: %w", entry.Name, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return zw.Close()
}
