package cli

import (
	"context"
	"fmt"

	"github.com/almers2006/tresor/internal/client/transport"
	"github.com/almers2006/tresor/internal/cryptox"
)

// Rename re-encrypts an entry's metadata under a new name and pushes it to
// the server.
func (a *App) Rename(ctx context.Context, name, newName string) {
	entry, err := a.findByName(ctx, name)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	md := &cryptox.FileMetadata{
		FileName:  newName,
		DateAdded: entry.DateAdded,
		IsFolder:  entry.IsFolder,
	}
	encryptedMetadata, err := cryptox.EncryptFileMetadata(md, a.keys.MasterKey())
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	err = a.client.PutMetadata(ctx, []transport.MetadataUpdate{
		{Handle: entry.Handle, EncryptedMetadata: encryptedMetadata},
	})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Printf("Renamed %s to %s\n", name, newName)
}
