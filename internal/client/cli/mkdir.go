package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/almers2006/tresor/internal/cryptox"
)

// Mkdir creates a folder in the current directory.
func (a *App) Mkdir(ctx context.Context, name string) {
	if _, err := a.findByName(ctx, name); err == nil {
		fmt.Println("Error: an entry with that name already exists")
		return
	}

	md := &cryptox.FileMetadata{
		FileName:  name,
		DateAdded: time.Now().UTC().Unix(),
		IsFolder:  true,
	}
	encryptedMetadata, err := cryptox.EncryptFileMetadata(md, a.keys.MasterKey())
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	handle, err := a.client.CreateFolder(ctx, a.cwd(), encryptedMetadata)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Printf("Created %s/ as %s\n", name, handle)
}
