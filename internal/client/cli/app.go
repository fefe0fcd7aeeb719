// Package cli implements the interactive tresor client: a small REPL that
// unlocks the local identity, browses the encrypted directory tree and
// moves files in and out of the vault.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/almers2006/tresor/internal/client/config"
	"github.com/almers2006/tresor/internal/client/keyring"
	"github.com/almers2006/tresor/internal/client/models"
	"github.com/almers2006/tresor/internal/client/transfer"
	"github.com/almers2006/tresor/internal/client/transport"
	"github.com/almers2006/tresor/internal/client/vaultfs"
	"github.com/almers2006/tresor/internal/common"
	"github.com/almers2006/tresor/internal/cryptox"
	"github.com/almers2006/tresor/internal/logging"
)

// crumb is one step of the navigation path.
type crumb struct {
	handle string
	name   string
}

type App struct {
	config *config.Config
	client transport.Client
	cache  *vaultfs.Cache
	logger logging.Logger

	keys       *keyring.Keyring
	uploader   *transfer.Uploader
	downloader *transfer.Downloader

	path   []crumb
	reader *bufio.Reader
}

func NewApp(ctx context.Context, c *config.Config, client transport.Client, logger logging.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(c.CachePath), 0o700); err != nil {
		return nil, err
	}
	cache, err := vaultfs.Open(ctx, c.CachePath)
	if err != nil {
		return nil, err
	}

	return &App{
		config: c,
		client: client,
		cache:  cache,
		logger: logger,
		path:   []crumb{{handle: common.RootHandle, name: ""}},
		reader: bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) Close() {
	if a.keys != nil {
		a.keys.Wipe()
	}
	_ = a.cache.Close()
	_ = a.client.Close()
}

func (a *App) isUnlocked() bool {
	return a.keys != nil
}

func (a *App) cwd() string {
	return a.path[len(a.path)-1].handle
}

func (a *App) cwdName() string {
	var s string
	for _, c := range a.path[1:] {
		s += "/" + c.name
	}
	if s == "" {
		return "/"
	}
	return s
}

// Unlock loads the identity file, creating it on first use.
func (a *App) Unlock(ctx context.Context) error {
	password, err := GetPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if _, err := os.Stat(a.config.IdentityPath); errors.Is(err, os.ErrNotExist) {
		fmt.Printf("No identity at %s, creating one\n", a.config.IdentityPath)
		if err := os.MkdirAll(filepath.Dir(a.config.IdentityPath), 0o700); err != nil {
			return err
		}
		a.keys, err = keyring.CreateIdentity(a.config.IdentityPath, password)
		if err != nil {
			return err
		}
	} else {
		a.keys, err = keyring.LoadIdentity(a.config.IdentityPath, password)
		if errors.Is(err, common.ErrAuthenticationFailed) {
			return errors.New("wrong password")
		}
		if err != nil {
			return err
		}
	}

	a.uploader = transfer.NewUploader(a.client, a.keys, a.logger)
	a.downloader = transfer.NewDownloader(a.client, a.keys, a.logger)
	return nil
}

// refresh pulls the listing of the current folder from the server into the
// cache and returns it decrypted.
func (a *App) refresh(ctx context.Context) ([]*models.FilesystemEntry, error) {
	items, err := a.client.ListItems(ctx, a.cwd())
	if err != nil {
		return nil, err
	}
	if err := a.cache.ReplaceFolder(ctx, a.cwd(), items); err != nil {
		a.logger.Warn(ctx, "cache update failed", "error", err)
	}

	entries := make([]*models.FilesystemEntry, 0, len(items))
	for _, it := range items {
		entry, err := a.decryptItem(it)
		if err != nil {
			a.logger.Warn(ctx, "undecryptable item skipped", "handle", it.Handle, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsFolder != entries[j].IsFolder {
			return entries[i].IsFolder
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

func (a *App) decryptItem(it transport.RemoteItem) (*models.FilesystemEntry, error) {
	md, err := cryptox.DecryptFileMetadata(it.EncryptedMetadata, a.keys.MasterKey())
	if err != nil {
		return nil, err
	}

	entry := &models.FilesystemEntry{
		Handle:        it.Handle,
		ParentHandle:  a.cwd(),
		Name:          md.FileName,
		Size:          it.Size,
		EncryptedSize: common.EncryptedFileSize(it.Size),
		IsFolder:      md.IsFolder,
		Signature:     it.Signature,
		DateAdded:     md.DateAdded,
	}
	if !entry.IsFolder {
		entry.FileKey, err = a.keys.UnwrapFileKey(it.EncryptedFileCryptKey)
		if err != nil {
			return nil, err
		}
	}
	return entry, nil
}

// findByName resolves a name in the current folder.
func (a *App) findByName(ctx context.Context, name string) (*models.FilesystemEntry, error) {
	entries, err := a.refresh(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e, nil
		}
	}
	return nil, common.ErrNotFound
}
