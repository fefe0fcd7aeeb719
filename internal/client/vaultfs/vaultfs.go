// Package vaultfs caches directory listings locally in SQLite. Rows are
// stored exactly as the server returns them, still encrypted; decryption
// happens in the CLI with the user's keyring, so the cache file leaks
// nothing beyond handles and sizes.
package vaultfs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/almers2006/tresor/internal/client/transport"
	"github.com/almers2006/tresor/internal/client/vaultfs/migrations"
	"github.com/almers2006/tresor/internal/common"
	"github.com/almers2006/tresor/internal/dbx"
)

// Item is one cached directory row.
type Item struct {
	Handle                string
	ParentHandle          string
	Size                  int64
	EncryptedFileCryptKey []byte // nil for folders
	EncryptedMetadata     []byte
	Signature             []byte // nil for folders
}

// Cache is the local listing store. Safe for concurrent use; SQLite
// serializes writers underneath.
type Cache struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at dsn and applies pending
// migrations.
func Open(ctx context.Context, dsn string) (*Cache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate cache: %w", err)
	}

	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// ReplaceFolder swaps the cached contents of one folder for the server's
// current listing, atomically.
func (c *Cache) ReplaceFolder(ctx context.Context, parentHandle string, items []transport.RemoteItem) error {
	return dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `delete from items where parent_handle=?`, parentHandle); err != nil {
			return fmt.Errorf("failed to clear folder: %w", err)
		}
		for _, it := range items {
			if err := upsert(ctx, tx, &Item{
				Handle:                it.Handle,
				ParentHandle:          parentHandle,
				Size:                  it.Size,
				EncryptedFileCryptKey: it.EncryptedFileCryptKey,
				EncryptedMetadata:     it.EncryptedMetadata,
				Signature:             it.Signature,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Upsert inserts or refreshes a single row.
func (c *Cache) Upsert(ctx context.Context, item *Item) error {
	return upsert(ctx, c.db, item)
}

func upsert(ctx context.Context, db dbx.DBTX, item *Item) error {
	query := ` INSERT INTO items (handle, parent_handle, size, encrypted_file_key, encrypted_metadata, signature)
			values (?, ?, ?, ?, ?, ?)
			ON CONFLICT(handle) DO UPDATE SET parent_handle = excluded.parent_handle,
				size = excluded.size,
				encrypted_file_key = excluded.encrypted_file_key,
				encrypted_metadata = excluded.encrypted_metadata,
				signature = excluded.signature
	`
	_, err := db.ExecContext(ctx, query,
		item.Handle, item.ParentHandle, item.Size,
		item.EncryptedFileCryptKey, item.EncryptedMetadata, item.Signature)
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}
	return nil
}

// ListByParent returns the cached rows under one folder.
func (c *Cache) ListByParent(ctx context.Context, parentHandle string) ([]Item, error) {
	query := `select handle, parent_handle, size, encrypted_file_key, encrypted_metadata, signature
			from items where parent_handle=?`
	rows, err := c.db.QueryContext(ctx, query, parentHandle)
	if err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}
	defer rows.Close()

	var result []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.Handle, &item.ParentHandle, &item.Size,
			&item.EncryptedFileCryptKey, &item.EncryptedMetadata, &item.Signature); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByHandle returns one cached row, or common.ErrNotFound.
func (c *Cache) GetByHandle(ctx context.Context, handle string) (*Item, error) {
	query := `select handle, parent_handle, size, encrypted_file_key, encrypted_metadata, signature
			from items where handle=?`
	row := c.db.QueryRowContext(ctx, query, handle)

	item := &Item{}
	err := row.Scan(&item.Handle, &item.ParentHandle, &item.Size,
		&item.EncryptedFileCryptKey, &item.EncryptedMetadata, &item.Signature)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return item, nil
}

// DeleteByHandle removes one cached row. Missing rows are not an error; the
// cache only mirrors the server.
func (c *Cache) DeleteByHandle(ctx context.Context, handle string) error {
	_, err := c.db.ExecContext(ctx, `delete from items where handle=?`, handle)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}
