package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/almers2006/tresor/internal/common"
	"github.com/almers2006/tresor/internal/dbx"
	"github.com/almers2006/tresor/internal/server/models"
)

// SQLiteRepository implements Repository for single-node deployments.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository constructs a repository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (handle, user_id, parent_handle, size, encrypted_metadata, encrypted_file_key, signature)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		file.Handle, file.UserID, file.ParentHandle, file.Size,
		file.EncryptedMetadata, file.EncryptedFileCryptKey, file.Signature)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByHandle(ctx context.Context, userID, handle string) (*models.File, error) {
	query := `
		SELECT handle, user_id, parent_handle, size, encrypted_metadata, encrypted_file_key, signature
		FROM files WHERE user_id=? AND handle=?
	`
	row := r.db.QueryRowContext(ctx, query, userID, handle)

	f := &models.File{}
	err := row.Scan(&f.Handle, &f.UserID, &f.ParentHandle, &f.Size,
		&f.EncryptedMetadata, &f.EncryptedFileCryptKey, &f.Signature)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *SQLiteRepository) ListByParent(ctx context.Context, userID, parentHandle string) ([]*models.File, error) {
	query := `
		SELECT handle, user_id, parent_handle, size, encrypted_metadata, encrypted_file_key, signature
		FROM files WHERE user_id=? AND parent_handle=?
	`
	rows, err := r.db.QueryContext(ctx, query, userID, parentHandle)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f := &models.File{}
		if err := rows.Scan(&f.Handle, &f.UserID, &f.ParentHandle, &f.Size,
			&f.EncryptedMetadata, &f.EncryptedFileCryptKey, &f.Signature); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) UpdateMetadata(ctx context.Context, userID, handle string, encryptedMetadata []byte) error {
	query := `UPDATE files SET encrypted_metadata=? WHERE user_id=? AND handle=?`
	res, err := r.db.ExecContext(ctx, query, encryptedMetadata, userID, handle)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) StorageUsed(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COALESCE(SUM(size), 0) FROM files WHERE user_id=?`
	var used int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&used); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return used, nil
}
