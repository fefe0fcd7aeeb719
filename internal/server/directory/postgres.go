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

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or
// *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (handle, user_id, parent_handle, size, encrypted_metadata, encrypted_file_key, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		file.Handle, file.UserID, file.ParentHandle, file.Size,
		file.EncryptedMetadata, file.EncryptedFileCryptKey, file.Signature)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByHandle(ctx context.Context, userID, handle string) (*models.File, error) {
	query := `
		SELECT handle, user_id, parent_handle, size, encrypted_metadata, encrypted_file_key, signature
		FROM files WHERE user_id=$1 AND handle=$2
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

func (r *PostgresRepository) ListByParent(ctx context.Context, userID, parentHandle string) ([]*models.File, error) {
	query := `
		SELECT handle, user_id, parent_handle, size, encrypted_metadata, encrypted_file_key, signature
		FROM files WHERE user_id=$1 AND parent_handle=$2
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

func (r *PostgresRepository) UpdateMetadata(ctx context.Context, userID, handle string, encryptedMetadata []byte) error {
	query := `UPDATE files SET encrypted_metadata=$3 WHERE user_id=$1 AND handle=$2`
	res, err := r.db.ExecContext(ctx, query, userID, handle, encryptedMetadata)
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

func (r *PostgresRepository) StorageUsed(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COALESCE(SUM(size), 0) FROM files WHERE user_id=$1`
	var used int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&used); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return used, nil
}
