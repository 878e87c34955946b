package buckets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/dbx"
	"github.com/dmitrijs2005/filestore/internal/server/models"
)

// PostgresRepository stores bucket rows over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a bucket row. A duplicate name yields common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, bucket *models.Bucket) error {
	query := `INSERT INTO filestore_buckets (id, name) VALUES ($1, $2)`

	if _, err := r.db.ExecContext(ctx, query, bucket.ID, bucket.Name); err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("bucket %q: %w", bucket.Name, common.ErrorAlreadyExists)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByName returns common.ErrorNotFound when no bucket has that name.
func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.Bucket, error) {
	query := `SELECT id, name FROM filestore_buckets WHERE name = $1`

	result := &models.Bucket{}
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&result.ID, &result.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
