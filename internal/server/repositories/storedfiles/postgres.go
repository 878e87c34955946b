package storedfiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/dbx"
	"github.com/dmitrijs2005/filestore/internal/server/models"
)

// PostgresRepository implements stored-file metadata over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create inserts a new record. A second record for the same
// (filename, bucket) yields common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, file *models.StoredFile) error {
	query := `
		INSERT INTO stored_files (id, filename, bucket_id, user_id, interest_id, fileinfo)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		file.ID, file.Filename, file.BucketID, file.OwnerUserID, nullable(file.InterestID), file.FileInfo)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("stored file %q: %w", file.Filename, common.ErrorAlreadyExists)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the record for filename in bucketID or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, filename, bucketID string) (*models.StoredFile, error) {
	query := `SELECT id, filename, bucket_id, user_id, interest_id, fileinfo FROM stored_files
		WHERE filename=$1 AND bucket_id=$2
		`

	var interest sql.NullString
	result := &models.StoredFile{}
	err := r.db.QueryRowContext(ctx, query, filename, bucketID).
		Scan(&result.ID, &result.Filename, &result.BucketID, &result.OwnerUserID, &interest, &result.FileInfo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	result.InterestID = interest.String
	return result, nil
}

// UpdateFileInfo replaces fileinfo and the owner of record id.
func (r *PostgresRepository) UpdateFileInfo(ctx context.Context, id string, info models.FileInfo, ownerUserID string) error {
	query := `UPDATE stored_files SET fileinfo=$2, user_id=$3 WHERE id=$1`
	return r.execOne(ctx, query, id, info, ownerUserID)
}

// ChangeBucket re-homes record id to bucketID.
func (r *PostgresRepository) ChangeBucket(ctx context.Context, id, bucketID string) error {
	query := `UPDATE stored_files SET bucket_id=$2 WHERE id=$1`
	err := r.execOne(ctx, query, id, bucketID)
	if dbx.IsUniqueViolation(err) {
		return fmt.Errorf("stored file %s: %w", id, common.ErrorAlreadyExists)
	}
	return err
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM stored_files WHERE id=$1`
	return r.execOne(ctx, query, id)
}

// execOne runs a statement that must touch exactly one row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// where builds the shared filter; positional args start at $1.
func where(q ListQuery) (string, []any) {
	clause := "sf.bucket_id=$1"
	args := []any{q.BucketID}
	if len(q.Filenames) > 0 {
		ph := make([]string, len(q.Filenames))
		for i, name := range q.Filenames {
			args = append(args, name)
			ph[i] = fmt.Sprintf("$%d", len(args))
		}
		clause += " AND sf.filename IN (" + strings.Join(ph, ", ") + ")"
	}
	return clause, args
}

// List returns views ordered by filename.
func (r *PostgresRepository) List(ctx context.Context, q ListQuery) ([]models.StoredFileView, error) {
	clause, args := where(q)

	var query string
	if q.IncludeOwner {
		query = `SELECT sf.filename, sf.fileinfo, u.puid FROM stored_files sf
			JOIN users u ON u.id = sf.user_id
			WHERE ` + clause + ` ORDER BY sf.filename`
	} else {
		query = `SELECT sf.filename, sf.fileinfo FROM stored_files sf
			WHERE ` + clause + ` ORDER BY sf.filename`
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select stored files: %w", err)
	}
	defer rows.Close()

	result := []models.StoredFileView{}
	for rows.Next() {
		var item models.StoredFileView
		dest := []any{&item.Filename, &item.FileInfo}
		if q.IncludeOwner {
			dest = append(dest, &item.Owner)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Count returns how many records match q, ignoring the window.
func (r *PostgresRepository) Count(ctx context.Context, q ListQuery) (int, error) {
	clause, args := where(q)
	query := `SELECT COUNT(*) FROM stored_files sf WHERE ` + clause

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count stored files: %w", err)
	}
	return n, nil
}
