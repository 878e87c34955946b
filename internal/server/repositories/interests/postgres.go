package interests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/dbx"
	"github.com/dmitrijs2005/filestore/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, interest *models.Interest) error {
	query := `INSERT INTO interests (id, type, name) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, interest.ID, interest.Type, interest.Name); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Interest, error) {
	query := `SELECT id, type, name FROM interests WHERE id = $1`

	result := &models.Interest{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&result.ID, &result.Type, &result.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Grant is idempotent.
func (r *PostgresRepository) Grant(ctx context.Context, grant *models.InterestGrant) error {
	query := `
		INSERT INTO interest_grants (interest_id, user_id, capability)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, grant.InterestID, grant.UserID, grant.Capability); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// HasGrant reports whether the user with public id puid holds capability
// through interestID.
func (r *PostgresRepository) HasGrant(ctx context.Context, interestID, puid, capability string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM interest_grants g
		JOIN users u ON u.id = g.user_id
		WHERE g.interest_id = $1 AND u.puid = $2 AND g.capability = $3
	)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, interestID, puid, capability).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}
