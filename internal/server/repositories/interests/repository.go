package interests

import (
	"context"

	"github.com/dmitrijs2005/filestore/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, interest *models.Interest) error
	GetByID(ctx context.Context, id string) (*models.Interest, error)
	Grant(ctx context.Context, grant *models.InterestGrant) error
	HasGrant(ctx context.Context, interestID, puid, capability string) (bool, error)
}
