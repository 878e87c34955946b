package users

import (
	"context"

	"github.com/dmitrijs2005/filestore/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByPUID(ctx context.Context, puid string) (*models.User, error)
}
