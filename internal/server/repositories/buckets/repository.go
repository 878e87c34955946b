package buckets

import (
	"context"

	"github.com/dmitrijs2005/filestore/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, bucket *models.Bucket) error
	GetByName(ctx context.Context, name string) (*models.Bucket, error)
}
