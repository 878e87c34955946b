package storedfiles

import (
	"context"

	"github.com/dmitrijs2005/filestore/internal/server/models"
)

// ListQuery selects stored files of one bucket. Empty Filenames means all
// files; Limit <= 0 means no limit.
type ListQuery struct {
	BucketID     string
	Filenames    []string
	IncludeOwner bool
	Offset       int
	Limit        int
}

type Repository interface {
	Create(ctx context.Context, file *models.StoredFile) error
	Get(ctx context.Context, filename, bucketID string) (*models.StoredFile, error)
	UpdateFileInfo(ctx context.Context, id string, info models.FileInfo, ownerUserID string) error
	ChangeBucket(ctx context.Context, id, bucketID string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q ListQuery) ([]models.StoredFileView, error)
	Count(ctx context.Context, q ListQuery) (int, error)
}
