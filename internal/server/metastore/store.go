// Package metastore keeps bucket and stored-file metadata. It is the
// database half of every bucket operation; byte payloads live elsewhere and
// the two are reconciled by the filestore engine.
package metastore

import (
	"context"

	"github.com/dmitrijs2005/filestore/internal/server/access"
	"github.com/dmitrijs2005/filestore/internal/server/models"
)

// StoredFileSpec describes a record to upsert.
type StoredFileSpec struct {
	Filename   string
	BucketID   string
	OwnerPUID  string
	InterestID string
	FileInfo   models.FileInfo
	// Reattribute hands an existing record over to OwnerPUID. New records
	// are always owned by OwnerPUID.
	Reattribute bool
}

// ListFilter narrows a bucket listing.
type ListFilter struct {
	Filenames    []string
	IncludeOwner bool
}

// Store is the metadata capability the filestore engine consumes.
type Store interface {
	// RegisterBucket returns the bucket named name, creating it if needed.
	// With mustCreate an existing bucket is an error.
	RegisterBucket(ctx context.Context, name string, mustCreate bool) (*models.Bucket, error)
	GetBucket(ctx context.Context, name string) (*models.Bucket, error)

	GetStoredFile(ctx context.Context, filename, bucketID string) (*models.StoredFile, error)
	// GetStoredFileOwner resolves the owner and, when present, the shared-access
	// entity of a stored file.
	GetStoredFileOwner(ctx context.Context, filename, bucketID string) (*access.Owner, error)
	RegisterStoredFile(ctx context.Context, spec StoredFileSpec) (*models.StoredFile, error)
	ChangeFileBucket(ctx context.Context, filename, fromBucketID, toBucketID string) (*models.StoredFile, error)
	DeleteStoredFile(ctx context.Context, filename, bucketID string) error
	// ListStoredFiles returns every matching record when p is nil.
	ListStoredFiles(ctx context.Context, bucketID string, filter ListFilter, p *models.Pagination) (*models.Page, error)

	EnsureUser(ctx context.Context, puid string) (*models.User, error)
}

func newPage(items []models.StoredFileView, total int, p *models.Pagination) *models.Page {
	page := &models.Page{Items: items, Total: total}
	if p != nil {
		page.Offset = p.Offset
		page.Limit = p.Limit
	}
	return page
}
