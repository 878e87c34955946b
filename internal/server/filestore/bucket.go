// Package filestore is the bucket engine. A Bucket is either Local, owning
// a byte store plus the metadata of the files in it, or Remote, forwarding
// every call to the component that hosts the bucket.
package filestore

import (
	"context"
	"io"
	"path"

	"github.com/dmitrijs2005/filestore/internal/server/models"
)

// UploadOptions tunes Upload.
type UploadOptions struct {
	// Interest tags a new record with a shared-access entity.
	Interest string
	// Overwrite permits replacing an existing file, subject to access policy.
	Overwrite bool
	// ActAs attributes the write to another user. Only privileged callers
	// should set it.
	ActAs string
	// AutoPrune silently removes an orphaned payload in the way.
	AutoPrune bool
}

// MoveOptions tunes Move.
type MoveOptions struct {
	Overwrite bool
	ActAs     string
	AutoPrune bool
}

// ListInfoQuery selects records for ListInfo. A nil Pagination returns
// every record.
type ListInfoQuery struct {
	IncludeOwner bool
	Filenames    []string
	Pagination   *models.Pagination
}

// PruneReport lists what Prune reconciled.
type PruneReport struct {
	// RemovedRecords had no payload in the byte store.
	RemovedRecords []string `json:"removed_records"`
	// RemovedPayloads had no metadata record.
	RemovedPayloads []string `json:"removed_payloads"`
}

// Bucket is the operation contract shared by local and remote buckets.
// Failures wrap the sentinels of package common.
type Bucket interface {
	Name() string
	Upload(ctx context.Context, r io.Reader, filename, user string, opts UploadOptions) (*models.StoredFile, error)
	Move(ctx context.Context, filename string, target Bucket, user string, opts MoveOptions) (*models.StoredFile, error)
	Delete(ctx context.Context, filename, user string) error
	// List names what is physically present under dir.
	List(ctx context.Context, dir string) ([]string, error)
	// ListInfo reports recorded state.
	ListInfo(ctx context.Context, q ListInfoQuery) (*models.Page, error)
	Purge(ctx context.Context, user string) error
	// Expose returns an internal redirect location for filename.
	Expose(ctx context.Context, filename, user string) (string, error)
	CheckAccepts(filename string) bool
	// Find returns records whose filename matches a path.Match pattern.
	Find(ctx context.Context, pattern string) ([]models.StoredFileView, error)
	Prune(ctx context.Context, user string) (*PruneReport, error)
}

func checkAccepts(acceptExt []string, filename string) bool {
	ext := path.Ext(filename)
	for _, e := range acceptExt {
		if e == ext {
			return true
		}
	}
	return false
}
