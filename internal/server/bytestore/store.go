// Package bytestore holds file payloads for a bucket. A Store is addressed by
// a URI: osfs://<path> for a local directory, mem://<name> for a process-local
// filesystem and s3://<bucket>/<prefix> for an object store.
package bytestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/filex"
	"github.com/fishy/errbatch"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
)

// Housekeeping entries hidden from List by default.
var (
	DefaultExcludedNames = []string{"lost+found", ".DS_Store"}
	DefaultExcludedDirs  = []string{"lost+found"}
)

// Info is what a store reports about a stored payload. Created and Modified
// are nil when the backend does not track them.
type Info struct {
	Size     int64
	Created  *time.Time
	Modified *time.Time
}

// Store is the byte half of a bucket.
type Store interface {
	URI() string
	Exists(ctx context.Context, name string) (bool, error)
	// Create writes r to name, replacing any previous content, and returns
	// the number of bytes written.
	Create(ctx context.Context, name string, r io.Reader) (int64, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Remove(ctx context.Context, name string) error
	// RemoveAll removes name and everything below it. A missing name is
	// not an error.
	RemoveAll(ctx context.Context, name string) error
	Stat(ctx context.Context, name string) (Info, error)
	// List returns entry names directly under path.
	List(ctx context.Context, path string, excludedNames, excludedDirs []string) ([]string, error)
	MkdirAll(ctx context.Context, path string) error
}

// S3Options carries credentials for s3:// stores.
type S3Options struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

// Open returns the store addressed by uri. osfs:// directories are created
// when missing.
func Open(ctx context.Context, uri string, opts S3Options) (Store, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return nil, fmt.Errorf("store uri %q has no scheme: %w", uri, common.ErrorValidation)
	}

	switch scheme {
	case "osfs":
		path, err := filex.EnsureDir(rest)
		if err != nil {
			return nil, err
		}
		return NewBillyStore(uri, osfs.New(path)), nil
	case "mem":
		return NewBillyStore(uri, memfs.New()), nil
	case "s3":
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return nil, fmt.Errorf("store uri %q has no bucket: %w", uri, common.ErrorValidation)
		}
		return NewS3Store(ctx, uri, bucket, prefix, opts)
	default:
		return nil, fmt.Errorf("unsupported store scheme %q: %w", scheme, common.ErrorValidation)
	}
}

// Move relocates srcName in src to dstName in dst. Within one filesystem it
// is a rename; otherwise the payload is copied and the source removed.
func Move(ctx context.Context, src Store, srcName string, dst Store, dstName string) error {
	if s, ok := src.(*BillyStore); ok {
		if d, ok := dst.(*BillyStore); ok && s.fs == d.fs {
			return s.rename(srcName, dstName)
		}
	}

	rc, err := src.Open(ctx, srcName)
	if err != nil {
		return err
	}
	_, err = dst.Create(ctx, dstName, rc)
	if cerr := rc.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("copy %s: %w", srcName, err)
	}

	if err := src.Remove(ctx, srcName); err != nil {
		var batch errbatch.ErrBatch
		batch.Add(fmt.Errorf("remove source %s: %w", srcName, err))
		if rerr := dst.Remove(ctx, dstName); rerr != nil {
			batch.Add(fmt.Errorf("roll back %s: %w", dstName, rerr))
		}
		return JoinBatch(&batch)
	}
	return nil
}

// JoinBatch flattens batch into an error that errors.Is can see through.
// It is nil when nothing was added.
func JoinBatch(batch *errbatch.ErrBatch) error {
	return errors.Join(batch.GetErrors()...)
}

func excluded(name string, list []string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}
