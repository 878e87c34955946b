package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/logging"
	"github.com/dmitrijs2005/filestore/internal/server/access"
	"github.com/dmitrijs2005/filestore/internal/server/bytestore"
	"github.com/dmitrijs2005/filestore/internal/server/metastore"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/dustin/go-humanize"
	"github.com/fishy/errbatch"
	"github.com/fishy/rowlock"
)

// hashChunkSize is how much of a payload is fed to the digest at a time.
const hashChunkSize = 1 << 10

// LocalConfig is the static configuration of a local bucket.
type LocalConfig struct {
	Name          string
	Policy        models.BucketPolicy
	ExcludedNames []string
	ExcludedDirs  []string
}

// Option customizes a Local bucket.
type Option func(*Local)

func WithLogger(l logging.Logger) Option {
	return func(b *Local) { b.logger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(b *Local) { b.metrics = m }
}

// WithLocks shares a row lock between buckets so a move holds the keys of
// both ends.
func WithLocks(l *rowlock.RowLock) Option {
	return func(b *Local) { b.locks = l }
}

type lockKey struct {
	bucket   string
	filename string
}

// Local is a bucket hosted by this process.
type Local struct {
	id            string
	name          string
	policy        models.BucketPolicy
	store         bytestore.Store
	meta          metastore.Store
	locks         *rowlock.RowLock
	metrics       *Metrics
	logger        logging.Logger
	excludedNames []string
	excludedDirs  []string
}

// NewLocal registers the bucket in meta and binds it to store.
func NewLocal(ctx context.Context, cfg LocalConfig, store bytestore.Store, meta metastore.Store, opts ...Option) (*Local, error) {
	b := &Local{
		name:          cfg.Name,
		policy:        cfg.Policy,
		store:         store,
		meta:          meta,
		excludedNames: cfg.ExcludedNames,
		excludedDirs:  cfg.ExcludedDirs,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.NewDiscardLogger()
	}
	if b.locks == nil {
		b.locks = rowlock.NewRowLock(rowlock.MutexNewLocker)
	}
	if b.excludedNames == nil {
		b.excludedNames = bytestore.DefaultExcludedNames
	}
	if b.excludedDirs == nil {
		b.excludedDirs = bytestore.DefaultExcludedDirs
	}
	b.logger = b.logger.With("bucket", cfg.Name)

	rec, err := meta.RegisterBucket(ctx, cfg.Name, false)
	if err != nil {
		return nil, fmt.Errorf("register bucket %s: %w", cfg.Name, err)
	}
	b.id = rec.ID
	return b, nil
}

func (b *Local) Name() string { return b.name }

// ID is the metadata id of the bucket.
func (b *Local) ID() string { return b.id }

func (b *Local) CheckAccepts(filename string) bool {
	return checkAccepts(b.policy.AcceptExt, filename)
}

func (b *Local) lock(filename string) func() {
	key := lockKey{b.name, filename}
	b.locks.Lock(key)
	return func() { b.locks.Unlock(key) }
}

func (b *Local) track(op string, start time.Time, err *error) {
	b.metrics.observe(b.name, op, start, *err)
}

func actor(user, actAs string) string {
	if actAs != "" {
		return actAs
	}
	return user
}

// prepareForWrite clears the way for filename. A record in the way, with or
// without its payload, is replaced only when overwrite is set and the policy
// allows it; dropRecord also removes that record. An orphaned payload is
// removed only with autoPrune.
func (b *Local) prepareForWrite(ctx context.Context, filename, user string, overwrite, autoPrune, dropRecord bool) error {
	if err := b.store.MkdirAll(ctx, path.Dir(filename)); err != nil {
		return fmt.Errorf("prepare %s: %w", filename, err)
	}

	exists, err := b.store.Exists(ctx, filename)
	if err != nil {
		return err
	}
	owner, err := b.meta.GetStoredFileOwner(ctx, filename, b.id)
	recorded := err == nil
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	switch {
	case !exists && !recorded:
		return nil
	case exists && !recorded:
		if !autoPrune {
			return fmt.Errorf("%s exists in the %s bucket without a record: %w", filename, b.name, common.ErrorAlreadyExists)
		}
		b.logger.Warn(ctx, "pruning orphaned file before write, possible data loss", "filename", filename)
		return b.store.Remove(ctx, filename)
	}

	if !overwrite {
		return fmt.Errorf("%s already exists in the %s bucket, delete it first: %w", filename, b.name, common.ErrorAlreadyExists)
	}
	if !b.policy.AllowOverwrite {
		ok, err := access.CanOverwriteOrDelete(ctx, owner, user)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s already exists in the %s bucket and is owned by someone else: %w %w",
				filename, b.name, common.ErrorAlreadyExists, common.ErrorPermissionDenied)
		}
	}

	if exists {
		b.logger.Warn(ctx, "overwriting file", "filename", filename, "user", user)
		if err := b.store.Remove(ctx, filename); err != nil {
			return err
		}
	} else {
		b.logger.Warn(ctx, "replacing record without payload", "filename", filename, "user", user)
	}
	if dropRecord {
		return ignoreNotFound(b.meta.DeleteStoredFile(ctx, filename, b.id))
	}
	return nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	return err
}

func (b *Local) Upload(ctx context.Context, r io.Reader, filename, user string, opts UploadOptions) (sf *models.StoredFile, err error) {
	defer b.track("upload", time.Now(), &err)
	if filename == "" {
		return nil, fmt.Errorf("filename cannot be empty: %w", common.ErrorValidation)
	}

	owner := actor(user, opts.ActAs)
	defer b.lock(filename)()

	if err := b.prepareForWrite(ctx, filename, owner, opts.Overwrite, opts.AutoPrune, false); err != nil {
		return nil, err
	}

	b.logger.Debug(ctx, "writing file", "filename", filename)
	n, err := b.store.Create(ctx, filename, r)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", filename, err)
	}
	b.metrics.ingested(b.name, n)

	info, err := b.fileInfo(ctx, filename)
	if err != nil {
		return nil, err
	}

	sf, err = b.meta.RegisterStoredFile(ctx, metastore.StoredFileSpec{
		Filename:    filename,
		BucketID:    b.id,
		OwnerPUID:   owner,
		InterestID:  opts.Interest,
		FileInfo:    info,
		Reattribute: opts.ActAs != "",
	})
	if err != nil {
		b.logger.Error(ctx, "payload stored without a record", "filename", filename, "error", err)
		return nil, err
	}
	b.logger.Info(ctx, "file uploaded", "filename", filename, "user", owner, "size", humanize.Bytes(uint64(n)))
	return sf, nil
}

func (b *Local) fileInfo(ctx context.Context, filename string) (models.FileInfo, error) {
	st, err := b.store.Stat(ctx, filename)
	if err != nil {
		return models.FileInfo{}, err
	}
	sum, err := b.digest(ctx, filename)
	if err != nil {
		return models.FileInfo{}, err
	}
	return models.FileInfo{
		Ext:   strings.ToLower(path.Ext(filename)),
		Hash:  models.FileHash{SHA256: sum},
		Props: models.FileProps{Size: st.Size, Created: st.Created, Modified: st.Modified},
	}, nil
}

// digest re-reads the stored payload in fixed-size chunks.
func (b *Local) digest(ctx context.Context, filename string) (string, error) {
	rc, err := b.store.Open(ctx, filename)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	for {
		n, err := rc.Read(buf)
		h.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("hash %s: %w", filename, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (b *Local) Move(ctx context.Context, filename string, target Bucket, user string, opts MoveOptions) (sf *models.StoredFile, err error) {
	defer b.track("move", time.Now(), &err)

	dst, ok := target.(*Local)
	if !ok {
		return nil, fmt.Errorf("move from %s to non-local bucket %s: %w", b.name, target.Name(), common.ErrorNotImplemented)
	}
	if dst == b || dst.name == b.name {
		return nil, fmt.Errorf("move of %s within %s: %w", filename, b.name, common.ErrorValidation)
	}

	// fixed order keeps concurrent opposite moves from deadlocking
	first, second := b, dst
	if second.name < first.name {
		first, second = second, first
	}
	defer first.lock(filename)()
	defer second.lock(filename)()

	exists, err := b.store.Exists(ctx, filename)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("move of nonexisting file %s from bucket %s: %w", filename, b.name, common.ErrorNotFound)
	}
	if _, err := b.meta.GetStoredFile(ctx, filename, b.id); err != nil {
		return nil, fmt.Errorf("move of unrecorded file %s from bucket %s: %w", filename, b.name, err)
	}

	if err := dst.prepareForWrite(ctx, filename, actor(user, opts.ActAs), opts.Overwrite, opts.AutoPrune, true); err != nil {
		return nil, err
	}

	b.logger.Debug(ctx, "moving file", "filename", filename, "target", dst.name)
	if err := bytestore.Move(ctx, b.store, filename, dst.store, filename); err != nil {
		return nil, err
	}
	sf, err = b.meta.ChangeFileBucket(ctx, filename, b.id, dst.id)
	if err != nil {
		if rerr := bytestore.Move(ctx, dst.store, filename, b.store, filename); rerr != nil {
			b.logger.Error(ctx, "payload stranded in target after failed move", "filename", filename, "target", dst.name, "error", rerr)
			return nil, errors.Join(err, fmt.Errorf("roll back %s: %w", filename, rerr))
		}
		return nil, err
	}
	return sf, nil
}

func (b *Local) Delete(ctx context.Context, filename, user string) (err error) {
	defer b.track("delete", time.Now(), &err)
	defer b.lock(filename)()

	exists, err := b.store.Exists(ctx, filename)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("delete of nonexisting file %s from bucket %s: %w", filename, b.name, common.ErrorNotFound)
	}

	if !b.policy.AllowDelete {
		owner, err := b.meta.GetStoredFileOwner(ctx, filename, b.id)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		ok, err := access.CanOverwriteOrDelete(ctx, owner, user)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("deletion of %s not permitted from bucket %s: %w", filename, b.name, common.ErrorPermissionDenied)
		}
	}

	b.logger.Info(ctx, "deleting file", "filename", filename, "user", user)
	return b.remove(ctx, filename)
}

// remove drops the payload, then the record. A missing record is fine.
func (b *Local) remove(ctx context.Context, filename string) error {
	if err := ignoreNotFound(b.store.Remove(ctx, filename)); err != nil {
		return err
	}
	return ignoreNotFound(b.meta.DeleteStoredFile(ctx, filename, b.id))
}

func (b *Local) List(ctx context.Context, dir string) ([]string, error) {
	if dir == "" {
		dir = "/"
	}
	return b.store.List(ctx, dir, b.excludedNames, b.excludedDirs)
}

func (b *Local) ListInfo(ctx context.Context, q ListInfoQuery) (*models.Page, error) {
	return b.meta.ListStoredFiles(ctx, b.id, metastore.ListFilter{
		Filenames:    q.Filenames,
		IncludeOwner: q.IncludeOwner,
	}, q.Pagination)
}

func (b *Local) records(ctx context.Context) ([]models.StoredFileView, error) {
	page, err := b.meta.ListStoredFiles(ctx, b.id, metastore.ListFilter{}, nil)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Purge removes every payload and record in the bucket. Only the bucket
// level allow_delete flag is consulted.
func (b *Local) Purge(ctx context.Context, user string) (err error) {
	defer b.track("purge", time.Now(), &err)
	if !b.policy.AllowDelete {
		return fmt.Errorf("deletion of files from bucket %s is not permitted: %w", b.name, common.ErrorPermissionDenied)
	}
	b.logger.Warn(ctx, "purging all files", "user", user)

	recs, err := b.records(ctx)
	if err != nil {
		return err
	}

	var batch errbatch.ErrBatch
	for _, r := range recs {
		unlock := b.lock(r.Filename)
		b.logger.Info(ctx, "deleting file", "filename", r.Filename)
		batch.Add(b.remove(ctx, r.Filename))
		unlock()
	}

	// whatever is left has no record: orphans and their directories
	names, err := b.List(ctx, "/")
	if err != nil {
		batch.Add(err)
		return bytestore.JoinBatch(&batch)
	}
	for _, name := range names {
		unlock := b.lock(name)
		b.logger.Info(ctx, "deleting unrecorded entry", "filename", name)
		batch.Add(b.store.RemoveAll(ctx, name))
		unlock()
	}
	return bytestore.JoinBatch(&batch)
}

func (b *Local) Expose(ctx context.Context, filename, user string) (string, error) {
	if b.policy.ExposeURI == "" {
		return "", fmt.Errorf("bucket %s is not exposed: %w", b.name, common.ErrorMisconfigured)
	}
	owner, err := b.meta.GetStoredFileOwner(ctx, filename, b.id)
	if err != nil {
		return "", err
	}
	ok, err := access.CanRead(ctx, owner, user)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("read of %s not permitted from bucket %s: %w", filename, b.name, common.ErrorPermissionDenied)
	}
	return strings.TrimRight(b.policy.ExposeURI, "/") + "/" + strings.TrimLeft(filename, "/"), nil
}

func (b *Local) Find(ctx context.Context, pattern string) ([]models.StoredFileView, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, common.ErrorValidation)
	}
	recs, err := b.records(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.StoredFileView{}
	for _, r := range recs {
		if ok, _ := path.Match(pattern, r.Filename); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// Prune reconciles the two halves of the bucket: records whose payload is
// gone and top-level payloads without a record are removed.
func (b *Local) Prune(ctx context.Context, user string) (report *PruneReport, err error) {
	defer b.track("prune", time.Now(), &err)
	if !b.policy.AllowDelete {
		return nil, fmt.Errorf("pruning bucket %s is not permitted: %w", b.name, common.ErrorPermissionDenied)
	}

	recs, err := b.records(ctx)
	if err != nil {
		return nil, err
	}
	report = &PruneReport{RemovedRecords: []string{}, RemovedPayloads: []string{}}
	recorded := make(map[string]struct{}, len(recs))

	for _, r := range recs {
		unlock := b.lock(r.Filename)
		exists, err := b.store.Exists(ctx, r.Filename)
		if err == nil && !exists {
			err = ignoreNotFound(b.meta.DeleteStoredFile(ctx, r.Filename, b.id))
			if err == nil {
				report.RemovedRecords = append(report.RemovedRecords, r.Filename)
			}
		} else if exists {
			recorded[r.Filename] = struct{}{}
		}
		unlock()
		if err != nil {
			return report, err
		}
	}

	if err := b.prunePayloads(ctx, "/", recorded, report); err != nil {
		return report, err
	}

	b.logger.Warn(ctx, "bucket pruned", "user", user,
		"records", len(report.RemovedRecords), "payloads", len(report.RemovedPayloads))
	return report, nil
}

// prunePayloads removes entries under dir that neither are nor contain a
// recorded file, descending into directories that do.
func (b *Local) prunePayloads(ctx context.Context, dir string, recorded map[string]struct{}, report *PruneReport) error {
	names, err := b.List(ctx, dir)
	if err != nil {
		return err
	}
	for _, name := range names {
		full := name
		if dir != "/" {
			full = path.Join(dir, name)
		}
		if _, ok := recorded[full]; ok {
			continue
		}
		if holdsRecorded(full, recorded) {
			if err := b.prunePayloads(ctx, full, recorded, report); err != nil {
				return err
			}
			continue
		}
		unlock := b.lock(full)
		err := b.store.RemoveAll(ctx, full)
		unlock()
		if err != nil {
			return err
		}
		report.RemovedPayloads = append(report.RemovedPayloads, full)
	}
	return nil
}

func holdsRecorded(dir string, recorded map[string]struct{}) bool {
	prefix := dir + "/"
	for name := range recorded {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
