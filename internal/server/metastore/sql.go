package metastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/dbx"
	"github.com/dmitrijs2005/filestore/internal/server/access"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/dmitrijs2005/filestore/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filestore/internal/server/repositories/storedfiles"
	"github.com/google/uuid"
)

// SQLStore runs every operation in its own transaction.
type SQLStore struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	types   *access.TypeRegistry
	enabled bool
}

// NewSQLStore wires a store over db. enabled=false turns every write into
// common.ErrorMisconfigured; reads still work.
func NewSQLStore(db *sql.DB, repos repomanager.RepositoryManager, types *access.TypeRegistry, enabled bool) *SQLStore {
	if types == nil {
		types = access.DefaultTypes()
	}
	return &SQLStore{db: db, repos: repos, types: types, enabled: enabled}
}

func (s *SQLStore) checkEnabled() error {
	if !s.enabled {
		return fmt.Errorf("use the filestore API on the filestore component instead: %w", common.ErrorMisconfigured)
	}
	return nil
}

func (s *SQLStore) RegisterBucket(ctx context.Context, name string, mustCreate bool) (*models.Bucket, error) {
	if err := s.checkEnabled(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("bucket name cannot be empty: %w", common.ErrorValidation)
	}

	var result *models.Bucket
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Buckets(tx)

		existing, err := repo.GetByName(ctx, name)
		switch {
		case err == nil:
			if mustCreate {
				return fmt.Errorf("filestore bucket %q: %w", name, common.ErrorAlreadyExists)
			}
			result = existing
			return nil
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		b := &models.Bucket{ID: uuid.NewString(), Name: name}
		if err := repo.Create(ctx, b); err != nil {
			return err
		}
		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SQLStore) GetBucket(ctx context.Context, name string) (*models.Bucket, error) {
	b, err := s.repos.Buckets(s.db).GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("filestore bucket %q: %w", name, err)
	}
	return b, nil
}

func (s *SQLStore) GetStoredFile(ctx context.Context, filename, bucketID string) (*models.StoredFile, error) {
	sf, err := s.repos.StoredFiles(s.db).Get(ctx, filename, bucketID)
	if err != nil {
		return nil, fmt.Errorf("stored file %q: %w", filename, err)
	}
	return sf, nil
}

func (s *SQLStore) GetStoredFileOwner(ctx context.Context, filename, bucketID string) (*access.Owner, error) {
	sf, err := s.GetStoredFile(ctx, filename, bucketID)
	if err != nil {
		return nil, err
	}

	user, err := s.repos.Users(s.db).GetByID(ctx, sf.OwnerUserID)
	if err != nil {
		return nil, fmt.Errorf("owner of %q: %w", filename, err)
	}
	owner := &access.Owner{UserID: user.ID, PUID: user.PUID}

	if sf.InterestID == "" {
		return owner, nil
	}
	interests := s.repos.Interests(s.db)
	in, err := interests.GetByID(ctx, sf.InterestID)
	if errors.Is(err, common.ErrorNotFound) {
		return owner, nil
	}
	if err != nil {
		return nil, err
	}
	if interest, ok := s.types.Build(*in, interests); ok {
		owner.Interest = interest
	}
	return owner, nil
}

func (s *SQLStore) RegisterStoredFile(ctx context.Context, spec StoredFileSpec) (*models.StoredFile, error) {
	if err := s.checkEnabled(); err != nil {
		return nil, err
	}
	if spec.Filename == "" {
		return nil, fmt.Errorf("filename cannot be empty: %w", common.ErrorValidation)
	}

	var result *models.StoredFile
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := ensureUser(ctx, s.repos, tx, spec.OwnerPUID)
		if err != nil {
			return err
		}
		if spec.InterestID != "" {
			if _, err := s.repos.Interests(tx).GetByID(ctx, spec.InterestID); err != nil {
				return fmt.Errorf("interest %s: %w", spec.InterestID, err)
			}
		}

		files := s.repos.StoredFiles(tx)
		existing, err := files.Get(ctx, spec.Filename, spec.BucketID)
		switch {
		case err == nil:
			owner := existing.OwnerUserID
			if spec.Reattribute {
				owner = user.ID
			}
			if err := files.UpdateFileInfo(ctx, existing.ID, spec.FileInfo, owner); err != nil {
				return err
			}
			existing.FileInfo = spec.FileInfo
			existing.OwnerUserID = owner
			result = existing
			return nil
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		sf := &models.StoredFile{
			ID:          uuid.NewString(),
			Filename:    spec.Filename,
			BucketID:    spec.BucketID,
			OwnerUserID: user.ID,
			InterestID:  spec.InterestID,
			FileInfo:    spec.FileInfo,
		}
		if err := files.Create(ctx, sf); err != nil {
			return err
		}
		result = sf
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SQLStore) ChangeFileBucket(ctx context.Context, filename, fromBucketID, toBucketID string) (*models.StoredFile, error) {
	if err := s.checkEnabled(); err != nil {
		return nil, err
	}

	var result *models.StoredFile
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		files := s.repos.StoredFiles(tx)
		sf, err := files.Get(ctx, filename, fromBucketID)
		if err != nil {
			return fmt.Errorf("stored file %q: %w", filename, err)
		}
		if err := files.ChangeBucket(ctx, sf.ID, toBucketID); err != nil {
			return err
		}
		sf.BucketID = toBucketID
		result = sf
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SQLStore) DeleteStoredFile(ctx context.Context, filename, bucketID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		files := s.repos.StoredFiles(tx)
		sf, err := files.Get(ctx, filename, bucketID)
		if err != nil {
			return fmt.Errorf("stored file %q: %w", filename, err)
		}
		return files.Delete(ctx, sf.ID)
	})
}

func (s *SQLStore) ListStoredFiles(ctx context.Context, bucketID string, filter ListFilter, p *models.Pagination) (*models.Page, error) {
	q := storedfiles.ListQuery{
		BucketID:     bucketID,
		Filenames:    filter.Filenames,
		IncludeOwner: filter.IncludeOwner,
	}
	if p != nil {
		q.Offset, q.Limit = p.Offset, p.Limit
	}

	var page *models.Page
	err := dbx.WithSnapshot(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		files := s.repos.StoredFiles(tx)
		items, err := files.List(ctx, q)
		if err != nil {
			return err
		}

		total := len(items)
		if p != nil {
			if total, err = files.Count(ctx, q); err != nil {
				return err
			}
		}
		page = newPage(items, total, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s *SQLStore) EnsureUser(ctx context.Context, puid string) (*models.User, error) {
	return ensureUser(ctx, s.repos, s.db, puid)
}

func ensureUser(ctx context.Context, repos repomanager.RepositoryManager, db dbx.DBTX, puid string) (*models.User, error) {
	if puid == "" {
		return nil, fmt.Errorf("user cannot be empty: %w", common.ErrorValidation)
	}
	users := repos.Users(db)
	u, err := users.GetByPUID(ctx, puid)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	return users.Create(ctx, &models.User{ID: uuid.NewString(), PUID: puid})
}

// CreateInterest registers a shared-access entity.
func (s *SQLStore) CreateInterest(ctx context.Context, typ, name string) (*models.Interest, error) {
	in := &models.Interest{ID: uuid.NewString(), Type: typ, Name: name}
	if err := s.repos.Interests(s.db).Create(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

// GrantInterest gives puid a capability through interestID.
func (s *SQLStore) GrantInterest(ctx context.Context, interestID, puid, capability string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := ensureUser(ctx, s.repos, tx, puid)
		if err != nil {
			return err
		}
		return s.repos.Interests(tx).Grant(ctx, &models.InterestGrant{InterestID: interestID, UserID: u.ID, Capability: capability})
	})
}
