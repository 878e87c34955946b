package metastore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/server/access"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/google/uuid"
)

type fileKey struct {
	bucketID string
	filename string
}

// MemoryStore is a process-local Store used when no database is configured,
// and by tests.
type MemoryStore struct {
	mu        sync.RWMutex
	enabled   bool
	types     *access.TypeRegistry
	buckets   map[string]*models.Bucket
	files     map[fileKey]*models.StoredFile
	users     map[string]*models.User // by puid
	usersByID map[string]*models.User
	interests map[string]*models.Interest
	grants    map[models.InterestGrant]struct{}
}

func NewMemoryStore(types *access.TypeRegistry, enabled bool) *MemoryStore {
	if types == nil {
		types = access.DefaultTypes()
	}
	return &MemoryStore{
		enabled:   enabled,
		types:     types,
		buckets:   make(map[string]*models.Bucket),
		files:     make(map[fileKey]*models.StoredFile),
		users:     make(map[string]*models.User),
		usersByID: make(map[string]*models.User),
		interests: make(map[string]*models.Interest),
		grants:    make(map[models.InterestGrant]struct{}),
	}
}

func (m *MemoryStore) checkEnabled() error {
	if !m.enabled {
		return fmt.Errorf("use the filestore API on the filestore component instead: %w", common.ErrorMisconfigured)
	}
	return nil
}

func (m *MemoryStore) RegisterBucket(_ context.Context, name string, mustCreate bool) (*models.Bucket, error) {
	if err := m.checkEnabled(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("bucket name cannot be empty: %w", common.ErrorValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.buckets[name]; ok {
		if mustCreate {
			return nil, fmt.Errorf("filestore bucket %q: %w", name, common.ErrorAlreadyExists)
		}
		cp := *b
		return &cp, nil
	}
	b := &models.Bucket{ID: uuid.NewString(), Name: name}
	m.buckets[name] = b
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) GetBucket(_ context.Context, name string) (*models.Bucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.buckets[name]
	if !ok {
		return nil, fmt.Errorf("filestore bucket %q: %w", name, common.ErrorNotFound)
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) GetStoredFile(_ context.Context, filename, bucketID string) (*models.StoredFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(filename, bucketID)
}

func (m *MemoryStore) getLocked(filename, bucketID string) (*models.StoredFile, error) {
	sf, ok := m.files[fileKey{bucketID, filename}]
	if !ok {
		return nil, fmt.Errorf("stored file %q: %w", filename, common.ErrorNotFound)
	}
	cp := *sf
	return &cp, nil
}

func (m *MemoryStore) GetStoredFileOwner(ctx context.Context, filename, bucketID string) (*access.Owner, error) {
	m.mu.RLock()
	sf, err := m.getLocked(filename, bucketID)
	if err != nil {
		m.mu.RUnlock()
		return nil, err
	}
	user, ok := m.usersByID[sf.OwnerUserID]
	if !ok {
		m.mu.RUnlock()
		return nil, fmt.Errorf("owner of %q: %w", filename, common.ErrorNotFound)
	}
	owner := &access.Owner{UserID: user.ID, PUID: user.PUID}
	in, hasInterest := m.interests[sf.InterestID]
	m.mu.RUnlock()

	if hasInterest {
		if interest, ok := m.types.Build(*in, m); ok {
			owner.Interest = interest
		}
	}
	return owner, nil
}

func (m *MemoryStore) RegisterStoredFile(_ context.Context, spec StoredFileSpec) (*models.StoredFile, error) {
	if err := m.checkEnabled(); err != nil {
		return nil, err
	}
	if spec.Filename == "" {
		return nil, fmt.Errorf("filename cannot be empty: %w", common.ErrorValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	user, err := m.ensureUserLocked(spec.OwnerPUID)
	if err != nil {
		return nil, err
	}
	if spec.InterestID != "" {
		if _, ok := m.interests[spec.InterestID]; !ok {
			return nil, fmt.Errorf("interest %s: %w", spec.InterestID, common.ErrorNotFound)
		}
	}

	key := fileKey{spec.BucketID, spec.Filename}
	if existing, ok := m.files[key]; ok {
		existing.FileInfo = spec.FileInfo
		if spec.Reattribute {
			existing.OwnerUserID = user.ID
		}
		cp := *existing
		return &cp, nil
	}

	sf := &models.StoredFile{
		ID:          uuid.NewString(),
		Filename:    spec.Filename,
		BucketID:    spec.BucketID,
		OwnerUserID: user.ID,
		InterestID:  spec.InterestID,
		FileInfo:    spec.FileInfo,
	}
	m.files[key] = sf
	cp := *sf
	return &cp, nil
}

func (m *MemoryStore) ChangeFileBucket(_ context.Context, filename, fromBucketID, toBucketID string) (*models.StoredFile, error) {
	if err := m.checkEnabled(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	from := fileKey{fromBucketID, filename}
	sf, ok := m.files[from]
	if !ok {
		return nil, fmt.Errorf("stored file %q: %w", filename, common.ErrorNotFound)
	}
	to := fileKey{toBucketID, filename}
	if _, taken := m.files[to]; taken {
		return nil, fmt.Errorf("stored file %q: %w", filename, common.ErrorAlreadyExists)
	}
	delete(m.files, from)
	sf.BucketID = toBucketID
	m.files[to] = sf
	cp := *sf
	return &cp, nil
}

func (m *MemoryStore) DeleteStoredFile(_ context.Context, filename, bucketID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fileKey{bucketID, filename}
	if _, ok := m.files[key]; !ok {
		return fmt.Errorf("stored file %q: %w", filename, common.ErrorNotFound)
	}
	delete(m.files, key)
	return nil
}

func (m *MemoryStore) ListStoredFiles(_ context.Context, bucketID string, filter ListFilter, p *models.Pagination) (*models.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := []models.StoredFileView{}
	for key, sf := range m.files {
		if key.bucketID != bucketID {
			continue
		}
		if len(filter.Filenames) > 0 && !slices.Contains(filter.Filenames, sf.Filename) {
			continue
		}
		view := models.StoredFileView{Filename: sf.Filename, FileInfo: sf.FileInfo}
		if filter.IncludeOwner {
			if u, ok := m.usersByID[sf.OwnerUserID]; ok {
				view.Owner = u.PUID
			}
		}
		items = append(items, view)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Filename < items[j].Filename })

	total := len(items)
	if p != nil {
		start := min(max(p.Offset, 0), total)
		end := total
		if p.Limit > 0 {
			end = min(start+p.Limit, total)
		}
		items = items[start:end]
	}
	return newPage(items, total, p), nil
}

func (m *MemoryStore) EnsureUser(_ context.Context, puid string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureUserLocked(puid)
}

func (m *MemoryStore) ensureUserLocked(puid string) (*models.User, error) {
	if puid == "" {
		return nil, fmt.Errorf("user cannot be empty: %w", common.ErrorValidation)
	}
	if u, ok := m.users[puid]; ok {
		return u, nil
	}
	u := &models.User{ID: uuid.NewString(), PUID: puid, CreatedAt: time.Now()}
	m.users[puid] = u
	m.usersByID[u.ID] = u
	return u, nil
}

// CreateInterest registers a shared-access entity.
func (m *MemoryStore) CreateInterest(_ context.Context, typ, name string) (*models.Interest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in := &models.Interest{ID: uuid.NewString(), Type: typ, Name: name}
	m.interests[in.ID] = in
	return in, nil
}

// GrantInterest gives puid a capability through interestID.
func (m *MemoryStore) GrantInterest(_ context.Context, interestID, puid, capability string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.interests[interestID]; !ok {
		return fmt.Errorf("interest %s: %w", interestID, common.ErrorNotFound)
	}
	u, err := m.ensureUserLocked(puid)
	if err != nil {
		return err
	}
	m.grants[models.InterestGrant{InterestID: interestID, UserID: u.ID, Capability: capability}] = struct{}{}
	return nil
}

// HasGrant makes MemoryStore the grant backend of its own interests.
func (m *MemoryStore) HasGrant(_ context.Context, interestID, puid, capability string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[puid]
	if !ok {
		return false, nil
	}
	_, ok = m.grants[models.InterestGrant{InterestID: interestID, UserID: u.ID, Capability: capability}]
	return ok, nil
}
