package filestore

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/logging"
	"github.com/dmitrijs2005/filestore/internal/server/bytestore"
	"github.com/dmitrijs2005/filestore/internal/server/metastore"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/fishy/rowlock"
)

// BucketSpec is one configured bucket name.
type BucketSpec struct {
	Name    string
	Enabled bool
	Policy  models.BucketPolicy
}

// RegistryConfig decides where each bucket lives.
type RegistryConfig struct {
	// HostLocal is set on components that host buckets themselves.
	HostLocal bool
	Buckets   []BucketSpec
	// Peer serves every bucket not hosted here. Nil disables remote buckets.
	Peer          *Peer
	S3            bytestore.S3Options
	ExcludedNames []string
	ExcludedDirs  []string
}

// Registry is the fixed name to bucket table built at startup.
type Registry struct {
	buckets map[string]Bucket
	names   []string
	// misconfigured is set when the component neither hosts buckets nor
	// has a peer to forward to.
	misconfigured bool
}

// OpenStore opens the byte store of a local bucket. It is a variable so
// tests can substitute in-memory stores.
var OpenStore = bytestore.Open

// NewRegistry builds a local bucket for each enabled name when hostLocal is
// set. Remaining names are proxied to the peer when it advertises them.
func NewRegistry(ctx context.Context, cfg RegistryConfig, meta metastore.Store, logger logging.Logger, metrics *Metrics) (*Registry, error) {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	r := &Registry{buckets: make(map[string]Bucket), misconfigured: !cfg.HostLocal && cfg.Peer == nil}
	locks := rowlock.NewRowLock(rowlock.MutexNewLocker)

	var pending []BucketSpec
	for _, spec := range cfg.Buckets {
		if !cfg.HostLocal || !spec.Enabled {
			pending = append(pending, spec)
			continue
		}
		store, err := OpenStore(ctx, spec.Policy.StorageURI, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("bucket %s: %w", spec.Name, err)
		}
		b, err := NewLocal(ctx, LocalConfig{
			Name:          spec.Name,
			Policy:        spec.Policy,
			ExcludedNames: cfg.ExcludedNames,
			ExcludedDirs:  cfg.ExcludedDirs,
		}, store, meta, WithLogger(logger), WithMetrics(metrics), WithLocks(locks))
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "local bucket ready", "bucket", spec.Name, "uri", spec.Policy.StorageURI)
		r.add(b)
	}

	if len(pending) > 0 && cfg.Peer != nil {
		available, err := cfg.Peer.Buckets(ctx)
		if err != nil {
			return nil, fmt.Errorf("discover remote buckets: %w", err)
		}
		for _, spec := range pending {
			if !slices.Contains(available, spec.Name) {
				logger.Debug(ctx, "bucket not offered by remote, skipping", "bucket", spec.Name)
				continue
			}
			logger.Info(ctx, "remote bucket ready", "bucket", spec.Name, "uri", cfg.Peer.baseURL)
			r.add(NewRemote(spec.Name, spec.Policy.AcceptExt, cfg.Peer, logger))
		}
	} else {
		for _, spec := range pending {
			logger.Debug(ctx, "bucket not enabled, skipping", "bucket", spec.Name)
		}
	}

	return r, nil
}

// NewStaticRegistry wraps already built buckets.
func NewStaticRegistry(buckets ...Bucket) *Registry {
	r := &Registry{buckets: make(map[string]Bucket, len(buckets))}
	for _, b := range buckets {
		r.add(b)
	}
	return r
}

func (r *Registry) add(b Bucket) {
	r.buckets[b.Name()] = b
	r.names = append(r.names, b.Name())
	sort.Strings(r.names)
}

// Get returns the bucket called name. A component with neither local
// hosting nor a peer is reported as misconfigured.
func (r *Registry) Get(name string) (Bucket, error) {
	if r.misconfigured {
		return nil, fmt.Errorf("no local buckets and no remote filestore: %w", common.ErrorMisconfigured)
	}
	b, ok := r.buckets[name]
	if !ok {
		return nil, fmt.Errorf("filestore bucket %q: %w", name, common.ErrorNotFound)
	}
	return b, nil
}

// Names lists the available buckets in sorted order.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// LocalNames lists the buckets hosted by this component.
func (r *Registry) LocalNames() []string {
	out := []string{}
	for _, n := range r.names {
		if _, ok := r.buckets[n].(*Local); ok {
			out = append(out, n)
		}
	}
	return out
}
