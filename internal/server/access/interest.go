package access

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/filestore/internal/server/models"
)

// Interest types known out of the box.
const (
	InterestTypeProject = "project"
	InterestTypeTeam    = "team"
)

// GrantChecker answers grant lookups for interests backed by a grant table.
type GrantChecker interface {
	HasGrant(ctx context.Context, interestID, puid, capability string) (bool, error)
}

// InterestFactory builds the capability-checkable form of a stored interest.
type InterestFactory func(in models.Interest, grants GrantChecker) Interest

// TypeRegistry maps interest types to factories.
type TypeRegistry struct {
	mu        sync.RWMutex
	factories map[string]InterestFactory
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{factories: make(map[string]InterestFactory)}
}

// DefaultTypes returns a registry with the grant-backed interest types.
func DefaultTypes() *TypeRegistry {
	r := NewTypeRegistry()
	r.Register(InterestTypeProject, NewGrantInterest)
	r.Register(InterestTypeTeam, NewGrantInterest)
	return r
}

func (r *TypeRegistry) Register(typ string, f InterestFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = f
}

// Build returns false for unknown types; callers treat that as "no interest".
func (r *TypeRegistry) Build(in models.Interest, grants GrantChecker) (Interest, bool) {
	r.mu.RLock()
	f, ok := r.factories[in.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(in, grants), true
}

// GrantInterest checks capabilities against explicit grants.
type GrantInterest struct {
	model  models.Interest
	grants GrantChecker
}

func NewGrantInterest(in models.Interest, grants GrantChecker) Interest {
	return &GrantInterest{model: in, grants: grants}
}

func (g *GrantInterest) CheckUserAccess(ctx context.Context, puid, capability string) (bool, error) {
	if puid == "" {
		return false, nil
	}
	return g.grants.HasGrant(ctx, g.model.ID, puid, capability)
}
