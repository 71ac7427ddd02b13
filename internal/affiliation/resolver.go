package affiliation

import (
	"context"
	"fmt"

	"tracker/internal/policy"
	id "tracker/pkg/domain"
	dErrors "tracker/pkg/domain-errors"
)

// RankCache memoizes resolved ranks for a short TTL. Misses are cheap;
// the cache only exists because permission checks front every mutation
// and most requests resolve the same requester repeatedly.
type RankCache interface {
	Get(ctx context.Context, orgKey id.OrgKey, userKey id.UserKey) (id.Permission, bool)
	Set(ctx context.Context, orgKey id.OrgKey, userKey id.UserKey, permission id.Permission)
	Invalidate(ctx context.Context, orgKey id.OrgKey, userKey id.UserKey)
}

// Resolver answers "what is this user's rank in this organization" and
// gates minimum-rank requirements. Read-only; safe for concurrent use.
type Resolver struct {
	store Store
	cache RankCache
}

// ResolverOption configures a Resolver.
type ResolverOption func(r *Resolver)

// WithRankCache adds a read-through rank cache.
func WithRankCache(cache RankCache) ResolverOption {
	return func(r *Resolver) { r.cache = cache }
}

// NewResolver constructs a Resolver over the affiliation store.
func NewResolver(store Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the user's rank in the organization, PermissionNone
// when no affiliation edge exists. A store failure is returned wrapped
// with the lookup's purpose, never defaulted to no-access: callers must
// not mistake an outage for a denial.
func (r *Resolver) Resolve(ctx context.Context, userKey id.UserKey, orgKey id.OrgKey) (id.Permission, error) {
	if r.cache != nil {
		if p, ok := r.cache.Get(ctx, orgKey, userKey); ok {
			return p, nil
		}
	}

	edge, err := r.store.Find(ctx, orgKey, userKey)
	if err != nil {
		return id.PermissionNone, fmt.Errorf("resolve permission of user %s in org %s: %w", userKey, orgKey, err)
	}
	permission := id.PermissionNone
	if edge != nil {
		permission = edge.Permission
	}

	if r.cache != nil {
		r.cache.Set(ctx, orgKey, userKey, permission)
	}
	return permission, nil
}

// RequireAtLeast resolves the user's rank and denies unless it satisfies
// the minimum. The denial is a coded forbidden error carrying the
// INSUFFICIENT_REQUESTER_RANK reason. A store failure is returned as the
// raw wrapped error, not coded: inside a mutation precondition the
// executor must classify it as an infrastructure failure, and a coded
// error would pass through as a decision.
func (r *Resolver) RequireAtLeast(ctx context.Context, userKey id.UserKey, orgKey id.OrgKey, minimum id.Permission) error {
	rank, err := r.Resolve(ctx, userKey, orgKey)
	if err != nil {
		return err
	}
	if !rank.AtLeast(minimum) {
		return dErrors.New(dErrors.CodeForbidden, policy.ReasonInsufficientRequesterRank.Message())
	}
	return nil
}
