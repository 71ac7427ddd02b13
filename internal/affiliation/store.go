package affiliation

import (
	"context"
	"time"

	id "tracker/pkg/domain"
)

// Store defines persistence for affiliation edges.
//
// Find answers "what edge, if any" — an absent edge is (nil, nil), never
// an error. Mutating methods return sentinel.ErrNotFound when the edge a
// caller required does not exist and sentinel.ErrConflict when creating a
// second edge for the same (organization, user) pair.
type Store interface {
	Find(ctx context.Context, orgKey id.OrgKey, userKey id.UserKey) (*Affiliation, error)
	ListByOrg(ctx context.Context, orgKey id.OrgKey) ([]*Affiliation, error)
	Create(ctx context.Context, a *Affiliation) error
	UpdatePermission(ctx context.Context, orgKey id.OrgKey, userKey id.UserKey, permission id.Permission, now time.Time) (*Affiliation, error)
	Delete(ctx context.Context, orgKey id.OrgKey, userKey id.UserKey) error
}
