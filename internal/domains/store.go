package domains

import (
	"context"
	"time"

	id "tracker/pkg/domain"
)

// Store defines persistence for domain vertices and claim edges.
//
// Find, FindByHostname and FindClaim answer existence questions: an
// absent record is (nil, nil), never an error. Create and CreateClaim
// return sentinel.ErrConflict on duplicates; Update returns
// sentinel.ErrNotFound when the domain is missing.
type Store interface {
	Find(ctx context.Context, key id.DomainKey) (*Domain, error)
	FindByHostname(ctx context.Context, hostname string) (*Domain, error)
	Create(ctx context.Context, d *Domain) error
	Update(ctx context.Context, key id.DomainKey, patch Patch, now time.Time) (*Domain, error)

	FindClaim(ctx context.Context, orgKey id.OrgKey, domainKey id.DomainKey) (*Claim, error)
	ListClaimsByOrg(ctx context.Context, orgKey id.OrgKey) ([]*Claim, error)
	CreateClaim(ctx context.Context, c *Claim) error
}
