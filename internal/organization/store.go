package organization

import (
	"context"
	"time"

	id "tracker/pkg/domain"
)

// Store defines persistence for organizations and their detail records.
//
// Find and FindBySlug answer existence questions: an absent organization
// is (nil, nil), never an error. Create returns sentinel.ErrConflict when
// a slug is already taken in its locale; UpdateDetails returns
// sentinel.ErrNotFound when the organization or locale record is missing
// and sentinel.ErrConflict when a patched slug collides.
type Store interface {
	Find(ctx context.Context, key id.OrgKey) (*Organization, error)
	FindBySlug(ctx context.Context, locale Locale, slug string) (*Organization, error)
	Create(ctx context.Context, o *Organization) error
	UpdateDetails(ctx context.Context, key id.OrgKey, locale Locale, patch DetailsPatch, now time.Time) (*Organization, error)
}
