// Package affiliation models the single permission edge linking a user to
// an organization, resolves requester ranks, and applies role mutations
// under the transition policy.
package affiliation

import (
	"time"

	id "tracker/pkg/domain"
	dErrors "tracker/pkg/domain-errors"
)

// Affiliation is the edge from an organization to a user, carrying that
// user's permission rank within the organization. At most one edge exists
// per (organization, user) pair.
type Affiliation struct {
	OrgKey     id.OrgKey
	UserKey    id.UserKey
	Permission id.Permission
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate validates the edge for persistence. Returns an error describing
// the first invariant violation.
func (a *Affiliation) Validate() error {
	if a.OrgKey.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "affiliation requires an organization key")
	}
	if a.UserKey.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "affiliation requires a user key")
	}
	if !a.Permission.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "affiliation requires a valid permission")
	}
	return nil
}
