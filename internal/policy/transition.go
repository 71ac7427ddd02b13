// Package policy holds the role-transition rules. The goal is to keep the
// rules centralized, pure, and exhaustively testable: no I/O, no clock, no
// store access — callers load the ranks, this package decides.
package policy

import (
	id "tracker/pkg/domain"
)

// DenyReason is a machine-distinguishable tag for a denied transition.
// Callers use it to select a localized, non-leaking message without
// re-deriving the rule.
type DenyReason string

const (
	ReasonSelfModify                = DenyReason("SELF_MODIFY")
	ReasonInsufficientRequesterRank = DenyReason("INSUFFICIENT_REQUESTER_RANK")
	ReasonTargetIsSuperAdmin        = DenyReason("TARGET_IS_SUPERADMIN")
	ReasonAdminCannotModifyPeer     = DenyReason("ADMIN_CANNOT_MODIFY_PEER")
	ReasonAdminCannotGrantSuper     = DenyReason("ADMIN_CANNOT_GRANT_SUPERADMIN")
	ReasonAdminOnlyGrantsAdmin      = DenyReason("ADMIN_CAN_ONLY_GRANT_ADMIN")
	// ReasonTargetIsPending: the source system never specified whether an
	// admin may act on a pending invitation through role update. Denied
	// here so invitation acceptance stays its own flow; revisit if product
	// decides otherwise.
	ReasonTargetIsPending = DenyReason("TARGET_IS_PENDING")
	ReasonInvalidRank     = DenyReason("INVALID_RANK")
)

// RoleChange is one requested role transition, fully loaded by the caller.
type RoleChange struct {
	RequesterKey  id.UserKey
	TargetKey     id.UserKey
	RequesterRank id.Permission
	TargetRank    id.Permission
	RequestedRank id.Permission
}

// Decision is the outcome of validating a transition.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision            { return Decision{Allowed: true} }
func deny(r DenyReason) Decision { return Decision{Reason: r} }

// Validate applies the role-transition rule chain. Rule priority
// (fail-fast):
//  1. Requested rank must be a real rank.
//  2. Nobody modifies their own role.
//  3. Requester must hold at least admin. Requests below admin are
//     normally rejected earlier by the resolver gate; re-checked here so
//     the function stands alone.
//  4. A super_admin target is immutable: once promoted, the role cannot
//     be lowered by anyone through this path.
//  5. A pending target is not modifiable through role update.
//  6. super_admin may set any target below super_admin to any rank.
//  7. admin may only promote a user to admin: never a peer or above,
//     never a grant of super_admin.
func Validate(change RoleChange) Decision {
	if !change.RequestedRank.IsValid() {
		return deny(ReasonInvalidRank)
	}
	if change.RequesterKey == change.TargetKey {
		return deny(ReasonSelfModify)
	}
	if !change.RequesterRank.AtLeast(id.PermissionAdmin) {
		return deny(ReasonInsufficientRequesterRank)
	}
	if change.TargetRank == id.PermissionSuperAdmin {
		return deny(ReasonTargetIsSuperAdmin)
	}
	if change.TargetRank == id.PermissionPending {
		return deny(ReasonTargetIsPending)
	}
	if change.RequesterRank == id.PermissionSuperAdmin {
		return allow()
	}

	// Requester is exactly admin from here on: the only grant an admin may
	// make is promoting a user to admin.
	if change.TargetRank != id.PermissionUser {
		return deny(ReasonAdminCannotModifyPeer)
	}
	if change.RequestedRank == id.PermissionSuperAdmin {
		return deny(ReasonAdminCannotGrantSuper)
	}
	// The requested rank is well-formed; the grant set is what's violated.
	if change.RequestedRank != id.PermissionAdmin {
		return deny(ReasonAdminOnlyGrantsAdmin)
	}
	return allow()
}

// Message returns the user-facing template key text for a denial. The text
// is deliberately generic; localization happens outside the core.
func (r DenyReason) Message() string {
	switch r {
	case ReasonSelfModify:
		return "cannot update your own role"
	case ReasonInsufficientRequesterRank:
		return "organization admin rights required"
	case ReasonTargetIsSuperAdmin:
		return "cannot demote a super admin"
	case ReasonAdminCannotModifyPeer:
		return "admins cannot modify other admins"
	case ReasonAdminCannotGrantSuper:
		return "admins cannot grant super admin"
	case ReasonAdminOnlyGrantsAdmin:
		return "admins may only promote a user to admin"
	case ReasonTargetIsPending:
		return "cannot update a pending invitation"
	default:
		return "role update not permitted"
	}
}
