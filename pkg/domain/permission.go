package domain

import dErrors "tracker/pkg/domain-errors"

// Permission is a rank in the organization role hierarchy. The ordering is
// total and is the single canonical comparison used by both the permission
// resolver and the role-transition validator:
//
//	pending < user < admin < super_admin
//
// PermissionNone is the sentinel for "no affiliation edge"; it sorts below
// every real rank and is never persisted.
type Permission int

const (
	PermissionNone Permission = iota
	PermissionPending
	PermissionUser
	PermissionAdmin
	PermissionSuperAdmin
)

var permissionNames = map[Permission]string{
	PermissionNone:       "none",
	PermissionPending:    "pending",
	PermissionUser:       "user",
	PermissionAdmin:      "admin",
	PermissionSuperAdmin: "super_admin",
}

var permissionValues = map[string]Permission{
	"pending":     PermissionPending,
	"user":        PermissionUser,
	"admin":       PermissionAdmin,
	"super_admin": PermissionSuperAdmin,
}

// ParsePermission constructs a Permission from external input.
//
// Usage: call from handlers when parsing requests; the sentinel "none" is
// not accepted from outside.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParsePermission(s string) (Permission, error) {
	if s == "" {
		return PermissionNone, dErrors.New(dErrors.CodeInvalidInput, "permission cannot be empty")
	}
	p, ok := permissionValues[s]
	if !ok {
		return PermissionNone, dErrors.New(dErrors.CodeInvalidInput, "invalid permission")
	}
	return p, nil
}

// String returns the storage representation of the rank.
func (p Permission) String() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}
	return "none"
}

// AtLeast reports whether p satisfies the required minimum rank.
func (p Permission) AtLeast(minimum Permission) bool {
	return p >= minimum
}

// IsValid reports whether p is a persistable rank (not the sentinel).
func (p Permission) IsValid() bool {
	return p >= PermissionPending && p <= PermissionSuperAdmin
}
