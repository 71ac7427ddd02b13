// Package domain holds uuid-backed entity keys shared across packages.
//
// Keys are distinct types so an organization key can never be passed where
// a user key is expected. Construct from external input via the Parse*
// functions at trust boundaries; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "tracker/pkg/domain-errors"
)

// UserKey identifies a user record.
type UserKey uuid.UUID

// OrgKey identifies an organization vertex.
type OrgKey uuid.UUID

// DomainKey identifies a tracked hostname vertex.
type DomainKey uuid.UUID

// NewUserKey returns a fresh random user key.
func NewUserKey() UserKey { return UserKey(uuid.New()) }

// NewOrgKey returns a fresh random organization key.
func NewOrgKey() OrgKey { return OrgKey(uuid.New()) }

// NewDomainKey returns a fresh random domain key.
func NewDomainKey() DomainKey { return DomainKey(uuid.New()) }

// ParseUserKey parses external input into a UserKey.
//
// Errors: CodeInvalidInput when the value is empty or not a UUID.
func ParseUserKey(s string) (UserKey, error) {
	u, err := parseKey(s, "user key")
	return UserKey(u), err
}

// ParseOrgKey parses external input into an OrgKey.
//
// Errors: CodeInvalidInput when the value is empty or not a UUID.
func ParseOrgKey(s string) (OrgKey, error) {
	u, err := parseKey(s, "organization key")
	return OrgKey(u), err
}

// ParseDomainKey parses external input into a DomainKey.
//
// Errors: CodeInvalidInput when the value is empty or not a UUID.
func ParseDomainKey(s string) (DomainKey, error) {
	u, err := parseKey(s, "domain key")
	return DomainKey(u), err
}

func parseKey(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.UUID{}, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	return u, nil
}

func (k UserKey) String() string   { return uuid.UUID(k).String() }
func (k OrgKey) String() string    { return uuid.UUID(k).String() }
func (k DomainKey) String() string { return uuid.UUID(k).String() }

// IsZero reports whether the key is the zero UUID.
func (k UserKey) IsZero() bool   { return uuid.UUID(k) == uuid.UUID{} }
func (k OrgKey) IsZero() bool    { return uuid.UUID(k) == uuid.UUID{} }
func (k DomainKey) IsZero() bool { return uuid.UUID(k) == uuid.UUID{} }
