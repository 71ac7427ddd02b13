package handler

import (
	"time"

	"tracker/internal/domains"
)

// ClaimRequest is the wire form of a domain claim.
type ClaimRequest struct {
	Hostname string `json:"hostname"`
}

// UpdateRequest is the wire form of a partial domain update. Omitted
// fields are left untouched.
type UpdateRequest struct {
	Hostname  *string    `json:"hostname,omitempty"`
	Selectors *[]string  `json:"selectors,omitempty"`
	LastRan   *time.Time `json:"last_ran,omitempty"`
}

// ToPatch converts to the domain form.
func (r UpdateRequest) ToPatch() domains.Patch {
	return domains.Patch{Hostname: r.Hostname, Selectors: r.Selectors, LastRan: r.LastRan}
}

// DomainResponse is the wire form of a domain.
type DomainResponse struct {
	DomainKey string     `json:"domain_key"`
	Hostname  string     `json:"hostname"`
	Selectors []string   `json:"selectors,omitempty"`
	LastRan   *time.Time `json:"last_ran,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// FromDomain converts a domain to its wire form.
func FromDomain(d *domains.Domain) DomainResponse {
	return DomainResponse{
		DomainKey: d.Key.String(),
		Hostname:  d.Hostname,
		Selectors: d.Selectors,
		LastRan:   d.LastRan,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
