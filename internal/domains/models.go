package domains

import (
	"strings"
	"time"

	id "tracker/pkg/domain"
	dErrors "tracker/pkg/domain-errors"
)

// Domain is an internet-facing domain vertex. Selectors are the DKIM
// selectors scanned for this domain; LastRan is the time of the most
// recent scan, nil until one has run.
type Domain struct {
	Key       id.DomainKey
	Hostname  string
	Selectors []string
	LastRan   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks structural invariants before persistence.
func (d *Domain) Validate() error {
	if d.Key.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "domain key is required")
	}
	if err := validateHostname(d.Hostname); err != nil {
		return err
	}
	return nil
}

func validateHostname(hostname string) error {
	if hostname == "" {
		return dErrors.New(dErrors.CodeValidation, "hostname is required")
	}
	if strings.ContainsAny(hostname, " \t/") || hostname != strings.ToLower(hostname) {
		return dErrors.New(dErrors.CodeValidation, "hostname must be a bare lowercase domain name")
	}
	return nil
}

// Patch is a partial update of a domain. Nil fields are left untouched.
type Patch struct {
	Hostname  *string
	Selectors *[]string
	LastRan   *time.Time
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Hostname == nil && p.Selectors == nil && p.LastRan == nil
}

// Validate checks the supplied fields; absent fields are not judged.
func (p Patch) Validate() error {
	if p.Hostname != nil {
		return validateHostname(*p.Hostname)
	}
	return nil
}

// Apply copies the patch's set fields onto d.
func (p Patch) Apply(d *Domain) {
	if p.Hostname != nil {
		d.Hostname = *p.Hostname
	}
	if p.Selectors != nil {
		d.Selectors = append([]string(nil), (*p.Selectors)...)
	}
	if p.LastRan != nil {
		t := *p.LastRan
		d.LastRan = &t
	}
}

// Claim is the edge recording that an organization claims a domain.
type Claim struct {
	OrgKey    id.OrgKey
	DomainKey id.DomainKey
	CreatedAt time.Time
}
