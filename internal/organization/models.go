package organization

import (
	"time"

	id "tracker/pkg/domain"
	dErrors "tracker/pkg/domain-errors"
)

// Locale selects one language variant of an organization's details.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleFR Locale = "fr"
)

// ParseLocale validates a locale string from the wire.
func ParseLocale(s string) (Locale, error) {
	switch Locale(s) {
	case LocaleEN:
		return LocaleEN, nil
	case LocaleFR:
		return LocaleFR, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "locale must be en or fr")
	}
}

// Details is one language variant of an organization's public record.
// Slug is unique per locale across all organizations.
type Details struct {
	Name     string
	Acronym  string
	Slug     string
	Country  string
	Province string
	City     string
}

// DetailsPatch is a partial update of one locale's details. Nil fields
// are left untouched.
type DetailsPatch struct {
	Name     *string
	Acronym  *string
	Slug     *string
	Country  *string
	Province *string
	City     *string
}

// Empty reports whether the patch changes nothing.
func (p DetailsPatch) Empty() bool {
	return p.Name == nil && p.Acronym == nil && p.Slug == nil &&
		p.Country == nil && p.Province == nil && p.City == nil
}

// Apply copies the patch's set fields onto d.
func (p DetailsPatch) Apply(d *Details) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Acronym != nil {
		d.Acronym = *p.Acronym
	}
	if p.Slug != nil {
		d.Slug = *p.Slug
	}
	if p.Country != nil {
		d.Country = *p.Country
	}
	if p.Province != nil {
		d.Province = *p.Province
	}
	if p.City != nil {
		d.City = *p.City
	}
}

// Organization is an org vertex with its per-locale detail records.
type Organization struct {
	Key       id.OrgKey
	Details   map[Locale]Details
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks structural invariants before persistence.
func (o *Organization) Validate() error {
	if o.Key.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "organization key is required")
	}
	if len(o.Details) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one locale of details is required")
	}
	for locale, d := range o.Details {
		if _, err := ParseLocale(string(locale)); err != nil {
			return err
		}
		if d.Name == "" {
			return dErrors.New(dErrors.CodeValidation, "organization name is required")
		}
		if d.Slug == "" {
			return dErrors.New(dErrors.CodeValidation, "organization slug is required")
		}
	}
	return nil
}
