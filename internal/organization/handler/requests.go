package handler

import (
	"time"

	"tracker/internal/organization"
)

// DetailsPayload is the wire form of one locale's details.
type DetailsPayload struct {
	Name     string `json:"name"`
	Acronym  string `json:"acronym,omitempty"`
	Slug     string `json:"slug"`
	Country  string `json:"country,omitempty"`
	Province string `json:"province,omitempty"`
	City     string `json:"city,omitempty"`
}

// DetailsPatchPayload is the wire form of a partial details update.
type DetailsPatchPayload struct {
	Name     *string `json:"name,omitempty"`
	Acronym  *string `json:"acronym,omitempty"`
	Slug     *string `json:"slug,omitempty"`
	Country  *string `json:"country,omitempty"`
	Province *string `json:"province,omitempty"`
	City     *string `json:"city,omitempty"`
}

// CreateRequest is the wire form of organization creation, keyed by
// locale ("en", "fr").
type CreateRequest struct {
	Details map[string]DetailsPayload `json:"details"`
}

// ToDetails validates locales and converts to the domain form.
func (r CreateRequest) ToDetails() (map[organization.Locale]organization.Details, error) {
	out := make(map[organization.Locale]organization.Details, len(r.Details))
	for raw, d := range r.Details {
		locale, err := organization.ParseLocale(raw)
		if err != nil {
			return nil, err
		}
		out[locale] = organization.Details{
			Name:     d.Name,
			Acronym:  d.Acronym,
			Slug:     d.Slug,
			Country:  d.Country,
			Province: d.Province,
			City:     d.City,
		}
	}
	return out, nil
}

// UpdateRequest is the wire form of a partial organization update.
type UpdateRequest struct {
	Details map[string]DetailsPatchPayload `json:"details"`
}

// ToPatches validates locales and converts to the domain form.
func (r UpdateRequest) ToPatches() (map[organization.Locale]organization.DetailsPatch, error) {
	out := make(map[organization.Locale]organization.DetailsPatch, len(r.Details))
	for raw, p := range r.Details {
		locale, err := organization.ParseLocale(raw)
		if err != nil {
			return nil, err
		}
		out[locale] = organization.DetailsPatch{
			Name:     p.Name,
			Acronym:  p.Acronym,
			Slug:     p.Slug,
			Country:  p.Country,
			Province: p.Province,
			City:     p.City,
		}
	}
	return out, nil
}

// OrganizationResponse is the wire form of an organization.
type OrganizationResponse struct {
	OrgKey    string                    `json:"org_key"`
	Details   map[string]DetailsPayload `json:"details"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// FromOrganization converts an organization to its wire form.
func FromOrganization(o *organization.Organization) OrganizationResponse {
	details := make(map[string]DetailsPayload, len(o.Details))
	for locale, d := range o.Details {
		details[string(locale)] = DetailsPayload{
			Name:     d.Name,
			Acronym:  d.Acronym,
			Slug:     d.Slug,
			Country:  d.Country,
			Province: d.Province,
			City:     d.City,
		}
	}
	return OrganizationResponse{
		OrgKey:    o.Key.String(),
		Details:   details,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}
