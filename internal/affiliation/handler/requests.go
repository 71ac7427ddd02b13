package handler

import (
	"time"

	"tracker/internal/affiliation"
	"tracker/internal/user"
	id "tracker/pkg/domain"
)

// UpdateRoleRequest is the wire form of a role change.
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// InviteRequest is the wire form of a membership invitation. Role
// defaults to pending when omitted.
type InviteRequest struct {
	UserKey string `json:"user_key"`
	Role    string `json:"role,omitempty"`
}

// MemberResponse is the wire form of one affiliation edge, enriched with
// directory display fields when known.
type MemberResponse struct {
	UserKey     string    `json:"user_key"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name,omitempty"`
	UserName    string    `json:"user_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FromAffiliation converts one edge to its wire form.
func FromAffiliation(a *affiliation.Affiliation) MemberResponse {
	return MemberResponse{
		UserKey:   a.UserKey.String(),
		Role:      a.Permission.String(),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// FromMembers converts a member listing, joining directory records.
func FromMembers(members []*affiliation.Affiliation, directory map[id.UserKey]*user.User) []MemberResponse {
	out := make([]MemberResponse, len(members))
	for i, m := range members {
		out[i] = FromAffiliation(m)
		if u, ok := directory[m.UserKey]; ok {
			out[i].DisplayName = u.DisplayName
			out[i].UserName = u.UserName
		}
	}
	return out
}
