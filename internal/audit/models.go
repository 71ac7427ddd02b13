// Package audit captures who did what to which entity. Events are
// fire-and-forget from domain logic: services publish and move on, the
// worker persists and fans out. The core never reads audit entries back.
package audit

import "time"

// Action names a sensitive mutation attempt.
type Action string

const (
	ActionRoleUpdated   Action = "role_updated"
	ActionUserInvited   Action = "user_invited"
	ActionUserRemoved   Action = "user_removed"
	ActionOrgCreated    Action = "org_created"
	ActionOrgUpdated    Action = "org_updated"
	ActionDomainClaimed Action = "domain_claimed"
	ActionDomainUpdated Action = "domain_updated"
)

// Outcome classifies how the attempt ended.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeDenied    Outcome = "denied"
	OutcomeFailed    Outcome = "failed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	OrgKey    string
	ActorKey  string
	TargetKey string
	Action    Action
	Outcome   Outcome
	// Reason carries the deny reason tag or failure stage; empty on success.
	Reason    string
	RequestID string
}
