package affiliation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tracker/internal/audit"
	"tracker/internal/mutate"
	"tracker/internal/policy"
	id "tracker/pkg/domain"
	dErrors "tracker/pkg/domain-errors"
	"tracker/pkg/platform/sentinel"
	"tracker/pkg/requestcontext"
)

// AuditPublisher records mutation outcomes. Fire-and-forget.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

type nopAudit struct{}

func (nopAudit) Emit(context.Context, audit.Event) {}

// Service applies role mutations to affiliation edges: updating a
// member's rank, inviting a user, removing a member. Every mutation loads
// its preconditions outside the transaction, validates policy, then
// executes under the transactional executor, producing one structured log
// line and one audit event per outcome.
type Service struct {
	store    Store
	resolver *Resolver
	exec     *mutate.Executor
	cache    RankCache
	auditor  AuditPublisher
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(s *Service)

// WithAuditPublisher sets the audit event publisher.
func WithAuditPublisher(p AuditPublisher) ServiceOption {
	return func(s *Service) { s.auditor = p }
}

// WithServiceLogger sets the structured logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithCacheInvalidation invalidates cached ranks after committed writes.
func WithCacheInvalidation(cache RankCache) ServiceOption {
	return func(s *Service) { s.cache = cache }
}

// NewService constructs the role mutation service.
func NewService(store Store, resolver *Resolver, exec *mutate.Executor, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		resolver: resolver,
		exec:     exec,
		auditor:  nopAudit{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateRole changes the target user's rank in the organization. The
// requester comes from the authenticated context. Re-applying the current
// rank is a permitted no-op commit, not an error.
func (s *Service) UpdateRole(ctx context.Context, orgKey id.OrgKey, targetKey id.UserKey, requested id.Permission) (*Affiliation, error) {
	requester, err := requireRequester(ctx)
	if err != nil {
		return nil, err
	}

	intent := fmt.Sprintf("update role of user %s in org %s to %s", targetKey, orgKey, requested)
	event := audit.Event{
		OrgKey:    orgKey.String(),
		ActorKey:  requester.String(),
		TargetKey: targetKey.String(),
		Action:    audit.ActionRoleUpdated,
	}

	var updated *Affiliation
	err = s.exec.Execute(ctx, mutate.Mutation{
		Intent:      intent,
		Requester:   requester,
		Collections: []string{"affiliations"},
		Precondition: func(ctx context.Context) error {
			requesterRank, err := s.resolver.Resolve(ctx, requester, orgKey)
			if err != nil {
				return err
			}
			target, err := s.store.Find(ctx, orgKey, targetKey)
			if err != nil {
				return fmt.Errorf("load target affiliation in org %s: %w", orgKey, err)
			}
			if target == nil {
				return dErrors.New(dErrors.CodeNotFound, "user has no affiliation with this organization")
			}

			decision := policy.Validate(policy.RoleChange{
				RequesterKey:  requester,
				TargetKey:     targetKey,
				RequesterRank: requesterRank,
				TargetRank:    target.Permission,
				RequestedRank: requested,
			})
			if !decision.Allowed {
				return s.deny(ctx, event, decision.Reason)
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			a, err := s.store.UpdatePermission(ctx, orgKey, targetKey, requested, requestcontext.Now(ctx))
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.New(dErrors.CodeNotFound, "user has no affiliation with this organization")
				}
				return err
			}
			updated = a
			return nil
		},
	})
	if err != nil {
		return nil, s.finish(ctx, event, err)
	}

	s.committed(ctx, event, intent, targetKey)
	return updated, nil
}

// Invite creates an affiliation edge for a user who has none. Admins may
// invite at pending or user rank; only a super_admin may invite straight
// to admin. Ranks above admin are never grantable through invitation.
func (s *Service) Invite(ctx context.Context, orgKey id.OrgKey, userKey id.UserKey, rank id.Permission) (*Affiliation, error) {
	requester, err := requireRequester(ctx)
	if err != nil {
		return nil, err
	}

	intent := fmt.Sprintf("invite user %s to org %s as %s", userKey, orgKey, rank)
	event := audit.Event{
		OrgKey:    orgKey.String(),
		ActorKey:  requester.String(),
		TargetKey: userKey.String(),
		Action:    audit.ActionUserInvited,
	}

	var created *Affiliation
	err = s.exec.Execute(ctx, mutate.Mutation{
		Intent:      intent,
		Requester:   requester,
		Collections: []string{"affiliations"},
		Precondition: func(ctx context.Context) error {
			if err := s.resolver.RequireAtLeast(ctx, requester, orgKey, id.PermissionAdmin); err != nil {
				return s.denyIfPolicy(ctx, event, err)
			}
			switch rank {
			case id.PermissionPending, id.PermissionUser:
			case id.PermissionAdmin:
				if err := s.resolver.RequireAtLeast(ctx, requester, orgKey, id.PermissionSuperAdmin); err != nil {
					return s.denyIfPolicy(ctx, event, err)
				}
			default:
				return dErrors.New(dErrors.CodeValidation, "invitation rank must be pending, user or admin")
			}
			existing, err := s.store.Find(ctx, orgKey, userKey)
			if err != nil {
				return fmt.Errorf("check existing affiliation in org %s: %w", orgKey, err)
			}
			if existing != nil {
				return dErrors.New(dErrors.CodeConflict, "user is already affiliated with this organization")
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			now := requestcontext.Now(ctx)
			a := &Affiliation{
				OrgKey:     orgKey,
				UserKey:    userKey,
				Permission: rank,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := s.store.Create(ctx, a); err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					return dErrors.New(dErrors.CodeConflict, "user is already affiliated with this organization")
				}
				return err
			}
			created = a
			return nil
		},
	})
	if err != nil {
		return nil, s.finish(ctx, event, err)
	}

	s.committed(ctx, event, intent, userKey)
	return created, nil
}

// Remove deletes the target's affiliation edge. Admins may remove users
// and pending invitations; removing an admin takes a super_admin, and a
// super_admin cannot be removed at all (mirror of the role immutability).
func (s *Service) Remove(ctx context.Context, orgKey id.OrgKey, targetKey id.UserKey) error {
	requester, err := requireRequester(ctx)
	if err != nil {
		return err
	}

	intent := fmt.Sprintf("remove user %s from org %s", targetKey, orgKey)
	event := audit.Event{
		OrgKey:    orgKey.String(),
		ActorKey:  requester.String(),
		TargetKey: targetKey.String(),
		Action:    audit.ActionUserRemoved,
	}

	err = s.exec.Execute(ctx, mutate.Mutation{
		Intent:      intent,
		Requester:   requester,
		Collections: []string{"affiliations"},
		Precondition: func(ctx context.Context) error {
			if requester == targetKey {
				return s.deny(ctx, event, policy.ReasonSelfModify)
			}
			requesterRank, err := s.resolver.Resolve(ctx, requester, orgKey)
			if err != nil {
				return err
			}
			if !requesterRank.AtLeast(id.PermissionAdmin) {
				return s.deny(ctx, event, policy.ReasonInsufficientRequesterRank)
			}
			target, err := s.store.Find(ctx, orgKey, targetKey)
			if err != nil {
				return fmt.Errorf("load target affiliation in org %s: %w", orgKey, err)
			}
			if target == nil {
				return dErrors.New(dErrors.CodeNotFound, "user has no affiliation with this organization")
			}
			if target.Permission == id.PermissionSuperAdmin {
				return s.deny(ctx, event, policy.ReasonTargetIsSuperAdmin)
			}
			if target.Permission == id.PermissionAdmin && requesterRank != id.PermissionSuperAdmin {
				return s.deny(ctx, event, policy.ReasonAdminCannotModifyPeer)
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			if err := s.store.Delete(ctx, orgKey, targetKey); err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.New(dErrors.CodeNotFound, "user has no affiliation with this organization")
				}
				return err
			}
			return nil
		},
	})
	if err != nil {
		return s.finish(ctx, event, err)
	}

	s.committed(ctx, event, intent, targetKey)
	return nil
}

// ListMembers returns all affiliation edges of the organization. Any
// member may look; outsiders are denied.
func (s *Service) ListMembers(ctx context.Context, orgKey id.OrgKey) ([]*Affiliation, error) {
	requester, err := requireRequester(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.RequireAtLeast(ctx, requester, orgKey, id.PermissionUser); err != nil {
		return nil, err
	}
	members, err := s.store.ListByOrg(ctx, orgKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list members")
	}
	return members, nil
}

// deny records a policy denial: one audit event, one log line, one coded
// error for the caller.
func (s *Service) deny(ctx context.Context, event audit.Event, reason policy.DenyReason) error {
	event.Outcome = audit.OutcomeDenied
	event.Reason = string(reason)
	s.auditor.Emit(ctx, event)
	s.logger.WarnContext(ctx, "mutation denied",
		"action", string(event.Action),
		"org", event.OrgKey,
		"actor", event.ActorKey,
		"target", event.TargetKey,
		"reason", string(reason),
	)
	return dErrors.New(dErrors.CodeForbidden, reason.Message())
}

// denyIfPolicy re-records resolver denials (already coded forbidden) with
// audit context; infrastructure errors pass through untouched.
func (s *Service) denyIfPolicy(ctx context.Context, event audit.Event, err error) error {
	if dErrors.HasCode(err, dErrors.CodeForbidden) {
		event.Outcome = audit.OutcomeDenied
		event.Reason = string(policy.ReasonInsufficientRequesterRank)
		s.auditor.Emit(ctx, event)
		s.logger.WarnContext(ctx, "mutation denied",
			"action", string(event.Action),
			"org", event.OrgKey,
			"actor", event.ActorKey,
			"reason", event.Reason,
		)
	}
	return err
}

// finish records infrastructure failures; denials were already recorded
// at decision time.
func (s *Service) finish(ctx context.Context, event audit.Event, err error) error {
	if stage, ok := mutate.FailureStage(err); ok {
		event.Outcome = audit.OutcomeFailed
		event.Reason = string(stage)
		s.auditor.Emit(ctx, event)
	}
	return err
}

func (s *Service) committed(ctx context.Context, event audit.Event, intent string, targetKey id.UserKey) {
	if s.cache != nil {
		orgKey, _ := id.ParseOrgKey(event.OrgKey)
		s.cache.Invalidate(ctx, orgKey, targetKey)
	}
	event.Outcome = audit.OutcomeCommitted
	s.auditor.Emit(ctx, event)
	s.logger.InfoContext(ctx, "mutation committed",
		"action", string(event.Action),
		"org", event.OrgKey,
		"actor", event.ActorKey,
		"target", event.TargetKey,
		"intent", intent,
	)
}

func requireRequester(ctx context.Context) (id.UserKey, error) {
	requester := requestcontext.RequesterKey(ctx)
	if requester.IsZero() {
		return id.UserKey{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return requester, nil
}
