package domains

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tracker/internal/affiliation"
	"tracker/internal/audit"
	"tracker/internal/mutate"
	"tracker/internal/organization"
	id "tracker/pkg/domain"
	dErrors "tracker/pkg/domain-errors"
	"tracker/pkg/platform/sentinel"
	"tracker/pkg/requestcontext"
)

// Service claims and updates domains on behalf of organizations. Domain
// updates require an existing Claim edge from the acting organization:
// rank alone never suffices, and the missing-claim denial is decided
// before any write is attempted.
type Service struct {
	store    Store
	orgs     organization.Store
	resolver *affiliation.Resolver
	exec     *mutate.Executor
	auditor  affiliation.AuditPublisher
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(s *Service)

// WithAuditPublisher sets the audit event publisher.
func WithAuditPublisher(p affiliation.AuditPublisher) ServiceOption {
	return func(s *Service) { s.auditor = p }
}

// WithServiceLogger sets the structured logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService constructs the domain service.
func NewService(store Store, orgs organization.Store, resolver *affiliation.Resolver, exec *mutate.Executor, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		orgs:     orgs,
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

type nopAudit struct{}

func (nopAudit) Emit(context.Context, audit.Event) {}

// Claim records that the organization claims the hostname. The domain
// vertex is created if no organization has claimed the hostname before;
// the claim edge joins the vertex in the same transaction either way.
func (s *Service) Claim(ctx context.Context, orgKey id.OrgKey, hostname string) (*Domain, error) {
	requester := requestcontext.RequesterKey(ctx)
	if requester.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := validateHostname(hostname); err != nil {
		return nil, err
	}

	intent := fmt.Sprintf("claim domain %s for org %s", hostname, orgKey)
	event := audit.Event{
		OrgKey:   orgKey.String(),
		ActorKey: requester.String(),
		Action:   audit.ActionDomainClaimed,
	}

	var claimed *Domain
	err := s.exec.Execute(ctx, mutate.Mutation{
		Intent:      intent,
		Requester:   requester,
		Collections: []string{"domains", "claims"},
		Precondition: func(ctx context.Context) error {
			if err := s.requireAdmin(ctx, event, requester, orgKey); err != nil {
				return err
			}
			org, err := s.orgs.Find(ctx, orgKey)
			if err != nil {
				return fmt.Errorf("load organization %s: %w", orgKey, err)
			}
			if org == nil {
				return dErrors.New(dErrors.CodeNotFound, "organization not found")
			}
			existing, err := s.store.FindByHostname(ctx, hostname)
			if err != nil {
				return fmt.Errorf("look up hostname %q: %w", hostname, err)
			}
			if existing == nil {
				return nil
			}
			claim, err := s.store.FindClaim(ctx, orgKey, existing.Key)
			if err != nil {
				return fmt.Errorf("look up claim on %q: %w", hostname, err)
			}
			if claim != nil {
				return dErrors.New(dErrors.CodeConflict, "organization has already claimed this domain")
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			now := requestcontext.Now(ctx)
			d, err := s.store.FindByHostname(ctx, hostname)
			if err != nil {
				return err
			}
			if d == nil {
				d = &Domain{
					Key:       id.NewDomainKey(),
					Hostname:  hostname,
					CreatedAt: now,
					UpdatedAt: now,
				}
				if err := s.store.Create(ctx, d); err != nil {
					if errors.Is(err, sentinel.ErrConflict) {
						return dErrors.New(dErrors.CodeConflict, "domain was claimed concurrently")
					}
					return err
				}
			}
			if err := s.store.CreateClaim(ctx, &Claim{OrgKey: orgKey, DomainKey: d.Key, CreatedAt: now}); err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					return dErrors.New(dErrors.CodeConflict, "organization has already claimed this domain")
				}
				return err
			}
			claimed = d
			return nil
		},
	})
	if err != nil {
		return nil, s.finish(ctx, event, err)
	}

	s.committed(ctx, event, "domain", hostname)
	return claimed, nil
}

// Update applies a partial patch to a claimed domain. The acting
// organization must hold a Claim edge to the domain; without one the
// update is denied outright, regardless of the requester's rank.
func (s *Service) Update(ctx context.Context, orgKey id.OrgKey, domainKey id.DomainKey, patch Patch) (*Domain, error) {
	requester := requestcontext.RequesterKey(ctx)
	if requester.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if patch.Empty() {
		return nil, dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	intent := fmt.Sprintf("update domain %s for org %s", domainKey, orgKey)
	event := audit.Event{
		OrgKey:    orgKey.String(),
		ActorKey:  requester.String(),
		TargetKey: domainKey.String(),
		Action:    audit.ActionDomainUpdated,
	}

	var updated *Domain
	err := s.exec.Execute(ctx, mutate.Mutation{
		Intent:      intent,
		Requester:   requester,
		Collections: []string{"domains"},
		Precondition: func(ctx context.Context) error {
			if err := s.requireAdmin(ctx, event, requester, orgKey); err != nil {
				return err
			}
			org, err := s.orgs.Find(ctx, orgKey)
			if err != nil {
				return fmt.Errorf("load organization %s: %w", orgKey, err)
			}
			if org == nil {
				return dErrors.New(dErrors.CodeNotFound, "organization not found")
			}
			d, err := s.store.Find(ctx, domainKey)
			if err != nil {
				return fmt.Errorf("load domain %s: %w", domainKey, err)
			}
			if d == nil {
				return dErrors.New(dErrors.CodeNotFound, "domain not found")
			}
			claim, err := s.store.FindClaim(ctx, orgKey, domainKey)
			if err != nil {
				return fmt.Errorf("look up claim on domain %s: %w", domainKey, err)
			}
			if claim == nil {
				event.Outcome = audit.OutcomeDenied
				event.Reason = "NO_CLAIM"
				s.auditor.Emit(ctx, event)
				return dErrors.New(dErrors.CodeForbidden, "organization has not claimed this domain")
			}
			if patch.Hostname != nil && *patch.Hostname != d.Hostname {
				other, err := s.store.FindByHostname(ctx, *patch.Hostname)
				if err != nil {
					return fmt.Errorf("look up hostname %q: %w", *patch.Hostname, err)
				}
				if other != nil {
					return dErrors.New(dErrors.CodeConflict, "hostname already belongs to another domain")
				}
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			d, err := s.store.Update(ctx, domainKey, patch, requestcontext.Now(ctx))
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.New(dErrors.CodeNotFound, "domain not found")
				}
				if errors.Is(err, sentinel.ErrConflict) {
					return dErrors.New(dErrors.CodeConflict, "hostname already belongs to another domain")
				}
				return err
			}
			updated = d
			return nil
		},
	})
	if err != nil {
		return nil, s.finish(ctx, event, err)
	}

	s.committed(ctx, event, "domain_key", domainKey.String())
	return updated, nil
}

// MarkScanned stamps the domain's last-ran time after a scan pass.
func (s *Service) MarkScanned(ctx context.Context, orgKey id.OrgKey, domainKey id.DomainKey, ranAt time.Time) (*Domain, error) {
	return s.Update(ctx, orgKey, domainKey, Patch{LastRan: &ranAt})
}

// ListClaimed returns the domains the organization has claimed. Any
// member may look.
func (s *Service) ListClaimed(ctx context.Context, orgKey id.OrgKey) ([]*Domain, error) {
	requester := requestcontext.RequesterKey(ctx)
	if requester.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := s.resolver.RequireAtLeast(ctx, requester, orgKey, id.PermissionUser); err != nil {
		return nil, err
	}
	claims, err := s.store.ListClaimsByOrg(ctx, orgKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claims")
	}
	out := make([]*Domain, 0, len(claims))
	for _, c := range claims {
		d, err := s.store.Find(ctx, c.DomainKey)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claimed domain")
		}
		if d != nil {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Service) requireAdmin(ctx context.Context, event audit.Event, requester id.UserKey, orgKey id.OrgKey) error {
	err := s.resolver.RequireAtLeast(ctx, requester, orgKey, id.PermissionAdmin)
	if err != nil && dErrors.HasCode(err, dErrors.CodeForbidden) {
		event.Outcome = audit.OutcomeDenied
		event.Reason = "INSUFFICIENT_REQUESTER_RANK"
		s.auditor.Emit(ctx, event)
	}
	return err
}

func (s *Service) finish(ctx context.Context, event audit.Event, err error) error {
	if stage, ok := mutate.FailureStage(err); ok {
		event.Outcome = audit.OutcomeFailed
		event.Reason = string(stage)
		s.auditor.Emit(ctx, event)
	}
	return err
}

func (s *Service) committed(ctx context.Context, event audit.Event, key, value string) {
	event.Outcome = audit.OutcomeCommitted
	s.auditor.Emit(ctx, event)
	s.logger.InfoContext(ctx, "domain mutation committed",
		"action", string(event.Action),
		"org", event.OrgKey,
		"actor", event.ActorKey,
		key, value,
	)
}
