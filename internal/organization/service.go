package organization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tracker/internal/affiliation"
	"tracker/internal/audit"
	"tracker/internal/mutate"
	id "tracker/pkg/domain"
	dErrors "tracker/pkg/domain-errors"
	"tracker/pkg/platform/sentinel"
	"tracker/pkg/requestcontext"
)

// Service creates and updates organizations. Creation writes the org
// vertex, its detail records and the creator's super_admin affiliation
// edge in one transaction, so a half-created organization can never be
// observed.
type Service struct {
	store    Store
	edges    affiliation.Store
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

// NewService constructs the organization service.
func NewService(store Store, edges affiliation.Store, resolver *affiliation.Resolver, exec *mutate.Executor, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		edges:    edges,
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

// Create registers a new organization with the given per-locale details.
// Any authenticated user may create one; the creator becomes its
// super_admin. Slugs must be free in every supplied locale.
func (s *Service) Create(ctx context.Context, details map[Locale]Details) (*Organization, error) {
	requester := requestcontext.RequesterKey(ctx)
	if requester.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	now := requestcontext.Now(ctx)
	org := &Organization{
		Key:       id.NewOrgKey(),
		Details:   details,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := org.Validate(); err != nil {
		return nil, err
	}

	intent := fmt.Sprintf("create organization %s", org.Key)
	event := audit.Event{
		OrgKey:   org.Key.String(),
		ActorKey: requester.String(),
		Action:   audit.ActionOrgCreated,
	}

	err := s.exec.Execute(ctx, mutate.Mutation{
		Intent:      intent,
		Requester:   requester,
		Collections: []string{"organizations", "organization_details", "affiliations"},
		Precondition: func(ctx context.Context) error {
			for locale, d := range details {
				existing, err := s.store.FindBySlug(ctx, locale, d.Slug)
				if err != nil {
					return fmt.Errorf("check slug %q (%s): %w", d.Slug, locale, err)
				}
				if existing != nil {
					return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("slug %q is already taken", d.Slug))
				}
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			if err := s.store.Create(ctx, org); err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					return dErrors.New(dErrors.CodeConflict, "organization slug is already taken")
				}
				return err
			}
			return s.edges.Create(ctx, &affiliation.Affiliation{
				OrgKey:     org.Key,
				UserKey:    requester,
				Permission: id.PermissionSuperAdmin,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		},
	})
	if err != nil {
		if stage, ok := mutate.FailureStage(err); ok {
			event.Outcome = audit.OutcomeFailed
			event.Reason = string(stage)
			s.auditor.Emit(ctx, event)
		}
		return nil, err
	}

	event.Outcome = audit.OutcomeCommitted
	s.auditor.Emit(ctx, event)
	s.logger.InfoContext(ctx, "organization created",
		"org", org.Key.String(),
		"actor", requester.String(),
	)
	return org, nil
}

// Update applies partial detail patches, per locale, to an existing
// organization. Admin rank in the organization is required.
func (s *Service) Update(ctx context.Context, orgKey id.OrgKey, patches map[Locale]DetailsPatch) (*Organization, error) {
	requester := requestcontext.RequesterKey(ctx)
	if requester.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if len(patches) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	for locale, patch := range patches {
		if _, err := ParseLocale(string(locale)); err != nil {
			return nil, err
		}
		if patch.Empty() {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("empty patch for locale %s", locale))
		}
		if patch.Name != nil && *patch.Name == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "organization name cannot be blank")
		}
		if patch.Slug != nil && *patch.Slug == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "organization slug cannot be blank")
		}
	}

	intent := fmt.Sprintf("update organization %s", orgKey)
	event := audit.Event{
		OrgKey:   orgKey.String(),
		ActorKey: requester.String(),
		Action:   audit.ActionOrgUpdated,
	}

	var updated *Organization
	err := s.exec.Execute(ctx, mutate.Mutation{
		Intent:      intent,
		Requester:   requester,
		Collections: []string{"organizations", "organization_details"},
		Precondition: func(ctx context.Context) error {
			if err := s.resolver.RequireAtLeast(ctx, requester, orgKey, id.PermissionAdmin); err != nil {
				if dErrors.HasCode(err, dErrors.CodeForbidden) {
					event.Outcome = audit.OutcomeDenied
					event.Reason = "INSUFFICIENT_REQUESTER_RANK"
					s.auditor.Emit(ctx, event)
				}
				return err
			}
			org, err := s.store.Find(ctx, orgKey)
			if err != nil {
				return fmt.Errorf("load organization %s: %w", orgKey, err)
			}
			if org == nil {
				return dErrors.New(dErrors.CodeNotFound, "organization not found")
			}
			for locale, patch := range patches {
				current, ok := org.Details[locale]
				if !ok {
					return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("organization has no %s details", locale))
				}
				if patch.Slug == nil || *patch.Slug == current.Slug {
					continue
				}
				existing, err := s.store.FindBySlug(ctx, locale, *patch.Slug)
				if err != nil {
					return fmt.Errorf("check slug %q (%s): %w", *patch.Slug, locale, err)
				}
				if existing != nil {
					return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("slug %q is already taken", *patch.Slug))
				}
			}
			return nil
		},
		Write: func(ctx context.Context) error {
			now := requestcontext.Now(ctx)
			for locale, patch := range patches {
				o, err := s.store.UpdateDetails(ctx, orgKey, locale, patch, now)
				if err != nil {
					switch {
					case errors.Is(err, sentinel.ErrNotFound):
						return dErrors.New(dErrors.CodeNotFound, "organization not found")
					case errors.Is(err, sentinel.ErrConflict):
						return dErrors.New(dErrors.CodeConflict, "organization slug is already taken")
					}
					return err
				}
				updated = o
			}
			return nil
		},
	})
	if err != nil {
		if stage, ok := mutate.FailureStage(err); ok {
			event.Outcome = audit.OutcomeFailed
			event.Reason = string(stage)
			s.auditor.Emit(ctx, event)
		}
		return nil, err
	}

	event.Outcome = audit.OutcomeCommitted
	s.auditor.Emit(ctx, event)
	s.logger.InfoContext(ctx, "organization updated",
		"org", orgKey.String(),
		"actor", requester.String(),
	)
	return updated, nil
}

// Get returns the organization. Visible to any of its members.
func (s *Service) Get(ctx context.Context, orgKey id.OrgKey) (*Organization, error) {
	requester := requestcontext.RequesterKey(ctx)
	if requester.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := s.resolver.RequireAtLeast(ctx, requester, orgKey, id.PermissionUser); err != nil {
		return nil, err
	}
	org, err := s.store.Find(ctx, orgKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
	}
	if org == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "organization not found")
	}
	return org, nil
}
