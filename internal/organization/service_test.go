package organization

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tracker/internal/affiliation"
	"tracker/internal/audit"
	"tracker/internal/mutate"
	id "tracker/pkg/domain"
	dErrors "tracker/pkg/domain-errors"
	"tracker/pkg/requestcontext"
)

type capturingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *capturingAudit) Emit(_ context.Context, event audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *capturingAudit) last() (audit.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return audit.Event{}, false
	}
	return c.events[len(c.events)-1], true
}

// failingEdges makes the affiliation insert fail after the org insert
// succeeded, exercising the all-or-nothing write step.
type failingEdges struct {
	affiliation.Store
}

var errEdgeWrite = errors.New("write refused")

func (failingEdges) Create(context.Context, *affiliation.Affiliation) error { return errEdgeWrite }

type ServiceSuite struct {
	suite.Suite

	store   *InMemory
	edges   *affiliation.InMemory
	auditor *capturingAudit
	svc     *Service

	creator id.UserKey
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewInMemory()
	s.edges = affiliation.NewInMemory()
	s.auditor = &capturingAudit{}
	s.creator = id.NewUserKey()
	s.svc = s.newService(s.edges)
}

func (s *ServiceSuite) newService(edges affiliation.Store) *Service {
	exec := mutate.New(mutate.NewMemoryTxRunner())
	return NewService(s.store, edges, affiliation.NewResolver(s.edges), exec,
		WithAuditPublisher(s.auditor),
	)
}

func (s *ServiceSuite) as(userKey id.UserKey) context.Context {
	return requestcontext.WithRequesterKey(context.Background(), userKey)
}

func details() map[Locale]Details {
	return map[Locale]Details{
		LocaleEN: {Name: "Office of Digital Services", Acronym: "ODS", Slug: "digital-services", Country: "CA", Province: "ON", City: "Ottawa"},
		LocaleFR: {Name: "Bureau des services numériques", Acronym: "BSN", Slug: "services-numeriques", Country: "CA", Province: "ON", City: "Ottawa"},
	}
}

func (s *ServiceSuite) create() *Organization {
	org, err := s.svc.Create(s.as(s.creator), details())
	s.Require().NoError(err)
	return org
}

func (s *ServiceSuite) TestCreateMakesCreatorSuperAdmin() {
	org := s.create()

	edge, err := s.edges.Find(context.Background(), org.Key, s.creator)
	s.Require().NoError(err)
	s.Require().NotNil(edge)
	s.Equal(id.PermissionSuperAdmin, edge.Permission)

	event, ok := s.auditor.last()
	s.Require().True(ok)
	s.Equal(audit.ActionOrgCreated, event.Action)
	s.Equal(audit.OutcomeCommitted, event.Outcome)
}

func (s *ServiceSuite) TestCreatePersistsBothLocales() {
	org := s.create()

	found, err := s.store.Find(context.Background(), org.Key)
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal("digital-services", found.Details[LocaleEN].Slug)
	s.Equal("services-numeriques", found.Details[LocaleFR].Slug)
}

func (s *ServiceSuite) TestCreateRejectsTakenSlug() {
	s.create()

	other := id.NewUserKey()
	_, err := s.svc.Create(s.as(other), map[Locale]Details{
		LocaleEN: {Name: "Another Office", Slug: "digital-services"},
	})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestCreateRequiresAuthentication() {
	_, err := s.svc.Create(context.Background(), details())

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestCreateRejectsMissingName() {
	_, err := s.svc.Create(s.as(s.creator), map[Locale]Details{
		LocaleEN: {Slug: "nameless"},
	})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestCreateEdgeFailureReportsRunStage() {
	svc := s.newService(failingEdges{s.edges})

	_, err := svc.Create(s.as(s.creator), details())

	s.Require().Error(err)
	stage, ok := mutate.FailureStage(err)
	s.Require().True(ok)
	s.Equal(mutate.StageRun, stage)

	event, found := s.auditor.last()
	s.Require().True(found)
	s.Equal(audit.OutcomeFailed, event.Outcome)
}

func (s *ServiceSuite) TestUpdatePatchesOnlySuppliedFields() {
	org := s.create()

	name := "Digital Services Directorate"
	updated, err := s.svc.Update(s.as(s.creator), org.Key, map[Locale]DetailsPatch{
		LocaleEN: {Name: &name},
	})

	s.Require().NoError(err)
	s.Equal(name, updated.Details[LocaleEN].Name)
	s.Equal("ODS", updated.Details[LocaleEN].Acronym)
	s.Equal("digital-services", updated.Details[LocaleEN].Slug)
	s.Equal("Bureau des services numériques", updated.Details[LocaleFR].Name)
	s.True(updated.UpdatedAt.After(org.UpdatedAt) || updated.UpdatedAt.Equal(org.UpdatedAt))
}

func (s *ServiceSuite) TestUpdateSlugToTakenSlugConflicts() {
	org := s.create()

	other := id.NewUserKey()
	_, err := s.svc.Create(s.as(other), map[Locale]Details{
		LocaleEN: {Name: "Another Office", Slug: "another-office"},
	})
	s.Require().NoError(err)

	taken := "another-office"
	_, err = s.svc.Update(s.as(s.creator), org.Key, map[Locale]DetailsPatch{
		LocaleEN: {Slug: &taken},
	})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestUpdateRequiresAdminRank() {
	org := s.create()

	member := id.NewUserKey()
	now := time.Now().UTC()
	s.Require().NoError(s.edges.Create(context.Background(), &affiliation.Affiliation{
		OrgKey:     org.Key,
		UserKey:    member,
		Permission: id.PermissionUser,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))

	name := "Renamed"
	_, err := s.svc.Update(s.as(member), org.Key, map[Locale]DetailsPatch{
		LocaleEN: {Name: &name},
	})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	event, ok := s.auditor.last()
	s.Require().True(ok)
	s.Equal(audit.OutcomeDenied, event.Outcome)
}

func (s *ServiceSuite) TestUpdateRejectsEmptyPatch() {
	org := s.create()

	_, err := s.svc.Update(s.as(s.creator), org.Key, map[Locale]DetailsPatch{
		LocaleEN: {},
	})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestUpdateUnknownOrganization() {
	name := "Renamed"
	_, err := s.svc.Update(s.as(s.creator), id.NewOrgKey(), map[Locale]DetailsPatch{
		LocaleEN: {Name: &name},
	})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden), "no rank in an unknown org resolves to a denial")
}

func (s *ServiceSuite) TestGetVisibleToMembers() {
	org := s.create()

	got, err := s.svc.Get(s.as(s.creator), org.Key)
	s.Require().NoError(err)
	s.Equal(org.Key, got.Key)

	_, err = s.svc.Get(s.as(id.NewUserKey()), org.Key)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}
