package affiliation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "tracker/pkg/domain"
	"tracker/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite

	ctx   context.Context
	store *InMemory
	org   id.OrgKey
	user  id.UserKey
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
	s.org = id.NewOrgKey()
	s.user = id.NewUserKey()
}

func (s *InMemoryStoreSuite) edge(rank id.Permission) *Affiliation {
	now := time.Now().UTC()
	return &Affiliation{
		OrgKey:     s.org,
		UserKey:    s.user,
		Permission: rank,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *InMemoryStoreSuite) TestFindAbsentEdgeIsNilNil() {
	found, err := s.store.Find(s.ctx, s.org, s.user)
	s.Require().NoError(err)
	s.Nil(found)
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	s.Require().NoError(s.store.Create(s.ctx, s.edge(id.PermissionUser)))

	found, err := s.store.Find(s.ctx, s.org, s.user)
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(id.PermissionUser, found.Permission)
}

func (s *InMemoryStoreSuite) TestCreateDuplicateEdgeConflicts() {
	s.Require().NoError(s.store.Create(s.ctx, s.edge(id.PermissionUser)))

	err := s.store.Create(s.ctx, s.edge(id.PermissionAdmin))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestCreateRejectsInvalidEdge() {
	bad := s.edge(id.PermissionNone)
	s.Require().Error(s.store.Create(s.ctx, bad))
}

func (s *InMemoryStoreSuite) TestUpdatePermission() {
	s.Require().NoError(s.store.Create(s.ctx, s.edge(id.PermissionUser)))

	later := time.Now().UTC().Add(time.Minute)
	updated, err := s.store.UpdatePermission(s.ctx, s.org, s.user, id.PermissionAdmin, later)
	s.Require().NoError(err)
	s.Equal(id.PermissionAdmin, updated.Permission)
	s.Equal(later, updated.UpdatedAt)

	found, err := s.store.Find(s.ctx, s.org, s.user)
	s.Require().NoError(err)
	s.Equal(id.PermissionAdmin, found.Permission)
}

func (s *InMemoryStoreSuite) TestUpdatePermissionMissingEdge() {
	_, err := s.store.UpdatePermission(s.ctx, s.org, s.user, id.PermissionAdmin, time.Now())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestDelete() {
	s.Require().NoError(s.store.Create(s.ctx, s.edge(id.PermissionUser)))
	s.Require().NoError(s.store.Delete(s.ctx, s.org, s.user))

	found, err := s.store.Find(s.ctx, s.org, s.user)
	s.Require().NoError(err)
	s.Nil(found)
}

func (s *InMemoryStoreSuite) TestDeleteMissingEdge() {
	s.Require().ErrorIs(s.store.Delete(s.ctx, s.org, s.user), sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestListByOrgScopesToOrganization() {
	s.Require().NoError(s.store.Create(s.ctx, s.edge(id.PermissionUser)))

	otherOrg := id.NewOrgKey()
	now := time.Now().UTC()
	s.Require().NoError(s.store.Create(s.ctx, &Affiliation{
		OrgKey:     otherOrg,
		UserKey:    s.user,
		Permission: id.PermissionAdmin,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))

	members, err := s.store.ListByOrg(s.ctx, s.org)
	s.Require().NoError(err)
	s.Len(members, 1)
	s.Equal(s.org, members[0].OrgKey)
}

func (s *InMemoryStoreSuite) TestReadsReturnCopies() {
	s.Require().NoError(s.store.Create(s.ctx, s.edge(id.PermissionUser)))

	found, err := s.store.Find(s.ctx, s.org, s.user)
	s.Require().NoError(err)
	found.Permission = id.PermissionSuperAdmin

	again, err := s.store.Find(s.ctx, s.org, s.user)
	s.Require().NoError(err)
	s.Equal(id.PermissionUser, again.Permission)
}
