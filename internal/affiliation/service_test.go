package affiliation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tracker/internal/audit"
	"tracker/internal/mutate"
	"tracker/internal/policy"
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

type recordingCache struct {
	invalidated []string
}

func (c *recordingCache) Get(context.Context, id.OrgKey, id.UserKey) (id.Permission, bool) {
	return id.PermissionNone, false
}

func (c *recordingCache) Set(context.Context, id.OrgKey, id.UserKey, id.Permission) {}

func (c *recordingCache) Invalidate(_ context.Context, orgKey id.OrgKey, userKey id.UserKey) {
	c.invalidated = append(c.invalidated, orgKey.String()+"/"+userKey.String())
}

// brokenStore wraps a Store and fails every write, exercising the
// run-stage failure path.
type brokenStore struct {
	Store
}

var errDiskGone = errors.New("connection reset during write")

func (b brokenStore) Create(context.Context, *Affiliation) error { return errDiskGone }

func (b brokenStore) UpdatePermission(context.Context, id.OrgKey, id.UserKey, id.Permission, time.Time) (*Affiliation, error) {
	return nil, errDiskGone
}

func (b brokenStore) Delete(context.Context, id.OrgKey, id.UserKey) error { return errDiskGone }

// unreachableStore fails every read, exercising the precondition-stage
// failure path through the rank gate.
type unreachableStore struct {
	Store
}

func (unreachableStore) Find(context.Context, id.OrgKey, id.UserKey) (*Affiliation, error) {
	return nil, errDiskGone
}

type ServiceSuite struct {
	suite.Suite

	store   *InMemory
	auditor *capturingAudit
	cache   *recordingCache
	svc     *Service

	org      id.OrgKey
	super    id.UserKey
	adminA   id.UserKey
	adminB   id.UserKey
	member   id.UserKey
	invited  id.UserKey
	outsider id.UserKey
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewInMemory()
	s.auditor = &capturingAudit{}
	s.cache = &recordingCache{}

	s.org = id.NewOrgKey()
	s.super = id.NewUserKey()
	s.adminA = id.NewUserKey()
	s.adminB = id.NewUserKey()
	s.member = id.NewUserKey()
	s.invited = id.NewUserKey()
	s.outsider = id.NewUserKey()

	s.seed(s.super, id.PermissionSuperAdmin)
	s.seed(s.adminA, id.PermissionAdmin)
	s.seed(s.adminB, id.PermissionAdmin)
	s.seed(s.member, id.PermissionUser)
	s.seed(s.invited, id.PermissionPending)

	s.svc = s.newService(s.store)
}

func (s *ServiceSuite) newService(store Store) *Service {
	exec := mutate.New(mutate.NewMemoryTxRunner())
	return NewService(store, NewResolver(s.store), exec,
		WithAuditPublisher(s.auditor),
		WithCacheInvalidation(s.cache),
	)
}

func (s *ServiceSuite) seed(userKey id.UserKey, rank id.Permission) {
	now := time.Now().UTC()
	err := s.store.Create(context.Background(), &Affiliation{
		OrgKey:     s.org,
		UserKey:    userKey,
		Permission: rank,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	s.Require().NoError(err)
}

func (s *ServiceSuite) as(userKey id.UserKey) context.Context {
	return requestcontext.WithRequesterKey(context.Background(), userKey)
}

func (s *ServiceSuite) rank(userKey id.UserKey) id.Permission {
	edge, err := s.store.Find(context.Background(), s.org, userKey)
	s.Require().NoError(err)
	s.Require().NotNil(edge)
	return edge.Permission
}

func (s *ServiceSuite) lastAudit() audit.Event {
	event, ok := s.auditor.last()
	s.Require().True(ok, "expected an audit event")
	return event
}

func (s *ServiceSuite) TestUpdateRoleAdminPromotesUser() {
	updated, err := s.svc.UpdateRole(s.as(s.adminA), s.org, s.member, id.PermissionAdmin)

	s.Require().NoError(err)
	s.Equal(id.PermissionAdmin, updated.Permission)
	s.Equal(id.PermissionAdmin, s.rank(s.member))

	event := s.lastAudit()
	s.Equal(audit.ActionRoleUpdated, event.Action)
	s.Equal(audit.OutcomeCommitted, event.Outcome)
	s.Equal(s.adminA.String(), event.ActorKey)
	s.Equal(s.member.String(), event.TargetKey)
	s.Contains(s.cache.invalidated, s.org.String()+"/"+s.member.String())
}

func (s *ServiceSuite) TestUpdateRoleSuperAdminDemotesAdmin() {
	updated, err := s.svc.UpdateRole(s.as(s.super), s.org, s.adminA, id.PermissionUser)

	s.Require().NoError(err)
	s.Equal(id.PermissionUser, updated.Permission)
	s.Equal(id.PermissionUser, s.rank(s.adminA))
}

func (s *ServiceSuite) TestUpdateRoleReapplyCurrentRankIsNoOpCommit() {
	updated, err := s.svc.UpdateRole(s.as(s.super), s.org, s.adminA, id.PermissionAdmin)

	s.Require().NoError(err)
	s.Equal(id.PermissionAdmin, updated.Permission)
	s.Equal(audit.OutcomeCommitted, s.lastAudit().Outcome)
}

func (s *ServiceSuite) TestUpdateRoleAdminCannotModifyPeer() {
	_, err := s.svc.UpdateRole(s.as(s.adminA), s.org, s.adminB, id.PermissionUser)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal(id.PermissionAdmin, s.rank(s.adminB))

	event := s.lastAudit()
	s.Equal(audit.OutcomeDenied, event.Outcome)
	s.Equal(string(policy.ReasonAdminCannotModifyPeer), event.Reason)
}

func (s *ServiceSuite) TestUpdateRoleAdminCannotGrantSuperAdmin() {
	_, err := s.svc.UpdateRole(s.as(s.adminA), s.org, s.member, id.PermissionSuperAdmin)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal(string(policy.ReasonAdminCannotGrantSuper), s.lastAudit().Reason)
	s.Equal(id.PermissionUser, s.rank(s.member))
}

func (s *ServiceSuite) TestUpdateRoleSuperAdminTargetImmutable() {
	_, err := s.svc.UpdateRole(s.as(s.super), s.org, s.super, id.PermissionUser)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	other := id.NewUserKey()
	s.seed(other, id.PermissionSuperAdmin)
	_, err = s.svc.UpdateRole(s.as(s.super), s.org, other, id.PermissionUser)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal(string(policy.ReasonTargetIsSuperAdmin), s.lastAudit().Reason)
	s.Equal(id.PermissionSuperAdmin, s.rank(other))
}

func (s *ServiceSuite) TestUpdateRoleSelfModifyDenied() {
	_, err := s.svc.UpdateRole(s.as(s.adminA), s.org, s.adminA, id.PermissionUser)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal(string(policy.ReasonSelfModify), s.lastAudit().Reason)
}

func (s *ServiceSuite) TestUpdateRolePendingTargetDenied() {
	_, err := s.svc.UpdateRole(s.as(s.adminA), s.org, s.invited, id.PermissionUser)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal(string(policy.ReasonTargetIsPending), s.lastAudit().Reason)
	s.Equal(id.PermissionPending, s.rank(s.invited))
}

func (s *ServiceSuite) TestUpdateRoleOutsiderDenied() {
	_, err := s.svc.UpdateRole(s.as(s.outsider), s.org, s.member, id.PermissionAdmin)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal(id.PermissionUser, s.rank(s.member))
}

func (s *ServiceSuite) TestUpdateRoleTargetNotAffiliated() {
	_, err := s.svc.UpdateRole(s.as(s.adminA), s.org, id.NewUserKey(), id.PermissionUser)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestUpdateRoleRequiresAuthentication() {
	_, err := s.svc.UpdateRole(context.Background(), s.org, s.member, id.PermissionAdmin)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Empty(s.auditor.events)
}

func (s *ServiceSuite) TestUpdateRoleWriteFailureLeavesStateUntouched() {
	svc := s.newService(brokenStore{s.store})

	_, err := svc.UpdateRole(s.as(s.adminA), s.org, s.member, id.PermissionAdmin)

	s.Require().Error(err)
	stage, ok := mutate.FailureStage(err)
	s.Require().True(ok, "expected a classified stage failure")
	s.Equal(mutate.StageRun, stage)
	s.Equal(id.PermissionUser, s.rank(s.member))

	event := s.lastAudit()
	s.Equal(audit.OutcomeFailed, event.Outcome)
	s.Equal(string(mutate.StageRun), event.Reason)
	s.Empty(s.cache.invalidated)
}

func (s *ServiceSuite) TestInviteResolverOutageClassifiedAsPreconditionFailure() {
	exec := mutate.New(mutate.NewMemoryTxRunner())
	svc := NewService(s.store, NewResolver(unreachableStore{s.store}), exec,
		WithAuditPublisher(s.auditor),
		WithCacheInvalidation(s.cache),
	)

	_, err := svc.Invite(s.as(s.adminA), s.org, id.NewUserKey(), id.PermissionUser)

	s.Require().Error(err)
	stage, ok := mutate.FailureStage(err)
	s.Require().True(ok, "expected a classified stage failure")
	s.Equal(mutate.StagePrecondition, stage)

	event := s.lastAudit()
	s.Equal(audit.OutcomeFailed, event.Outcome)
	s.Equal(string(mutate.StagePrecondition), event.Reason)
}

func (s *ServiceSuite) TestInviteUserAtUserRank() {
	created, err := s.svc.Invite(s.as(s.adminA), s.org, id.NewUserKey(), id.PermissionUser)

	s.Require().NoError(err)
	s.Equal(id.PermissionUser, created.Permission)
	s.Equal(audit.ActionUserInvited, s.lastAudit().Action)
	s.Equal(audit.OutcomeCommitted, s.lastAudit().Outcome)
}

func (s *ServiceSuite) TestInviteAtAdminRankNeedsSuperAdmin() {
	_, err := s.svc.Invite(s.as(s.adminA), s.org, id.NewUserKey(), id.PermissionAdmin)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	created, err := s.svc.Invite(s.as(s.super), s.org, id.NewUserKey(), id.PermissionAdmin)
	s.Require().NoError(err)
	s.Equal(id.PermissionAdmin, created.Permission)
}

func (s *ServiceSuite) TestInviteRejectsUngrantableRank() {
	_, err := s.svc.Invite(s.as(s.super), s.org, id.NewUserKey(), id.PermissionSuperAdmin)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestInviteExistingMemberConflicts() {
	_, err := s.svc.Invite(s.as(s.adminA), s.org, s.member, id.PermissionUser)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestInviteByOutsiderDenied() {
	_, err := s.svc.Invite(s.as(s.outsider), s.org, id.NewUserKey(), id.PermissionUser)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal(audit.OutcomeDenied, s.lastAudit().Outcome)
}

func (s *ServiceSuite) TestRemoveUserByAdmin() {
	err := s.svc.Remove(s.as(s.adminA), s.org, s.member)

	s.Require().NoError(err)
	edge, err := s.store.Find(context.Background(), s.org, s.member)
	s.Require().NoError(err)
	s.Nil(edge)
	s.Equal(audit.ActionUserRemoved, s.lastAudit().Action)
}

func (s *ServiceSuite) TestRemoveAdminNeedsSuperAdmin() {
	err := s.svc.Remove(s.as(s.adminA), s.org, s.adminB)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal(string(policy.ReasonAdminCannotModifyPeer), s.lastAudit().Reason)

	s.Require().NoError(s.svc.Remove(s.as(s.super), s.org, s.adminB))
}

func (s *ServiceSuite) TestRemoveSuperAdminDenied() {
	other := id.NewUserKey()
	s.seed(other, id.PermissionSuperAdmin)

	err := s.svc.Remove(s.as(s.super), s.org, other)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal(string(policy.ReasonTargetIsSuperAdmin), s.lastAudit().Reason)
}

func (s *ServiceSuite) TestRemoveSelfDenied() {
	err := s.svc.Remove(s.as(s.adminA), s.org, s.adminA)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal(string(policy.ReasonSelfModify), s.lastAudit().Reason)
}

func (s *ServiceSuite) TestRemoveMissingMemberNotFound() {
	err := s.svc.Remove(s.as(s.adminA), s.org, id.NewUserKey())

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestListMembersVisibleToMembers() {
	members, err := s.svc.ListMembers(s.as(s.member), s.org)

	s.Require().NoError(err)
	s.Len(members, 5)
}

func (s *ServiceSuite) TestListMembersDeniedToOutsiders() {
	_, err := s.svc.ListMembers(s.as(s.outsider), s.org)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestListMembersDeniedWhilePending() {
	_, err := s.svc.ListMembers(s.as(s.invited), s.org)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}
