package repositories

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/xtzs123/uniapp-backend/domain"
	apperrors "github.com/xtzs123/uniapp-backend/errors"
)

func newGroupRepo(t *testing.T) *GroupRepository {
	t.Helper()
	repository, err := NewGroupRepository(openTestDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close() })
	return repository
}

func Test_Create_Installs_Creator_As_Owner(t *testing.T) {
	req := require.New(t)
	repository := newGroupRepo(t)

	group, err := repository.Create("gophers", "standup room", 1, time.Now())
	req.NoError(err)
	req.Positive(group.ID)
	req.Equal(1, group.MemberCount)

	owner, err := repository.GetMember(group.ID, 1)
	req.NoError(err)
	req.Equal(domain.RoleOwner, owner.Role)
}

func Test_AddMember_Twice_Is_A_Conflict(t *testing.T) {
	req := require.New(t)
	repository := newGroupRepo(t)

	group, err := repository.Create("gophers", "", 1, time.Now())
	req.NoError(err)

	req.NoError(repository.AddMember(group.ID, 2, domain.RoleMember, time.Now()))
	req.ErrorIs(repository.AddMember(group.ID, 2, domain.RoleMember, time.Now()), apperrors.ErrAlreadyMember)

	fetched, err := repository.Get(group.ID)
	req.NoError(err)
	req.Equal(2, fetched.MemberCount)
}

func Test_AddMember_To_Unknown_Group(t *testing.T) {
	repository := newGroupRepo(t)
	err := repository.AddMember(999, 2, domain.RoleMember, time.Now())
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func Test_RemoveMember_Keeps_Count_In_Step(t *testing.T) {
	req := require.New(t)
	repository := newGroupRepo(t)

	group, err := repository.Create("gophers", "", 1, time.Now())
	req.NoError(err)
	req.NoError(repository.AddMember(group.ID, 2, domain.RoleMember, time.Now()))
	req.NoError(repository.AddMember(group.ID, 3, domain.RoleAdmin, time.Now()))

	req.NoError(repository.RemoveMember(group.ID, 2))

	fetched, err := repository.Get(group.ID)
	req.NoError(err)
	req.Equal(2, fetched.MemberCount)

	_, err = repository.GetMember(group.ID, 2)
	req.ErrorIs(err, apperrors.ErrNotFound)
	req.ErrorIs(repository.RemoveMember(group.ID, 2), apperrors.ErrNotFound)

	members, err := repository.ListMembers(group.ID)
	req.NoError(err)
	req.ElementsMatch([]int64{1, 3}, lo.Map(members, func(m domain.GroupMember, _ int) int64 { return m.UserID }))
}

func Test_Delete_Cascades_Memberships(t *testing.T) {
	req := require.New(t)
	repository := newGroupRepo(t)

	group, err := repository.Create("gophers", "", 1, time.Now())
	req.NoError(err)
	req.NoError(repository.AddMember(group.ID, 2, domain.RoleMember, time.Now()))

	req.NoError(repository.Delete(group.ID))

	_, err = repository.Get(group.ID)
	req.ErrorIs(err, apperrors.ErrNotFound)
	count, err := repository.CountByGroup(group.ID)
	req.NoError(err)
	req.Zero(count)

	req.ErrorIs(repository.Delete(group.ID), apperrors.ErrNotFound)
}
