package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/xtzs123/uniapp-backend/domain"
	apperrors "github.com/xtzs123/uniapp-backend/errors"
	"github.com/xtzs123/uniapp-backend/projection"
	"github.com/xtzs123/uniapp-backend/repositories"
)

type IGroupService interface {
	CreateGroup(name, description string, creatorID int64, at time.Time) (domain.Group, error)
	JoinGroup(groupID, userID int64, at time.Time) (domain.Group, error)
	RemoveMember(groupID, targetID, operatorID int64) error
	DeleteGroup(groupID, operatorID int64) ([]int64, error)
	Members(groupID int64) ([]domain.GroupMember, error)
	IsMember(groupID, userID int64) bool
}

// GroupService enforces the membership state machine and keeps the
// group conversation rows in step with the membership table.
type GroupService struct {
	groups    repositories.IGroupRepository
	projector *projection.Projector
	log       *slog.Logger
}

func NewGroupService(groups repositories.IGroupRepository, projector *projection.Projector, log *slog.Logger) *GroupService {
	return &GroupService{groups: groups, projector: projector, log: log}
}

// CreateGroup persists the group with its creator as the sole OWNER
// and opens the group conversation with a single row.
func (s *GroupService) CreateGroup(name, description string, creatorID int64, at time.Time) (domain.Group, error) {
	group, err := s.groups.Create(name, description, creatorID, at)
	if err != nil {
		return domain.Group{}, err
	}
	if err := s.projector.CreateGroupConversation(group.ID, group.Name, []int64{creatorID}, at); err != nil {
		return domain.Group{}, err
	}
	s.log.Info("Group created", "group_id", group.ID, "creator_id", creatorID)
	return group, nil
}

// JoinGroup adds the user as a plain MEMBER. Joining twice fails with
// the conflict error from the membership table.
func (s *GroupService) JoinGroup(groupID, userID int64, at time.Time) (domain.Group, error) {
	group, err := s.groups.Get(groupID)
	if err != nil {
		return domain.Group{}, err
	}
	if err := s.groups.AddMember(groupID, userID, domain.RoleMember, at); err != nil {
		return domain.Group{}, err
	}
	if err := s.projector.AddUserToGroupConversation(groupID, userID, group.Name, at); err != nil {
		return domain.Group{}, err
	}
	// Re-read so the returned record carries the post-join member count.
	group, err = s.groups.Get(groupID)
	if err != nil {
		return domain.Group{}, err
	}
	s.log.Info("User joined group", "group_id", groupID, "user_id", userID, "member_count", group.MemberCount)
	return group, nil
}

// RemoveMember applies the permission rules: an OWNER may remove
// anyone including themself, an ADMIN only plain MEMBERs, and
// self-removal by anyone below OWNER is denied.
func (s *GroupService) RemoveMember(groupID, targetID, operatorID int64) error {
	operator, err := s.groups.GetMember(groupID, operatorID)
	if err == apperrors.ErrNotFound {
		return fmt.Errorf("%w: operator is not a group member", apperrors.ErrPermissionDenied)
	}
	if err != nil {
		return err
	}
	target, err := s.groups.GetMember(groupID, targetID)
	if err != nil {
		return err
	}

	if operatorID == targetID {
		if operator.Role != domain.RoleOwner {
			return fmt.Errorf("%w: leaving requires ownership transfer", apperrors.ErrPermissionDenied)
		}
	} else if !operator.Role.CanRemove(target.Role) {
		return fmt.Errorf("%w: %s cannot remove %s", apperrors.ErrPermissionDenied, operator.Role, target.Role)
	}

	if err := s.groups.RemoveMember(groupID, targetID); err != nil {
		return err
	}
	if err := s.projector.RemoveUserFromGroupConversation(groupID, targetID); err != nil {
		return err
	}
	s.log.Info("Member removed", "group_id", groupID, "target_id", targetID, "operator_id", operatorID)
	return nil
}

// DeleteGroup dissolves a group: only the original creator may do it.
// Returns the ids of the members the group had, so the caller can
// notify the online ones.
func (s *GroupService) DeleteGroup(groupID, operatorID int64) ([]int64, error) {
	group, err := s.groups.Get(groupID)
	if err != nil {
		return nil, err
	}
	if group.CreatorID != operatorID {
		return nil, fmt.Errorf("%w: only the group owner may dissolve it", apperrors.ErrPermissionDenied)
	}
	members, err := s.groups.ListMembers(groupID)
	if err != nil {
		return nil, err
	}
	if err := s.groups.Delete(groupID); err != nil {
		return nil, err
	}
	if err := s.projector.DeleteGroupConversation(groupID); err != nil {
		return nil, err
	}
	s.log.Info("Group dissolved", "group_id", groupID, "operator_id", operatorID)
	return lo.Map(members, func(m domain.GroupMember, _ int) int64 { return m.UserID }), nil
}

func (s *GroupService) Members(groupID int64) ([]domain.GroupMember, error) {
	return s.groups.ListMembers(groupID)
}

func (s *GroupService) IsMember(groupID, userID int64) bool {
	_, err := s.groups.GetMember(groupID, userID)
	return err == nil
}
