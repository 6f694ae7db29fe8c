package domain

import "time"

type GroupRole string

const (
	RoleOwner  GroupRole = "OWNER"
	RoleAdmin  GroupRole = "ADMIN"
	RoleMember GroupRole = "MEMBER"
)

type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"groupName"`
	Description string    `json:"description,omitempty"`
	CreatorID   int64     `json:"creatorId"`
	MemberCount int       `json:"memberCount"`
	CreatedAt   time.Time `json:"createdTime"`
}

// GroupMember binds a user to a group with a role.
// Unique per (GroupID, UserID).
type GroupMember struct {
	GroupID  int64     `json:"groupId"`
	UserID   int64     `json:"userId"`
	Role     GroupRole `json:"role"`
	JoinedAt time.Time `json:"joinedTime"`
}

// CanRemove reports whether an operator with this role may remove a
// member holding target's role. Owners remove anyone, admins only
// plain members.
func (r GroupRole) CanRemove(target GroupRole) bool {
	switch r {
	case RoleOwner:
		return true
	case RoleAdmin:
		return target == RoleMember
	default:
		return false
	}
}
