package domain

import (
	"fmt"
	"time"
)

type ConversationType string

const (
	ConversationPrivate ConversationType = "PRIVATE"
	ConversationGroup   ConversationType = "GROUP"
)

// Conversation is one user's denormalized view of a thread, used for
// inbox rendering. One row exists per (UserID, ConversationID).
type Conversation struct {
	UserID          int64            `json:"userId"`
	ConversationID  string           `json:"conversationId"`
	Type            ConversationType `json:"type"`
	TargetID        string           `json:"targetId"`
	Name            string           `json:"name"`
	Avatar          string           `json:"avatar,omitempty"`
	LastMessage     string           `json:"lastMessage"`
	LastMessageTime time.Time        `json:"lastMessageTime"`
	UnreadCount     int              `json:"unreadCount"`
	IsTop           bool             `json:"isTop"`
	MemberCount     int              `json:"memberCount,omitempty"`
}

// PrivateConversationID builds the canonical id for a pair of users.
// The smaller id always comes first so both participants derive the
// same id regardless of who initiates.
func PrivateConversationID(a, b int64) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("conversation_%d_%d", a, b)
}

// GroupConversationID builds the conversation id for a group.
func GroupConversationID(groupID int64) string {
	return fmt.Sprintf("group_%d", groupID)
}
