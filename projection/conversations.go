// Package projection maintains the per-user conversation views derived
// from message and membership events. It owns no transport and emits
// no frames; the command router reads it and decides what to fan out.
package projection

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/xtzs123/uniapp-backend/domain"
	apperrors "github.com/xtzs123/uniapp-backend/errors"
	"github.com/xtzs123/uniapp-backend/repositories"
)

type Projector struct {
	conversations repositories.IConversationRepository
	log           *slog.Logger
}

func NewProjector(conversations repositories.IConversationRepository, log *slog.Logger) *Projector {
	return &Projector{conversations: conversations, log: log}
}

// displayName stands in for the excluded user directory; inbox names
// are refreshed client-side from profile data.
func displayName(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}

// GetOrCreatePrivateConversation resolves the canonical id for a pair
// of users and creates both participant rows if the conversation does
// not exist yet. Creation is atomic and idempotent: racing first
// contacts produce exactly one row pair.
func (p *Projector) GetOrCreatePrivateConversation(a, b int64, now time.Time) (string, error) {
	conversationID := domain.PrivateConversationID(a, b)
	rows := [2]domain.Conversation{
		{
			UserID:          a,
			ConversationID:  conversationID,
			Type:            domain.ConversationPrivate,
			TargetID:        fmt.Sprintf("%d", b),
			Name:            displayName(b),
			LastMessageTime: now.UTC(),
		},
		{
			UserID:          b,
			ConversationID:  conversationID,
			Type:            domain.ConversationPrivate,
			TargetID:        fmt.Sprintf("%d", a),
			Name:            displayName(a),
			LastMessageTime: now.UTC(),
		},
	}
	created, err := p.conversations.CreatePairIfAbsent(rows)
	if err != nil {
		return "", err
	}
	if created {
		p.log.Info("Created private conversation", "conversation_id", conversationID, "users", []int64{a, b})
	}
	return conversationID, nil
}

// UpdateLastMessage stamps the new last message on every row of the
// conversation and bumps the unread count on all rows except the
// sender's own.
func (p *Projector) UpdateLastMessage(conversationID, lastMessage string, senderID int64, at time.Time) error {
	return p.conversations.UpdateLastMessage(conversationID, lastMessage, senderID, at)
}

// MarkRead zeroes exactly the caller's unread count.
func (p *Projector) MarkRead(userID int64, conversationID string) error {
	return p.conversations.MarkRead(userID, conversationID)
}

func (p *Projector) SetTop(userID int64, conversationID string, isTop bool) error {
	return p.conversations.SetTop(userID, conversationID, isTop)
}

func (p *Projector) List(userID int64) ([]domain.Conversation, error) {
	return p.conversations.ListByUser(userID)
}

// ListParticipants returns every participant row of a conversation,
// the set recall notices and member-count recomputes fan out to.
func (p *Projector) ListParticipants(conversationID string) ([]domain.Conversation, error) {
	return p.conversations.ListByConversation(conversationID)
}

func (p *Projector) DeleteRow(userID int64, conversationID string) error {
	return p.conversations.Delete(userID, conversationID)
}

// CreateGroupConversation creates one row per initial member with the
// member count already set.
func (p *Projector) CreateGroupConversation(groupID int64, name string, memberIDs []int64, at time.Time) error {
	conversationID := domain.GroupConversationID(groupID)
	rows := lo.Map(memberIDs, func(memberID int64, _ int) domain.Conversation {
		return domain.Conversation{
			UserID:          memberID,
			ConversationID:  conversationID,
			Type:            domain.ConversationGroup,
			TargetID:        fmt.Sprintf("%d", groupID),
			Name:            name,
			LastMessageTime: at.UTC(),
			MemberCount:     len(memberIDs),
		}
	})
	for _, row := range rows {
		if err := p.conversations.Upsert(row); err != nil {
			return err
		}
	}
	p.log.Info("Created group conversation", "conversation_id", conversationID, "members", len(memberIDs))
	return nil
}

// AddUserToGroupConversation inserts the member's row if absent and
// recomputes the member count across all rows of the conversation.
func (p *Projector) AddUserToGroupConversation(groupID, userID int64, name string, at time.Time) error {
	conversationID := domain.GroupConversationID(groupID)
	if _, err := p.conversations.Get(userID, conversationID); err == nil {
		return nil
	} else if err != apperrors.ErrNotFound {
		return err
	}

	row := domain.Conversation{
		UserID:          userID,
		ConversationID:  conversationID,
		Type:            domain.ConversationGroup,
		TargetID:        fmt.Sprintf("%d", groupID),
		Name:            name,
		LastMessageTime: at.UTC(),
	}
	if err := p.conversations.Upsert(row); err != nil {
		return err
	}
	_, err := p.conversations.RecountMembers(conversationID)
	return err
}

// RemoveUserFromGroupConversation deletes the member's row and updates
// the member count on the remaining rows. Removing an absent row is a
// no-op.
func (p *Projector) RemoveUserFromGroupConversation(groupID, userID int64) error {
	conversationID := domain.GroupConversationID(groupID)
	if err := p.conversations.Delete(userID, conversationID); err != nil && err != apperrors.ErrNotFound {
		return err
	}
	_, err := p.conversations.RecountMembers(conversationID)
	return err
}

// DeleteGroupConversation removes every member's row, used when a
// group is dissolved.
func (p *Projector) DeleteGroupConversation(groupID int64) error {
	conversationID := domain.GroupConversationID(groupID)
	rows, err := p.conversations.ListByConversation(conversationID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := p.conversations.Delete(row.UserID, conversationID); err != nil && err != apperrors.ErrNotFound {
			return err
		}
	}
	return nil
}
