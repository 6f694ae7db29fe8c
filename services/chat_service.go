package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/xtzs123/uniapp-backend/contract"
	"github.com/xtzs123/uniapp-backend/domain"
	apperrors "github.com/xtzs123/uniapp-backend/errors"
	"github.com/xtzs123/uniapp-backend/moderation"
	"github.com/xtzs123/uniapp-backend/projection"
	"github.com/xtzs123/uniapp-backend/repositories"
)

type IChatService interface {
	// Execute runs one decoded command on behalf of userID. Domain
	// errors are returned for the transport to convert into an error
	// frame; they never close the connection.
	Execute(ctx context.Context, userID int64, cmd domain.Command) error
	SendConversationList(ctx context.Context, userID int64) error
}

// ChatService is the command router: it validates decoded commands,
// drives the stores and the projector, and fans results out through
// the registry.
type ChatService struct {
	log       *slog.Logger
	registry  contract.IRegistry
	messages  repositories.IMessageRepository
	projector *projection.Projector
	groups    IGroupService
	moderator *moderation.Moderator
	validate  *validator.Validate
}

func NewChatService(
	log *slog.Logger,
	registry contract.IRegistry,
	messages repositories.IMessageRepository,
	projector *projection.Projector,
	groups IGroupService,
	moderator *moderation.Moderator,
) *ChatService {
	return &ChatService{
		log:       log,
		registry:  registry,
		messages:  messages,
		projector: projector,
		groups:    groups,
		moderator: moderator,
		validate:  validator.New(),
	}
}

func (s *ChatService) Execute(ctx context.Context, userID int64, cmd domain.Command) error {
	if err := s.validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	switch c := cmd.(type) {
	case domain.Ping:
		s.registry.Send(ctx, userID, domain.NewPongFrame(time.Now()))
		return nil
	case domain.GetConversationList:
		return s.SendConversationList(ctx, userID)
	case domain.MarkRead:
		return s.handleMarkRead(ctx, userID, c)
	case domain.SetTop:
		return s.handleSetTop(ctx, userID, c)
	case domain.SendMessage:
		return s.handleSendMessage(ctx, userID, c)
	case domain.RecallMessage:
		return s.handleRecallMessage(ctx, userID, c)
	case domain.CreateGroup:
		return s.handleCreateGroup(ctx, userID, c)
	case domain.JoinGroup:
		return s.handleJoinGroup(ctx, userID, c)
	case domain.RemoveMember:
		return s.handleRemoveMember(ctx, userID, c)
	case domain.DeleteGroup:
		return s.handleDeleteGroup(ctx, userID, c)
	case domain.DeleteConversation:
		return s.handleDeleteConversation(ctx, userID, c)
	default:
		return fmt.Errorf("%w: unknown command %q", apperrors.ErrValidation, cmd.CommandType())
	}
}

// SendConversationList pushes the caller's current inbox rows.
func (s *ChatService) SendConversationList(ctx context.Context, userID int64) error {
	rows, err := s.projector.List(userID)
	if err != nil {
		return err
	}
	s.registry.Send(ctx, userID, domain.NewConversationListFrame(rows, time.Now()))
	return nil
}

func (s *ChatService) handleMarkRead(ctx context.Context, userID int64, cmd domain.MarkRead) error {
	if err := s.projector.MarkRead(userID, cmd.ConversationID); err != nil {
		return err
	}
	// Message-level read flags back the direct 1:1 unread queries and
	// move independently of the projection counter.
	if _, err := s.messages.MarkRead(cmd.ConversationID, userID); err != nil {
		return err
	}
	return s.SendConversationList(ctx, userID)
}

func (s *ChatService) handleSetTop(ctx context.Context, userID int64, cmd domain.SetTop) error {
	if err := s.projector.SetTop(userID, cmd.ConversationID, *cmd.IsTop); err != nil {
		return err
	}
	return s.SendConversationList(ctx, userID)
}

func (s *ChatService) handleSendMessage(ctx context.Context, senderID int64, cmd domain.SendMessage) error {
	if (cmd.TargetUserID == nil) == (cmd.GroupID == nil) {
		return fmt.Errorf("%w: exactly one of targetUserId or groupId is required", apperrors.ErrValidation)
	}
	messageType, err := domain.ParseMessageType(cmd.MessageType)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	now := time.Now().UTC()
	content := s.moderator.Censor(cmd.Content)

	message := domain.Message{
		SenderID:  senderID,
		Content:   content,
		Type:      messageType,
		CreatedAt: now,
	}

	switch {
	case cmd.TargetUserID != nil:
		// The canonical id is derived server-side; a client-supplied
		// conversationId cannot move a message into another thread.
		conversationID, err := s.projector.GetOrCreatePrivateConversation(senderID, *cmd.TargetUserID, now)
		if err != nil {
			return err
		}
		message.ConversationID = conversationID
		message.ReceiverID = cmd.TargetUserID
	default:
		if !s.groups.IsMember(*cmd.GroupID, senderID) {
			return fmt.Errorf("%w: sender is not a member of group %d", apperrors.ErrPermissionDenied, *cmd.GroupID)
		}
		message.ConversationID = domain.GroupConversationID(*cmd.GroupID)
		message.GroupID = cmd.GroupID
	}

	saved, err := s.messages.Save(message)
	if err != nil {
		return err
	}
	if err := s.projector.UpdateLastMessage(saved.ConversationID, saved.Content, senderID, saved.CreatedAt); err != nil {
		return err
	}

	s.registry.Send(ctx, senderID, domain.NewMessageSentFrame(saved))
	s.fanOutNewMessage(ctx, saved)
	return nil
}

// fanOutNewMessage notifies the online recipients. Offline recipients
// are skipped silently; they catch up from storage on reconnect.
func (s *ChatService) fanOutNewMessage(ctx context.Context, message domain.Message) {
	frame := domain.NewNewMessageFrame(message)
	if message.ReceiverID != nil {
		s.registry.Send(ctx, *message.ReceiverID, frame)
		return
	}

	members, err := s.groups.Members(*message.GroupID)
	if err != nil {
		s.log.Warn("Group fan-out member lookup failed", "group_id", *message.GroupID, "error", err)
		return
	}
	for _, member := range members {
		if member.UserID == message.SenderID {
			continue
		}
		s.registry.Send(ctx, member.UserID, frame)
	}
}

func (s *ChatService) handleRecallMessage(ctx context.Context, userID int64, cmd domain.RecallMessage) error {
	now := time.Now().UTC()
	updated, err := s.messages.Recall(cmd.MessageID, userID, now)
	if err != nil {
		return err
	}
	if updated == 0 {
		return s.recallFailure(cmd.MessageID, userID)
	}

	message, err := s.messages.GetByID(cmd.MessageID)
	if err != nil {
		return err
	}

	s.registry.Send(ctx, userID, domain.NewRecallSuccessFrame(cmd.MessageID, now))

	// The recall notice is scoped to the conversation's participants,
	// not broadcast to every online user.
	rows, err := s.projector.ListParticipants(message.ConversationID)
	if err != nil {
		return err
	}
	notice := domain.NewMessageRecalledFrame(cmd.MessageID, userID, now)
	for _, row := range rows {
		if row.UserID == userID {
			continue
		}
		s.registry.Send(ctx, row.UserID, notice)
	}
	return nil
}

// recallFailure shapes the zero-update result into the precise domain
// error without mutating anything.
func (s *ChatService) recallFailure(messageID, userID int64) error {
	message, err := s.messages.GetByID(messageID)
	if err != nil {
		return err
	}
	if message.SenderID != userID {
		return fmt.Errorf("%w: only the sender may recall a message", apperrors.ErrPermissionDenied)
	}
	return apperrors.ErrAlreadyRecalled
}

func (s *ChatService) handleCreateGroup(ctx context.Context, userID int64, cmd domain.CreateGroup) error {
	now := time.Now().UTC()
	group, err := s.groups.CreateGroup(cmd.GroupName, cmd.Description, userID, now)
	if err != nil {
		return err
	}
	s.registry.Send(ctx, userID, domain.NewGroupCreatedFrame(group, now))
	return s.SendConversationList(ctx, userID)
}

func (s *ChatService) handleJoinGroup(ctx context.Context, userID int64, cmd domain.JoinGroup) error {
	now := time.Now().UTC()
	if _, err := s.groups.JoinGroup(cmd.GroupID, userID, now); err != nil {
		return err
	}
	s.registry.Send(ctx, userID, domain.NewGroupJoinedFrame(cmd.GroupID, now))
	return s.SendConversationList(ctx, userID)
}

func (s *ChatService) handleRemoveMember(ctx context.Context, operatorID int64, cmd domain.RemoveMember) error {
	now := time.Now().UTC()
	if err := s.groups.RemoveMember(cmd.GroupID, cmd.TargetUserID, operatorID); err != nil {
		return err
	}
	frame := domain.NewMemberRemovedFrame(cmd.GroupID, cmd.TargetUserID, now)
	s.registry.Send(ctx, operatorID, frame)
	if cmd.TargetUserID != operatorID {
		s.registry.Send(ctx, cmd.TargetUserID, frame)
		_ = s.SendConversationList(ctx, cmd.TargetUserID)
	}
	return s.SendConversationList(ctx, operatorID)
}

func (s *ChatService) handleDeleteGroup(ctx context.Context, operatorID int64, cmd domain.DeleteGroup) error {
	now := time.Now().UTC()
	memberIDs, err := s.groups.DeleteGroup(cmd.GroupID, operatorID)
	if err != nil {
		return err
	}
	frame := domain.NewGroupDeletedFrame(cmd.GroupID, now)
	for _, memberID := range memberIDs {
		if s.registry.Send(ctx, memberID, frame) {
			_ = s.SendConversationList(ctx, memberID)
		}
	}
	return nil
}

func (s *ChatService) handleDeleteConversation(ctx context.Context, userID int64, cmd domain.DeleteConversation) error {
	if err := s.projector.DeleteRow(userID, cmd.ConversationID); err != nil {
		return err
	}
	return s.SendConversationList(ctx, userID)
}
