package domain

import "time"

// Frame is a server-to-client payload. Every frame carries its wire
// type and an RFC3339 UTC timestamp.
type Frame interface {
	FrameType() string
}

// Stamp formats the moment frames are stamped with.
func Stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

type ErrorFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (f ErrorFrame) FrameType() string { return f.Type }

func NewErrorFrame(message string, at time.Time) ErrorFrame {
	return ErrorFrame{Type: "error", Message: message, Timestamp: Stamp(at)}
}

type SystemFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Level     string `json:"level"`
	Timestamp string `json:"timestamp"`
}

func (f SystemFrame) FrameType() string { return f.Type }

func NewSystemFrame(message, level string, at time.Time) SystemFrame {
	return SystemFrame{Type: "system", Message: message, Level: level, Timestamp: Stamp(at)}
}

type PongFrame struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

func (f PongFrame) FrameType() string { return f.Type }

func NewPongFrame(at time.Time) PongFrame {
	return PongFrame{Type: "pong", Timestamp: Stamp(at)}
}

type ConversationListFrame struct {
	Type      string         `json:"type"`
	Data      []Conversation `json:"data"`
	Timestamp string         `json:"timestamp"`
}

func (f ConversationListFrame) FrameType() string { return f.Type }

func NewConversationListFrame(rows []Conversation, at time.Time) ConversationListFrame {
	if rows == nil {
		// An empty inbox is an empty array on the wire, not null.
		rows = []Conversation{}
	}
	return ConversationListFrame{Type: "conversation_list", Data: rows, Timestamp: Stamp(at)}
}

type MessageSentFrame struct {
	Type           string `json:"type"`
	MessageID      int64  `json:"messageId"`
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	Timestamp      string `json:"timestamp"`
}

func (f MessageSentFrame) FrameType() string { return f.Type }

func NewMessageSentFrame(m Message) MessageSentFrame {
	return MessageSentFrame{
		Type:           "message_sent",
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		Content:        m.Content,
		Timestamp:      Stamp(m.CreatedAt),
	}
}

type NewMessageFrame struct {
	Type           string `json:"type"`
	MessageID      int64  `json:"messageId"`
	FromUserID     int64  `json:"fromUserId"`
	ConversationID string `json:"conversationId"`
	GroupID        *int64 `json:"groupId,omitempty"`
	Content        string `json:"content"`
	MessageType    string `json:"messageType"`
	Timestamp      string `json:"timestamp"`
}

func (f NewMessageFrame) FrameType() string { return f.Type }

func NewNewMessageFrame(m Message) NewMessageFrame {
	return NewMessageFrame{
		Type:           "new_message",
		MessageID:      m.ID,
		FromUserID:     m.SenderID,
		ConversationID: m.ConversationID,
		GroupID:        m.GroupID,
		Content:        m.Content,
		MessageType:    string(m.Type),
		Timestamp:      Stamp(m.CreatedAt),
	}
}

type RecallSuccessFrame struct {
	Type      string `json:"type"`
	MessageID int64  `json:"messageId"`
	Timestamp string `json:"timestamp"`
}

func (f RecallSuccessFrame) FrameType() string { return f.Type }

func NewRecallSuccessFrame(messageID int64, at time.Time) RecallSuccessFrame {
	return RecallSuccessFrame{Type: "recall_success", MessageID: messageID, Timestamp: Stamp(at)}
}

type MessageRecalledFrame struct {
	Type       string `json:"type"`
	MessageID  int64  `json:"messageId"`
	RecalledBy int64  `json:"recalledBy"`
	Timestamp  string `json:"timestamp"`
}

func (f MessageRecalledFrame) FrameType() string { return f.Type }

func NewMessageRecalledFrame(messageID, recalledBy int64, at time.Time) MessageRecalledFrame {
	return MessageRecalledFrame{
		Type:       "message_recalled",
		MessageID:  messageID,
		RecalledBy: recalledBy,
		Timestamp:  Stamp(at),
	}
}

type GroupCreatedFrame struct {
	Type      string `json:"type"`
	GroupID   int64  `json:"groupId"`
	GroupName string `json:"groupName"`
	Timestamp string `json:"timestamp"`
}

func (f GroupCreatedFrame) FrameType() string { return f.Type }

func NewGroupCreatedFrame(g Group, at time.Time) GroupCreatedFrame {
	return GroupCreatedFrame{Type: "group_created", GroupID: g.ID, GroupName: g.Name, Timestamp: Stamp(at)}
}

type GroupJoinedFrame struct {
	Type      string `json:"type"`
	GroupID   int64  `json:"groupId"`
	Timestamp string `json:"timestamp"`
}

func (f GroupJoinedFrame) FrameType() string { return f.Type }

func NewGroupJoinedFrame(groupID int64, at time.Time) GroupJoinedFrame {
	return GroupJoinedFrame{Type: "group_joined", GroupID: groupID, Timestamp: Stamp(at)}
}

type MemberRemovedFrame struct {
	Type      string `json:"type"`
	GroupID   int64  `json:"groupId"`
	UserID    int64  `json:"userId"`
	Timestamp string `json:"timestamp"`
}

func (f MemberRemovedFrame) FrameType() string { return f.Type }

func NewMemberRemovedFrame(groupID, userID int64, at time.Time) MemberRemovedFrame {
	return MemberRemovedFrame{Type: "member_removed", GroupID: groupID, UserID: userID, Timestamp: Stamp(at)}
}

type GroupDeletedFrame struct {
	Type      string `json:"type"`
	GroupID   int64  `json:"groupId"`
	Timestamp string `json:"timestamp"`
}

func (f GroupDeletedFrame) FrameType() string { return f.Type }

func NewGroupDeletedFrame(groupID int64, at time.Time) GroupDeletedFrame {
	return GroupDeletedFrame{Type: "group_deleted", GroupID: groupID, Timestamp: Stamp(at)}
}
