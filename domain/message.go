// Package domain contains core concepts of the chat system.
// This file defines Message records and related rules.
// Message content is immutable once created; only the read and
// recall flags may change, each exactly once.
package domain

import (
	"fmt"
	"strings"
	"time"
)

type MessageType string

const (
	MessageTypeText  MessageType = "TEXT"
	MessageTypeImage MessageType = "IMAGE"
	MessageTypeFile  MessageType = "FILE"
	MessageTypeAudio MessageType = "AUDIO"
	MessageTypeVideo MessageType = "VIDEO"
)

// ParseMessageType maps a client-provided type string onto the closed enum.
func ParseMessageType(s string) (MessageType, error) {
	switch MessageType(strings.ToUpper(s)) {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeAudio, MessageTypeVideo:
		return MessageType(strings.ToUpper(s)), nil
	default:
		return "", fmt.Errorf("unsupported message type %q", s)
	}
}

// Message is a single chat message. ReceiverID is set for private
// messages, GroupID for group messages, never both.
type Message struct {
	ID             int64       `json:"id"`
	ConversationID string      `json:"conversationId"`
	SenderID       int64       `json:"senderId"`
	ReceiverID     *int64      `json:"receiverId,omitempty"`
	GroupID        *int64      `json:"groupId,omitempty"`
	Content        string      `json:"content"`
	Type           MessageType `json:"messageType"`
	CreatedAt      time.Time   `json:"createdTime"`
	IsRead         bool        `json:"isRead"`
	IsRecalled     bool        `json:"isRecalled"`
	RecallTime     *time.Time  `json:"recallTime,omitempty"`
}
