package ws

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xtzs123/uniapp-backend/domain"
	apperrors "github.com/xtzs123/uniapp-backend/errors"
)

func Test_DecodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    domain.Command
	}{
		{
			name:    "ping envelope",
			payload: `{"type":"ping"}`,
			want:    domain.Ping{},
		},
		{
			name:    "heartbeat alias",
			payload: `{"type":"heartbeat"}`,
			want:    domain.Ping{},
		},
		{
			name:    "conversation list",
			payload: `{"type":"get_conversation_list"}`,
			want:    domain.GetConversationList{},
		},
		{
			name:    "mark as read",
			payload: `{"type":"mark_as_read","conversationId":"conversation_1_2"}`,
			want:    domain.MarkRead{ConversationID: "conversation_1_2"},
		},
		{
			name:    "send message",
			payload: `{"type":"send_message","conversationId":"conversation_1_2","content":"hi","messageType":"TEXT","targetUserId":2}`,
			want: domain.SendMessage{
				ConversationID: "conversation_1_2",
				Content:        "hi",
				MessageType:    "TEXT",
				TargetUserID:   ptr(int64(2)),
			},
		},
		{
			name:    "recall",
			payload: `{"type":"recall_message","messageId":42}`,
			want:    domain.RecallMessage{MessageID: 42},
		},
		{
			name:    "set top keeps explicit false",
			payload: `{"type":"set_top","conversationId":"group_1","isTop":false}`,
			want:    domain.SetTop{ConversationID: "group_1", IsTop: ptr(false)},
		},
		{
			name:    "remove member",
			payload: `{"type":"remove_member","groupId":3,"targetUserId":9}`,
			want:    domain.RemoveMember{GroupID: 3, TargetUserID: 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCommand([]byte(tt.payload))
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func Test_DecodeCommand_Rejects(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":      `pong{`,
		"missing type":  `{"content":"hi"}`,
		"unknown type":  `{"type":"telepathy"}`,
		"wrong payload": `{"type":"recall_message","messageId":"forty-two"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCommand([]byte(payload))
			require.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func ptr[T any](v T) *T { return &v }
