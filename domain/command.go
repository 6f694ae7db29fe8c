package domain

// Command is the closed set of inbound client intents. Each frame is
// decoded once at the transport boundary into exactly one variant;
// the router dispatches with an exhaustive type switch.
type Command interface {
	CommandType() string
}

type GetConversationList struct{}

func (GetConversationList) CommandType() string { return "get_conversation_list" }

type MarkRead struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

func (MarkRead) CommandType() string { return "mark_as_read" }

type SetTop struct {
	ConversationID string `json:"conversationId" validate:"required"`
	IsTop          *bool  `json:"isTop" validate:"required"`
}

func (SetTop) CommandType() string { return "set_top" }

type SendMessage struct {
	ConversationID string `json:"conversationId" validate:"required"`
	Content        string `json:"content" validate:"required"`
	MessageType    string `json:"messageType" validate:"required"`
	TargetUserID   *int64 `json:"targetUserId"`
	GroupID        *int64 `json:"groupId"`
}

func (SendMessage) CommandType() string { return "send_message" }

type RecallMessage struct {
	MessageID int64 `json:"messageId" validate:"required"`
}

func (RecallMessage) CommandType() string { return "recall_message" }

type CreateGroup struct {
	GroupName   string `json:"groupName" validate:"required"`
	Description string `json:"description"`
}

func (CreateGroup) CommandType() string { return "create_group" }

type JoinGroup struct {
	GroupID int64 `json:"groupId" validate:"required"`
}

func (JoinGroup) CommandType() string { return "join_group" }

type RemoveMember struct {
	GroupID      int64 `json:"groupId" validate:"required"`
	TargetUserID int64 `json:"targetUserId" validate:"required"`
}

func (RemoveMember) CommandType() string { return "remove_member" }

type DeleteGroup struct {
	GroupID int64 `json:"groupId" validate:"required"`
}

func (DeleteGroup) CommandType() string { return "delete_group" }

type DeleteConversation struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

func (DeleteConversation) CommandType() string { return "delete_conversation" }

type Ping struct{}

func (Ping) CommandType() string { return "ping" }
