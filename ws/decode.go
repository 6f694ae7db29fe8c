package ws

import (
	"encoding/json"
	"fmt"

	"github.com/xtzs123/uniapp-backend/domain"
	apperrors "github.com/xtzs123/uniapp-backend/errors"
)

type envelope struct {
	Type string `json:"type"`
}

// DecodeCommand turns one inbound JSON frame into exactly one command
// variant. Everything the router sees has already been through here;
// unknown or malformed frames never reach the services.
func DecodeCommand(data []byte) (domain.Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed frame: %v", apperrors.ErrValidation, err)
	}

	switch env.Type {
	case "":
		return nil, fmt.Errorf("%w: missing frame type", apperrors.ErrValidation)
	case "ping", "heartbeat":
		return domain.Ping{}, nil
	case "get_conversation_list":
		return domain.GetConversationList{}, nil
	case "mark_as_read":
		return decodeInto[domain.MarkRead](data)
	case "set_top":
		return decodeInto[domain.SetTop](data)
	case "send_message":
		return decodeInto[domain.SendMessage](data)
	case "recall_message":
		return decodeInto[domain.RecallMessage](data)
	case "create_group":
		return decodeInto[domain.CreateGroup](data)
	case "join_group":
		return decodeInto[domain.JoinGroup](data)
	case "remove_member":
		return decodeInto[domain.RemoveMember](data)
	case "delete_group":
		return decodeInto[domain.DeleteGroup](data)
	case "delete_conversation":
		return decodeInto[domain.DeleteConversation](data)
	default:
		return nil, fmt.Errorf("%w: unknown frame type %q", apperrors.ErrValidation, env.Type)
	}
}

func decodeInto[T domain.Command](data []byte) (domain.Command, error) {
	var cmd T
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	return cmd, nil
}
