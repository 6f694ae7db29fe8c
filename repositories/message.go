package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/xtzs123/uniapp-backend/domain"
	apperrors "github.com/xtzs123/uniapp-backend/errors"
)

type IMessageRepository interface {
	Save(message domain.Message) (domain.Message, error)
	GetByID(messageID int64) (domain.Message, error)
	// Recall marks a message recalled and returns the number of rows
	// updated: 0 means not found, not the sender, or already recalled.
	Recall(messageID, senderID int64, when time.Time) (int, error)
	ListByConversation(conversationID string) ([]domain.Message, error)
	// MarkRead flips the receiver-targeted read flag on every unread
	// message of a conversation addressed to receiverID.
	MarkRead(conversationID string, receiverID int64) (int, error)
	CountUnread(conversationID string, receiverID int64) (int, error)
	Close() error
}

type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:message"), 64)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log}, nil
}

// Close releases the id sequence lease.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// Keys:
//
//	msg:{id_padded}                               -> JSON message (primary)
//	msgc:{conversation_id}:{timestamp_padded}:{id_padded} -> primary key
//
// The 19-digit zero padding keeps the conversation index in
// chronological order under Badger's lexicographic iteration, and the
// trailing id disambiguates two messages stored in the same nanosecond.
func messageKey(id int64) []byte {
	return []byte(fmt.Sprintf("msg:%019d", id))
}

func messageIndexKey(conversationID string, at time.Time, id int64) []byte {
	return []byte(fmt.Sprintf("msgc:%s:%019d:%019d", conversationID, at.UnixNano(), id))
}

func messageIndexPrefix(conversationID string) []byte {
	return []byte(fmt.Sprintf("msgc:%s:", conversationID))
}

// Save assigns the message id and creation time and persists both the
// primary row and the conversation index entry in one transaction.
func (m *MessageRepository) Save(message domain.Message) (domain.Message, error) {
	next, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	message.ID = int64(next) + 1 // ids start at 1
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	bytes, err := json.Marshal(message)
	if err != nil {
		return domain.Message{}, err
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(message.ID), bytes); err != nil {
			return err
		}
		return txn.Set(messageIndexKey(message.ConversationID, message.CreatedAt, message.ID), messageKey(message.ID))
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return message, nil
}

func (m *MessageRepository) GetByID(messageID int64) (domain.Message, error) {
	var message domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(messageKey(messageID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &message)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Message{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return message, nil
}

// Recall transitions isRecalled exactly once. The sender check and the
// already-recalled check happen inside the same transaction as the
// write, so two concurrent recalls cannot both count as updates.
func (m *MessageRepository) Recall(messageID, senderID int64, when time.Time) (int, error) {
	updated := 0
	err := m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(messageKey(messageID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var message domain.Message
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &message)
		}); err != nil {
			return err
		}
		if message.SenderID != senderID || message.IsRecalled {
			return nil
		}
		message.IsRecalled = true
		when = when.UTC()
		message.RecallTime = &when
		bytes, err := json.Marshal(message)
		if err != nil {
			return err
		}
		if err := txn.Set(messageKey(messageID), bytes); err != nil {
			return err
		}
		updated = 1
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return updated, nil
}

// ListByConversation returns the conversation's messages in creation
// order using a prefix scan over the chronological index.
func (m *MessageRepository) ListByConversation(conversationID string) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messageIndexPrefix(conversationID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var primaryKey []byte
			if err := it.Item().Value(func(val []byte) error {
				primaryKey = append([]byte(nil), val...)
				return nil
			}); err != nil {
				return err
			}
			item, err := txn.Get(primaryKey)
			if err != nil {
				return err
			}
			var message domain.Message
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &message)
			}); err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return messages, nil
}

func (m *MessageRepository) MarkRead(conversationID string, receiverID int64) (int, error) {
	updated := 0
	err := m.db.Update(func(txn *badger.Txn) error {
		prefix := messageIndexPrefix(conversationID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var primaryKey []byte
			if err := it.Item().Value(func(val []byte) error {
				primaryKey = append([]byte(nil), val...)
				return nil
			}); err != nil {
				return err
			}
			item, err := txn.Get(primaryKey)
			if err != nil {
				return err
			}
			var message domain.Message
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &message)
			}); err != nil {
				return err
			}
			if message.ReceiverID == nil || *message.ReceiverID != receiverID || message.IsRead {
				continue
			}
			message.IsRead = true
			bytes, err := json.Marshal(message)
			if err != nil {
				return err
			}
			if err := txn.Set(primaryKey, bytes); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return updated, nil
}

func (m *MessageRepository) CountUnread(conversationID string, receiverID int64) (int, error) {
	messages, err := m.ListByConversation(conversationID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, message := range messages {
		if message.ReceiverID != nil && *message.ReceiverID == receiverID && !message.IsRead {
			count++
		}
	}
	return count, nil
}
