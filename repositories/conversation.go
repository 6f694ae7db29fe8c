package repositories

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/xtzs123/uniapp-backend/domain"
	apperrors "github.com/xtzs123/uniapp-backend/errors"
)

type IConversationRepository interface {
	Upsert(row domain.Conversation) error
	Get(userID int64, conversationID string) (domain.Conversation, error)
	Delete(userID int64, conversationID string) error
	// ListByUser returns the user's rows ordered for inbox rendering:
	// pinned first, then most recent activity.
	ListByUser(userID int64) ([]domain.Conversation, error)
	ListByConversation(conversationID string) ([]domain.Conversation, error)
	// CreatePairIfAbsent writes both participant rows of a private
	// conversation in one transaction, only when no row exists yet for
	// that conversation id. Returns whether the pair was created.
	CreatePairIfAbsent(rows [2]domain.Conversation) (bool, error)
	// UpdateLastMessage rewrites every row of a conversation with the
	// new last message, bumping unread counts on all rows except the
	// sender's own.
	UpdateLastMessage(conversationID, lastMessage string, senderID int64, at time.Time) error
	MarkRead(userID int64, conversationID string) error
	SetTop(userID int64, conversationID string, isTop bool) error
	// RecountMembers sets MemberCount on every remaining row of a
	// conversation to the number of rows and returns that count.
	RecountMembers(conversationID string) (int, error)
}

type ConversationRepository struct {
	db *badger.DB
}

func NewConversationRepository(db *badger.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Keys:
//
//	conv:u:{user_id_padded}:{conversation_id} -> JSON row (primary)
//	conv:c:{conversation_id}:{user_id_padded} -> primary key
//
// The second key family supports fan-out scans over every
// participant's row of one conversation.
func conversationKey(userID int64, conversationID string) []byte {
	return []byte(fmt.Sprintf("conv:u:%019d:%s", userID, conversationID))
}

func conversationIndexKey(conversationID string, userID int64) []byte {
	return []byte(fmt.Sprintf("conv:c:%s:%019d", conversationID, userID))
}

func conversationUserPrefix(userID int64) []byte {
	return []byte(fmt.Sprintf("conv:u:%019d:", userID))
}

func conversationIndexPrefix(conversationID string) []byte {
	return []byte(fmt.Sprintf("conv:c:%s:", conversationID))
}

func putConversation(txn *badger.Txn, row domain.Conversation) error {
	bytes, err := json.Marshal(row)
	if err != nil {
		return err
	}
	if err := txn.Set(conversationKey(row.UserID, row.ConversationID), bytes); err != nil {
		return err
	}
	return txn.Set(conversationIndexKey(row.ConversationID, row.UserID), conversationKey(row.UserID, row.ConversationID))
}

func (c *ConversationRepository) Upsert(row domain.Conversation) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return putConversation(txn, row)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return nil
}

func (c *ConversationRepository) Get(userID int64, conversationID string) (domain.Conversation, error) {
	var row domain.Conversation
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(userID, conversationID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &row)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Conversation{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return row, nil
}

func (c *ConversationRepository) Delete(userID int64, conversationID string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(conversationKey(userID, conversationID)); err != nil {
			return err
		}
		if err := txn.Delete(conversationKey(userID, conversationID)); err != nil {
			return err
		}
		return txn.Delete(conversationIndexKey(conversationID, userID))
	})
	if err == badger.ErrKeyNotFound {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return nil
}

func (c *ConversationRepository) ListByUser(userID int64) ([]domain.Conversation, error) {
	var rows []domain.Conversation
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := conversationUserPrefix(userID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var row domain.Conversation
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &row)
			}); err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].IsTop != rows[j].IsTop {
			return rows[i].IsTop
		}
		return rows[i].LastMessageTime.After(rows[j].LastMessageTime)
	})
	return rows, nil
}

func (c *ConversationRepository) ListByConversation(conversationID string) ([]domain.Conversation, error) {
	var rows []domain.Conversation
	err := c.db.View(func(txn *badger.Txn) error {
		var innerErr error
		rows, innerErr = scanConversationRows(txn, conversationID)
		return innerErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return rows, nil
}

func scanConversationRows(txn *badger.Txn, conversationID string) ([]domain.Conversation, error) {
	var rows []domain.Conversation
	prefix := conversationIndexPrefix(conversationID)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var primaryKey []byte
		if err := it.Item().Value(func(val []byte) error {
			primaryKey = append([]byte(nil), val...)
			return nil
		}); err != nil {
			return nil, err
		}
		item, err := txn.Get(primaryKey)
		if err != nil {
			return nil, err
		}
		var row domain.Conversation
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &row)
		}); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CreatePairIfAbsent checks existence with txn.Get on both row keys
// rather than a prefix scan: a Get registers the read key even when it
// is absent, so when two first contacts race, the later commit fails
// with ErrConflict instead of overwriting rows the winner already
// bumped. On conflict the check is re-run and finds the winner's pair.
func (c *ConversationRepository) CreatePairIfAbsent(rows [2]domain.Conversation) (bool, error) {
	for {
		created := false
		err := c.db.Update(func(txn *badger.Txn) error {
			exists := false
			for _, row := range rows {
				_, err := txn.Get(conversationKey(row.UserID, row.ConversationID))
				if err == nil {
					exists = true
				} else if err != badger.ErrKeyNotFound {
					return err
				}
			}
			if exists {
				return nil
			}
			for _, row := range rows {
				if err := putConversation(txn, row); err != nil {
					return err
				}
			}
			created = true
			return nil
		})
		if err == badger.ErrConflict {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
		}
		return created, nil
	}
}

func (c *ConversationRepository) UpdateLastMessage(conversationID, lastMessage string, senderID int64, at time.Time) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		rows, err := scanConversationRows(txn, conversationID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return badger.ErrKeyNotFound
		}
		for _, row := range rows {
			row.LastMessage = lastMessage
			row.LastMessageTime = at.UTC()
			if row.UserID != senderID {
				row.UnreadCount++
			}
			if err := putConversation(txn, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return nil
}

func (c *ConversationRepository) MarkRead(userID int64, conversationID string) error {
	return c.mutateRow(userID, conversationID, func(row *domain.Conversation) {
		row.UnreadCount = 0
	})
}

func (c *ConversationRepository) SetTop(userID int64, conversationID string, isTop bool) error {
	return c.mutateRow(userID, conversationID, func(row *domain.Conversation) {
		row.IsTop = isTop
	})
}

func (c *ConversationRepository) mutateRow(userID int64, conversationID string, mutate func(*domain.Conversation)) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(userID, conversationID))
		if err != nil {
			return err
		}
		var row domain.Conversation
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &row)
		}); err != nil {
			return err
		}
		mutate(&row)
		return putConversation(txn, row)
	})
	if err == badger.ErrKeyNotFound {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return nil
}

func (c *ConversationRepository) RecountMembers(conversationID string) (int, error) {
	count := 0
	err := c.db.Update(func(txn *badger.Txn) error {
		rows, err := scanConversationRows(txn, conversationID)
		if err != nil {
			return err
		}
		count = len(rows)
		for _, row := range rows {
			row.MemberCount = count
			if err := putConversation(txn, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return count, nil
}
