package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/xtzs123/uniapp-backend/domain"
	apperrors "github.com/xtzs123/uniapp-backend/errors"
)

type IGroupRepository interface {
	// Create persists the group record and its creator's OWNER
	// membership in one transaction.
	Create(name, description string, creatorID int64, at time.Time) (domain.Group, error)
	Get(groupID int64) (domain.Group, error)
	AddMember(groupID, userID int64, role domain.GroupRole, at time.Time) error
	RemoveMember(groupID, userID int64) error
	GetMember(groupID, userID int64) (domain.GroupMember, error)
	ListMembers(groupID int64) ([]domain.GroupMember, error)
	CountByGroup(groupID int64) (int, error)
	// Delete cascades: membership rows first, then the group record.
	Delete(groupID int64) error
	Close() error
}

type GroupRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewGroupRepository(db *badger.DB) (*GroupRepository, error) {
	seq, err := db.GetSequence([]byte("seq:group"), 16)
	if err != nil {
		return nil, fmt.Errorf("group sequence: %w", err)
	}
	return &GroupRepository{db: db, seq: seq}, nil
}

func (g *GroupRepository) Close() error {
	return g.seq.Release()
}

// Keys:
//
//	grp:{group_id_padded}                 -> JSON group record
//	gm:{group_id_padded}:{user_id_padded} -> JSON membership row
func groupKey(groupID int64) []byte {
	return []byte(fmt.Sprintf("grp:%019d", groupID))
}

func memberKey(groupID, userID int64) []byte {
	return []byte(fmt.Sprintf("gm:%019d:%019d", groupID, userID))
}

func memberPrefix(groupID int64) []byte {
	return []byte(fmt.Sprintf("gm:%019d:", groupID))
}

func putGroup(txn *badger.Txn, group domain.Group) error {
	bytes, err := json.Marshal(group)
	if err != nil {
		return err
	}
	return txn.Set(groupKey(group.ID), bytes)
}

func getGroup(txn *badger.Txn, groupID int64) (domain.Group, error) {
	var group domain.Group
	item, err := txn.Get(groupKey(groupID))
	if err != nil {
		return domain.Group{}, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &group)
	})
	return group, err
}

func scanMembers(txn *badger.Txn, groupID int64) ([]domain.GroupMember, error) {
	var members []domain.GroupMember
	prefix := memberPrefix(groupID)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var member domain.GroupMember
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &member)
		}); err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, nil
}

func (g *GroupRepository) Create(name, description string, creatorID int64, at time.Time) (domain.Group, error) {
	next, err := g.seq.Next()
	if err != nil {
		return domain.Group{}, fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	group := domain.Group{
		ID:          int64(next) + 1,
		Name:        name,
		Description: description,
		CreatorID:   creatorID,
		MemberCount: 1,
		CreatedAt:   at.UTC(),
	}
	owner := domain.GroupMember{
		GroupID:  group.ID,
		UserID:   creatorID,
		Role:     domain.RoleOwner,
		JoinedAt: at.UTC(),
	}

	err = g.db.Update(func(txn *badger.Txn) error {
		if err := putGroup(txn, group); err != nil {
			return err
		}
		bytes, err := json.Marshal(owner)
		if err != nil {
			return err
		}
		return txn.Set(memberKey(group.ID, creatorID), bytes)
	})
	if err != nil {
		return domain.Group{}, fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return group, nil
}

func (g *GroupRepository) Get(groupID int64) (domain.Group, error) {
	var group domain.Group
	err := g.db.View(func(txn *badger.Txn) error {
		var innerErr error
		group, innerErr = getGroup(txn, groupID)
		return innerErr
	})
	if err == badger.ErrKeyNotFound {
		return domain.Group{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.Group{}, fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return group, nil
}

// AddMember fails when the membership already exists and keeps the
// group record's member count in step with the membership rows.
func (g *GroupRepository) AddMember(groupID, userID int64, role domain.GroupRole, at time.Time) error {
	err := g.db.Update(func(txn *badger.Txn) error {
		group, err := getGroup(txn, groupID)
		if err != nil {
			return err
		}
		if _, err := txn.Get(memberKey(groupID, userID)); err == nil {
			return apperrors.ErrAlreadyMember
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		member := domain.GroupMember{
			GroupID:  groupID,
			UserID:   userID,
			Role:     role,
			JoinedAt: at.UTC(),
		}
		bytes, err := json.Marshal(member)
		if err != nil {
			return err
		}
		if err := txn.Set(memberKey(groupID, userID), bytes); err != nil {
			return err
		}
		// Badger iterators see the transaction's own pending writes,
		// so the scan already includes the new member.
		members, err := scanMembers(txn, groupID)
		if err != nil {
			return err
		}
		group.MemberCount = len(members)
		return putGroup(txn, group)
	})
	if err == apperrors.ErrAlreadyMember {
		return err
	}
	if err == badger.ErrKeyNotFound {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return nil
}

func (g *GroupRepository) RemoveMember(groupID, userID int64) error {
	err := g.db.Update(func(txn *badger.Txn) error {
		group, err := getGroup(txn, groupID)
		if err != nil {
			return err
		}
		if _, err := txn.Get(memberKey(groupID, userID)); err != nil {
			return err
		}
		if err := txn.Delete(memberKey(groupID, userID)); err != nil {
			return err
		}
		members, err := scanMembers(txn, groupID)
		if err != nil {
			return err
		}
		group.MemberCount = len(members)
		return putGroup(txn, group)
	})
	if err == badger.ErrKeyNotFound {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return nil
}

func (g *GroupRepository) GetMember(groupID, userID int64) (domain.GroupMember, error) {
	var member domain.GroupMember
	err := g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(memberKey(groupID, userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &member)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.GroupMember{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.GroupMember{}, fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return member, nil
}

func (g *GroupRepository) ListMembers(groupID int64) ([]domain.GroupMember, error) {
	var members []domain.GroupMember
	err := g.db.View(func(txn *badger.Txn) error {
		var innerErr error
		members, innerErr = scanMembers(txn, groupID)
		return innerErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return members, nil
}

func (g *GroupRepository) CountByGroup(groupID int64) (int, error) {
	members, err := g.ListMembers(groupID)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

func (g *GroupRepository) Delete(groupID int64) error {
	err := g.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(groupKey(groupID)); err != nil {
			return err
		}
		members, err := scanMembers(txn, groupID)
		if err != nil {
			return err
		}
		for _, member := range members {
			if err := txn.Delete(memberKey(groupID, member.UserID)); err != nil {
				return err
			}
		}
		return txn.Delete(groupKey(groupID))
	})
	if err == badger.ErrKeyNotFound {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrTransaction, err)
	}
	return nil
}
